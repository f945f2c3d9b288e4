package soap

import (
	"encoding/xml"
)

// namedHeader is an envelope header installed by Client.SetSOAPHeader.
type namedHeader struct {
	name      string
	namespace string
	content   interface{}
}

func (h *namedHeader) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	start := xml.StartElement{Name: xml.Name{Space: h.namespace, Local: h.name}}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.Encode(h.content); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}
