package soap

import (
	"encoding/xml"
	"strings"

	"github.com/beevik/etree"
)

// Record is a dynamically typed element decoded from a response, such as a
// query result row. Field lookups ignore namespace prefixes.
type Record struct {
	elem *etree.Element
}

// NewRecord wraps an existing element.
func NewRecord(elem *etree.Element) *Record {
	return &Record{elem: elem}
}

// UnmarshalXML builds the element tree of the record from the decoder.
func (r *Record) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	root := newElement(start)
	stack := []*etree.Element{root}
	for len(stack) > 0 {
		token, err := d.Token()
		if err != nil {
			return err
		}
		top := stack[len(stack)-1]
		switch t := token.(type) {
		case xml.StartElement:
			child := newElement(t)
			top.AddChild(child)
			stack = append(stack, child)
		case xml.CharData:
			top.SetText(top.Text() + string(t))
		case xml.EndElement:
			// Only the indentation between child elements is dropped;
			// field values keep their whitespace.
			if len(top.ChildElements()) > 0 {
				top.SetText(strings.TrimSpace(top.Text()))
			}
			stack = stack[:len(stack)-1]
		}
	}
	r.elem = root
	return nil
}

func newElement(start xml.StartElement) *etree.Element {
	elem := etree.NewElement(start.Name.Local)
	for _, a := range start.Attr {
		if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
			continue
		}
		elem.CreateAttr(a.Name.Local, a.Value)
	}
	return elem
}

// Element exposes the underlying element tree.
func (r *Record) Element() *etree.Element {
	return r.elem
}

// Name is the element name the record was decoded from.
func (r *Record) Name() string {
	if r == nil || r.elem == nil {
		return ""
	}
	return r.elem.Tag
}

// Type returns the schema type named by xsi:type, without its prefix.
func (r *Record) Type() string {
	if r == nil || r.elem == nil {
		return ""
	}
	t := r.elem.SelectAttrValue("type", "")
	if i := strings.LastIndexByte(t, ':'); i >= 0 {
		return t[i+1:]
	}
	return t
}

// Get returns the text of the first child named name.
func (r *Record) Get(name string) (string, bool) {
	if r == nil || r.elem == nil {
		return "", false
	}
	child := r.elem.SelectElement(name)
	if child == nil {
		return "", false
	}
	return child.Text(), true
}

// String returns the text of field name, or "" when it is absent.
func (r *Record) String(name string) string {
	v, _ := r.Get(name)
	return v
}

// Record returns the first nested record named name.
func (r *Record) Record(name string) *Record {
	if r == nil || r.elem == nil {
		return nil
	}
	child := r.elem.SelectElement(name)
	if child == nil {
		return nil
	}
	return &Record{elem: child}
}

// Records returns every nested record named name.
func (r *Record) Records(name string) []*Record {
	if r == nil || r.elem == nil {
		return nil
	}
	var out []*Record
	for _, child := range r.elem.SelectElements(name) {
		out = append(out, &Record{elem: child})
	}
	return out
}

// Fields lists the distinct child element names in document order.
func (r *Record) Fields() []string {
	if r == nil || r.elem == nil {
		return nil
	}
	seen := make(map[string]bool)
	var names []string
	for _, child := range r.elem.ChildElements() {
		if !seen[child.Tag] {
			seen[child.Tag] = true
			names = append(names, child.Tag)
		}
	}
	return names
}

// Map converts the record into plain maps: leaf fields become strings,
// nested elements become maps and repeated fields become slices.
func (r *Record) Map() map[string]interface{} {
	if r == nil || r.elem == nil {
		return nil
	}
	return elementMap(r.elem)
}

func elementMap(elem *etree.Element) map[string]interface{} {
	out := make(map[string]interface{})
	for _, child := range elem.ChildElements() {
		var v interface{}
		if len(child.ChildElements()) > 0 {
			v = elementMap(child)
		} else {
			v = child.Text()
		}
		switch prev := out[child.Tag].(type) {
		case nil:
			out[child.Tag] = v
		case []interface{}:
			out[child.Tag] = append(prev, v)
		default:
			out[child.Tag] = []interface{}{prev, v}
		}
	}
	return out
}
