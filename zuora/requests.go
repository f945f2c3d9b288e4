package zuora

import (
	"encoding/xml"

	"github.com/cheyinl/zuora-soap/soap"
)

// Request bodies. XMLName is filled in at call time with the API namespace
// read from the WSDL.

type loginRequest struct {
	XMLName  xml.Name
	Username string `xml:"username"`
	Password string `xml:"password"`
}

// saveRequest carries create, update and generate.
type saveRequest struct {
	XMLName  xml.Name
	ZObjects []*soap.Object `xml:"zObjects"`
}

type deleteRequest struct {
	XMLName xml.Name
	Type    string   `xml:"type"`
	IDs     []string `xml:"ids"`
}

type queryRequest struct {
	XMLName     xml.Name
	QueryString string `xml:"queryString"`
}

type queryMoreRequest struct {
	XMLName      xml.Name
	QueryLocator string `xml:"queryLocator"`
}

type amendRequest struct {
	XMLName  xml.Name
	Requests []*soap.Object `xml:"requests"`
}

type subscribeRequest struct {
	XMLName    xml.Name
	Subscribes []*soap.Object `xml:"subscribes"`
}

type executeRequest struct {
	XMLName     xml.Name
	Type        string   `xml:"type"`
	Synchronous bool     `xml:"synchronous"`
	IDs         []string `xml:"ids"`
}

type getUserInfoRequest struct {
	XMLName xml.Name
}

// callOptions is the CallOptions envelope header.
type callOptions struct {
	XMLName              xml.Name
	UseSingleTransaction bool `xml:"useSingleTransaction"`
}

// queryOptions is the QueryOptions envelope header.
type queryOptions struct {
	XMLName   xml.Name
	BatchSize int `xml:"batchSize"`
}

// sessionHeader is the content of the SessionHeader envelope header.
type sessionHeader struct {
	XMLName xml.Name `xml:"session"`
	Session string   `xml:",chardata"`
}
