package soap

import (
	"bytes"
	"context"
	"crypto/rsa"
	"crypto/tls"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

type SOAPEnvelopeResponse struct {
	XMLName xml.Name `xml:"http://schemas.xmlsoap.org/soap/envelope/ Envelope"`
	Header  *SOAPHeaderResponse
	Body    SOAPBodyResponse
}

// const SOAPMIMEType = "application/soap+xml; charset=utf-8"
const SOAPMIMEType = "text/xml; charset=utf-8"

type SOAPEnvelope struct {
	XMLName xml.Name `xml:"SOAP-ENV:Envelope"`
	XmlNS   string   `xml:"xmlns:SOAP-ENV,attr"`

	Header *SOAPHeader
	Body   SOAPBody
}

type SOAPHeader struct {
	XMLName xml.Name `xml:"SOAP-ENV:Header"`

	Headers []interface{}
}

type SOAPHeaderResponse struct {
	XMLName xml.Name `xml:"Header"`

	Headers []interface{}
}

type SOAPBody struct {
	XMLName xml.Name `xml:"SOAP-ENV:Body"`

	// XMLNSWsu is the SOAP WS-Security utility namespace.
	XMLNSWsu string `xml:"xmlns:wsu,attr,omitempty"`
	// ID is a body ID used during WS-Security signing.
	ID string `xml:"wsu:Id,attr,omitempty"`

	Content interface{} `xml:",omitempty"`
}

type SOAPBodyResponse struct {
	XMLName xml.Name `xml:"Body"`

	Content interface{} `xml:",omitempty"`

	// faultOccurred indicates whether the XML body included a fault;
	// we cannot simply store SOAPFault as a pointer to indicate this, since
	// fault is initialized to non-nil with user-provided detail type.
	faultOccurred bool
	Fault         *SOAPFault `xml:",omitempty"`
}

// UnmarshalXML unmarshals SOAPBody xml. A nil Content discards the payload.
func (b *SOAPBodyResponse) UnmarshalXML(d *xml.Decoder, _ xml.StartElement) error {
	var consumed bool
	for {
		token, err := d.Token()
		if err != nil {
			return err
		}

		switch se := token.(type) {
		case xml.StartElement:
			if consumed {
				return xml.UnmarshalError("Found multiple elements inside SOAP body; not wrapped-document/literal WS-I compliant")
			}
			consumed = true
			if se.Name.Space == XmlNsSoapEnv && se.Name.Local == "Fault" {
				b.Content = nil
				b.faultOccurred = true
				if b.Fault == nil {
					b.Fault = &SOAPFault{}
				}
				if err = d.DecodeElement(b.Fault, &se); err != nil {
					return err
				}
				continue
			}
			if b.Content == nil {
				if err = d.Skip(); err != nil {
					return err
				}
				continue
			}
			if err = d.DecodeElement(b.Content, &se); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

func (b *SOAPBodyResponse) ErrorFromFault() error {
	if b.faultOccurred {
		return b.Fault
	}
	b.Fault = nil
	return nil
}

type FaultError interface {
	// ErrorString should return a short version of the detail as a string,
	// which will be used in place of <faultstring> for the error message.
	// Set "HasData()" to always return false if <faultstring> error
	// message is preferred.
	ErrorString() string
	// HasData indicates whether the composite fault contains any data.
	HasData() bool
}

type SOAPFault struct {
	XMLName xml.Name `xml:"http://schemas.xmlsoap.org/soap/envelope/ Fault"`

	Code   string     `xml:"faultcode,omitempty"`
	String string     `xml:"faultstring,omitempty"`
	Actor  string     `xml:"faultactor,omitempty"`
	Detail FaultError `xml:"detail,omitempty"`
}

func (f *SOAPFault) Error() string {
	if f.Detail != nil && f.Detail.HasData() {
		return f.Detail.ErrorString()
	}
	return f.String
}

// LocalCode returns the fault code without its namespace prefix.
func (f *SOAPFault) LocalCode() string {
	for i := len(f.Code) - 1; i >= 0; i-- {
		if f.Code[i] == ':' {
			return f.Code[i+1:]
		}
	}
	return f.Code
}

// HTTPError is returned when the server answers an error status with an
// envelope that carries no fault.
type HTTPError struct {
	//StatusCode is the status code returned in the HTTP response
	StatusCode int
	//ResponseBody contains the body returned in the HTTP response
	ResponseBody []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP Status %d: %s", e.StatusCode, string(e.ResponseBody))
}

// ErrMalformedResponse marks a response whose body is not a SOAP envelope.
var ErrMalformedResponse = errors.New("malformed SOAP response")

// MalformedResponseError is returned when the server answered with something
// other than a SOAP envelope (raw text, HTML, an empty body), at any status.
type MalformedResponseError struct {
	StatusCode   int
	ResponseBody []byte
}

func (e *MalformedResponseError) Error() string {
	body := e.ResponseBody
	if len(body) > 128 {
		body = body[:128]
	}
	return fmt.Sprintf("%s (HTTP Status %d): %q", ErrMalformedResponse, e.StatusCode, body)
}

func (e *MalformedResponseError) Unwrap() error {
	return ErrMalformedResponse
}

// IsMalformed reports whether err was caused by a non-envelope response.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedResponse)
}

const (
	// Predefined WSS namespaces to be used in
	WssNsWSSE           string = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"
	WssNsWSU            string = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-utility-1.0.xsd"
	WssNsType           string = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-username-token-profile-1.0#PasswordText"
	XmlNsSoapEnv        string = "http://schemas.xmlsoap.org/soap/envelope/"
	XmlNsXSI            string = "http://www.w3.org/2001/XMLSchema-instance"
	WssEncodeTypeBase64        = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-soap-message-security-1.0#Base64Binary"
	WssValueTypeX509v3         = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-x509-token-profile-1.0#X509v3"
	NsXMLDSig                  = "http://www.w3.org/2000/09/xmldsig#"
	NsXMLExcC14N               = "http://www.w3.org/2001/10/xml-exc-c14n#"
)

type basicAuth struct {
	Login    string
	Password string
}

type options struct {
	tlsCfg           *tls.Config
	auth             *basicAuth
	timeout          time.Duration
	contimeout       time.Duration
	tlshshaketimeout time.Duration
	client           HTTPClient
	userAgent        string
	httpHeaders      map[string]string
	logger           zerolog.Logger
}

var defaultOptions = options{
	timeout:          time.Duration(30 * time.Second),
	contimeout:       time.Duration(90 * time.Second),
	tlshshaketimeout: time.Duration(15 * time.Second),
	userAgent:        "zuora-soap/0.1",
	logger:           zerolog.Nop(),
}

// A Option sets options such as credentials, tls, etc.
type Option func(*options)

// WithHTTPClient is an Option to set the HTTP client to use
// This cannot be used with WithTLSHandshakeTimeout, WithTLS,
// WithTimeout options
func WithHTTPClient(c HTTPClient) Option {
	return func(o *options) {
		o.client = c
	}
}

// WithTLSHandshakeTimeout is an Option to set default tls handshake timeout
// This option cannot be used with WithHTTPClient
func WithTLSHandshakeTimeout(t time.Duration) Option {
	return func(o *options) {
		o.tlshshaketimeout = t
	}
}

// WithRequestTimeout is an Option to set default end-end connection timeout
// This option cannot be used with WithHTTPClient
func WithRequestTimeout(t time.Duration) Option {
	return func(o *options) {
		o.contimeout = t
	}
}

// WithBasicAuth is an Option to set BasicAuth
func WithBasicAuth(login, password string) Option {
	return func(o *options) {
		o.auth = &basicAuth{Login: login, Password: password}
	}
}

// WithTLS is an Option to set tls config
// This option cannot be used with WithHTTPClient
func WithTLS(tls *tls.Config) Option {
	return func(o *options) {
		o.tlsCfg = tls
	}
}

// WithTimeout is an Option to set default HTTP dial timeout
func WithTimeout(t time.Duration) Option {
	return func(o *options) {
		o.timeout = t
	}
}

// WithUserAgent is an Option to set User-Agent header value
func WithUserAgent(userAgent string) Option {
	return func(o *options) {
		o.userAgent = userAgent
	}
}

// WithHTTPHeaders is an Option to set global HTTP headers for all requests
func WithHTTPHeaders(headers map[string]string) Option {
	return func(o *options) {
		o.httpHeaders = headers
	}
}

// WithLogger is an Option to set the logger receiving raw envelope traces.
// The engine logs nothing unless one is given.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func makeDefaultClient(opts *options) HTTPClient {
	tr := &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: opts.tlsCfg,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			d := net.Dialer{Timeout: opts.timeout}
			return d.DialContext(ctx, network, addr)
		},
		TLSHandshakeTimeout:   opts.tlshshaketimeout,
		ExpectContinueTimeout: time.Second * 2,
	}
	return &http.Client{
		Timeout:   opts.contimeout,
		Transport: tr,
	}
}

// Client is soap client
type Client struct {
	url     string
	opts    *options
	headers []interface{}
	named   []*namedHeader
	last    *CallResult

	wssPrivateKey  *rsa.PrivateKey
	wssCertBlobB64 string
}

// HTTPClient is a client which can make HTTP requests
// An example implementation is net/http.Client
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewClient creates new SOAP client instance
func NewClient(url string, opt ...Option) *Client {
	opts := defaultOptions
	for _, o := range opt {
		o(&opts)
	}
	if opts.client == nil {
		opts.client = makeDefaultClient(&opts)
	}
	return &Client{
		url:  url,
		opts: &opts,
	}
}

// URL returns the endpoint requests are posted to.
func (s *Client) URL() string {
	return s.url
}

// SetURL changes the endpoint used by subsequent calls.
func (s *Client) SetURL(url string) {
	s.url = url
}

func (s *Client) SetWSSHeaderSigningKey(wssPrivateKey *rsa.PrivateKey, wssCertBlobBase64 string) {
	s.wssPrivateKey = wssPrivateKey
	s.wssCertBlobB64 = wssCertBlobBase64
}

// AddHeader adds envelope header
// For correct behavior, every header must contain a `XMLName` field.  Refer to #121 for details
func (s *Client) AddHeader(header interface{}) {
	s.headers = append(s.headers, header)
}

// SetHeaders sets envelope headers, overwriting any existing headers.
// For correct behavior, every header must contain a `XMLName` field.  Refer to #121 for details
func (s *Client) SetHeaders(headers ...interface{}) {
	s.headers = headers
}

// SetSOAPHeader installs the envelope header name in namespace, replacing a
// previous header of the same name. content is encoded inside the header
// element and must carry its own element name. A nil content removes the header.
func (s *Client) SetSOAPHeader(name, namespace string, content interface{}) {
	for i, h := range s.named {
		if h.name == name && h.namespace == namespace {
			if content == nil {
				s.named = append(s.named[:i], s.named[i+1:]...)
				return
			}
			h.content = content
			return
		}
	}
	if content == nil {
		return
	}
	s.named = append(s.named, &namedHeader{name: name, namespace: namespace, content: content})
}

// LastCall returns the raw exchange of the most recent call, or nil.
func (s *Client) LastCall() *CallResult {
	return s.last
}

// LastSent returns the body of the last request put on the wire.
func (s *Client) LastSent() string {
	if s.last == nil {
		return ""
	}
	return s.last.RequestContent.Body
}

// LastReceived returns the body of the last response read from the wire.
func (s *Client) LastReceived() string {
	if s.last == nil {
		return ""
	}
	return s.last.ResponseContent.Body
}

// CallContext performs HTTP POST request with a context
func (s *Client) CallContext(ctx context.Context, soapAction string, request, response interface{}) (*CallResult, error) {
	return s.call(ctx, soapAction, request, response, nil)
}

// Call performs HTTP POST request.
// Note that if the server returns a status code >= 400 without a SOAP fault, a HTTPError will be returned
func (s *Client) Call(soapAction string, request, response interface{}) (*CallResult, error) {
	return s.call(context.Background(), soapAction, request, response, nil)
}

// CallContextWithFaultDetail performs HTTP POST request.
// Note that if SOAP fault is returned, it will be stored in the error.
func (s *Client) CallContextWithFaultDetail(ctx context.Context, soapAction string, request, response interface{}, faultDetail FaultError) (*CallResult, error) {
	return s.call(ctx, soapAction, request, response, faultDetail)
}

func (s *Client) envelopeHeaders(envelope *SOAPEnvelope) ([]interface{}, error) {
	headers := make([]interface{}, 0, 1+len(s.headers)+len(s.named))
	if s.wssPrivateKey != nil {
		secHeader, err := s.makeWSSESecurityHeader(envelope)
		if err != nil {
			return nil, fmt.Errorf("sign envelope failed: %w", err)
		}
		headers = append(headers, secHeader)
	}
	headers = append(headers, s.headers...)
	for _, h := range s.named {
		headers = append(headers, h)
	}
	return headers, nil
}

func (s *Client) call(ctx context.Context, soapAction string, request, response interface{}, faultDetail FaultError) (*CallResult, error) {
	s.last = nil
	// SOAP envelope capable of namespace prefixes
	envelope := SOAPEnvelope{
		XmlNS: XmlNsSoapEnv,
	}
	envelope.Body.Content = request
	soapHeaders, err := s.envelopeHeaders(&envelope)
	if err != nil {
		return nil, err
	}
	if len(soapHeaders) > 0 {
		envelope.Header = &SOAPHeader{
			Headers: soapHeaders,
		}
	}
	reqBody, err := xml.Marshal(envelope)
	if nil != err {
		return nil, fmt.Errorf("marshal envelop failed: %w", err)
	}
	s.opts.logger.Trace().Str("url", s.url).Bytes("envelope", reqBody).Msg("soap request")

	invokeResult := CallResult{
		RequestURL: s.url,
		RequestContent: CallContent{
			Body: string(reqBody),
		},
	}
	s.last = &invokeResult
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	if s.opts.auth != nil {
		req.SetBasicAuth(s.opts.auth.Login, s.opts.auth.Password)
	}

	req.Header.Add("Content-Type", SOAPMIMEType)
	req.Header.Set("SOAPAction", strconv.Quote(soapAction))
	req.Header.Set("User-Agent", s.opts.userAgent)
	req.Header.Set("Accept", "*/*")
	for k, v := range s.opts.httpHeaders {
		req.Header.Set(k, v)
	}
	invokeResult.RequestContent.Header = req.Header.Clone()

	invokeResult.InvokeAt = time.Now()
	res, err := s.opts.client.Do(req)
	if err != nil {
		invokeResult.ReturnAt = time.Now()
		return &invokeResult, fmt.Errorf("post %s: %w", s.url, err)
	}
	defer res.Body.Close()
	respBody, err := io.ReadAll(res.Body)
	invokeResult.ReturnAt = time.Now()
	invokeResult.ResponseContent = CallContent{
		Header: res.Header.Clone(),
		Body:   string(respBody),
	}
	invokeResult.StatusCode = res.StatusCode
	if nil != err {
		return &invokeResult, fmt.Errorf("cannot read all content from http body: %w", err)
	}
	s.opts.logger.Trace().Int("status", res.StatusCode).Bytes("envelope", respBody).Msg("soap response")

	// Any body that is not an envelope is malformed, whatever the status:
	// proxies answer a broken keep-alive connection with 502 pages.
	if !isEnvelope(respBody) {
		return &invokeResult, &MalformedResponseError{
			StatusCode:   res.StatusCode,
			ResponseBody: respBody,
		}
	}

	// xml Decoder cannot handle namespace prefixes (yet),
	// so we have to use a namespace-less response envelope
	respEnvelope := new(SOAPEnvelopeResponse)
	respEnvelope.Body = SOAPBodyResponse{
		Content: response,
		Fault: &SOAPFault{
			Detail: faultDetail,
		},
	}
	if err := xml.NewDecoder(bytes.NewReader(respBody)).Decode(respEnvelope); err != nil {
		return &invokeResult, fmt.Errorf("cannot decode: %w", err)
	}
	invokeResult.DecodedAt = time.Now()

	if err := respEnvelope.Body.ErrorFromFault(); err != nil {
		return &invokeResult, err
	}
	if res.StatusCode >= 400 {
		return &invokeResult, &HTTPError{
			StatusCode:   res.StatusCode,
			ResponseBody: respBody,
		}
	}
	return &invokeResult, nil
}

// isEnvelope reports whether the first element of body is a SOAP Envelope.
func isEnvelope(body []byte) bool {
	dec := xml.NewDecoder(bytes.NewReader(body))
	for {
		token, err := dec.Token()
		if err != nil {
			return false
		}
		switch t := token.(type) {
		case xml.StartElement:
			return t.Name.Local == "Envelope"
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return false
			}
		}
	}
}
