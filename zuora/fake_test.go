package zuora

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/require"
)

const (
	testUser     = "api@example.com"
	testPassword = "s3cr&t"
)

type fakeReply struct {
	status int
	body   string
}

// fakeCall is one POST seen by the fake tenant.
type fakeCall struct {
	Op      string
	Path    string
	Session string
	Request *etree.Element
	Header  *etree.Element
}

// fakeZuora is an in-process tenant serving the WSDL on GET /wsdl and
// SOAP calls on POST to any other path.
type fakeZuora struct {
	t      *testing.T
	server *httptest.Server

	mu        sync.Mutex
	calls     []fakeCall
	issued    int
	valid     map[string]bool
	queued    map[string][]fakeReply
	store     map[string]string
	serverURL string
}

func newFakeZuora(t *testing.T) *fakeZuora {
	t.Helper()
	wsdlTemplate, err := os.ReadFile("../wsdl/testdata/zuora.wsdl")
	require.NoError(t, err)

	f := &fakeZuora{
		t:      t,
		valid:  make(map[string]bool),
		queued: make(map[string][]fakeReply),
		store:  make(map[string]string),
	}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			doc := strings.Replace(string(wsdlTemplate),
				"https://apisandbox.zuora.com/apps/services/a/91.0", f.server.URL+"/apps/services/a/91.0", 1)
			w.Header().Set("Content-Type", "text/xml")
			io.WriteString(w, doc)
			return
		}
		data, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		reply := f.handle(r.URL.Path, data)
		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		w.WriteHeader(reply.status)
		io.WriteString(w, reply.body)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeZuora) wsdlURL() string {
	return f.server.URL + "/wsdl"
}

// queue makes the next calls of op answer with replies, in order.
func (f *fakeZuora) queue(op string, replies ...fakeReply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued[op] = append(f.queued[op], replies...)
}

// expireSessions makes the tenant reject every token issued so far.
func (f *fakeZuora) expireSessions() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.valid = make(map[string]bool)
}

func (f *fakeZuora) callsOf(op string) []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fakeCall
	for _, c := range f.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeZuora) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Op
	}
	return out
}

func (f *fakeZuora) handle(path string, data []byte) fakeReply {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return fakeReply{http.StatusBadRequest, "bad request"}
	}
	envelope := doc.Root()
	req := firstChild(child(envelope, "Body"))
	if req == nil {
		return fakeReply{http.StatusBadRequest, "no operation"}
	}
	call := fakeCall{Op: req.Tag, Path: path, Request: req, Header: child(envelope, "Header")}
	if token := child(child(child(envelope, "Header"), "SessionHeader"), "session"); token != nil {
		call.Session = token.Text()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if q := f.queued[call.Op]; len(q) > 0 {
		f.queued[call.Op] = q[1:]
		return q[0]
	}
	if call.Op == "login" {
		return f.login(req)
	}
	if !f.valid[call.Session] {
		return faultReply("INVALID_SESSION", "invalid session")
	}
	switch call.Op {
	case "create", "update", "generate":
		return f.save(call.Op, req)
	case "delete":
		return f.delete(req)
	case "query":
		return okReply(`<ns1:queryResponse><ns1:result><ns1:done>false</ns1:done>` +
			`<ns1:queryLocator>loc-1</ns1:queryLocator>` +
			`<ns1:records xsi:type="ns2:Product"><ns2:Id>p-1</ns2:Id><ns2:Name>Gold</ns2:Name></ns1:records>` +
			`<ns1:records xsi:type="ns2:Product"><ns2:Id>p-2</ns2:Id><ns2:Name>Silver</ns2:Name></ns1:records>` +
			`<ns1:size>3</ns1:size></ns1:result></ns1:queryResponse>`)
	case "queryMore":
		return okReply(`<ns1:queryMoreResponse><ns1:result><ns1:done>true</ns1:done>` +
			`<ns1:records xsi:type="ns2:Product"><ns2:Id>p-3</ns2:Id><ns2:Name>Bronze</ns2:Name></ns1:records>` +
			`<ns1:size>3</ns1:size></ns1:result></ns1:queryMoreResponse>`)
	case "getUserInfo":
		return okReply(`<ns1:getUserInfoResponse><ns1:TenantId>42</ns1:TenantId><ns1:TenantName>Acme</ns1:TenantName>` +
			`<ns1:UserEmail>api@example.com</ns1:UserEmail><ns1:UserFullName>API User</ns1:UserFullName>` +
			`<ns1:UserId>u-1</ns1:UserId><ns1:Username>api@example.com</ns1:Username></ns1:getUserInfoResponse>`)
	case "execute":
		var results strings.Builder
		for _, id := range children(req, "ids") {
			fmt.Fprintf(&results, `<ns1:result><ns1:Id>%s</ns1:Id><ns1:Success>true</ns1:Success></ns1:result>`, id.Text())
		}
		return okReply(`<ns1:executeResponse>` + results.String() + `</ns1:executeResponse>`)
	case "amend":
		return okReply(`<ns1:amendResponse><ns1:results><ns1:AmendmentIds>a-1</ns1:AmendmentIds>` +
			`<ns1:AmendmentIds>a-2</ns1:AmendmentIds><ns1:SubscriptionId>s-2</ns1:SubscriptionId>` +
			`<ns1:Success>true</ns1:Success></ns1:results></ns1:amendResponse>`)
	case "subscribe":
		return okReply(`<ns1:subscribeResponse><ns1:result><ns1:AccountId>acc-1</ns1:AccountId>` +
			`<ns1:AccountNumber>A00000001</ns1:AccountNumber><ns1:SubscriptionNumber>S-1</ns1:SubscriptionNumber>` +
			`<ns1:Success>true</ns1:Success></ns1:result></ns1:subscribeResponse>`)
	}
	return faultReply("INVALID_VALUE", "unknown operation "+call.Op)
}

func (f *fakeZuora) login(req *etree.Element) fakeReply {
	user, pass := child(req, "username"), child(req, "password")
	if user == nil || pass == nil || user.Text() != testUser || pass.Text() != testPassword {
		return faultReply("INVALID_VALUE", "Invalid login. User name and password do not match.")
	}
	f.issued++
	token := fmt.Sprintf("token-%d", f.issued)
	f.valid[token] = true
	serverURL := f.serverURL
	if serverURL == "" {
		serverURL = f.server.URL + "/apps/services/a/91.0"
	}
	return okReply(fmt.Sprintf(`<ns1:loginResponse><ns1:result><ns1:Session>%s</ns1:Session>`+
		`<ns1:ServerUrl>%s</ns1:ServerUrl></ns1:result></ns1:loginResponse>`, token, serverURL))
}

func (f *fakeZuora) save(op string, req *etree.Element) fakeReply {
	var results strings.Builder
	for _, obj := range children(req, "zObjects") {
		id := fmt.Sprintf("obj-%d", len(f.store)+1)
		if existing := child(obj, "Id"); existing != nil {
			id = existing.Text()
		}
		f.store[id] = strings.TrimPrefix(obj.SelectAttrValue("xsi:type", ""), "obj:")
		fmt.Fprintf(&results, `<ns1:result><ns1:Id>%s</ns1:Id><ns1:Success>true</ns1:Success></ns1:result>`, id)
	}
	return okReply(fmt.Sprintf(`<ns1:%sResponse>%s</ns1:%sResponse>`, op, results.String(), op))
}

func (f *fakeZuora) delete(req *etree.Element) fakeReply {
	typeName := child(req, "type").Text()
	var results strings.Builder
	for _, id := range children(req, "ids") {
		if f.store[id.Text()] == typeName {
			delete(f.store, id.Text())
			fmt.Fprintf(&results, `<ns1:result><ns1:id>%s</ns1:id><ns1:success>true</ns1:success></ns1:result>`, id.Text())
			continue
		}
		fmt.Fprintf(&results, `<ns1:result><ns1:errors><ns1:Code>INVALID_ID</ns1:Code>`+
			`<ns1:Message>invalid id</ns1:Message></ns1:errors><ns1:id>%s</ns1:id><ns1:success>false</ns1:success></ns1:result>`, id.Text())
	}
	return okReply(`<ns1:deleteResponse>` + results.String() + `</ns1:deleteResponse>`)
}

func envelope(body string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>` +
		`<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/"` +
		` xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"` +
		` xmlns:ns1="http://api.zuora.com/" xmlns:ns2="http://object.api.zuora.com/">` +
		`<soapenv:Body>` + body + `</soapenv:Body></soapenv:Envelope>`
}

func okReply(body string) fakeReply {
	return fakeReply{http.StatusOK, envelope(body)}
}

func faultReply(code, message string) fakeReply {
	return fakeReply{http.StatusInternalServerError, envelope(fmt.Sprintf(`<soapenv:Fault>`+
		`<faultcode>fns:%s</faultcode><faultstring>%s</faultstring><detail>`+
		`<ns3:UnexpectedErrorFault xmlns:ns3="http://fault.api.zuora.com/">`+
		`<ns3:FaultCode>%s</ns3:FaultCode><ns3:FaultMessage>%s</ns3:FaultMessage>`+
		`</ns3:UnexpectedErrorFault></detail></soapenv:Fault>`, code, message, code, message))}
}

func malformedReply() fakeReply {
	return fakeReply{http.StatusOK, "upstream connect error or disconnect/reset before headers"}
}

func child(e *etree.Element, tag string) *etree.Element {
	if e == nil {
		return nil
	}
	for _, c := range e.ChildElements() {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

func children(e *etree.Element, tag string) []*etree.Element {
	var out []*etree.Element
	for _, c := range e.ChildElements() {
		if c.Tag == tag {
			out = append(out, c)
		}
	}
	return out
}

func firstChild(e *etree.Element) *etree.Element {
	if e == nil {
		return nil
	}
	elems := e.ChildElements()
	if len(elems) == 0 {
		return nil
	}
	return elems[0]
}

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
