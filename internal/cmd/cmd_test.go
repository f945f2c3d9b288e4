package cmd

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const envelopeStart = `<?xml version="1.0" encoding="UTF-8"?>` +
	`<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/"` +
	` xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"` +
	` xmlns:ns1="http://api.zuora.com/" xmlns:ns2="http://object.api.zuora.com/"><soapenv:Body>`

const envelopeEnd = `</soapenv:Body></soapenv:Envelope>`

// newTenant serves the test WSDL and canned answers for the calls the
// commands make.
func newTenant(t *testing.T) *httptest.Server {
	t.Helper()
	wsdlDoc, err := os.ReadFile("../../wsdl/testdata/zuora.wsdl")
	require.NoError(t, err)

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			io.WriteString(w, strings.Replace(string(wsdlDoc),
				"https://apisandbox.zuora.com/apps/services/a/91.0", server.URL+"/soap", 1))
			return
		}
		data, _ := io.ReadAll(r.Body)
		body := string(data)
		var reply string
		switch {
		case strings.Contains(body, "<login"):
			reply = `<ns1:loginResponse><ns1:result><ns1:Session>tok</ns1:Session></ns1:result></ns1:loginResponse>`
		case strings.Contains(body, "<getUserInfo"):
			reply = `<ns1:getUserInfoResponse><ns1:TenantId>42</ns1:TenantId><ns1:TenantName>Acme</ns1:TenantName>` +
				`<ns1:Username>api@example.com</ns1:Username></ns1:getUserInfoResponse>`
		case strings.Contains(body, "<query"):
			reply = `<ns1:queryResponse><ns1:result><ns1:done>true</ns1:done>` +
				`<ns1:records xsi:type="ns2:Product"><ns2:Id>p-1</ns2:Id><ns2:Name>Gold</ns2:Name></ns1:records>` +
				`<ns1:size>1</ns1:size></ns1:result></ns1:queryResponse>`
		case strings.Contains(body, "<create"):
			reply = `<ns1:createResponse><ns1:result><ns1:Id>p-2</ns1:Id><ns1:Success>true</ns1:Success></ns1:result></ns1:createResponse>`
		case strings.Contains(body, "<delete"):
			reply = `<ns1:deleteResponse><ns1:result><ns1:id>p-1</ns1:id><ns1:success>true</ns1:success></ns1:result>` +
				`<ns1:result><ns1:errors><ns1:Code>INVALID_ID</ns1:Code><ns1:Message>invalid id</ns1:Message></ns1:errors>` +
				`<ns1:id>p-9</ns1:id><ns1:success>false</ns1:success></ns1:result></ns1:deleteResponse>`
		default:
			http.Error(w, "unexpected call", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		io.WriteString(w, envelopeStart+reply+envelopeEnd)
	}))
	t.Cleanup(server.Close)
	return server
}

func writeConfig(t *testing.T, wsdl string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "zuora.toml")
	content := "wsdl = \"" + wsdl + "\"\nusername = \"api@example.com\"\npassword = \"secret\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestWhoami(t *testing.T) {
	server := newTenant(t)
	cfg := writeConfig(t, server.URL+"/wsdl")

	out, _, err := run(t, "--config", cfg, "whoami")
	require.NoError(t, err)

	var info map[string]string
	require.NoError(t, yaml.Unmarshal([]byte(out), &info))
	assert.Equal(t, "42", info["tenant_id"])
	assert.Equal(t, "Acme", info["tenant_name"])
}

func TestLogin(t *testing.T) {
	server := newTenant(t)
	cfg := writeConfig(t, server.URL+"/wsdl")

	out, _, err := run(t, "--config", cfg, "login")
	require.NoError(t, err)
	assert.Contains(t, out, "endpoint: "+server.URL+"/soap")
	assert.Contains(t, out, "expires_at:")
}

func TestQuery(t *testing.T) {
	server := newTenant(t)
	cfg := writeConfig(t, server.URL+"/wsdl")

	out, _, err := run(t, "--config", cfg, "query", "--all", "select Id, Name from Product")
	require.NoError(t, err)

	var records []map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(out), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "Gold", records[0]["Name"])
}

func TestCreate(t *testing.T) {
	server := newTenant(t)
	cfg := writeConfig(t, server.URL+"/wsdl")

	out, _, err := run(t, "--config", cfg, "create", "Product", "Name=Gold plan")
	require.NoError(t, err)
	assert.Contains(t, out, "id: p-2")

	_, _, err = run(t, "--config", cfg, "create", "Product", "Name")
	assert.ErrorContains(t, err, "want NAME=VALUE")

	_, _, err = run(t, "--config", cfg, "create", "Spaceship", "Name=x")
	assert.ErrorContains(t, err, "unknown type")
}

func TestDelete_ReportsFailedItems(t *testing.T) {
	server := newTenant(t)
	cfg := writeConfig(t, server.URL+"/wsdl")

	out, _, err := run(t, "--config", cfg, "delete", "Product", "p-1", "p-9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 objects not deleted")
	assert.Contains(t, out, "INVALID_ID: invalid id")
}

func TestTypes(t *testing.T) {
	cfg := writeConfig(t, "../../wsdl/testdata/zuora.wsdl")

	out, _, err := run(t, "--config", cfg, "types")
	require.NoError(t, err)
	assert.Contains(t, out, "- Product")
	assert.Contains(t, out, "- queryMore")
}

func TestInvalidLogLevel(t *testing.T) {
	_, _, err := run(t, "--log-level", "loud", "types")
	assert.ErrorContains(t, err, "invalid log level")
}

func TestMissingCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zuora.toml")
	require.NoError(t, os.WriteFile(path, []byte(`wsdl = "x.wsdl"`), 0o600))

	_, _, err := run(t, "--config", path, "whoami")
	assert.ErrorContains(t, err, "config missing username")
}

func TestLogsGoToStderr(t *testing.T) {
	server := newTenant(t)
	cfg := writeConfig(t, server.URL+"/wsdl")

	out, logs, err := run(t, "--config", cfg, "--log-level", "info", "whoami")
	require.NoError(t, err)
	assert.Contains(t, logs, "session established")
	assert.NotContains(t, out, "session established")
	assert.NotContains(t, logs, "secret")
}
