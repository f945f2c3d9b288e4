// Package wsdl reads the service description published by Zuora and
// extracts what the client needs at runtime: the endpoint, the namespaces
// of calls and objects, the operation names and the catalog of object types
// the type factory may instantiate.
package wsdl

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/hooklift/gowsdl"
)

// Zuora namespaces used when the WSDL does not say otherwise.
const (
	DefaultAPINamespace    = "http://api.zuora.com/"
	DefaultObjectNamespace = "http://object.api.zuora.com/"
	DefaultFaultNamespace  = "http://fault.api.zuora.com/"
)

// objectBaseType is the complex type every Zuora object extends.
const objectBaseType = "zObject"

// Definition is the runtime view of a WSDL document
type Definition struct {
	Endpoint        string
	APINamespace    string
	ObjectNamespace string
	Operations      []string

	types map[string]string
}

// HTTPClient fetches remote WSDL documents.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Load reads the WSDL at location, a local path or an http(s) URL.
func Load(ctx context.Context, location string, client HTTPClient) (*Definition, error) {
	data, err := read(ctx, location, client)
	if err != nil {
		return nil, fmt.Errorf("wsdl load failed (%s): %w", location, err)
	}
	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("wsdl parse failed (%s): %w", location, err)
	}
	return def, nil
}

func read(ctx context.Context, location string, client HTTPClient) ([]byte, error) {
	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		return os.ReadFile(strings.TrimPrefix(location, "file://"))
	}
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// Parse builds a Definition from raw WSDL bytes.
func Parse(data []byte) (*Definition, error) {
	var doc gowsdl.WSDL
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	def := &Definition{
		APINamespace:    doc.TargetNamespace,
		ObjectNamespace: DefaultObjectNamespace,
		types:           make(map[string]string),
	}
	if def.APINamespace == "" {
		def.APINamespace = DefaultAPINamespace
	}

	for _, svc := range doc.Service {
		for _, port := range svc.Ports {
			if port.SOAPAddress.Location != "" && def.Endpoint == "" {
				def.Endpoint = port.SOAPAddress.Location
			}
		}
	}

	seen := make(map[string]bool)
	for _, pt := range doc.PortTypes {
		for _, op := range pt.Operations {
			if !seen[op.Name] {
				seen[op.Name] = true
				def.Operations = append(def.Operations, op.Name)
			}
		}
	}
	sort.Strings(def.Operations)

	for _, schema := range doc.Types.Schemas {
		for _, ct := range schema.ComplexTypes {
			if ct.Name == "" {
				continue
			}
			def.types[ct.Name] = schema.TargetNamespace
			if ct.Name == objectBaseType && schema.TargetNamespace != "" {
				def.ObjectNamespace = schema.TargetNamespace
			}
		}
	}
	return def, nil
}

// HasOperation reports whether the service declares op.
func (d *Definition) HasOperation(op string) bool {
	i := sort.SearchStrings(d.Operations, op)
	return i < len(d.Operations) && d.Operations[i] == op
}

// TypeNamespace returns the namespace defining typeName.
func (d *Definition) TypeNamespace(typeName string) (string, bool) {
	ns, ok := d.types[typeName]
	return ns, ok
}

// TypeCount is the number of complex types in the catalog.
func (d *Definition) TypeCount() int {
	return len(d.types)
}

// Types lists every complex type name, sorted.
func (d *Definition) Types() []string {
	names := make([]string, 0, len(d.types))
	for name := range d.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
