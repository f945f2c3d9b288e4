package soap

import (
	"encoding/xml"
	"fmt"
	"reflect"
	"strconv"
	"time"
)

// Object is a dynamically typed remote record built through a generic
// property-setting API. Property names and meaning belong to the remote
// schema; the object only keeps them in insertion order.
type Object struct {
	Type      string
	Namespace string

	fields []field
}

type field struct {
	name  string
	value interface{}
}

// NewObject creates an empty object of typeName whose properties are
// qualified with namespace.
func NewObject(typeName, namespace string) *Object {
	return &Object{Type: typeName, Namespace: namespace}
}

// Set assigns a property, replacing any previous value while keeping its
// original position. It returns the object so calls can be chained.
func (o *Object) Set(name string, value interface{}) *Object {
	for i := range o.fields {
		if o.fields[i].name == name {
			o.fields[i].value = value
			return o
		}
	}
	o.fields = append(o.fields, field{name: name, value: value})
	return o
}

// Get returns a property value.
func (o *Object) Get(name string) (interface{}, bool) {
	for _, f := range o.fields {
		if f.name == name {
			return f.value, true
		}
	}
	return nil, false
}

// Child returns the nested object stored under name, creating it when absent.
// It mirrors attribute access on intermediate containers such as
// ProductRatePlanChargeTierData.
func (o *Object) Child(name string) *Object {
	if v, ok := o.Get(name); ok {
		if child, ok := v.(*Object); ok {
			return child
		}
	}
	child := &Object{Namespace: o.Namespace}
	o.Set(name, child)
	return child
}

// Unset removes a property.
func (o *Object) Unset(name string) {
	for i := range o.fields {
		if o.fields[i].name == name {
			o.fields = append(o.fields[:i], o.fields[i+1:]...)
			return
		}
	}
}

// Names lists property names in insertion order.
func (o *Object) Names() []string {
	names := make([]string, len(o.fields))
	for i, f := range o.fields {
		names[i] = f.name
	}
	return names
}

// MarshalXML writes the object under the element chosen by its container.
// A typed object carries an xsi:type attribute naming its schema type.
func (o *Object) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if o.Type != "" {
		start.Attr = append(start.Attr,
			xml.Attr{Name: xml.Name{Local: "xmlns:xsi"}, Value: XmlNsXSI},
			xml.Attr{Name: xml.Name{Local: "xmlns:obj"}, Value: o.Namespace},
			xml.Attr{Name: xml.Name{Local: "xsi:type"}, Value: "obj:" + o.Type},
		)
	}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	for _, f := range o.fields {
		if err := o.encodeField(e, f.name, f.value); err != nil {
			return fmt.Errorf("field %s: %w", f.name, err)
		}
	}
	return e.EncodeToken(start.End())
}

func (o *Object) encodeField(e *xml.Encoder, name string, value interface{}) error {
	start := xml.StartElement{Name: xml.Name{Space: o.Namespace, Local: name}}
	switch v := value.(type) {
	case nil:
		return nil
	case *Object:
		if v == nil {
			return nil
		}
		return e.EncodeElement(v, start)
	case []*Object:
		for _, item := range v {
			if err := e.EncodeElement(item, start); err != nil {
				return err
			}
		}
		return nil
	case []string:
		for _, item := range v {
			if err := e.EncodeElement(item, start); err != nil {
				return err
			}
		}
		return nil
	}
	text, err := formatScalar(value)
	if err != nil {
		return err
	}
	return e.EncodeElement(text, start)
}

func formatScalar(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case time.Time:
		return v.Format(time.RFC3339), nil
	case fmt.Stringer:
		return v.String(), nil
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), nil
	}
	return "", fmt.Errorf("unsupported value type %T", value)
}
