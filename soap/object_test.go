package soap

import (
	"encoding/xml"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testObjectNS = "http://object.example.com/"

type createCall struct {
	XMLName  xml.Name  `xml:"http://api.example.com/ create"`
	ZObjects []*Object `xml:"zObjects"`
}

func TestObject_SetGet(t *testing.T) {
	o := NewObject("Product", testObjectNS)
	o.Set("Name", "Test").Set("SKU", "A-1")
	o.Set("Name", "Renamed")

	v, ok := o.Get("Name")
	require.True(t, ok)
	assert.Equal(t, "Renamed", v)
	assert.Equal(t, []string{"Name", "SKU"}, o.Names())

	o.Unset("SKU")
	_, ok = o.Get("SKU")
	assert.False(t, ok)
	assert.Equal(t, []string{"Name"}, o.Names())
}

func TestObject_MarshalXML(t *testing.T) {
	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	o := NewObject("Product", testObjectNS).
		Set("Name", "Test subscription").
		Set("EffectiveStartDate", start).
		Set("Price", 27.5).
		Set("Quantity", 3).
		Set("Active", true).
		Set("Skipped", nil)

	out, err := xml.Marshal(&createCall{ZObjects: []*Object{o}})
	require.NoError(t, err)
	s := string(out)

	assert.Contains(t, s, `<create xmlns="http://api.example.com/">`)
	assert.Contains(t, s, `<zObjects xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:obj="http://object.example.com/" xsi:type="obj:Product">`)
	assert.Contains(t, s, `<Name xmlns="http://object.example.com/">Test subscription</Name>`)
	assert.Contains(t, s, `<EffectiveStartDate xmlns="http://object.example.com/">2024-01-02T03:04:05Z</EffectiveStartDate>`)
	assert.Contains(t, s, `<Price xmlns="http://object.example.com/">27.5</Price>`)
	assert.Contains(t, s, `<Quantity xmlns="http://object.example.com/">3</Quantity>`)
	assert.Contains(t, s, `<Active xmlns="http://object.example.com/">true</Active>`)
	assert.NotContains(t, s, "Skipped")
}

func TestObject_NestedChildren(t *testing.T) {
	tier := NewObject("ProductRatePlanChargeTier", testObjectNS).
		Set("Currency", "EUR").
		Set("Price", 30)
	charge := NewObject("ProductRatePlanCharge", testObjectNS).Set("Name", "Recurring Flat fee")
	charge.Child("ProductRatePlanChargeTierData").Set("ProductRatePlanChargeTier", []*Object{tier})

	assert.Same(t, charge.Child("ProductRatePlanChargeTierData"), charge.Child("ProductRatePlanChargeTierData"))

	out, err := xml.Marshal(&createCall{ZObjects: []*Object{charge}})
	require.NoError(t, err)
	s := string(out)

	assert.Contains(t, s, `<ProductRatePlanChargeTierData xmlns="http://object.example.com/">`)
	assert.Contains(t, s, `xsi:type="obj:ProductRatePlanChargeTier"`)
	assert.Contains(t, s, `<Currency xmlns="http://object.example.com/">EUR</Currency>`)
}

func TestObject_RepeatedStrings(t *testing.T) {
	o := NewObject("", testObjectNS).Set("Ids", []string{"a", "b"})
	out, err := xml.Marshal(struct {
		XMLName xml.Name `xml:"wrap"`
		Obj     *Object  `xml:"obj"`
	}{Obj: o})
	require.NoError(t, err)
	assert.Equal(t, `<wrap><obj><Ids xmlns="http://object.example.com/">a</Ids><Ids xmlns="http://object.example.com/">b</Ids></obj></wrap>`, string(out))
}

func TestObject_UnsupportedValue(t *testing.T) {
	o := NewObject("Product", testObjectNS).Set("Bad", struct{}{})
	_, err := xml.Marshal(&createCall{ZObjects: []*Object{o}})
	assert.Error(t, err)
}
