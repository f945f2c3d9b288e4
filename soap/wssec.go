package soap

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"github.com/ucarion/c14n"
)

const (
	algExcC14N      = "http://www.w3.org/2001/10/xml-exc-c14n#"
	algRSASHA256    = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	algDigestSHA256 = "http://www.w3.org/2001/04/xmlenc#sha256"
)

// WSSSecurityHeader is a WS-Security header carrying a username token.
type WSSSecurityHeader struct {
	XMLName   xml.Name `xml:"http://schemas.xmlsoap.org/soap/envelope/ wsse:Security"`
	XmlNSWsse string   `xml:"xmlns:wsse,attr"`

	MustUnderstand string `xml:"mustUnderstand,attr,omitempty"`

	Token *WSSUsernameToken `xml:",omitempty"`
}

type WSSUsernameToken struct {
	XMLName   xml.Name `xml:"wsse:UsernameToken"`
	XmlNSWsu  string   `xml:"xmlns:wsu,attr"`
	XmlNSWsse string   `xml:"xmlns:wsse,attr"`

	Id string `xml:"wsu:Id,attr,omitempty"`

	Username *WSSUsername `xml:",omitempty"`
	Password *WSSPassword `xml:",omitempty"`
}

type WSSUsername struct {
	XMLName   xml.Name `xml:"wsse:Username"`
	XmlNSWsse string   `xml:"xmlns:wsse,attr"`

	Data string `xml:",chardata"`
}

type WSSPassword struct {
	XMLName   xml.Name `xml:"wsse:Password"`
	XmlNSWsse string   `xml:"xmlns:wsse,attr"`
	XmlNSType string   `xml:"Type,attr"`

	Data string `xml:",chardata"`
}

// NewWSSSecurityHeader creates WSSSecurityHeader instance
func NewWSSSecurityHeader(user, pass, tokenID, mustUnderstand string) *WSSSecurityHeader {
	hdr := &WSSSecurityHeader{XmlNSWsse: WssNsWSSE, MustUnderstand: mustUnderstand}
	hdr.Token = &WSSUsernameToken{XmlNSWsu: WssNsWSU, XmlNSWsse: WssNsWSSE, Id: tokenID}
	hdr.Token.Username = &WSSUsername{XmlNSWsse: WssNsWSSE, Data: user}
	hdr.Token.Password = &WSSPassword{XmlNSWsse: WssNsWSSE, XmlNSType: WssNsType, Data: pass}
	return hdr
}

// makeSecureId returns prefix followed by a timestamp and eight bytes read
// from random, hex encoded.
func makeSecureId(random io.Reader, prefix string) (string, error) {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf, uint64(time.Now().UnixNano()))
	if _, err := io.ReadFull(random, buf[8:]); err != nil {
		return "", err
	}
	return prefix + hex.EncodeToString(buf), nil
}

type algorithm struct {
	Algorithm string `xml:"Algorithm,attr"`
}

type inclusiveNamespaces struct {
	XMLName    xml.Name `xml:"http://www.w3.org/2001/10/xml-exc-c14n# InclusiveNamespaces"`
	PrefixList string   `xml:"PrefixList,attr"`
}

type canonicalizationMethod struct {
	Algorithm           string `xml:"Algorithm,attr"`
	InclusiveNamespaces *inclusiveNamespaces
}

type signatureReference struct {
	URI          string      `xml:"URI,attr"`
	Transforms   []algorithm `xml:"Transforms>Transform"`
	DigestMethod algorithm   `xml:"DigestMethod"`
	DigestValue  string      `xml:"DigestValue"`
}

type signedInfo struct {
	XMLName xml.Name `xml:"SignedInfo"`
	XMLNS   string   `xml:"xmlns,attr"`

	CanonicalizationMethod canonicalizationMethod `xml:"CanonicalizationMethod"`
	SignatureMethod        algorithm              `xml:"SignatureMethod"`
	Reference              signatureReference     `xml:"Reference"`
}

type binarySecurityToken struct {
	XMLName xml.Name `xml:"wsse:BinarySecurityToken"`
	XMLNS   string   `xml:"xmlns:wsu,attr"`

	WsuID        string `xml:"wsu:Id,attr"`
	EncodingType string `xml:"EncodingType,attr"`
	ValueType    string `xml:"ValueType,attr"`

	Value string `xml:",chardata"`
}

type strReference struct {
	XMLName   xml.Name `xml:"wsse:Reference"`
	ValueType string   `xml:"ValueType,attr"`
	URI       string   `xml:"URI,attr"`
}

type securityTokenReference struct {
	XMLName xml.Name `xml:"wsse:SecurityTokenReference"`
	XMLNS   string   `xml:"xmlns:wsu,attr"`

	StrID string `xml:"wsu:Id,attr"`

	Reference strReference
}

type keyInfo struct {
	XMLName xml.Name `xml:"KeyInfo"`

	KeyInfoID string `xml:"Id,attr"`

	SecurityTokenReference securityTokenReference
}

type signature struct {
	XMLName xml.Name `xml:"Signature"`
	XMLNS   string   `xml:"xmlns,attr"`

	SignedInfo     signedInfo
	SignatureValue string `xml:"SignatureValue"`
	KeyInfo        keyInfo
}

type security struct {
	XMLName xml.Name `xml:"wsse:Security"`
	XMLNS   string   `xml:"xmlns:wsse,attr"`

	SOAPMustUnderstand int `xml:"SOAP-ENV:mustUnderstand,attr"`

	BinarySecurityToken binarySecurityToken
	Signature           signature
}

// canonical marshals v and returns its exclusive canonical form.
func canonical(v interface{}) ([]byte, error) {
	buf, err := xml.Marshal(v)
	if err != nil {
		return nil, err
	}
	return c14n.Canonicalize(xml.NewDecoder(bytes.NewReader(buf)))
}

// makeWSSESecurityHeader signs the envelope body with the configured key and
// returns the header carrying the signature and the signing certificate.
func (s *Client) makeWSSESecurityHeader(envelope *SOAPEnvelope) (*security, error) {
	var ids [4]string
	for i, prefix := range []string{"B-", "X509CERT-", "KINF-", "SECTOK-"} {
		id, err := makeSecureId(rand.Reader, prefix)
		if err != nil {
			return nil, fmt.Errorf("make security id: %w", err)
		}
		ids[i] = id
	}
	bodyRefID, certRefID := ids[0], ids[1]
	envelope.Body.XMLNSWsu = WssNsWSU
	envelope.Body.ID = bodyRefID

	body, err := canonical(&envelope.Body)
	if err != nil {
		return nil, err
	}
	bodyDigest := sha256.Sum256(body)

	info := signedInfo{
		XMLNS: NsXMLDSig,
		CanonicalizationMethod: canonicalizationMethod{
			Algorithm: algExcC14N,
			InclusiveNamespaces: &inclusiveNamespaces{
				PrefixList: "SOAP-ENV",
			},
		},
		SignatureMethod: algorithm{Algorithm: algRSASHA256},
		Reference: signatureReference{
			URI:          "#" + bodyRefID,
			Transforms:   []algorithm{{Algorithm: algExcC14N}},
			DigestMethod: algorithm{Algorithm: algDigestSHA256},
			DigestValue:  base64.StdEncoding.EncodeToString(bodyDigest[:]),
		},
	}
	canonInfo, err := canonical(info)
	if err != nil {
		return nil, err
	}
	infoDigest := sha256.Sum256(canonInfo)
	sigValue, err := rsa.SignPKCS1v15(rand.Reader, s.wssPrivateKey, crypto.SHA256, infoDigest[:])
	if err != nil {
		return nil, err
	}

	return &security{
		XMLNS:              WssNsWSSE,
		SOAPMustUnderstand: 1,
		BinarySecurityToken: binarySecurityToken{
			XMLNS:        WssNsWSU,
			WsuID:        certRefID,
			EncodingType: WssEncodeTypeBase64,
			ValueType:    WssValueTypeX509v3,
			Value:        s.wssCertBlobB64,
		},
		Signature: signature{
			XMLNS:          NsXMLDSig,
			SignedInfo:     info,
			SignatureValue: base64.StdEncoding.EncodeToString(sigValue),
			KeyInfo: keyInfo{
				KeyInfoID: ids[2],
				SecurityTokenReference: securityTokenReference{
					XMLNS: WssNsWSU,
					StrID: ids[3],
					Reference: strReference{
						ValueType: WssValueTypeX509v3,
						URI:       "#" + certRefID,
					},
				},
			},
		},
	}, nil
}
