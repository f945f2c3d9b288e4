package zuora

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/cheyinl/zuora-soap/soap"
)

const invalidSessionCode = "INVALID_SESSION"

// Error is the single error kind returned by the client. The original
// failure is kept as Cause; use errors.As to reach a *soap.SOAPFault, a
// *soap.MalformedResponseError or a transport error.
type Error struct {
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("zuora %s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("zuora %s: %s: %v", e.Op, e.Message, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Fault returns the remote fault behind the error, if any.
func (e *Error) Fault() *soap.SOAPFault {
	var fault *soap.SOAPFault
	if errors.As(e.Cause, &fault) {
		return fault
	}
	return nil
}

// FaultDetail decodes the <detail> element of Zuora faults, e.g.
// <fns:UnexpectedErrorFault><fns:FaultCode>INVALID_SESSION</fns:FaultCode>.
type FaultDetail struct {
	Faults []FaultEntry `xml:",any"`
}

type FaultEntry struct {
	XMLName xml.Name
	Code    string `xml:"FaultCode"`
	Message string `xml:"FaultMessage"`
}

func (d *FaultDetail) ErrorString() string {
	parts := make([]string, 0, len(d.Faults))
	for _, f := range d.Faults {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Code, f.Message))
	}
	return strings.Join(parts, "; ")
}

func (d *FaultDetail) HasData() bool {
	return d.Code() != ""
}

// Code returns the first fault code found in the detail.
func (d *FaultDetail) Code() string {
	for _, f := range d.Faults {
		if f.Code != "" {
			return f.Code
		}
	}
	return ""
}

// FaultCode returns the Zuora code of a fault, preferring the detail over
// the prefixed faultcode.
func FaultCode(fault *soap.SOAPFault) string {
	if d, ok := fault.Detail.(*FaultDetail); ok && d.Code() != "" {
		return d.Code()
	}
	return fault.LocalCode()
}

// IsInvalidSession reports whether err is a fault rejecting the session.
func IsInvalidSession(err error) bool {
	var fault *soap.SOAPFault
	if !errors.As(err, &fault) {
		return false
	}
	return fault.LocalCode() == invalidSessionCode || FaultCode(fault) == invalidSessionCode
}

func wrapError(op string, err error) *Error {
	var fault *soap.SOAPFault
	switch {
	case errors.As(err, &fault):
		return &Error{Op: op, Message: "remote fault " + FaultCode(fault), Cause: err}
	case soap.IsMalformed(err):
		return &Error{Op: op, Message: "malformed response", Cause: err}
	default:
		return &Error{Op: op, Message: "call failed", Cause: err}
	}
}
