package soap

import (
	"net/http"
	"time"
)

type CallContent struct {
	Header http.Header
	Body   string
}

// CallResult is the raw exchange of a single SOAP call.
type CallResult struct {
	RequestURL      string
	StatusCode      int
	RequestContent  CallContent
	ResponseContent CallContent
	InvokeAt        time.Time
	ReturnAt        time.Time
	DecodedAt       time.Time
}

// RoundTrip is the time spent waiting for the server.
func (r *CallResult) RoundTrip() time.Duration {
	if r == nil || r.InvokeAt.IsZero() || r.ReturnAt.IsZero() {
		return 0
	}
	return r.ReturnAt.Sub(r.InvokeAt)
}
