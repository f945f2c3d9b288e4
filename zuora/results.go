package zuora

import (
	"github.com/cheyinl/zuora-soap/soap"
)

// ResultError is one entry of the Errors list of a per-item result.
type ResultError struct {
	Code    string `xml:"Code"`
	Message string `xml:"Message"`
	Field   string `xml:"Field,omitempty"`
}

// SaveResult is the per-object outcome of create, update and generate.
// Success=false entries are returned as they are, never turned into errors.
type SaveResult struct {
	ID      string        `xml:"Id"`
	Success bool          `xml:"Success"`
	Errors  []ResultError `xml:"Errors"`
}

// DeleteResult uses lowercase element names on the wire.
type DeleteResult struct {
	ID      string        `xml:"id"`
	Success bool          `xml:"success"`
	Errors  []ResultError `xml:"errors"`
}

type ExecuteResult struct {
	ID      string        `xml:"Id"`
	Success bool          `xml:"Success"`
	Errors  []ResultError `xml:"Errors"`
}

type AmendResult struct {
	AmendmentIDs             []string      `xml:"AmendmentIds"`
	Errors                   []ResultError `xml:"Errors"`
	InvoiceID                string        `xml:"InvoiceId"`
	PaymentTransactionNumber string        `xml:"PaymentTransactionNumber"`
	SubscriptionID           string        `xml:"SubscriptionId"`
	Success                  bool          `xml:"Success"`
	TotalDeltaMrr            string        `xml:"TotalDeltaMrr"`
	TotalDeltaTcv            string        `xml:"TotalDeltaTcv"`
}

type SubscribeResult struct {
	AccountID                string        `xml:"AccountId"`
	AccountNumber            string        `xml:"AccountNumber"`
	Errors                   []ResultError `xml:"Errors"`
	InvoiceID                string        `xml:"InvoiceId"`
	InvoiceNumber            string        `xml:"InvoiceNumber"`
	PaymentTransactionNumber string        `xml:"PaymentTransactionNumber"`
	SubscriptionID           string        `xml:"SubscriptionId"`
	SubscriptionNumber       string        `xml:"SubscriptionNumber"`
	Success                  bool          `xml:"Success"`
}

// QueryResult is one page of a ZOQL query. Records keep whatever fields
// the query selected.
type QueryResult struct {
	Done         bool           `xml:"done"`
	QueryLocator string         `xml:"queryLocator"`
	Records      []*soap.Record `xml:"records"`
	Size         int            `xml:"size"`
}

type LoginResult struct {
	Session   string `xml:"Session"`
	ServerURL string `xml:"ServerUrl"`
}

type UserInfo struct {
	TenantID     string `xml:"TenantId"`
	TenantName   string `xml:"TenantName"`
	UserEmail    string `xml:"UserEmail"`
	UserFullName string `xml:"UserFullName"`
	UserID       string `xml:"UserId"`
	Username     string `xml:"Username"`
}

// Response bodies.

type loginResponse struct {
	Result LoginResult `xml:"result"`
}

type saveResponse struct {
	Results []SaveResult `xml:"result"`
}

type deleteResponse struct {
	Results []DeleteResult `xml:"result"`
}

type queryResponse struct {
	Result QueryResult `xml:"result"`
}

type amendResponse struct {
	Results []AmendResult `xml:"results"`
}

type subscribeResponse struct {
	Results []SubscribeResult `xml:"result"`
}

type executeResponse struct {
	Results []ExecuteResult `xml:"result"`
}

type getUserInfoResponse struct {
	UserInfo
}
