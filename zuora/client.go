// Package zuora is a session-aware client for the Zuora SOAP API.
//
// A Client logs in lazily, attaches the session token to every call and
// recovers once from a rejected session and once from a malformed response
// before reporting an error. A Client is not safe for concurrent use; give
// each goroutine its own.
package zuora

import (
	"context"
	"crypto/rsa"
	"encoding/xml"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/cheyinl/zuora-soap/config"
	"github.com/cheyinl/zuora-soap/metrics"
	"github.com/cheyinl/zuora-soap/soap"
	"github.com/cheyinl/zuora-soap/transport"
	"github.com/cheyinl/zuora-soap/wsdl"
)

// DefaultSessionDuration is how long a session is trusted after login.
const DefaultSessionDuration = time.Duration(config.DefaultSessionDuration) * time.Second

const sessionHeaderName = "SessionHeader"

// Credentials identify the tenant user and the service description.
type Credentials struct {
	WSDL     string
	Username string
	Password string
}

// Transport sends requests over reusable connections and can drop them.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
	Reset()
}

type options struct {
	logger          zerolog.Logger
	sessionDuration time.Duration
	transport       Transport
	transportConfig *transport.Config
	endpoint        string
	now             func() time.Time
	metrics         *metrics.Metrics
	signingKey      *rsa.PrivateKey
	signingCert     string
	singleTx        bool
	batchSize       int
}

// Option configures a Client.
type Option func(*options)

// WithLogger sets the logger receiving call traces. Nothing is logged by default.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithSessionDuration overrides how long a session is trusted after login.
func WithSessionDuration(d time.Duration) Option {
	return func(o *options) {
		o.sessionDuration = d
	}
}

// WithTransport replaces the keep-alive transport.
func WithTransport(t Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

// WithTransportConfig configures the default keep-alive transport.
func WithTransportConfig(cfg *transport.Config) Option {
	return func(o *options) {
		o.transportConfig = cfg
	}
}

// WithEndpoint overrides the service address declared by the WSDL.
func WithEndpoint(endpoint string) Option {
	return func(o *options) {
		o.endpoint = endpoint
	}
}

// WithClock sets the time source used for session freshness.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithMetrics registers client metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.metrics = metrics.New(reg)
	}
}

// WithSigningKey signs every envelope with a WS-Security signature.
func WithSigningKey(key *rsa.PrivateKey, certBase64 string) Option {
	return func(o *options) {
		o.signingKey = key
		o.signingCert = certBase64
	}
}

// WithSingleTransaction asks the tenant to apply each batch call in one
// transaction, so that one failed item rolls back the whole batch.
func WithSingleTransaction() Option {
	return func(o *options) {
		o.singleTx = true
	}
}

// WithQueryBatchSize sets how many records a query page carries.
func WithQueryBatchSize(n int) Option {
	return func(o *options) {
		o.batchSize = n
	}
}

// Client is the RPC façade over a Zuora tenant.
type Client struct {
	creds      Credentials
	definition *wsdl.Definition
	engine     *soap.Client
	transport  Transport
	session    *Session
	duration   time.Duration
	logger     zerolog.Logger
	metrics    *metrics.Metrics
}

// New loads the WSDL named by creds and prepares a client. No login
// happens until the first call.
func New(ctx context.Context, creds Credentials, opts ...Option) (*Client, error) {
	o := options{
		logger:          zerolog.Nop(),
		sessionDuration: DefaultSessionDuration,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if creds.WSDL == "" {
		return nil, &Error{Op: "new", Message: "wsdl location is required"}
	}
	if o.transport == nil {
		o.transport = transport.New(o.transportConfig)
	}

	def, err := wsdl.Load(ctx, creds.WSDL, o.transport)
	if err != nil {
		return nil, &Error{Op: "new", Message: "cannot load service description", Cause: err}
	}
	endpoint := o.endpoint
	if endpoint == "" {
		endpoint = def.Endpoint
	}
	if endpoint == "" {
		return nil, &Error{Op: "new", Message: "no service endpoint in wsdl " + creds.WSDL}
	}

	engine := soap.NewClient(endpoint, soap.WithHTTPClient(o.transport))
	if o.signingKey != nil {
		engine.SetWSSHeaderSigningKey(o.signingKey, o.signingCert)
	}
	var headers []interface{}
	if o.singleTx {
		headers = append(headers, &callOptions{
			XMLName:              xml.Name{Space: def.APINamespace, Local: "CallOptions"},
			UseSingleTransaction: true,
		})
	}
	if o.batchSize > 0 {
		headers = append(headers, &queryOptions{
			XMLName:   xml.Name{Space: def.APINamespace, Local: "QueryOptions"},
			BatchSize: o.batchSize,
		})
	}
	engine.SetHeaders(headers...)
	c := &Client{
		creds:      creds,
		definition: def,
		engine:     engine,
		transport:  o.transport,
		session:    NewSession(o.now),
		duration:   o.sessionDuration,
		logger:     o.logger.With().Str("component", "zuora").Logger(),
		metrics:    o.metrics,
	}
	c.logger.Debug().Str("endpoint", endpoint).Int("operations", len(def.Operations)).
		Int("types", def.TypeCount()).Msg("service description loaded")
	return c, nil
}

// NewFromConfig builds a client from a loaded configuration. Options given
// here take precedence over the configuration.
func NewFromConfig(ctx context.Context, cfg *config.Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &Error{Op: "new", Message: "invalid configuration", Cause: err}
	}
	tc := transport.DefaultConfig()
	tc.Timeout = cfg.TimeoutDuration()
	tc.InsecureSkipVerify = !cfg.VerifyTLS

	base := []Option{
		WithSessionDuration(cfg.SessionTTL()),
		WithTransportConfig(tc),
		WithEndpoint(cfg.Endpoint),
		WithQueryBatchSize(cfg.BatchSize),
	}
	if cfg.SingleTransaction {
		base = append(base, WithSingleTransaction())
	}
	creds := Credentials{WSDL: cfg.WSDL, Username: cfg.Username, Password: cfg.Password}
	return New(ctx, creds, append(base, opts...)...)
}

// AddHeader adds an envelope header sent with every later call.
func (c *Client) AddHeader(header interface{}) {
	c.engine.AddHeader(header)
}

// Definition returns the parsed service description.
func (c *Client) Definition() *wsdl.Definition {
	return c.definition
}

// Session exposes the current session state.
func (c *Client) Session() *Session {
	return c.session
}

// Endpoint returns the address calls are posted to.
func (c *Client) Endpoint() string {
	return c.engine.URL()
}

// LastSent returns the raw body of the last request.
func (c *Client) LastSent() string {
	return c.engine.LastSent()
}

// LastReceived returns the raw body of the last response.
func (c *Client) LastReceived() string {
	return c.engine.LastReceived()
}

// Instantiate creates an empty object of a type declared by the WSDL.
func (c *Client) Instantiate(typeName string) (*soap.Object, error) {
	ns := c.definition.ObjectNamespace
	if c.definition.TypeCount() > 0 {
		tns, ok := c.definition.TypeNamespace(typeName)
		if !ok {
			return nil, &Error{Op: "instantiate", Message: fmt.Sprintf("unknown type %q", typeName)}
		}
		if tns != "" {
			ns = tns
		}
	}
	return soap.NewObject(typeName, ns), nil
}
