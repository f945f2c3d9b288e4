package zuora

import (
	"context"
	"encoding/xml"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cheyinl/zuora-soap/metrics"
	"github.com/cheyinl/zuora-soap/soap"
)

const redacted = "********"

// call runs op inside a session. request must have an XMLName field; it is
// set to op in the API namespace.
func (c *Client) call(ctx context.Context, op string, request, response interface{}) error {
	return c.dispatch(ctx, op, request, response, true)
}

// dispatch sends one logical call. A rejected session is re-established and
// the call repeated once; a malformed response drops the pooled connections
// and the call is repeated once. Each budget is spent independently, so a
// call makes at most three attempts.
func (c *Client) dispatch(ctx context.Context, op string, request, response interface{}, needSession bool) error {
	setName(request, xml.Name{Space: c.definition.APINamespace, Local: op})
	log := c.logger.With().Str("operation", op).Str("call_id", uuid.NewString()).Logger()

	started := time.Now()
	var sessionRetried, transportRetried bool
	for attempt := 1; ; attempt++ {
		if needSession && !c.session.IsFresh() {
			if _, err := c.login(ctx); err != nil {
				log.Error().Err(err).Msg("no session")
				c.metrics.ObserveCall(op, time.Since(started), err)
				return err
			}
		}

		err := c.invoke(ctx, log, request, response)
		switch {
		case err == nil:
			c.metrics.ObserveCall(op, time.Since(started), nil)
			return nil
		case needSession && !sessionRetried && IsInvalidSession(err):
			sessionRetried = true
			log.Warn().Err(err).Int("attempt", attempt).Msg("session rejected, logging in again")
			c.metrics.ObserveRetry(op, metrics.CauseInvalidSession)
			c.session.Invalidate()
		case !transportRetried && soap.IsMalformed(err):
			transportRetried = true
			log.Warn().Err(err).Int("attempt", attempt).Msg("malformed response, resetting connections")
			c.metrics.ObserveRetry(op, metrics.CauseMalformed)
			c.transport.Reset()
		default:
			werr := wrapError(op, err)
			log.Error().Err(err).Int("attempt", attempt).Msg("call failed")
			c.metrics.ObserveCall(op, time.Since(started), werr)
			return werr
		}
	}
}

func (c *Client) invoke(ctx context.Context, log zerolog.Logger, request, response interface{}) error {
	_, err := c.engine.CallContextWithFaultDetail(ctx, "", request, response, &FaultDetail{})
	if sent := c.engine.LastSent(); sent != "" {
		log.Info().Str("payload", c.redact(sent)).Msg("request")
	}
	if call := c.engine.LastCall(); call != nil && !call.ReturnAt.IsZero() {
		log.Info().Int("status", call.StatusCode).Dur("took", call.RoundTrip()).
			Str("payload", c.engine.LastReceived()).Msg("response")
	}
	return err
}

// login authenticates with the configured credentials and installs the new
// session header. It honors the malformed-response budget but never the
// session one.
func (c *Client) login(ctx context.Context) (*LoginResult, error) {
	c.engine.SetSOAPHeader(sessionHeaderName, c.definition.APINamespace, nil)
	req := &loginRequest{Username: c.creds.Username, Password: c.creds.Password}
	resp := &loginResponse{}
	err := c.dispatch(ctx, "login", req, resp, false)
	c.metrics.ObserveLogin(err)
	if err != nil {
		return nil, err
	}
	if resp.Result.Session == "" {
		return nil, &Error{Op: "login", Message: "response carried no session"}
	}

	c.session.Establish(resp.Result.Session, c.duration)
	c.engine.SetSOAPHeader(sessionHeaderName, c.definition.APINamespace, &sessionHeader{Session: resp.Result.Session})
	if resp.Result.ServerURL != "" && resp.Result.ServerURL != c.engine.URL() {
		c.logger.Info().Str("server_url", resp.Result.ServerURL).Msg("switching endpoint")
		c.engine.SetURL(resp.Result.ServerURL)
	}
	c.logger.Info().Time("expires_at", c.session.ExpiresAt()).Msg("session established")
	return &resp.Result, nil
}

func (c *Client) redact(payload string) string {
	if c.creds.Password == "" {
		return payload
	}
	var escaped strings.Builder
	if err := xml.EscapeText(&escaped, []byte(c.creds.Password)); err != nil {
		return payload
	}
	return strings.ReplaceAll(payload, escaped.String(), redacted)
}

func setName(request interface{}, name xml.Name) {
	switch r := request.(type) {
	case *loginRequest:
		r.XMLName = name
	case *saveRequest:
		r.XMLName = name
	case *deleteRequest:
		r.XMLName = name
	case *queryRequest:
		r.XMLName = name
	case *queryMoreRequest:
		r.XMLName = name
	case *amendRequest:
		r.XMLName = name
	case *subscribeRequest:
		r.XMLName = name
	case *executeRequest:
		r.XMLName = name
	case *getUserInfoRequest:
		r.XMLName = name
	}
}
