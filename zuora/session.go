package zuora

import (
	"time"
)

// Session tracks the token issued by login and how long it stays valid.
// The zero token means no session.
type Session struct {
	token    string
	issuedAt time.Time
	duration time.Duration
	now      func() time.Time
}

// NewSession returns an empty session reading time from now, or from
// time.Now when now is nil.
func NewSession(now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	return &Session{now: now}
}

// IsFresh reports whether a token is held and has not reached its expiry.
func (s *Session) IsFresh() bool {
	return s.token != "" && s.now().Before(s.ExpiresAt())
}

// Establish records a newly issued token valid for duration from now.
func (s *Session) Establish(token string, duration time.Duration) {
	s.token = token
	s.issuedAt = s.now()
	s.duration = duration
}

// Invalidate drops the token. The next IsFresh returns false.
func (s *Session) Invalidate() {
	s.token = ""
}

// Token returns the current token, or "" without a session.
func (s *Session) Token() string {
	return s.token
}

// ExpiresAt is the instant the current token stops being fresh.
func (s *Session) ExpiresAt() time.Time {
	return s.issuedAt.Add(s.duration)
}
