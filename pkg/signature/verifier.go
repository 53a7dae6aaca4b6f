// Package signature verifies that inbound requests were sent by Slack.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	apperrors "github.com/WorkniceHR/slack/pkg/errors"
)

const (
	// HeaderSignature carries "v0=<hex digest>".
	HeaderSignature = "X-Slack-Signature"
	// HeaderTimestamp carries the unix time the request was signed at.
	HeaderTimestamp = "X-Slack-Request-Timestamp"

	// Version is the only signing scheme Slack uses today.
	Version = "v0"

	// DefaultMaxSkew is how far a request timestamp may be from now.
	DefaultMaxSkew = 5 * time.Minute
)

// Verifier checks Slack request signatures against a shared signing secret.
type Verifier struct {
	secret  []byte
	maxSkew time.Duration
	now     func() time.Time
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithMaxSkew overrides the accepted timestamp window.
func WithMaxSkew(d time.Duration) Option {
	return func(v *Verifier) {
		if d > 0 {
			v.maxSkew = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		v.now = now
	}
}

// NewVerifier creates a verifier for the given signing secret.
func NewVerifier(secret string, opts ...Option) *Verifier {
	v := &Verifier{
		secret:  []byte(secret),
		maxSkew: DefaultMaxSkew,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks signature against the raw body exactly as received.
func (v *Verifier) Verify(timestamp, signature string, body []byte) error {
	if timestamp == "" {
		return apperrors.NewAuthenticationError("missing " + HeaderTimestamp + " header")
	}
	if signature == "" {
		return apperrors.NewAuthenticationError("missing " + HeaderSignature + " header")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return apperrors.NewAuthenticationError("malformed request timestamp")
	}
	skew := v.now().Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.maxSkew {
		return apperrors.NewAuthenticationError("request timestamp outside the accepted window")
	}

	expected := Sign(v.secret, timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return apperrors.NewAuthenticationError("request signature mismatch")
	}
	return nil
}

// Sign computes "v0=" + hex(HMAC-SHA256(secret, "v0:<timestamp>:<body>")).
func Sign(secret []byte, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(Version + ":" + timestamp + ":"))
	mac.Write(body)
	return Version + "=" + hex.EncodeToString(mac.Sum(nil))
}
