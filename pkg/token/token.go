// Package token models the JWT access/refresh token pair that backs a
// session, including the defensive expiry policy: expiries are shortened by a
// safety margin, and a date that cannot be parsed never counts as expired —
// absence of information defers to attempting the operation.
package token

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExpiryMargin is subtracted from every server-declared expiry. It leaves
// room for requests already in flight when the token reaches its hard
// deadline.
const ExpiryMargin = 120 * time.Second

// ErrMalformedGrant is returned when a token-exchange response is missing a
// required field.
var ErrMalformedGrant = errors.New("malformed token grant response")

// Token is one credential with its usable-until timestamp.
type Token struct {
	Value string `json:"token"`

	// ExpiresAt is the margin-adjusted expiry. Zero means unknown: either
	// the server never declared one or the persisted date failed to parse.
	ExpiresAt time.Time `json:"date"`

	// RawExpiry keeps the original serialized date when parsing failed, so
	// a persisted pair survives a round trip unchanged.
	RawExpiry string `json:"-"`
}

// tokenJSON mirrors the persisted wire shape with a permissive date field.
type tokenJSON struct {
	Value string          `json:"token"`
	Date  json.RawMessage `json:"date,omitempty"`
}

// MarshalJSON serializes the expiry as RFC 3339, or echoes the unparsable
// original back out.
func (t Token) MarshalJSON() ([]byte, error) {
	out := tokenJSON{Value: t.Value}
	switch {
	case !t.ExpiresAt.IsZero():
		b, err := json.Marshal(t.ExpiresAt.Format(time.RFC3339))
		if err != nil {
			return nil, err
		}
		out.Date = b
	case t.RawExpiry != "":
		b, err := json.Marshal(t.RawExpiry)
		if err != nil {
			return nil, err
		}
		out.Date = b
	}
	return json.Marshal(out)
}

// UnmarshalJSON parses the expiry defensively. An unparsable date is kept as
// RawExpiry and leaves ExpiresAt zero; it is not an error and not an expiry.
func (t *Token) UnmarshalJSON(data []byte) error {
	var in tokenJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	t.Value = in.Value
	t.ExpiresAt = time.Time{}
	t.RawExpiry = ""
	if len(in.Date) == 0 {
		return nil
	}

	var s string
	if err := json.Unmarshal(in.Date, &s); err != nil {
		// Not a string; tolerate an epoch-seconds number.
		var epoch int64
		if err := json.Unmarshal(in.Date, &epoch); err == nil && epoch > 0 {
			t.ExpiresAt = time.Unix(epoch, 0).UTC()
			return nil
		}
		t.RawExpiry = string(in.Date)
		return nil
	}
	if parsed, err := parseDate(s); err == nil {
		t.ExpiresAt = parsed
	} else {
		t.RawExpiry = s
	}
	return nil
}

// parseDate accepts the formats a persisted session may carry.
func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000Z0700"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, errors.New("unrecognized date: " + s)
}

// expiry resolves the usable-until time. When no expiry was stored it falls
// back to the token's own JWT exp claim, margin-adjusted. ok is false when
// nothing can be determined.
func (t *Token) expiry() (deadline time.Time, ok bool) {
	if t == nil {
		return time.Time{}, false
	}
	if !t.ExpiresAt.IsZero() {
		return t.ExpiresAt, true
	}
	if t.Value == "" {
		return time.Time{}, false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(t.Value, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time.Add(-ExpiryMargin), true
}

// Expired reports whether the token is provably past its usable window.
// Unknown expiries are never expired.
func (t *Token) Expired(now time.Time) bool {
	deadline, ok := t.expiry()
	if !ok {
		return false
	}
	return deadline.Before(now)
}

// Pair holds the access/refresh credentials of one session.
type Pair struct {
	// Badger distinguishes the kiosk/device credential audience from a
	// normal user login. The two audiences are never mixed when refreshing.
	Badger bool `json:"isBadger"`

	Access  *Token `json:"access,omitempty"`
	Refresh *Token `json:"refresh,omitempty"`
}

// Grant is the validated contract of a grant_type=refresh_token exchange.
type Grant struct {
	AccessToken            string `json:"access_token"`
	ExpiresIn              int64  `json:"expires_in"`
	RefreshToken           string `json:"refresh_token"`
	RefreshTokenExpiration int64  `json:"refresh_token_expiration"`
}

// Validate rejects responses missing a required field. Callers treat a
// validation failure like any other transport failure.
func (g Grant) Validate() error {
	if g.AccessToken == "" || g.RefreshToken == "" {
		return ErrMalformedGrant
	}
	if g.ExpiresIn <= 0 || g.RefreshTokenExpiration <= 0 {
		return ErrMalformedGrant
	}
	return nil
}

// NewPairFromGrant builds a pair from a token exchange, applying the expiry
// margin to both credentials. RefreshTokenExpiration is epoch seconds.
func NewPairFromGrant(g Grant, badger bool, now time.Time) (*Pair, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &Pair{
		Badger: badger,
		Access: &Token{
			Value:     g.AccessToken,
			ExpiresAt: now.Add(time.Duration(g.ExpiresIn)*time.Second - ExpiryMargin),
		},
		Refresh: &Token{
			Value:     g.RefreshToken,
			ExpiresAt: time.Unix(g.RefreshTokenExpiration, 0).Add(-ExpiryMargin).UTC(),
		},
	}, nil
}

// AccessValid reports whether the access token can be used as-is, without a
// network round trip.
func (p *Pair) AccessValid(now time.Time) bool {
	if p == nil || p.Access == nil || p.Access.Value == "" {
		return false
	}
	return !p.Access.Expired(now)
}

// HasRefresh reports whether a refresh credential is present at all.
func (p *Pair) HasRefresh() bool {
	return p != nil && p.Refresh != nil && p.Refresh.Value != ""
}

// RefreshExpired reports whether the refresh token is provably past its
// usable window, which makes the session terminal.
func (p *Pair) RefreshExpired(now time.Time) bool {
	if !p.HasRefresh() {
		return false
	}
	return p.Refresh.Expired(now)
}

// ShouldAttemptRefresh reports whether a refresh is worth trying: a refresh
// credential exists and is not provably expired. An unparsable refresh
// expiry still attempts the refresh.
func (p *Pair) ShouldAttemptRefresh(now time.Time) bool {
	return p.HasRefresh() && !p.RefreshExpired(now)
}
