package token_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/narvik-app/narvik/pkg/token"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func validGrant() token.Grant {
	return token.Grant{
		AccessToken:            "access-1",
		ExpiresIn:              3600,
		RefreshToken:           "refresh-1",
		RefreshTokenExpiration: now.Add(30 * 24 * time.Hour).Unix(),
	}
}

func TestNewPairFromGrant_AppliesMargins(t *testing.T) {
	pair, err := token.NewPairFromGrant(validGrant(), false, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantAccess := now.Add(3600*time.Second - token.ExpiryMargin)
	if !pair.Access.ExpiresAt.Equal(wantAccess) {
		t.Errorf("access expiry = %v, want %v", pair.Access.ExpiresAt, wantAccess)
	}

	wantRefresh := time.Unix(validGrant().RefreshTokenExpiration, 0).Add(-token.ExpiryMargin).UTC()
	if !pair.Refresh.ExpiresAt.Equal(wantRefresh) {
		t.Errorf("refresh expiry = %v, want %v", pair.Refresh.ExpiresAt, wantRefresh)
	}
}

func TestNewPairFromGrant_RejectsMalformed(t *testing.T) {
	cases := map[string]func(*token.Grant){
		"missing access token":    func(g *token.Grant) { g.AccessToken = "" },
		"missing refresh token":   func(g *token.Grant) { g.RefreshToken = "" },
		"zero expires_in":         func(g *token.Grant) { g.ExpiresIn = 0 },
		"negative expires_in":     func(g *token.Grant) { g.ExpiresIn = -5 },
		"zero refresh expiration": func(g *token.Grant) { g.RefreshTokenExpiration = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			g := validGrant()
			mutate(&g)
			if _, err := token.NewPairFromGrant(g, false, now); !errors.Is(err, token.ErrMalformedGrant) {
				t.Errorf("expected ErrMalformedGrant, got %v", err)
			}
		})
	}
}

func TestAccessValid(t *testing.T) {
	pair, _ := token.NewPairFromGrant(validGrant(), false, now)

	if !pair.AccessValid(now) {
		t.Error("fresh access token should be valid")
	}
	if pair.AccessValid(now.Add(2 * time.Hour)) {
		t.Error("access token should be invalid after expiry")
	}

	var nilPair *token.Pair
	if nilPair.AccessValid(now) {
		t.Error("nil pair should never be valid")
	}
	if (&token.Pair{}).AccessValid(now) {
		t.Error("pair without access token should be invalid")
	}
}

func TestShouldAttemptRefresh_UnparsableDate(t *testing.T) {
	// A refresh expiry that failed to parse must not count as expired;
	// the refresh is attempted anyway.
	var tok token.Token
	if err := json.Unmarshal([]byte(`{"token":"refresh-1","date":"not-a-date"}`), &tok); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !tok.ExpiresAt.IsZero() {
		t.Fatalf("unparsable date should leave expiry unknown, got %v", tok.ExpiresAt)
	}
	if tok.RawExpiry != "not-a-date" {
		t.Errorf("raw expiry = %q, want %q", tok.RawExpiry, "not-a-date")
	}

	pair := &token.Pair{Refresh: &tok}
	if pair.RefreshExpired(now) {
		t.Error("unknown refresh expiry must not be treated as expired")
	}
	if !pair.ShouldAttemptRefresh(now) {
		t.Error("unknown refresh expiry must still attempt the refresh")
	}
}

func TestShouldAttemptRefresh(t *testing.T) {
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		pair *token.Pair
		want bool
	}{
		{"no pair", nil, false},
		{"no refresh", &token.Pair{}, false},
		{"valid refresh", &token.Pair{Refresh: &token.Token{Value: "r", ExpiresAt: future}}, true},
		{"expired refresh", &token.Pair{Refresh: &token.Token{Value: "r", ExpiresAt: past}}, false},
		{"unknown expiry", &token.Pair{Refresh: &token.Token{Value: "r"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pair.ShouldAttemptRefresh(now); got != tt.want {
				t.Errorf("ShouldAttemptRefresh = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExpired_JWTClaimFallback(t *testing.T) {
	// When no expiry was stored, the token's own exp claim decides,
	// margin-adjusted.
	exp := now.Add(10 * time.Minute)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	tok := &token.Token{Value: signed}
	if tok.Expired(now) {
		t.Error("token should not be expired 10 minutes before its exp claim")
	}
	if !tok.Expired(exp.Add(-time.Minute)) {
		t.Error("token should be expired inside the margin window")
	}

	opaque := &token.Token{Value: "not-a-jwt"}
	if opaque.Expired(now) {
		t.Error("opaque token without expiry info must not count as expired")
	}
}

func TestPairJSONRoundTrip(t *testing.T) {
	pair, _ := token.NewPairFromGrant(validGrant(), true, now)

	data, err := json.Marshal(pair)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var restored token.Pair
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !restored.Badger {
		t.Error("badger flag lost in round trip")
	}
	if restored.Access.Value != pair.Access.Value {
		t.Errorf("access token = %q, want %q", restored.Access.Value, pair.Access.Value)
	}
	if !restored.Access.ExpiresAt.Equal(pair.Access.ExpiresAt) {
		t.Errorf("access expiry = %v, want %v", restored.Access.ExpiresAt, pair.Access.ExpiresAt)
	}
	if !restored.Refresh.ExpiresAt.Equal(pair.Refresh.ExpiresAt) {
		t.Errorf("refresh expiry = %v, want %v", restored.Refresh.ExpiresAt, pair.Refresh.ExpiresAt)
	}
}

func TestTokenJSON_BadDateSurvivesRoundTrip(t *testing.T) {
	in := []byte(`{"token":"r","date":"garbage"}`)

	var tok token.Token
	if err := json.Unmarshal(in, &tok); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	out, err := json.Marshal(tok)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var again token.Token
	if err := json.Unmarshal(out, &again); err != nil {
		t.Fatalf("re-unmarshal: %v", err)
	}
	if again.RawExpiry != "garbage" {
		t.Errorf("raw expiry = %q, want %q", again.RawExpiry, "garbage")
	}
}

func TestTokenJSON_EpochSeconds(t *testing.T) {
	var tok token.Token
	if err := json.Unmarshal([]byte(`{"token":"r","date":1767225600}`), &tok); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if tok.ExpiresAt.IsZero() {
		t.Error("epoch-seconds date should parse")
	}
}
