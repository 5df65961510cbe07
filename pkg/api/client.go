// Package api is the HTTP JSON-LD client for the club-management backend.
// It implements the session's transport interfaces: the refresh-token grant
// exchange and the principal/club read endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/narvik-app/narvik/pkg/model"
	"github.com/narvik-app/narvik/pkg/token"
)

const (
	mimeJSON   = "application/json"
	mimeJSONLD = "application/ld+json"
)

// TokenSource supplies a valid access token for authorized reads. The
// session satisfies this with its single-flight refresh.
type TokenSource interface {
	EnsureValid(ctx context.Context) (string, error)
}

// Client talks to one backend instance.
type Client struct {
	baseURL string
	http    *http.Client
	source  TokenSource
	logger  *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client. Default: http.DefaultClient.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.http = c }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) ClientOption {
	return func(cl *Client) { cl.logger = logger }
}

// NewClient creates a client for the given base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	cl := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    http.DefaultClient,
	}
	for _, opt := range opts {
		opt(cl)
	}
	if cl.logger == nil {
		cl.logger = slog.Default()
	}
	return cl
}

// SetTokenSource wires the access-token supplier. Set after the session is
// constructed; the grant exchange itself never uses it.
func (c *Client) SetTokenSource(source TokenSource) {
	c.source = source
}

// RefreshToken performs the grant_type=refresh_token exchange. The badger
// audience has its own token endpoint so device credentials never mix with
// user credentials. Malformed responses are rejected here, at the transport
// boundary.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string, badger bool) (token.Grant, error) {
	endpoint := c.baseURL + "/token"
	if badger {
		endpoint = c.baseURL + "/badger/token"
	}

	body, err := json.Marshal(map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
	})
	if err != nil {
		return token.Grant{}, fmt.Errorf("encode grant request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return token.Grant{}, fmt.Errorf("build grant request: %w", err)
	}
	req.Header.Set("Content-Type", mimeJSON)
	req.Header.Set("Accept", mimeJSON)

	resp, err := c.http.Do(req)
	if err != nil {
		return token.Grant{}, fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return token.Grant{}, fmt.Errorf("token exchange: unexpected status %d", resp.StatusCode)
	}

	var grant token.Grant
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&grant); err != nil {
		return token.Grant{}, fmt.Errorf("decode grant response: %w", err)
	}
	if err := grant.Validate(); err != nil {
		return token.Grant{}, err
	}
	return grant, nil
}

// FetchSelf retrieves the authenticated principal with its linked profiles.
func (c *Client) FetchSelf(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := c.get(ctx, "/users/self", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// FetchMember retrieves one member record.
func (c *Client) FetchMember(ctx context.Context, id uuid.UUID) (*model.Member, error) {
	var member model.Member
	if err := c.get(ctx, "/members/"+id.String(), &member); err != nil {
		return nil, err
	}
	return &member, nil
}

// FetchClub retrieves the full record of the currently selected club.
func (c *Client) FetchClub(ctx context.Context) (*model.Club, error) {
	var club model.Club
	if err := c.get(ctx, "/clubs/current", &club); err != nil {
		return nil, err
	}
	return &club, nil
}

// FetchClubSettings retrieves one club-settings record.
func (c *Client) FetchClubSettings(ctx context.Context, id uuid.UUID) (*model.ClubSettings, error) {
	var settings model.ClubSettings
	if err := c.get(ctx, "/club-settings/"+id.String(), &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// get performs an authorized JSON-LD read.
func (c *Client) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", mimeJSONLD)

	if c.source != nil {
		tok, err := c.source.EnsureValid(ctx)
		if err != nil {
			return fmt.Errorf("authorize %s: %w", path, err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
