// Package files retrieves stored files (member photos, club logos) and
// converts them to an inline, displayable form.
package files

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
)

// Inline is a file converted to an embeddable representation.
type Inline struct {
	// ContentType is the MIME type reported by the source.
	ContentType string

	// Base64 is the standard-encoded file body.
	Base64 string
}

// DataURI renders the inline file as a data: URI.
func (i *Inline) DataURI() string {
	ct := i.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	return "data:" + ct + ";base64," + i.Base64
}

// Fetcher retrieves a file by the reference the backend handed out.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Inline, error)
}

// Authorizer supplies the bearer token for private file URLs. The session
// satisfies this with its single-flight token refresh.
type Authorizer interface {
	EnsureValid(ctx context.Context) (string, error)
}

// HTTPFetcher fetches files over HTTP(S). Private URLs are authorized with a
// bearer token when an Authorizer is configured.
type HTTPFetcher struct {
	client *http.Client
	auth   Authorizer

	// maxSize bounds the response body read; inlined files are small.
	maxSize int64
}

// HTTPFetcherOption configures an HTTPFetcher.
type HTTPFetcherOption func(*HTTPFetcher)

// WithHTTPClient sets the HTTP client. Default: http.DefaultClient.
func WithHTTPClient(client *http.Client) HTTPFetcherOption {
	return func(f *HTTPFetcher) { f.client = client }
}

// WithAuthorizer sets the bearer-token source for private URLs.
func WithAuthorizer(auth Authorizer) HTTPFetcherOption {
	return func(f *HTTPFetcher) { f.auth = auth }
}

// WithMaxSize bounds the fetched body size in bytes. Default: 10 MiB.
func WithMaxSize(n int64) HTTPFetcherOption {
	return func(f *HTTPFetcher) { f.maxSize = n }
}

// NewHTTPFetcher creates an HTTP file fetcher.
func NewHTTPFetcher(opts ...HTTPFetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client:  http.DefaultClient,
		maxSize: 10 << 20,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads the file and inlines it.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Inline, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build file request: %w", err)
	}
	if f.auth != nil {
		tok, err := f.auth.EnsureValid(ctx)
		if err != nil {
			return nil, fmt.Errorf("authorize file request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch file: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize))
	if err != nil {
		return nil, fmt.Errorf("read file body: %w", err)
	}

	return &Inline{
		ContentType: resp.Header.Get("Content-Type"),
		Base64:      base64.StdEncoding.EncodeToString(body),
	}, nil
}
