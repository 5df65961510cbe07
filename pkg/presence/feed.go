// Package presence maintains a live view of today's external presences (the
// walk-in visitors tracked at the club counter) from the backend's WebSocket
// feed. Events mutate a local list the UI can snapshot at any time.
package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrTokenSource is returned by Run when the bearer token could not be
// obtained. The session behind the token source has been logged out; the feed
// stops instead of reconnecting.
var ErrTokenSource = errors.New("presence feed token unavailable")

// ExternalPresence is one walk-in presence entry. IRI is the JSON-LD
// identifier events correlate on.
type ExternalPresence struct {
	IRI       string          `json:"@id"`
	FullName  string          `json:"fullName,omitempty"`
	CreatedAt time.Time       `json:"createdAt,omitempty"`
	Raw       json.RawMessage `json:"-"`
}

// Event is one feed message.
type Event struct {
	// Type is one of "create", "update", "delete".
	Type     string           `json:"type"`
	Presence ExternalPresence `json:"presence"`
}

// TokenSource supplies the bearer token for the feed handshake. The session
// satisfies this; a reconnect after token expiry picks up the refreshed
// token automatically.
type TokenSource interface {
	EnsureValid(ctx context.Context) (string, error)
}

// Feed subscribes to the live external-presence stream.
type Feed struct {
	url    string
	source TokenSource
	dialer *websocket.Dialer
	logger *slog.Logger

	backoffMin time.Duration
	backoffMax time.Duration

	mu   sync.RWMutex
	list []ExternalPresence
}

// FeedOption configures a Feed.
type FeedOption func(*Feed)

// WithDialer overrides the WebSocket dialer.
func WithDialer(d *websocket.Dialer) FeedOption {
	return func(f *Feed) { f.dialer = d }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) FeedOption {
	return func(f *Feed) { f.logger = logger }
}

// WithBackoff sets the reconnect backoff bounds.
func WithBackoff(min, max time.Duration) FeedOption {
	return func(f *Feed) {
		f.backoffMin = min
		f.backoffMax = max
	}
}

// NewFeed creates a feed for the given ws:// or wss:// URL.
func NewFeed(url string, source TokenSource, opts ...FeedOption) *Feed {
	f := &Feed{
		url:        url,
		source:     source,
		dialer:     websocket.DefaultDialer,
		backoffMin: time.Second,
		backoffMax: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// Run connects and consumes events until ctx is cancelled, reconnecting with
// exponential backoff on dial and read failures. The backoff resets once a
// connection is established. A token-lifecycle failure ends the run with
// ErrTokenSource: there is no point reconnecting a session that has been
// logged out.
func (f *Feed) Run(ctx context.Context) error {
	backoff := f.backoffMin
	for {
		connected, err := f.connectAndConsume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrTokenSource) {
			return err
		}
		if err != nil {
			f.logger.Warn("presence feed disconnected", "error", err)
		}
		if connected {
			backoff = f.backoffMin
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > f.backoffMax {
			backoff = f.backoffMax
		}
	}
}

// connectAndConsume reports whether the dial succeeded, so the caller can
// reset its backoff after a healthy connection.
func (f *Feed) connectAndConsume(ctx context.Context) (connected bool, err error) {
	header := http.Header{}
	if f.source != nil {
		tok, err := f.source.EnsureValid(ctx)
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrTokenSource, err)
		}
		header.Set("Authorization", "Bearer "+tok)
	}

	conn, resp, err := f.dialer.DialContext(ctx, f.url, header)
	if err != nil {
		return false, err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// Unblock ReadJSON when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var event Event
		if err := conn.ReadJSON(&event); err != nil {
			return true, err
		}
		f.Apply(event)
	}
}

// Apply folds one event into the local list. New entries are prepended, the
// way the counter UI shows the latest arrival first.
func (f *Feed) Apply(event Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch event.Type {
	case "create":
		f.list = append([]ExternalPresence{event.Presence}, f.list...)
	case "update":
		for i := range f.list {
			if f.list[i].IRI == event.Presence.IRI {
				f.list[i] = event.Presence
				return
			}
		}
	case "delete":
		kept := f.list[:0]
		for _, p := range f.list {
			if p.IRI != event.Presence.IRI {
				kept = append(kept, p)
			}
		}
		f.list = kept
	default:
		f.logger.Debug("ignoring unknown presence event", "type", event.Type)
	}
}

// SetList replaces the list wholesale, e.g. from the initial REST fetch
// before events start streaming.
func (f *Feed) SetList(list []ExternalPresence) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.list = append([]ExternalPresence(nil), list...)
}

// Snapshot returns a copy of the current list.
func (f *Feed) Snapshot() []ExternalPresence {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]ExternalPresence(nil), f.list...)
}
