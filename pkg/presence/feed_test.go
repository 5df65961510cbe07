package presence_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/narvik-app/narvik/pkg/presence"
)

func entry(iri, name string) presence.ExternalPresence {
	return presence.ExternalPresence{IRI: iri, FullName: name}
}

func TestApply_CreatePrepends(t *testing.T) {
	feed := presence.NewFeed("ws://unused", nil)
	feed.SetList([]presence.ExternalPresence{entry("/p/1", "First")})

	feed.Apply(presence.Event{Type: "create", Presence: entry("/p/2", "Second")})

	list := feed.Snapshot()
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].IRI != "/p/2" {
		t.Errorf("newest entry = %q, want the created one first", list[0].IRI)
	}
}

func TestApply_UpdateByIRI(t *testing.T) {
	feed := presence.NewFeed("ws://unused", nil)
	feed.SetList([]presence.ExternalPresence{entry("/p/1", "Old Name"), entry("/p/2", "Other")})

	feed.Apply(presence.Event{Type: "update", Presence: entry("/p/1", "New Name")})

	list := feed.Snapshot()
	if list[0].FullName != "New Name" {
		t.Errorf("name = %q, want updated", list[0].FullName)
	}
	if list[1].FullName != "Other" {
		t.Errorf("unrelated entry touched: %q", list[1].FullName)
	}

	// Updates for unknown entries are dropped, not inserted.
	feed.Apply(presence.Event{Type: "update", Presence: entry("/p/9", "Ghost")})
	if got := len(feed.Snapshot()); got != 2 {
		t.Errorf("len = %d after unknown update, want 2", got)
	}
}

func TestApply_DeleteFilters(t *testing.T) {
	feed := presence.NewFeed("ws://unused", nil)
	feed.SetList([]presence.ExternalPresence{entry("/p/1", "A"), entry("/p/2", "B"), entry("/p/3", "C")})

	feed.Apply(presence.Event{Type: "delete", Presence: entry("/p/2", "")})

	list := feed.Snapshot()
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	for _, p := range list {
		if p.IRI == "/p/2" {
			t.Error("deleted entry still present")
		}
	}
}

func TestApply_UnknownTypeIgnored(t *testing.T) {
	feed := presence.NewFeed("ws://unused", nil)
	feed.SetList([]presence.ExternalPresence{entry("/p/1", "A")})

	feed.Apply(presence.Event{Type: "mystery", Presence: entry("/p/2", "B")})

	if got := len(feed.Snapshot()); got != 1 {
		t.Errorf("len = %d, want list untouched", got)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	feed := presence.NewFeed("ws://unused", nil)
	feed.SetList([]presence.ExternalPresence{entry("/p/1", "A")})

	snap := feed.Snapshot()
	snap[0].FullName = "mutated"

	if feed.Snapshot()[0].FullName != "A" {
		t.Error("snapshot mutation leaked into the feed")
	}
}

type staticTokenSource string

func (s staticTokenSource) EnsureValid(context.Context) (string, error) {
	return string(s), nil
}

type deadTokenSource struct{}

func (deadTokenSource) EnsureValid(context.Context) (string, error) {
	return "", errors.New("session expired")
}

func TestRun_StopsWhenTokenSourceFails(t *testing.T) {
	feed := presence.NewFeed("ws://unused", deadTokenSource{},
		presence.WithBackoff(time.Millisecond, 2*time.Millisecond))

	done := make(chan error, 1)
	go func() {
		done <- feed.Run(context.Background())
	}()

	select {
	case err := <-done:
		if !errors.Is(err, presence.ErrTokenSource) {
			t.Errorf("Run = %v, want ErrTokenSource", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run kept reconnecting with a dead token source")
	}
}

func TestRun_BackoffResetsAfterConnection(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var mu sync.Mutex
	dials := 0

	// Every connection succeeds and is dropped immediately. With the backoff
	// resetting on each successful dial, reconnects keep the minimum cadence
	// instead of doubling toward the cap.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		dials++
		mu.Unlock()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	feed := presence.NewFeed(wsURL, nil,
		presence.WithBackoff(50*time.Millisecond, 10*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	feed.Run(ctx)

	mu.Lock()
	defer mu.Unlock()
	// A doubling backoff from 50ms reaches only ~6 dials in two seconds.
	if dials < 10 {
		t.Errorf("dials = %d, want at least 10 with the backoff resetting", dials)
	}
}

func TestFeedConsumesEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		events := []presence.Event{
			{Type: "create", Presence: entry("/p/1", "First")},
			{Type: "create", Presence: entry("/p/2", "Second")},
			{Type: "delete", Presence: entry("/p/1", "")},
		}
		for _, ev := range events {
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	feed := presence.NewFeed(wsURL, staticTokenSource("tok-ws"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go feed.Run(ctx)

	deadline := time.After(2 * time.Second)
	for {
		list := feed.Snapshot()
		if len(list) == 1 && list[0].IRI == "/p/2" {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("feed never converged, snapshot = %+v", list)
		case <-time.After(10 * time.Millisecond):
		}
	}

	if gotAuth != "Bearer tok-ws" {
		t.Errorf("handshake authorization = %q", gotAuth)
	}
}
