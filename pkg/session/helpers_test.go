package session_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/narvik-app/narvik/pkg/files"
	"github.com/narvik-app/narvik/pkg/model"
	"github.com/narvik-app/narvik/pkg/session"
	"github.com/narvik-app/narvik/pkg/token"
)

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: testStart}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeTokenTransport counts refresh exchanges and hands out numbered access
// tokens, so tests can tell one network call from two.
type fakeTokenTransport struct {
	mu     sync.Mutex
	calls  int
	badger []bool
	delay  time.Duration
	err    error
}

func (f *fakeTokenTransport) RefreshToken(_ context.Context, _ string, badger bool) (token.Grant, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.badger = append(f.badger, badger)
	delay, err := f.delay, f.err
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return token.Grant{}, err
	}
	return token.Grant{
		AccessToken:            fmt.Sprintf("access-%d", n),
		ExpiresIn:              3600,
		RefreshToken:           fmt.Sprintf("refresh-%d", n),
		RefreshTokenExpiration: testStart.Add(30 * 24 * time.Hour).Unix(),
	}, nil
}

func (f *fakeTokenTransport) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeProfiles serves canned principal and club records.
type fakeProfiles struct {
	mu       sync.Mutex
	self     *model.User
	selfErr  error
	members  map[uuid.UUID]*model.Member
	club     *model.Club
	settings *model.ClubSettings

	selfCalls int
}

func (f *fakeProfiles) FetchSelf(context.Context) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selfCalls++
	if f.selfErr != nil {
		return nil, f.selfErr
	}
	if f.self == nil {
		return nil, fmt.Errorf("no self configured")
	}
	u := *f.self
	return &u, nil
}

func (f *fakeProfiles) FetchMember(_ context.Context, id uuid.UUID) (*model.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.members[id]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeProfiles) FetchClub(context.Context) (*model.Club, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.club == nil {
		return nil, nil
	}
	cp := *f.club
	return &cp, nil
}

func (f *fakeProfiles) FetchClubSettings(_ context.Context, id uuid.UUID) (*model.ClubSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settings == nil || f.settings.UUID != id {
		return nil, nil
	}
	cp := *f.settings
	return &cp, nil
}

// fakeNotifier counts notices.
type fakeNotifier struct {
	mu      sync.Mutex
	notices []string
}

func (f *fakeNotifier) Notify(n session.Notice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, n.Title)
}

func (f *fakeNotifier) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notices)
}

// fakeConfigStore records whether the app config was refreshed authenticated.
type fakeConfigStore struct {
	mu    sync.Mutex
	calls []bool
}

func (f *fakeConfigStore) Refresh(_ context.Context, authenticated bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, authenticated)
	return nil
}

func (f *fakeConfigStore) Calls() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]bool, len(f.calls))
	copy(out, f.calls)
	return out
}

// fakeFetcher serves a fixed inline body for every URL.
type fakeFetcher struct {
	mu   sync.Mutex
	urls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*files.Inline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
	return &files.Inline{ContentType: "image/png", Base64: "aW1n"}, nil
}

func (f *fakeFetcher) URLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.urls))
	copy(out, f.urls)
	return out
}

// freshPair returns a pair whose access token is valid at testStart.
func freshPair() *token.Pair {
	return &token.Pair{
		Access:  &token.Token{Value: "access-0", ExpiresAt: testStart.Add(time.Hour)},
		Refresh: &token.Token{Value: "refresh-0", ExpiresAt: testStart.Add(30 * 24 * time.Hour)},
	}
}

// stalePair returns a pair whose access token expired but whose refresh token
// is still good.
func stalePair() *token.Pair {
	p := freshPair()
	p.Access.ExpiresAt = testStart.Add(-time.Minute)
	return p
}
