// Package session owns the authenticated principal, the selected club
// profile, and the JWT token pair, and mediates every lifecycle transition:
// login, coalesced token refresh, impersonation, and logout.
//
// One Session is constructed per process and passed by reference to the
// route guard, transports, and handlers. There is no package-level singleton.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/narvik-app/narvik/pkg/authz"
	"github.com/narvik-app/narvik/pkg/files"
	"github.com/narvik-app/narvik/pkg/model"
	"github.com/narvik-app/narvik/pkg/navigate"
	"github.com/narvik-app/narvik/pkg/persist"
	"github.com/narvik-app/narvik/pkg/token"
)

// Route targets used by lifecycle side effects.
const (
	loginPath      = "/login"
	homePath       = "/"
	adminPath      = "/admin"
	superAdminPath = "/super-admin"
)

// DefaultLogoutCooldown absorbs near-simultaneous logout triggers, e.g. a
// burst of failed requests all forcing a teardown at once.
const DefaultLogoutCooldown = 500 * time.Millisecond

// TokenRefreshTransport exchanges a refresh token for a new grant. The badger
// flag selects the secondary (kiosk) credential audience; the two audiences
// are never mixed.
type TokenRefreshTransport interface {
	RefreshToken(ctx context.Context, refreshToken string, badger bool) (token.Grant, error)
}

// ProfileTransport reads the principal and its club context from the backend.
type ProfileTransport interface {
	FetchSelf(ctx context.Context) (*model.User, error)
	FetchMember(ctx context.Context, id uuid.UUID) (*model.Member, error)
	FetchClub(ctx context.Context) (*model.Club, error)
	FetchClubSettings(ctx context.Context, id uuid.UUID) (*model.ClubSettings, error)
}

// Notice is a user-facing message emitted by lifecycle transitions.
type Notice struct {
	Title       string
	Description string
	IsError     bool
}

// Notifier shows a notice to the user. The UI shell supplies the real
// implementation.
type Notifier interface {
	Notify(n Notice)
}

// ConfigStore refreshes the global application configuration. It is
// re-fetched on login and logout because parts of it depend on the
// authenticated state.
type ConfigStore interface {
	Refresh(ctx context.Context, authenticated bool) error
}

// Session is the per-process session state. All methods are safe for
// concurrent use.
type Session struct {
	mu sync.Mutex

	user    *model.User
	member  *model.Member
	profile *model.LinkedProfile
	pair    *token.Pair

	impersonating     bool
	impersonatedEmail string

	// inflight is the single-flight refresh handle; see refresh.go.
	inflight *refreshCall

	// lastLogout opens the cooldown window during which further logout
	// calls are no-ops.
	lastLogout time.Time

	tokens   TokenRefreshTransport
	profiles ProfileTransport
	fetcher  files.Fetcher
	nav      navigate.Navigator
	notifier Notifier
	config   ConfigStore
	store    persist.Store
	storeKey string

	cooldown time.Duration
	clock    func() time.Time
	logger   *slog.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithTokenTransport sets the token refresh transport.
func WithTokenTransport(t TokenRefreshTransport) Option {
	return func(s *Session) { s.tokens = t }
}

// WithProfileTransport sets the principal/profile read transport.
func WithProfileTransport(t ProfileTransport) Option {
	return func(s *Session) { s.profiles = t }
}

// WithFileFetcher sets the fetcher used to inline profile images and club
// logos.
func WithFileFetcher(f files.Fetcher) Option {
	return func(s *Session) { s.fetcher = f }
}

// WithNavigator sets the navigation side-effect target.
func WithNavigator(n navigate.Navigator) Option {
	return func(s *Session) { s.nav = n }
}

// WithNotifier sets the user-facing notice target.
func WithNotifier(n Notifier) Option {
	return func(s *Session) { s.notifier = n }
}

// WithConfigStore sets the global app-config collaborator.
func WithConfigStore(c ConfigStore) Option {
	return func(s *Session) { s.config = c }
}

// WithStore sets the persistence backend for the restart-surviving subset.
func WithStore(store persist.Store, key string) Option {
	return func(s *Session) {
		s.store = store
		s.storeKey = key
	}
}

// WithLogoutCooldown overrides the logout cooldown window.
func WithLogoutCooldown(d time.Duration) Option {
	return func(s *Session) { s.cooldown = d }
}

// WithClock overrides the time source. For tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Session) { s.clock = clock }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// New creates an empty (anonymous) session.
func New(opts ...Option) *Session {
	s := &Session{
		storeKey: "self",
		cooldown: DefaultLogoutCooldown,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// SetFileFetcher wires the file fetcher after construction. The fetcher
// usually authorizes with the session itself, which makes it impossible to
// pass at New time.
func (s *Session) SetFileFetcher(f files.Fetcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetcher = f
}

// SetPair installs a token pair, e.g. after a login exchange.
func (s *Session) SetPair(ctx context.Context, pair *token.Pair) {
	s.mu.Lock()
	s.pair = pair
	s.mu.Unlock()
	s.persistState(ctx)
}

// SetPairFromGrant validates a grant response and installs the resulting
// pair. A malformed grant is rejected without touching the current pair.
func (s *Session) SetPairFromGrant(ctx context.Context, g token.Grant, badger bool) (*token.Pair, error) {
	pair, err := token.NewPairFromGrant(g, badger, s.clock())
	if err != nil {
		return nil, err
	}
	s.SetPair(ctx, pair)
	return pair, nil
}

// Pair returns the current token pair, or nil.
func (s *Session) Pair() *token.Pair {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pair
}

// User returns the authenticated principal, or nil.
func (s *Session) User() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Member returns the member record behind the selected profile, or nil.
func (s *Session) Member() *model.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.member
}

// SelectedProfile returns the active club-membership context, or nil.
func (s *Session) SelectedProfile() *model.LinkedProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// IsImpersonating reports whether a super-admin is acting as another club or
// user.
func (s *Session) IsImpersonating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.impersonating
}

// ImpersonatedUser returns the email of the impersonated account, or "".
func (s *Session) ImpersonatedUser() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.impersonatedEmail
}

// Snapshot builds the immutable authorization view of the current state.
func (s *Session) Snapshot() authz.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() authz.Snapshot {
	snap := authz.Snapshot{LoggedIn: s.pair.HasRefresh()}
	if !snap.LoggedIn {
		return snap
	}
	snap.Badger = s.pair.Badger || (s.user != nil && s.user.Role == model.UserRoleBadger)
	snap.HasProfile = s.profile != nil

	switch {
	case s.user != nil && s.user.Role == model.UserRoleSuperAdmin:
		snap.Role = authz.RoleSuperAdmin
	case s.profile != nil:
		switch s.profile.Role {
		case model.ClubRoleAdmin:
			snap.Role = authz.RoleAdmin
		case model.ClubRoleSupervisor:
			snap.Role = authz.RoleSupervisor
		default:
			snap.Role = authz.RoleMember
		}
	default:
		snap.Role = authz.RoleMember
	}

	if s.profile != nil && len(s.profile.Permissions) > 0 {
		snap.Permissions = append([]authz.Permission(nil), s.profile.Permissions...)
	}
	return snap
}

// IsLegalsAccepted reports whether the account accepted the current legal
// terms. Anonymous sessions and badger (kiosk) sessions are always compliant.
func (s *Session) IsLegalsAccepted() bool {
	snap := s.Snapshot()
	if !snap.IsLogged() || snap.IsBadger() {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil || !s.user.LegalsAccepted {
		return false
	}
	return !s.user.LegalsExpired
}
