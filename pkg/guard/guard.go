// Package guard evaluates navigation requests against the session's role and
// permission state and produces an allow-or-redirect decision.
//
// Every branch resolves to an explicit Decision; the guard never returns
// errors. Path classification is regex based: a path matches a table when any
// of the table's patterns matches, anchored as encoded in the pattern itself.
// The permission table is ORDERED and evaluated first-match-wins, so specific
// patterns (an exact /admin/sales/new) must precede broader catch-alls.
package guard

import (
	"log/slog"
	"net/http"
	"regexp"

	"github.com/narvik-app/narvik/pkg/authz"
	"github.com/narvik-app/narvik/pkg/session"
)

// Decision is the outcome of evaluating one navigation request.
type Decision struct {
	// Allowed is true when navigation proceeds; RedirectTo is then empty.
	Allowed bool

	// RedirectTo is the fallback path for denied requests.
	RedirectTo string

	// StatusCode optionally qualifies the redirect, e.g. 401 for the
	// unauthenticated case. Zero means the transport picks its default.
	StatusCode int
}

// allow is the positive decision.
func allow() Decision {
	return Decision{Allowed: true}
}

// redirect builds a denial pointing at path.
func redirect(path string) Decision {
	return Decision{RedirectTo: path}
}

// PermissionRule binds one path pattern to the permission it requires.
type PermissionRule struct {
	Pattern    string
	Permission authz.Permission
}

type permissionRule struct {
	re         *regexp.Regexp
	permission authz.Permission
}

// Redirect targets.
const (
	loginPath      = "/login"
	homePath       = "/"
	selfPath       = "/self"
	adminPath      = "/admin"
	superAdminPath = "/super-admin"
)

// Default path-classification tables. Mutable only through options.
var (
	defaultAccessibleToAll = []string{
		`^/unsubscribe\?.*`,
	}

	defaultPublicPaths = []string{
		`^/login$`,
		`^/login/badger-quick-login`,
		`^/login/password-reset`,
		`^/login/register`,
		`^/login/bdg/.*`,
	}

	defaultSupervisorOnlyPaths = []string{
		`^/admin$`,
		`^/admin/members`,
		`^/admin/presences`,
		`^/admin/statistics`,
		`^/admin/thrombinoscope`,
	}

	// Ordering is load-bearing: /admin/sales/new and /admin/sales/import
	// must win over the /admin/sales catch-all.
	defaultPermissionRules = []PermissionRule{
		{Pattern: `^/admin/email$`, Permission: authz.PermissionEmailAccess},
		{Pattern: `^/admin/email/new`, Permission: authz.PermissionEmailEdit},
		{Pattern: `^/admin/email/templates`, Permission: authz.PermissionEmailTemplateAccess},

		{Pattern: `^/admin/imports/members`, Permission: authz.PermissionImportMembersAccess},
		{Pattern: `^/admin/imports/photos`, Permission: authz.PermissionImportPhotosAccess},
		{Pattern: `^/admin/imports/presences`, Permission: authz.PermissionImportPresencesAccess},
		{Pattern: `^/admin/imports/cerbere`, Permission: authz.PermissionImportPresencesAccess},

		{Pattern: `^/admin/sales/new`, Permission: authz.PermissionSaleHistoryEdit},
		{Pattern: `^/admin/sales/import`, Permission: authz.PermissionSaleImportEdit},
		{Pattern: `^/admin/sales/inventory`, Permission: authz.PermissionSaleInventoryAccess},
		{Pattern: `^/admin/sales/categories`, Permission: authz.PermissionSaleCategoriesAccess},
		{Pattern: `^/admin/sales/payment-modes`, Permission: authz.PermissionSalePaymentModesAccess},
		{Pattern: `^/admin/sales`, Permission: authz.PermissionSaleHistoryAccess},
	}

	superAdminPrefix = []string{`^/super-admin`}
	adminPrefix      = []string{`^/admin`}
)

// Guard evaluates navigation requests for one session.
type Guard struct {
	session *session.Session
	logger  *slog.Logger

	accessibleToAll []*regexp.Regexp
	publicPaths     []*regexp.Regexp
	supervisorOnly  []*regexp.Regexp
	permissionRules []permissionRule
	superAdminOnly  []*regexp.Regexp
	adminArea       []*regexp.Regexp
}

// Option configures a Guard.
type Option func(*config)

type config struct {
	accessibleToAll []string
	publicPaths     []string
	supervisorOnly  []string
	permissionRules []PermissionRule
	logger          *slog.Logger
}

// WithAccessibleToAll replaces the accessible-to-all table.
func WithAccessibleToAll(patterns ...string) Option {
	return func(c *config) { c.accessibleToAll = patterns }
}

// WithPublicPaths replaces the public-path table.
func WithPublicPaths(patterns ...string) Option {
	return func(c *config) { c.publicPaths = patterns }
}

// WithSupervisorOnlyPaths replaces the supervisor-only table.
func WithSupervisorOnlyPaths(patterns ...string) Option {
	return func(c *config) { c.supervisorOnly = patterns }
}

// WithPermissionRules replaces the ordered permission table. Order is
// preserved and behaviorally significant.
func WithPermissionRules(rules ...PermissionRule) Option {
	return func(c *config) { c.permissionRules = rules }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// New compiles the classification tables for the given session.
func New(sess *session.Session, opts ...Option) (*Guard, error) {
	cfg := &config{
		accessibleToAll: defaultAccessibleToAll,
		publicPaths:     defaultPublicPaths,
		supervisorOnly:  defaultSupervisorOnlyPaths,
		permissionRules: defaultPermissionRules,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	g := &Guard{session: sess, logger: cfg.logger}

	var err error
	if g.accessibleToAll, err = compileAll(cfg.accessibleToAll); err != nil {
		return nil, err
	}
	if g.publicPaths, err = compileAll(cfg.publicPaths); err != nil {
		return nil, err
	}
	if g.supervisorOnly, err = compileAll(cfg.supervisorOnly); err != nil {
		return nil, err
	}
	if g.superAdminOnly, err = compileAll(superAdminPrefix); err != nil {
		return nil, err
	}
	if g.adminArea, err = compileAll(adminPrefix); err != nil {
		return nil, err
	}
	g.permissionRules = make([]permissionRule, 0, len(cfg.permissionRules))
	for _, rule := range cfg.permissionRules {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, err
		}
		g.permissionRules = append(g.permissionRules, permissionRule{re: re, permission: rule.Permission})
	}
	return g, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

func matchAny(res []*regexp.Regexp, path string) bool {
	for _, re := range res {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// Evaluate classifies fullPath (path plus query) against the current session
// state. Branches are checked in precedence order; the first match decides.
func (g *Guard) Evaluate(fullPath string) Decision {
	snap := g.session.Snapshot()

	// Accessible to everyone, logged in or not.
	if matchAny(g.accessibleToAll, fullPath) {
		return allow()
	}

	// Public pages bounce authenticated users back home.
	if matchAny(g.publicPaths, fullPath) {
		if snap.IsLogged() {
			return redirect(homePath)
		}
		return allow()
	}

	// Everything below requires a session.
	if !snap.IsLogged() {
		d := redirect(loginPath)
		d.StatusCode = http.StatusUnauthorized
		return d
	}

	if fullPath == homePath {
		if snap.IsSuperAdmin() && !snap.HasProfile {
			return redirect(superAdminPath)
		}
		if !snap.HasSupervisorRole() && !snap.IsBadger() {
			return redirect(selfPath)
		}
	}

	if matchAny(g.superAdminOnly, fullPath) {
		if !snap.IsSuperAdmin() {
			return redirect(homePath)
		}
		return allow()
	}

	if matchAny(g.adminArea, fullPath) {
		if !snap.HasSupervisorRole() {
			return redirect(selfPath)
		}
		if snap.IsAdmin() {
			return allow()
		}
		return g.evaluateSupervisor(fullPath, snap)
	}

	return allow()
}

// evaluateSupervisor gates a plain supervisor inside the admin area: the
// supervisor-only table always passes, then the ordered permission table
// applies first-match-wins, and anything unmatched is denied.
func (g *Guard) evaluateSupervisor(fullPath string, snap authz.Snapshot) Decision {
	if matchAny(g.supervisorOnly, fullPath) {
		return allow()
	}

	for _, rule := range g.permissionRules {
		if !rule.re.MatchString(fullPath) {
			continue
		}
		if snap.Can(rule.permission) {
			return allow()
		}
		g.logger.Debug("permission denied",
			"path", fullPath,
			"permission", string(rule.permission),
		)
		return redirect(adminPath)
	}

	// Deny by default: supervisors only reach classified paths.
	return redirect(adminPath)
}
