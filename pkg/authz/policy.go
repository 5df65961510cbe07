// Package authz decides whether a principal and its selected club profile
// satisfy a role or permission requirement. Decisions are pure functions over
// a Snapshot; the package holds no state and performs no I/O.
package authz

// Role orders the effective authority of a principal within the selected
// club context. Each level satisfies every check the levels below it satisfy.
type Role int

const (
	RoleAnonymous Role = iota
	RoleMember
	RoleSupervisor
	RoleAdmin
	RoleSuperAdmin
)

// String returns the role name for logs.
func (r Role) String() string {
	switch r {
	case RoleAnonymous:
		return "anonymous"
	case RoleMember:
		return "member"
	case RoleSupervisor:
		return "supervisor"
	case RoleAdmin:
		return "admin"
	case RoleSuperAdmin:
		return "super-admin"
	}
	return "unknown"
}

// Snapshot is an immutable view of the session handed to the policy. The
// session layer builds it; route guards and handlers consume it.
type Snapshot struct {
	// LoggedIn is true iff a token pair with a refresh component exists.
	// Access-token freshness is irrelevant: an expired access token can
	// still be refreshed.
	LoggedIn bool

	// Role is the effective role: super-admin from the account record,
	// otherwise the selected profile's club role, otherwise member.
	Role Role

	// Badger marks the kiosk/device credential audience.
	Badger bool

	// HasProfile is true when a club profile is selected.
	HasProfile bool

	// Permissions are the selected profile's fine-grained grants.
	Permissions []Permission
}

// IsLogged reports whether a refreshable session exists.
func (s Snapshot) IsLogged() bool {
	return s.LoggedIn
}

// IsSuperAdmin reports whether the principal is a platform super-admin.
func (s Snapshot) IsSuperAdmin() bool {
	return s.LoggedIn && s.Role == RoleSuperAdmin
}

// IsAdmin reports whether the principal administers the selected club.
// Super-admins satisfy every admin check.
func (s Snapshot) IsAdmin() bool {
	return s.LoggedIn && s.Role >= RoleAdmin
}

// HasSupervisorRole reports whether the principal holds at least supervisor
// authority in the selected club. Admins and super-admins qualify.
func (s Snapshot) HasSupervisorRole() bool {
	return s.LoggedIn && s.Role >= RoleSupervisor
}

// IsBadger reports whether the session belongs to the secondary kiosk
// credential audience.
func (s Snapshot) IsBadger() bool {
	return s.LoggedIn && s.Badger
}

// Can reports whether the principal satisfies the permission requirement.
// Admins and super-admins trivially satisfy every permission. Supervisors
// need a direct grant, or the EDIT grant of the same feature when an ACCESS
// permission is queried.
func (s Snapshot) Can(p Permission) bool {
	if !s.LoggedIn {
		return false
	}
	if s.Role >= RoleAdmin {
		return true
	}
	for _, granted := range s.Permissions {
		if granted.Implies(p) {
			return true
		}
	}
	return false
}
