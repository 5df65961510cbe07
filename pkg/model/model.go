// Package model defines the club-management entities the session and
// authorization layers read. Shapes follow the backend's JSON-LD documents;
// only the fields consumed by this module are declared.
package model

import (
	"strings"

	"github.com/google/uuid"

	"github.com/narvik-app/narvik/pkg/authz"
)

// UserRole is the account-level role carried by the authenticated principal.
type UserRole string

const (
	UserRoleMember     UserRole = "ROLE_MEMBER"
	UserRoleBadger     UserRole = "ROLE_BADGER"
	UserRoleSuperAdmin UserRole = "ROLE_SUPER_ADMIN"
)

// ClubRole is the role a principal holds within one club context.
type ClubRole string

const (
	ClubRoleMember     ClubRole = "CLUB_MEMBER"
	ClubRoleSupervisor ClubRole = "CLUB_SUPERVISOR"
	ClubRoleAdmin      ClubRole = "CLUB_ADMIN"
)

// User is the authenticated account record (distinct from the club-membership
// profile). A user may be linked to several club profiles.
type User struct {
	IRI   string   `json:"@id,omitempty"`
	Email string   `json:"email"`
	Role  UserRole `json:"role"`

	// Legal terms acceptance. LegalsExpired means a newer version must be
	// accepted before the account is considered compliant.
	LegalsAccepted bool `json:"legalsAccepted"`
	LegalsExpired  bool `json:"legalsExpired"`

	LinkedProfiles []LinkedProfile `json:"linkedProfiles,omitempty"`
}

// ImpersonationPrefix marks synthetic profiles built by a super-admin
// impersonating a club. Such profiles never exist server-side and must not be
// re-matched against the linked-profile list on refresh.
const ImpersonationPrefix = "sc-"

// LinkedProfile is a principal's membership within one specific club.
type LinkedProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`

	Club   Club     `json:"club"`
	Member *Member  `json:"member,omitempty"`
	Role   ClubRole `json:"role"`

	// Permissions are the fine-grained grants for supervisors. Admins do not
	// need them; see authz.Can.
	Permissions []authz.Permission `json:"permissions,omitempty"`
}

// IsSynthetic reports whether the profile was fabricated for club
// impersonation rather than retrieved from the backend.
func (p *LinkedProfile) IsSynthetic() bool {
	return strings.HasPrefix(p.ID, ImpersonationPrefix)
}

// Club is one club record. IRI is the JSON-LD identifier used to build
// club-scoped resource paths.
type Club struct {
	IRI      string        `json:"@id,omitempty"`
	UUID     uuid.UUID     `json:"uuid"`
	Name     string        `json:"name"`
	Settings *ClubSettings `json:"settings,omitempty"`
}

// ClubSettings holds the per-club presentation settings the session loads
// after profile selection.
type ClubSettings struct {
	UUID          uuid.UUID `json:"uuid"`
	Logo          *File     `json:"logo,omitempty"`
	LogoBase64    string    `json:"logoBase64,omitempty"`
	CurrentSeason *Season   `json:"currentSeason,omitempty"`
}

// Member is the club-scoped member record behind a profile.
type Member struct {
	UUID         uuid.UUID `json:"uuid"`
	ProfileImage *File     `json:"profileImage,omitempty"`

	// ProfileImageBase64 is populated client-side from the private file
	// reference; it is never part of the backend document.
	ProfileImageBase64 string `json:"profileImageBase64,omitempty"`
}

// File is a stored file reference. PrivateURL requires an authenticated
// fetch; PublicURL does not.
type File struct {
	PrivateURL string `json:"privateUrl,omitempty"`
	PublicURL  string `json:"publicUrl,omitempty"`
}

// Season is the club season currently in effect.
type Season struct {
	Name string `json:"name"`
}
