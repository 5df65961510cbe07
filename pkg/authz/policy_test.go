package authz_test

import (
	"testing"

	"github.com/narvik-app/narvik/pkg/authz"
)

func TestEditImpliesAccessForEveryFeature(t *testing.T) {
	for _, f := range authz.Features() {
		edit, access := authz.EditOf(f), authz.AccessOf(f)

		if !edit.Implies(access) {
			t.Errorf("%s must imply %s", edit, access)
		}
		if access.Implies(edit) {
			t.Errorf("%s must not imply %s", access, edit)
		}
		if !edit.Implies(edit) || !access.Implies(access) {
			t.Errorf("%s permissions must imply themselves", f)
		}
	}
}

func TestImplies_NeverCrossesFeatures(t *testing.T) {
	features := authz.Features()
	for _, a := range features {
		for _, b := range features {
			if a == b {
				continue
			}
			if authz.EditOf(a).Implies(authz.AccessOf(b)) {
				t.Errorf("%s must not imply %s", authz.EditOf(a), authz.AccessOf(b))
			}
		}
	}
}

func TestPermissionFeature(t *testing.T) {
	if got := authz.PermissionEmailEdit.Feature(); got != authz.FeatureEmail {
		t.Errorf("feature = %q, want %q", got, authz.FeatureEmail)
	}
	if got := authz.PermissionSaleHistoryAccess.Feature(); got != authz.FeatureSaleHistory {
		t.Errorf("feature = %q, want %q", got, authz.FeatureSaleHistory)
	}
	if got := authz.Permission("SOMETHING_ELSE").Feature(); got != "" {
		t.Errorf("feature = %q, want empty for unknown convention", got)
	}
}

func TestCan(t *testing.T) {
	supervisor := authz.Snapshot{
		LoggedIn:    true,
		Role:        authz.RoleSupervisor,
		Permissions: []authz.Permission{authz.PermissionEmailEdit},
	}

	if !supervisor.Can(authz.PermissionEmailEdit) {
		t.Error("direct grant denied")
	}
	if !supervisor.Can(authz.PermissionEmailAccess) {
		t.Error("EDIT grant must satisfy the ACCESS check of the same feature")
	}
	if supervisor.Can(authz.PermissionSaleHistoryAccess) {
		t.Error("ungranted feature allowed")
	}

	admin := authz.Snapshot{LoggedIn: true, Role: authz.RoleAdmin}
	for _, p := range authz.AllPermissions() {
		if !admin.Can(p) {
			t.Errorf("admin denied %s", p)
		}
	}

	anonymous := authz.Snapshot{Permissions: []authz.Permission{authz.PermissionEmailEdit}}
	if anonymous.Can(authz.PermissionEmailEdit) {
		t.Error("permissions without a session must not grant anything")
	}
}

func TestRoleChecks(t *testing.T) {
	tests := []struct {
		role          authz.Role
		isSuper       bool
		isAdmin       bool
		hasSupervisor bool
	}{
		{authz.RoleMember, false, false, false},
		{authz.RoleSupervisor, false, false, true},
		{authz.RoleAdmin, false, true, true},
		{authz.RoleSuperAdmin, true, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.role.String(), func(t *testing.T) {
			snap := authz.Snapshot{LoggedIn: true, Role: tt.role}
			if got := snap.IsSuperAdmin(); got != tt.isSuper {
				t.Errorf("IsSuperAdmin = %v, want %v", got, tt.isSuper)
			}
			if got := snap.IsAdmin(); got != tt.isAdmin {
				t.Errorf("IsAdmin = %v, want %v", got, tt.isAdmin)
			}
			if got := snap.HasSupervisorRole(); got != tt.hasSupervisor {
				t.Errorf("HasSupervisorRole = %v, want %v", got, tt.hasSupervisor)
			}
		})
	}

	loggedOut := authz.Snapshot{Role: authz.RoleSuperAdmin}
	if loggedOut.IsSuperAdmin() || loggedOut.IsAdmin() || loggedOut.HasSupervisorRole() {
		t.Error("role checks must all fail without a session")
	}
}

func TestAllPermissionsCoversEveryFeature(t *testing.T) {
	all := authz.AllPermissions()
	want := len(authz.Features()) * 2
	if len(all) != want {
		t.Fatalf("len = %d, want %d", len(all), want)
	}
	seen := make(map[authz.Permission]bool, len(all))
	for _, p := range all {
		if seen[p] {
			t.Errorf("duplicate permission %s", p)
		}
		seen[p] = true
		if p.Feature() == "" {
			t.Errorf("permission %s does not follow the naming convention", p)
		}
	}
}
