package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/narvik-app/narvik/pkg/model"
	"github.com/narvik-app/narvik/pkg/navigate"
)

// Refresh fetches the current principal and rebuilds the selected profile
// context.
//
// Profile selection: when nothing is selected the first linked profile wins;
// a synthetic impersonation profile is kept untouched; otherwise the previous
// selection is re-matched by id in the fresh list, falling back to the first
// profile when it disappeared.
//
// The selected club's full record, settings, and logo are refreshed in a
// detached goroutine: Refresh returns without waiting for them. Callers that
// need the fully populated club must call RefreshSelectedClub themselves.
func (s *Session) Refresh(ctx context.Context) error {
	if s.profiles == nil {
		return fmt.Errorf("no profile transport configured")
	}
	user, err := s.profiles.FetchSelf(ctx)
	if err != nil {
		return fmt.Errorf("fetch self: %w", err)
	}

	s.mu.Lock()
	s.user = user

	if len(user.LinkedProfiles) == 0 {
		s.mu.Unlock()
		s.refreshAppConfig(ctx, true)
		return nil
	}

	switch {
	case s.profile == nil:
		p := user.LinkedProfiles[0]
		s.profile = &p
	case s.profile.IsSynthetic():
		// Club impersonation in progress; the synthetic profile has no
		// server-side counterpart to re-match.
	default:
		previous := s.profile.ID
		matched := false
		for i := range user.LinkedProfiles {
			if user.LinkedProfiles[i].ID == previous {
				p := user.LinkedProfiles[i]
				s.profile = &p
				matched = true
				break
			}
		}
		if !matched {
			p := user.LinkedProfiles[0]
			s.profile = &p
		}
	}

	s.member = s.profile.Member
	var memberID uuid.UUID
	if s.member != nil {
		memberID = s.member.UUID
	}
	s.mu.Unlock()

	// Club, settings, and logo refresh must not block the caller.
	go func() {
		bg := context.WithoutCancel(ctx)
		if err := s.RefreshSelectedClub(bg); err != nil {
			s.logger.Warn("club refresh failed", "error", err)
		}
	}()

	if memberID != uuid.Nil {
		s.refreshMember(ctx, memberID)
	}

	s.refreshAppConfig(ctx, true)
	s.persistState(ctx)
	return nil
}

// refreshMember re-fetches the member record behind the profile and inlines
// its photo when a private file reference exists.
func (s *Session) refreshMember(ctx context.Context, id uuid.UUID) {
	member, err := s.profiles.FetchMember(ctx, id)
	if err != nil || member == nil {
		if err != nil {
			s.logger.Warn("member refresh failed", "member", id, "error", err)
		}
		return
	}

	if s.fetcher != nil && member.ProfileImage != nil && member.ProfileImage.PrivateURL != "" {
		inline, err := s.fetcher.Fetch(ctx, member.ProfileImage.PrivateURL)
		if err != nil {
			s.logger.Warn("profile image load failed", "error", err)
		} else if inline != nil {
			member.ProfileImageBase64 = inline.Base64
		}
	}

	s.mu.Lock()
	s.member = member
	if s.profile != nil {
		s.profile.Member = member
	}
	s.mu.Unlock()
}

// RefreshSelectedClub re-fetches the selected club's full record, then its
// settings. No-op when no profile is selected.
func (s *Session) RefreshSelectedClub(ctx context.Context) error {
	s.mu.Lock()
	if s.profile == nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	club, err := s.profiles.FetchClub(ctx)
	if err != nil {
		return fmt.Errorf("fetch club: %w", err)
	}
	if club == nil {
		return nil
	}

	s.mu.Lock()
	if s.profile == nil {
		s.mu.Unlock()
		return nil
	}
	s.profile.Club = *club
	s.mu.Unlock()

	return s.RefreshSelectedClubSettings(ctx)
}

// RefreshSelectedClubSettings re-fetches the selected club's settings and
// inlines the club logo. No-op when the club carries no settings reference.
func (s *Session) RefreshSelectedClubSettings(ctx context.Context) error {
	s.mu.Lock()
	if s.profile == nil || s.profile.Club.Settings == nil || s.profile.Club.Settings.UUID == uuid.Nil {
		s.mu.Unlock()
		return nil
	}
	settingsID := s.profile.Club.Settings.UUID
	s.mu.Unlock()

	settings, err := s.profiles.FetchClubSettings(ctx, settingsID)
	if err != nil {
		return fmt.Errorf("fetch club settings: %w", err)
	}
	if settings == nil {
		return nil
	}

	if s.fetcher != nil && settings.Logo != nil && settings.Logo.PublicURL != "" {
		inline, err := s.fetcher.Fetch(ctx, settings.Logo.PublicURL)
		if err != nil {
			s.logger.Warn("club logo load failed", "error", err)
		} else if inline != nil {
			settings.LogoBase64 = inline.Base64
		}
	}

	s.mu.Lock()
	if s.profile != nil {
		s.profile.Club.Settings = settings
	}
	s.mu.Unlock()
	return nil
}

// ImpersonateClub makes a super-admin act as an admin of the given club
// through a synthetic profile. Returns false for anyone else.
func (s *Session) ImpersonateClub(ctx context.Context, club model.Club) bool {
	if !s.Snapshot().IsSuperAdmin() {
		return false
	}

	fake := model.LinkedProfile{
		ID:          model.ImpersonationPrefix + club.UUID.String(),
		DisplayName: club.Name,
		Club:        club,
		Role:        model.ClubRoleAdmin,
	}

	s.mu.Lock()
	s.profile = &fake
	s.mu.Unlock()

	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("refresh during club impersonation failed", "error", err)
	}
	if err := s.RefreshSelectedClubSettings(ctx); err != nil {
		s.logger.Warn("settings refresh during club impersonation failed", "error", err)
	}

	s.mu.Lock()
	s.impersonating = true
	s.mu.Unlock()
	s.persistState(ctx)

	return true
}

// ImpersonateUser makes a super-admin act as the given user. The profile and
// member context are rebuilt from the target's linked profiles, and the
// caller is sent to the home page. Returns false for anyone else.
func (s *Session) ImpersonateUser(ctx context.Context, user *model.User) bool {
	if !s.Snapshot().IsSuperAdmin() {
		return false
	}

	s.mu.Lock()
	s.profile = nil
	s.member = nil
	s.user = user
	s.impersonatedEmail = user.Email
	s.mu.Unlock()

	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("refresh during user impersonation failed", "error", err)
	}

	s.mu.Lock()
	s.impersonating = true
	s.mu.Unlock()
	s.persistState(ctx)

	if s.nav != nil {
		s.nav.Navigate(homePath)
	}
	return true
}

// StopImpersonation drops the impersonated context, restores the real
// principal's profile, and lands on the super-admin or admin page.
func (s *Session) StopImpersonation(ctx context.Context) {
	s.mu.Lock()
	s.profile = nil
	s.impersonatedEmail = ""
	s.impersonating = false
	s.mu.Unlock()

	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("refresh after stopping impersonation failed", "error", err)
	}
	s.persistState(ctx)

	if s.nav == nil {
		return
	}
	if s.Snapshot().IsSuperAdmin() {
		s.nav.Navigate(superAdminPath)
	} else {
		s.nav.Navigate(adminPath)
	}
}

// Logout tears the session down: token pair, principal, member, and profile
// are cleared, the persisted subset is deleted, and the global app config is
// re-fetched unauthenticated.
//
// Logout is idempotent and re-entrant-safe: a second call within the cooldown
// window is a no-op, so a burst of failed requests produces exactly one
// teardown and at most one notice/navigation. When notify is true the user
// sees a notice and lands on the login page; silent callers (token lifecycle
// failures) leave navigation to the caller.
func (s *Session) Logout(ctx context.Context, notify bool) {
	s.mu.Lock()
	now := s.clock()
	if !s.lastLogout.IsZero() && now.Sub(s.lastLogout) < s.cooldown {
		s.mu.Unlock()
		return
	}
	if s.pair == nil && s.user == nil && s.member == nil {
		s.mu.Unlock()
		return
	}
	s.lastLogout = now
	s.pair = nil
	s.user = nil
	s.member = nil
	s.profile = nil
	s.impersonating = false
	s.impersonatedEmail = ""
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Delete(ctx, s.storeKey); err != nil {
			s.logger.Warn("persisted session delete failed", "error", err)
		}
	}
	s.refreshAppConfig(ctx, false)

	if !notify {
		return
	}
	if s.notifier != nil {
		s.notifier.Notify(Notice{Title: "You have been logged out."})
	}
	if s.nav != nil {
		s.nav.Navigate(loginPath, navigate.WithReplace())
	}
}

// refreshAppConfig re-fetches the global configuration; parts of it differ
// between authenticated and anonymous sessions.
func (s *Session) refreshAppConfig(ctx context.Context, authenticated bool) {
	if s.config == nil {
		return
	}
	if err := s.config.Refresh(ctx, authenticated); err != nil {
		s.logger.Warn("app config refresh failed", "error", err)
	}
}
