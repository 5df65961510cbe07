package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/narvik-app/narvik/pkg/model"
	"github.com/narvik-app/narvik/pkg/token"
)

// persistedState is the restart-surviving subset of the session. User and
// member objects are deliberately absent: they are always re-fetched, so a
// stale or tampered blob can never inject a principal.
type persistedState struct {
	Impersonating     bool        `json:"isImpersonating"`
	SelectedProfileID string      `json:"selectedProfileId,omitempty"`
	ClubIRI           string      `json:"clubIri,omitempty"`
	ClubUUID          uuid.UUID   `json:"clubUuid,omitempty"`
	Pair              *token.Pair `json:"selfJwtToken,omitempty"`
}

// persistState writes the persisted subset. Failures are logged, never
// propagated: persistence is an optimization, not a correctness requirement.
func (s *Session) persistState(ctx context.Context) {
	if s.store == nil {
		return
	}

	s.mu.Lock()
	state := persistedState{
		Impersonating: s.impersonating,
		Pair:          s.pair,
	}
	if s.profile != nil {
		state.SelectedProfileID = s.profile.ID
		state.ClubIRI = s.profile.Club.IRI
		state.ClubUUID = s.profile.Club.UUID
	}
	s.mu.Unlock()

	data, err := json.Marshal(state)
	if err != nil {
		s.logger.Warn("session state marshal failed", "error", err)
		return
	}
	if err := s.store.Save(ctx, s.storeKey, data); err != nil {
		s.logger.Warn("session state save failed", "error", err)
	}
}

// Restore loads the persisted subset into an empty session. The profile is
// restored as a skeleton carrying only identifiers; the next Refresh
// re-matches it against the fresh linked-profile list and re-fetches every
// object. Returns false when nothing was persisted.
func (s *Session) Restore(ctx context.Context) (bool, error) {
	if s.store == nil {
		return false, nil
	}
	data, err := s.store.Load(ctx, s.storeKey)
	if err != nil {
		return false, fmt.Errorf("load persisted session: %w", err)
	}
	if data == nil {
		return false, nil
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return false, fmt.Errorf("decode persisted session: %w", err)
	}

	s.mu.Lock()
	s.pair = state.Pair
	s.impersonating = state.Impersonating
	if state.SelectedProfileID != "" {
		s.profile = &model.LinkedProfile{
			ID: state.SelectedProfileID,
			Club: model.Club{
				IRI:  state.ClubIRI,
				UUID: state.ClubUUID,
			},
		}
	}
	s.mu.Unlock()
	return true, nil
}
