package session

import (
	"context"
	"fmt"

	"github.com/narvik-app/narvik/pkg/token"
)

// refreshCall is the shared handle of one in-flight token refresh. Concurrent
// callers wait on done and then read value/err; both are written before done
// is closed.
type refreshCall struct {
	done  chan struct{}
	value string
	err   error
}

// EnsureValid returns a usable access token, refreshing it when needed.
//
// At most one refresh network call is outstanding per Session at any time:
// when a refresh is already in progress, the caller attaches to it and
// receives its eventual result instead of issuing a second exchange. The
// in-flight handle is cleared once the result (and, on failure, the teardown)
// has settled, so a future expiry starts a fresh refresh rather than reusing
// a stale result, and a failed exchange is never retried by callers that
// raced the teardown.
//
// On terminal failures the session is logged out silently; the caller decides
// whether to surface anything to the user.
func (s *Session) EnsureValid(ctx context.Context) (string, error) {
	s.mu.Lock()
	now := s.clock()

	if s.pair.AccessValid(now) {
		value := s.pair.Access.Value
		s.mu.Unlock()
		return value, nil
	}

	if !s.pair.HasRefresh() {
		s.mu.Unlock()
		s.logger.Warn("token refresh impossible: no refresh token")
		s.Logout(ctx, false)
		return "", ErrNoSession
	}

	if s.pair.RefreshExpired(now) {
		s.mu.Unlock()
		s.logger.Warn("refresh token expired, session is terminal")
		s.Logout(ctx, false)
		return "", ErrSessionExpired
	}

	if call := s.inflight; call != nil {
		s.mu.Unlock()
		select {
		case <-call.done:
			return call.value, call.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	call := &refreshCall{done: make(chan struct{})}
	s.inflight = call
	refreshToken := s.pair.Refresh.Value
	badger := s.pair.Badger
	s.mu.Unlock()

	pair, err := s.exchange(ctx, refreshToken, badger)

	s.mu.Lock()
	if err != nil {
		// The handle stays in place until the teardown finishes, so callers
		// arriving meanwhile attach to the settled failure instead of
		// re-trying the rejected refresh token.
		call.err = err
		s.mu.Unlock()
		close(call.done)
		s.logger.Error("token refresh failed", "error", err)
		s.Logout(ctx, false)
		s.mu.Lock()
		s.inflight = nil
		s.mu.Unlock()
		return "", err
	}
	s.inflight = nil
	s.pair = pair
	call.value = pair.Access.Value
	s.mu.Unlock()
	close(call.done)

	s.persistState(ctx)
	return call.value, nil
}

// exchange performs the grant_type=refresh_token call and rotates the pair.
func (s *Session) exchange(ctx context.Context, refreshToken string, badger bool) (*token.Pair, error) {
	if s.tokens == nil {
		return nil, fmt.Errorf("%w: no token transport configured", ErrRefreshFailed)
	}
	grant, err := s.tokens.RefreshToken(ctx, refreshToken, badger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	pair, err := token.NewPairFromGrant(grant, badger, s.clock())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	return pair, nil
}
