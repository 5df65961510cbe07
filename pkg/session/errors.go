package session

import "errors"

var (
	// ErrNoSession is returned when no refreshable credential exists at all.
	ErrNoSession = errors.New("no session token")

	// ErrSessionExpired is returned when the refresh token is provably past
	// its usable window; the session is terminal and has been logged out.
	ErrSessionExpired = errors.New("session expired")

	// ErrRefreshFailed is returned when the token exchange itself failed,
	// either on the wire or because the response was malformed.
	ErrRefreshFailed = errors.New("token refresh failed")
)
