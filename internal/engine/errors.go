package engine

import "errors"

// Fetch result taxonomy. Callers branch with errors.Is; anything else
// returned by Fetch is a transient network error.
var (
	// ErrChallenged means the target served an anti-bot challenge that was
	// not (or could not be) solved. Retry after rotation.
	ErrChallenged = errors.New("fetch: challenged")

	// ErrBlocked means the target refused the request outright. The session
	// and proxy must be rotated before the next attempt.
	ErrBlocked = errors.New("fetch: blocked")

	// ErrNoProxy means no proxy was eligible and proxy-less operation is
	// disabled. Transient resource exhaustion, not fatal.
	ErrNoProxy = errors.New("fetch: no eligible proxy")
)
