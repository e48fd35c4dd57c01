package statecore

import "time"

// Principal identifies an authenticated user. Ownership of the id and role
// set lies with the external identity store; statecore only carries them
// through token claims.
type Principal struct {
	ID    string
	Roles []string
}

// TokenPair is the paired session credential: a signed short-lived access
// token and an opaque long-lived rotating refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	IssuedAt     time.Time
}

// Admission is the outcome of a rate-limit check.
type Admission struct {
	Allowed bool
	// Remaining is the budget left in the current window, zero when denied.
	Remaining int64
	// RetryAfter is how long a denied caller should wait; at most one
	// window length.
	RetryAfter time.Duration
	// Degraded reports that the decision came from the in-process fallback
	// counter while the store was unreachable.
	Degraded bool
}
