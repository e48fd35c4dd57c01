package statecore

import "errors"

var (
	// ErrStoreUnavailable means the remote store could not serve an
	// operation that requires it. Transient; never user-facing on the
	// cache and rate-limit paths, which degrade instead.
	ErrStoreUnavailable = errors.New("remote store unavailable")
	// ErrRefreshDenied means the presented refresh credential was rejected:
	// mismatch, absence, expiry, or a structurally invalid access token.
	// The caller must log in again.
	ErrRefreshDenied = errors.New("refresh denied")
	// ErrTokenInvalid means an access token failed signature, structure, or
	// validity-window checks. Never treated as anonymous.
	ErrTokenInvalid = errors.New("invalid access token")
	// ErrRateLimited means the admission budget for the window is spent.
	// Surfaced together with a retry-after signal.
	ErrRateLimited = errors.New("rate limited")
	// ErrContentUnavailable means a cold cache miss coincided with a failed
	// content fetch. Retriable; never a fabricated payload.
	ErrContentUnavailable = errors.New("content temporarily unavailable")
	// ErrEngineNotReady guards use of a zero or half-built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
