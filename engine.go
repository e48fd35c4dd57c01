package statecore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mindgauge/statecore/cache"
	"github.com/mindgauge/statecore/ratelimit"
	"github.com/mindgauge/statecore/refresher"
	"github.com/mindgauge/statecore/session"
	"github.com/mindgauge/statecore/store"
	"github.com/mindgauge/statecore/token"
)

// Engine is the assembled state layer. Construct via [Builder.Build]; all
// methods are then safe for concurrent use.
type Engine struct {
	config    Config
	logger    *slog.Logger
	store     *store.Store
	cache     *cache.Cache
	limiter   *ratelimit.Limiter
	sessions  *session.Store
	tokens    *token.Manager
	refresher *refresher.Refresher
	audit     *auditDispatcher
	metrics   *Metrics
}

// Close stops the background workers and releases local resources. The
// shared Redis client is owned by the caller and stays open.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.refresher != nil {
		e.refresher.Close()
	}
	if e.cache != nil {
		e.cache.Close()
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// StoreHealthy reports the adapter's view of the remote store.
func (e *Engine) StoreHealthy() bool {
	if e == nil || e.store == nil {
		return false
	}
	return e.store.Healthy()
}

// MetricsSnapshot copies the current counter values.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

// AuditDropped returns the number of audit events dropped under
// backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

/*
====================================
SESSION / TOKEN OPERATIONS
====================================
*/

// Issue creates a new token pair for the principal and persists the refresh
// hash, overwriting any prior value: logging in again rotates the previous
// refresh token out of existence.
func (e *Engine) Issue(ctx context.Context, principal Principal) (TokenPair, error) {
	if e == nil || e.tokens == nil {
		return TokenPair{}, ErrEngineNotReady
	}
	if principal.ID == "" {
		return TokenPair{}, ErrTokenInvalid
	}

	access, err := e.tokens.Create(principal.ID, principal.Roles)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := session.NewToken()
	if err != nil {
		return TokenPair{}, err
	}

	if err := e.sessions.Save(ctx, principal.ID, session.HashToken(refresh)); err != nil {
		return TokenPair{}, e.storeErr(err)
	}

	e.metrics.Inc(MetricTokenIssued)
	e.emitAudit(ctx, auditEventTokenIssued, principal.ID, "", true, nil)

	return TokenPair{AccessToken: access, RefreshToken: refresh, IssuedAt: time.Now()}, nil
}

// Refresh rotates a token pair. The access token only needs a valid
// signature and structure; expiry is ignored, since refreshing an expired
// session is the whole point. The refresh token must exactly match the
// persisted one; any mismatch or absence is a hard authentication failure.
func (e *Engine) Refresh(ctx context.Context, accessToken, refreshToken string) (TokenPair, error) {
	if e == nil || e.tokens == nil {
		return TokenPair{}, ErrEngineNotReady
	}

	claims, err := e.tokens.ParseAllowExpired(accessToken)
	if err != nil {
		e.metrics.Inc(MetricRefreshDenied)
		e.emitAudit(ctx, auditEventRefreshDenied, "", "", false, err)
		return TokenPair{}, ErrRefreshDenied
	}
	principalID := claims.PrincipalID

	next, err := session.NewToken()
	if err != nil {
		return TokenPair{}, err
	}

	// Sign the replacement access token before touching persisted state, so
	// a signing failure cannot strand the principal with a spent refresh
	// token.
	access, err := e.tokens.Create(principalID, claims.Roles)
	if err != nil {
		return TokenPair{}, err
	}

	err = e.sessions.Rotate(ctx, principalID, session.HashToken(refreshToken), session.HashToken(next))
	switch {
	case err == nil:
	case errors.Is(err, session.ErrHashMismatch), errors.Is(err, session.ErrNotFound):
		e.metrics.Inc(MetricRefreshDenied)
		e.emitAudit(ctx, auditEventRefreshDenied, principalID, "", false, err)
		return TokenPair{}, ErrRefreshDenied
	default:
		return TokenPair{}, e.storeErr(err)
	}

	e.metrics.Inc(MetricTokenRefreshed)
	e.emitAudit(ctx, auditEventTokenRefreshed, principalID, "", true, nil)

	return TokenPair{AccessToken: access, RefreshToken: next, IssuedAt: time.Now()}, nil
}

// Revoke deletes the persisted refresh token, forcing the next Refresh to
// fail. Already-issued access tokens stay valid until they expire; the blast
// radius is bounded by the access TTL.
func (e *Engine) Revoke(ctx context.Context, principalID string) error {
	if e == nil || e.sessions == nil {
		return ErrEngineNotReady
	}

	if err := e.sessions.Delete(ctx, principalID); err != nil {
		return e.storeErr(err)
	}

	e.metrics.Inc(MetricTokenRevoked)
	e.emitAudit(ctx, auditEventTokenRevoked, principalID, "", true, nil)
	return nil
}

// Validate checks an access token's signature, claims, and validity window
// (with the configured clock-skew leeway) and returns the embedded
// principal. No store round trip.
func (e *Engine) Validate(_ context.Context, accessToken string) (*Principal, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.tokens.Parse(accessToken)
	if err != nil {
		e.metrics.Inc(MetricValidateDenied)
		return nil, ErrTokenInvalid
	}
	return &Principal{ID: claims.PrincipalID, Roles: claims.Roles}, nil
}

/*
====================================
RATE LIMIT OPERATIONS
====================================
*/

// CheckAndConsume admits or rejects one request for the client identity
// under the named category. Store outages degrade to a per-process counter;
// the call returns promptly either way.
func (e *Engine) CheckAndConsume(ctx context.Context, identity, category string) (Admission, error) {
	if e == nil || e.limiter == nil {
		return Admission{}, ErrEngineNotReady
	}

	d, err := e.limiter.CheckAndConsume(ctx, identity, category)
	if err != nil {
		return Admission{}, err
	}
	return Admission(d), nil
}

// Admit is the error-shaped form of [Engine.CheckAndConsume] for callers that
// do not need the remaining budget: a denial comes back as ErrRateLimited.
func (e *Engine) Admit(ctx context.Context, identity, category string) error {
	adm, err := e.CheckAndConsume(ctx, identity, category)
	if err != nil {
		return err
	}
	if !adm.Allowed {
		return fmt.Errorf("%w: retry after %s", ErrRateLimited, adm.RetryAfter)
	}
	return nil
}

/*
====================================
CACHE OPERATIONS
====================================
*/

// GetOrCompute reads through the resilient cache. A cold miss whose compute
// fails surfaces as [ErrContentUnavailable]; the caller should retry later.
func (e *Engine) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute cache.ComputeFunc) ([]byte, error) {
	if e == nil || e.cache == nil {
		return nil, ErrEngineNotReady
	}

	val, err := e.cache.GetOrCompute(ctx, key, ttl, compute)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContentUnavailable, err)
	}
	return val, nil
}

// Invalidate removes one cache entry from both tiers.
func (e *Engine) Invalidate(ctx context.Context, key string) error {
	if e == nil || e.cache == nil {
		return ErrEngineNotReady
	}
	e.metrics.Inc(MetricCacheInvalidated)
	if err := e.cache.Invalidate(ctx, key); err != nil {
		return e.storeErr(err)
	}
	return nil
}

// InvalidatePrefix removes every cache entry sharing the prefix and returns
// the number of remote keys deleted.
func (e *Engine) InvalidatePrefix(ctx context.Context, prefix string) (int64, error) {
	if e == nil || e.cache == nil {
		return 0, ErrEngineNotReady
	}
	e.metrics.Inc(MetricCacheInvalidated)
	n, err := e.cache.InvalidatePrefix(ctx, prefix)
	if err != nil {
		return n, e.storeErr(err)
	}
	return n, nil
}

// TriggerRefresh schedules an immediate content refresh for one category.
// No-op when no content source was configured.
func (e *Engine) TriggerRefresh(category string) {
	if e == nil || e.refresher == nil {
		return
	}
	e.refresher.TriggerNow(category)
}

/*
====================================
INTERNAL PLUMBING
====================================
*/

func (e *Engine) onStoreTransition(up bool) {
	if up {
		e.metrics.Inc(MetricStoreUp)
		e.logger.Info("remote store recovered")
		e.emitAudit(context.Background(), auditEventStoreRecovered, "", "", true, nil)
		return
	}
	e.metrics.Inc(MetricStoreDown)
	e.logger.Warn("remote store unavailable, degraded mode active")
	e.emitAudit(context.Background(), auditEventStoreDown, "", "", false, nil)
}

func (e *Engine) onRateDeny(identity, category string) {
	e.metrics.Inc(MetricRateDenied)
	e.emitAudit(context.Background(), auditEventRateLimited, identity, category, false, nil)
}

func (e *Engine) onRefreshResult(category string, err error) {
	if err == nil {
		e.metrics.Inc(MetricContentRefreshed)
		return
	}
	e.metrics.Inc(MetricContentRefreshFailed)
	e.emitAudit(context.Background(), auditEventContentFailed, "", category, false, err)
}

func (e *Engine) storeErr(err error) error {
	if errors.Is(err, store.ErrUnavailable) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}

func (e *Engine) emitAudit(ctx context.Context, eventType, principalID, category string, success bool, err error) {
	if e.audit == nil {
		return
	}
	event := AuditEvent{
		ID:          uuid.NewString(),
		Timestamp:   time.Now(),
		EventType:   eventType,
		PrincipalID: principalID,
		Category:    category,
		Success:     success,
	}
	if err != nil {
		event.Error = err.Error()
	}
	e.audit.Emit(ctx, event)
}
