package identity

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/aurorafin/identity/internal/metrics"
	"github.com/aurorafin/identity/internal/rate"
	"github.com/aurorafin/identity/password"
	"github.com/aurorafin/identity/tenant"
	"github.com/aurorafin/identity/token"
)

// Engine is the identity authority: login, tokens, two-factor, step-up,
// impersonation, recovery, and the per-tenant audit ledger. Build one with
// New() and the builder; it is safe for concurrent use and immutable after
// Build except for the tenant state it manages.
type Engine struct {
	config          Config
	logger          zerolog.Logger
	tenants         *tenant.Store
	guard           rate.Guard
	memGuard        *rate.MemoryGuard // non-nil only for the in-process guard; janitor sweeps it
	tokens          *token.Manager
	passwordHash    *password.Argon2
	dummyHash       string // verified against for unknown usernames to equalize timing
	totp            *totpVerifier
	challenges      *challengeStore
	recovery        *recoveryStore
	recoveryLimiter *recoveryLimiter
	audit           *auditDispatcher
	metrics         *metrics.Metrics
	notifier        Notifier
	janitor         *janitor
	closed          atomic.Bool
	now             func() time.Time
}

// Close stops the janitor and drains the audit dispatcher. The engine
// rejects operations afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if !e.closed.CompareAndSwap(false, true) {
		return
	}
	if e.janitor != nil {
		e.janitor.Stop()
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

func (e *Engine) checkReady() error {
	if e == nil || e.tenants == nil {
		return ErrEngineNotReady
	}
	if e.closed.Load() {
		return ErrEngineClosed
	}
	return nil
}

// AuditDropped reports how many audit events the dispatcher discarded
// because its buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the engine counters for export.
func (e *Engine) MetricsSnapshot() map[metrics.ID]uint64 {
	if e == nil {
		return map[metrics.ID]uint64{}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id metrics.ID) {
	e.metrics.Inc(id)
}

// resolveTenant normalizes the raw tenant id before any store lookup and
// maps store errors to engine sentinels so callers see one error surface.
func (e *Engine) resolveTenant(tenantID string) (*tenant.State, error) {
	st, err := e.tenants.Resolve(tenant.NormalizeID(tenantID))
	if err != nil {
		switch {
		case errors.Is(err, tenant.ErrInvalidID):
			return nil, ErrTenantInvalid
		case errors.Is(err, tenant.ErrNotFound):
			return nil, ErrTenantNotFound
		default:
			return nil, err
		}
	}
	return st, nil
}

// guardKey is the lockout guard key for a login attempt. It is derived from
// the tenant and the normalized login name only, never from whether that
// name maps to a user.
func guardKey(tenantID, username string) string {
	return tenantID + "|" + strings.ToLower(strings.TrimSpace(username))
}
