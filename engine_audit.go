package identity

import (
	"context"

	"github.com/google/uuid"

	"github.com/aurorafin/identity/tenant"
)

const (
	auditEventLoginSuccess             = "login_success"
	auditEventLoginFailure             = "login_failure"
	auditEventLoginLocked              = "login_locked"
	auditEventTwoFactorRequired        = "two_factor_required"
	auditEventTwoFactorSuccess         = "two_factor_success"
	auditEventTwoFactorFailure         = "two_factor_failure"
	auditEventStepUpVerified           = "step_up_verified"
	auditEventStepUpFailed             = "step_up_failed"
	auditEventRefreshSuccess           = "refresh_success"
	auditEventRefreshRevoked           = "refresh_revoked"
	auditEventRefreshInvalid           = "refresh_invalid"
	auditEventTenantMismatch           = "tenant_mismatch"
	auditEventLogout                   = "logout"
	auditEventImpersonationStarted     = "impersonation_started"
	auditEventImpersonationStopped     = "impersonation_stopped"
	auditEventImpersonationDenied      = "impersonation_denied"
	auditEventAccountCreated           = "account_created"
	auditEventPasswordChanged          = "password_changed"
	auditEventPasswordResetRequest     = "password_reset_request"
	auditEventPasswordResetConfirm     = "password_reset_confirm"
	auditEventEmailVerificationRequest = "email_verification_request"
	auditEventEmailVerificationConfirm = "email_verification_confirm"
	auditEventRateLimitTriggered       = "rate_limit_triggered"
)

// Reason strings surfaced to callers in LoginResult. Deliberately generic:
// the same reasons cover unknown users, wrong passwords, and lockouts of
// nonexistent accounts.
const (
	ReasonInvalidCredentials = "invalid_credentials"
	ReasonAccountLocked      = "account_locked"
)

// RevocationReason values stored on refresh token records.
const (
	RevocationLogout          = "logout"
	RevocationExpired         = "expired"
	RevocationRotated         = "rotated"
	RevocationPasswordChanged = "password_changed"
)

type auditRecord struct {
	action       string
	actor        tenant.Identity
	impersonated *tenant.Identity
	targetID     string
	severity     tenant.Severity
	immutable    bool
	metadata     map[string]string
}

// recordAudit appends the entry to the tenant's ledger, forwards it to the
// async sink dispatcher, and logs it. The ledger append happens inline so
// the entry is visible to readers before the call returns; only sink
// delivery is asynchronous.
func (e *Engine) recordAudit(ctx context.Context, st *tenant.State, rec auditRecord) {
	if e == nil || st == nil {
		return
	}
	if rec.severity == "" {
		rec.severity = tenant.SeverityInfo
	}

	entry := tenant.AuditEntry{
		ID:           uuid.NewString(),
		Actor:        rec.actor,
		Impersonated: rec.impersonated,
		Action:       rec.action,
		TargetID:     rec.targetID,
		Metadata:     rec.metadata,
		Severity:     rec.severity,
		Immutable:    rec.immutable,
		Timestamp:    e.now().UTC(),
	}
	st.AppendAudit(entry)

	e.audit.Emit(ctx, AuditEvent{TenantID: st.ID(), Entry: entry})

	e.logger.Debug().
		Str("tenant", st.ID()).
		Str("action", rec.action).
		Str("actor", rec.actor.UserID).
		Msg("audit recorded")
}

func systemActor() tenant.Identity {
	return tenant.Identity{UserID: "system", Username: "system"}
}
