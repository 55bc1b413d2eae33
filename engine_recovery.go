package identity

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/aurorafin/identity/internal"
	"github.com/aurorafin/identity/internal/metrics"
	"github.com/aurorafin/identity/tenant"
	"github.com/aurorafin/identity/token"
)

// RequestPasswordReset starts credential recovery for the given email
// address. The response is identical whether or not the address belongs to
// an account, so the flow cannot be used to probe for registered emails.
// Mail delivery happens outside any lock and a delivery failure is logged
// but never surfaced.
func (e *Engine) RequestPasswordReset(ctx context.Context, tenantID, email string) error {
	if err := e.checkReady(); err != nil {
		return err
	}
	if !e.config.PasswordReset.Enabled {
		return nil
	}
	st, err := e.resolveTenant(tenantID)
	if err != nil {
		return err
	}

	email = strings.ToLower(strings.TrimSpace(email))
	key := st.ID() + "|" + email
	if !e.recoveryLimiter.Allow(key, e.now()) {
		e.metricInc(metrics.RateLimited)
		e.recordAudit(ctx, st, auditRecord{
			action:   auditEventRateLimitTriggered,
			actor:    systemActor(),
			severity: tenant.SeverityWarning,
			metadata: map[string]string{"flow": "password_reset"},
		})
		return nil
	}

	e.metricInc(metrics.ResetRequested)

	user, err := st.UserByEmail(email)
	if err != nil {
		// Unknown address: same outcome as a successful request.
		return nil
	}

	value, err := token.NewOpaque()
	if err != nil {
		e.logger.Error().Err(err).Msg("reset token generation failed")
		return nil
	}
	e.recovery.PutReset(token.HashOpaque(value), resetRecord{
		tenantID:  st.ID(),
		userID:    user.ID,
		expiresAt: e.now().Add(e.config.PasswordReset.ResetTTL),
	})

	e.recordAudit(ctx, st, auditRecord{
		action: auditEventPasswordResetRequest,
		actor:  tenant.Identity{UserID: user.ID, Username: user.Username},
	})

	if e.notifier != nil {
		if err := e.notifier.Send(user.Email, TemplatePasswordReset, map[string]string{
			"token":  value,
			"tenant": st.ID(),
		}); err != nil {
			e.logger.Warn().Err(err).Str("tenant", st.ID()).Msg("reset mail delivery failed")
		}
	}
	return nil
}

// ConfirmPasswordReset redeems a reset token and sets a new password. A
// token that fails only the password policy check stays valid so the user
// can retry with a stronger password; structurally invalid or expired
// tokens are removed. All refresh sessions are revoked on success.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, tenantID, resetValue, newPassword string) error {
	if err := e.checkReady(); err != nil {
		return err
	}
	st, err := e.resolveTenant(tenantID)
	if err != nil {
		return err
	}

	hash := token.HashOpaque(resetValue)
	rec, ok := e.recovery.GetReset(hash)
	if !ok || rec.tenantID != st.ID() {
		e.metricInc(metrics.ResetFailed)
		return ErrResetInvalid
	}
	if e.now().After(rec.expiresAt) {
		e.recovery.DeleteReset(hash)
		e.metricInc(metrics.ResetFailed)
		return ErrResetExpired
	}

	// Policy check before the token is consumed.
	if err := validatePassword(e.config.PasswordPolicy, newPassword); err != nil {
		return err
	}

	user, err := st.UserByID(rec.userID)
	if err != nil {
		e.recovery.DeleteReset(hash)
		e.metricInc(metrics.ResetFailed)
		return ErrResetInvalid
	}

	pwHash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return err
	}
	e.recovery.DeleteReset(hash)
	if err := st.UpdateUser(user.ID, func(u *tenant.User) {
		u.PasswordHash = pwHash
		u.FailedLogins = 0
		u.LockUntil = time.Time{}
	}); err != nil {
		return ErrResetInvalid
	}
	_ = e.guard.Reset(ctx, guardKey(st.ID(), user.Username))
	st.RevokeAllForUser(user.ID, e.now(), RevocationPasswordChanged)

	e.metricInc(metrics.ResetCompleted)
	e.recordAudit(ctx, st, auditRecord{
		action: auditEventPasswordResetConfirm,
		actor:  tenant.Identity{UserID: user.ID, Username: user.Username},
	})
	e.logger.Info().
		Str("tenant", st.ID()).
		Str("user", user.ID).
		Msg("password reset confirmed")
	return nil
}

// RequestEmailVerification issues a numeric ownership code for the address
// and dispatches it through the notifier. Like password reset, the call is
// enumeration-safe: unknown addresses get the same nil response.
func (e *Engine) RequestEmailVerification(ctx context.Context, tenantID, email string) error {
	if err := e.checkReady(); err != nil {
		return err
	}
	if !e.config.EmailVerification.Enabled {
		return nil
	}
	st, err := e.resolveTenant(tenantID)
	if err != nil {
		return err
	}

	email = strings.ToLower(strings.TrimSpace(email))
	key := st.ID() + "|" + email
	if !e.recoveryLimiter.Allow(key, e.now()) {
		e.metricInc(metrics.RateLimited)
		e.recordAudit(ctx, st, auditRecord{
			action:   auditEventRateLimitTriggered,
			actor:    systemActor(),
			severity: tenant.SeverityWarning,
			metadata: map[string]string{"flow": "email_verification"},
		})
		return nil
	}

	e.metricInc(metrics.VerificationRequested)

	user, err := st.UserByEmail(email)
	if err != nil {
		return nil
	}

	code, err := internal.NewOTP(e.config.EmailVerification.OTPDigits)
	if err != nil {
		e.logger.Error().Err(err).Msg("verification code generation failed")
		return nil
	}
	e.recovery.PutVerification(verificationRecord{
		tenantID:  st.ID(),
		userID:    user.ID,
		code:      code,
		expiresAt: e.now().Add(e.config.EmailVerification.VerificationTTL),
	})

	e.recordAudit(ctx, st, auditRecord{
		action: auditEventEmailVerificationRequest,
		actor:  tenant.Identity{UserID: user.ID, Username: user.Username},
	})

	if e.notifier != nil {
		if err := e.notifier.Send(user.Email, TemplateEmailVerification, map[string]string{
			"code":   code,
			"tenant": st.ID(),
		}); err != nil {
			e.logger.Warn().Err(err).Str("tenant", st.ID()).Msg("verification mail delivery failed")
		}
	}
	return nil
}

// ConfirmEmailVerification redeems a verification code and marks the user's
// email address verified. Codes are single-use.
func (e *Engine) ConfirmEmailVerification(ctx context.Context, tenantID, userID, code string) error {
	if err := e.checkReady(); err != nil {
		return err
	}
	st, err := e.resolveTenant(tenantID)
	if err != nil {
		return err
	}

	rec, ok := e.recovery.GetVerification(st.ID(), userID)
	if !ok {
		e.metricInc(metrics.VerificationFailed)
		return ErrVerificationInvalid
	}
	if e.now().After(rec.expiresAt) {
		e.recovery.DeleteVerification(st.ID(), userID)
		e.metricInc(metrics.VerificationFailed)
		return ErrVerificationExpired
	}
	if subtle.ConstantTimeCompare([]byte(code), []byte(rec.code)) != 1 {
		e.recovery.DeleteVerification(st.ID(), userID)
		e.metricInc(metrics.VerificationFailed)
		return ErrVerificationInvalid
	}

	e.recovery.DeleteVerification(st.ID(), userID)
	if err := st.UpdateUser(userID, func(u *tenant.User) {
		u.EmailVerified = true
	}); err != nil {
		return ErrUserNotFound
	}

	e.metricInc(metrics.VerificationCompleted)
	e.recordAudit(ctx, st, auditRecord{
		action: auditEventEmailVerificationConfirm,
		actor:  tenant.Identity{UserID: userID},
	})
	return nil
}
