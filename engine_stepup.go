package identity

import (
	"context"

	"github.com/aurorafin/identity/internal/metrics"
	"github.com/aurorafin/identity/tenant"
)

// StepUp re-verifies an already-authenticated user before a sensitive
// action. A StepUpEvent is appended to tenant state on every attempt,
// success or failure, so the history is a complete record of what was
// tried.
func (e *Engine) StepUp(ctx context.Context, tenantID, userID, action, code string) error {
	if err := e.checkReady(); err != nil {
		return err
	}
	st, err := e.resolveTenant(tenantID)
	if err != nil {
		return err
	}
	user, err := st.UserByID(userID)
	if err != nil {
		return ErrUserNotFound
	}
	if !user.TwoFactorEnabled && !e.config.TwoFactor.AllowDemoBypass {
		st.AppendStepUp(tenant.StepUpEvent{
			UserID:     userID,
			Action:     action,
			VerifiedAt: e.now(),
			Success:    false,
			Metadata:   map[string]string{"method": "none"},
		})
		e.metricInc(metrics.StepUpFailure)
		e.recordAudit(ctx, st, auditRecord{
			action:   auditEventStepUpFailed,
			actor:    tenant.Identity{UserID: user.ID, Username: user.Username},
			severity: tenant.SeverityWarning,
			metadata: map[string]string{"step_up_action": action, "method": "none"},
		})
		return ErrTwoFactorNotEnabled
	}

	ok, err := e.verifyTwoFactorCode(user, code)
	if err != nil {
		return err
	}

	st.AppendStepUp(tenant.StepUpEvent{
		UserID:     userID,
		Action:     action,
		VerifiedAt: e.now(),
		Success:    ok,
		Metadata:   map[string]string{"method": "totp"},
	})

	actor := tenant.Identity{UserID: user.ID, Username: user.Username}
	if !ok {
		e.metricInc(metrics.StepUpFailure)
		e.recordAudit(ctx, st, auditRecord{
			action:   auditEventStepUpFailed,
			actor:    actor,
			severity: tenant.SeverityWarning,
			metadata: map[string]string{"step_up_action": action},
		})
		return ErrChallengeInvalid
	}

	e.metricInc(metrics.StepUpSuccess)
	e.recordAudit(ctx, st, auditRecord{
		action:   auditEventStepUpVerified,
		actor:    actor,
		metadata: map[string]string{"step_up_action": action},
	})
	return nil
}

// StepUpHistory returns the recorded step-up attempts for a user, oldest
// first.
func (e *Engine) StepUpHistory(tenantID, userID string) ([]tenant.StepUpEvent, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}
	st, err := e.resolveTenant(tenantID)
	if err != nil {
		return nil, err
	}
	if _, err := st.UserByID(userID); err != nil {
		return nil, ErrUserNotFound
	}
	return st.StepUpEvents(userID), nil
}
