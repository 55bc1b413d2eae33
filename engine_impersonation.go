package identity

import (
	"context"

	"github.com/google/uuid"

	"github.com/aurorafin/identity/internal/metrics"
	"github.com/aurorafin/identity/tenant"
)

// ImpersonationResult carries the record of a started impersonation plus an
// access token minted for the actor with the target in the act claim.
type ImpersonationResult struct {
	Record      tenant.ImpersonationRecord
	AccessToken string
}

// StartImpersonation lets a tenant owner act as another user in the same
// tenant. Only one impersonation per actor can be active; starting a new one
// closes the previous record first. Audit entries for impersonation are
// immutable and survive ledger capping.
func (e *Engine) StartImpersonation(ctx context.Context, tenantID, actorID, targetID, reason string) (*ImpersonationResult, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}
	st, err := e.resolveTenant(tenantID)
	if err != nil {
		return nil, err
	}

	actor, err := st.UserByID(actorID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	target, err := st.UserByID(targetID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	if actor.Role != tenant.RoleOwner || actorID == targetID {
		e.metricInc(metrics.ImpersonationDenied)
		e.recordAudit(ctx, st, auditRecord{
			action:    auditEventImpersonationDenied,
			actor:     tenant.Identity{UserID: actor.ID, Username: actor.Username},
			targetID:  targetID,
			severity:  tenant.SeverityCritical,
			immutable: true,
			metadata:  map[string]string{"actor_role": string(actor.Role)},
		})
		return nil, ErrPermissionDenied
	}

	now := e.now()
	if prev, ok := st.CloseActiveImpersonation(actorID, now); ok {
		e.recordAudit(ctx, st, auditRecord{
			action:    auditEventImpersonationStopped,
			actor:     tenant.Identity{UserID: actor.ID, Username: actor.Username},
			targetID:  prev.TargetID,
			severity:  tenant.SeverityCritical,
			immutable: true,
			metadata:  map[string]string{"reason": "superseded"},
		})
	}

	rec := tenant.ImpersonationRecord{
		ID:        uuid.NewString(),
		ActorID:   actorID,
		TargetID:  targetID,
		Reason:    reason,
		StartedAt: now,
	}
	st.AppendImpersonation(rec)

	access, err := e.issueAccess(st.ID(), actor, targetID)
	if err != nil {
		return nil, err
	}

	e.metricInc(metrics.ImpersonationStarted)
	e.recordAudit(ctx, st, auditRecord{
		action:       auditEventImpersonationStarted,
		actor:        tenant.Identity{UserID: actor.ID, Username: actor.Username},
		impersonated: &tenant.Identity{UserID: target.ID, Username: target.Username},
		targetID:     targetID,
		severity:     tenant.SeverityCritical,
		immutable:    true,
		metadata:     map[string]string{"impersonation_id": rec.ID, "reason": reason},
	})
	e.logger.Info().
		Str("tenant", st.ID()).
		Str("actor", actorID).
		Str("target", targetID).
		Msg("impersonation started")

	return &ImpersonationResult{Record: rec, AccessToken: access}, nil
}

// StopImpersonation closes the actor's active impersonation and issues a
// fresh access token for the actor's own identity, with no acting-as claim.
// It is not an error for none to be active with respect to the caller's
// intent, but the engine reports it so callers can surface stale UI state.
func (e *Engine) StopImpersonation(ctx context.Context, tenantID, actorID string) (*ImpersonationResult, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}
	st, err := e.resolveTenant(tenantID)
	if err != nil {
		return nil, err
	}

	rec, ok := st.CloseActiveImpersonation(actorID, e.now())
	if !ok {
		return nil, ErrImpersonationNotFound
	}

	actor, _ := st.UserByID(actorID)
	e.metricInc(metrics.ImpersonationStopped)
	e.recordAudit(ctx, st, auditRecord{
		action:    auditEventImpersonationStopped,
		actor:     tenant.Identity{UserID: actorID, Username: actor.Username},
		targetID:  rec.TargetID,
		severity:  tenant.SeverityCritical,
		immutable: true,
		metadata:  map[string]string{"impersonation_id": rec.ID},
	})
	e.logger.Info().
		Str("tenant", st.ID()).
		Str("actor", actorID).
		Str("target", rec.TargetID).
		Msg("impersonation stopped")

	access, err := e.issueAccess(st.ID(), actor, "")
	if err != nil {
		return nil, err
	}
	return &ImpersonationResult{Record: rec, AccessToken: access}, nil
}

// ActiveImpersonation reports the actor's active impersonation, if any.
func (e *Engine) ActiveImpersonation(tenantID, actorID string) (tenant.ImpersonationRecord, bool, error) {
	if err := e.checkReady(); err != nil {
		return tenant.ImpersonationRecord{}, false, err
	}
	st, err := e.resolveTenant(tenantID)
	if err != nil {
		return tenant.ImpersonationRecord{}, false, err
	}
	rec, ok := st.ActiveImpersonation(actorID)
	return rec, ok, nil
}

// ImpersonationHistory returns all impersonation records for the tenant,
// oldest first.
func (e *Engine) ImpersonationHistory(tenantID string) ([]tenant.ImpersonationRecord, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}
	st, err := e.resolveTenant(tenantID)
	if err != nil {
		return nil, err
	}
	return st.ImpersonationRecords(), nil
}
