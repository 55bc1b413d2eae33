package identity

import (
	"context"
	"errors"
	"strconv"

	"github.com/aurorafin/identity/internal/metrics"
	"github.com/aurorafin/identity/tenant"
	"github.com/aurorafin/identity/token"
)

func (e *Engine) issueAccess(tenantID string, user tenant.User, actingAs string) (string, error) {
	signed, err := e.tokens.CreateAccess(user.ID, token.Claims{
		Role:     string(user.Role),
		Tier:     string(user.Tier),
		TenantID: tenantID,
		Features: user.Tier.Features(),
		ActingAs: actingAs,
	})
	if err != nil {
		return "", err
	}
	e.metricInc(metrics.AccessIssued)
	return signed, nil
}

func (e *Engine) issueRefresh(ctx context.Context, st *tenant.State, userID string) (string, error) {
	value, err := token.NewOpaque()
	if err != nil {
		return "", err
	}
	now := e.now()
	st.PutRefreshToken(tenant.RefreshToken{
		ValueHash: token.HashOpaque(value),
		TenantID:  st.ID(),
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: now.Add(e.config.Token.RefreshTTL),
		UserAgent: userAgentFromContext(ctx),
		IP:        clientIPFromContext(ctx),
	})
	e.metricInc(metrics.RefreshIssued)
	return value, nil
}

// DecodeAccess verifies a signed access token. Signature, audience, issuer,
// and expiry are independent gates; everything but expiry collapses to
// ErrTokenInvalid.
func (e *Engine) DecodeAccess(tokenStr string) (*AccessIdentity, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}

	claims, err := e.tokens.ParseAccess(tokenStr)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			e.metricInc(metrics.AccessExpired)
			return nil, ErrTokenExpired
		}
		e.metricInc(metrics.AccessRejected)
		return nil, ErrTokenInvalid
	}

	return &AccessIdentity{
		UserID:       claims.Subject,
		TenantID:     claims.TenantID,
		Role:         tenant.Role(claims.Role),
		Tier:         tenant.Tier(claims.Tier),
		FeatureFlags: claims.Features,
		ActingAs:     claims.ActingAs,
		ExpiresAt:    claims.ExpiresAt.Time,
	}, nil
}

// verifyRefresh resolves the record behind an opaque refresh value and
// enforces tenant binding, revocation, and lazy expiry. Expiry is observed
// at verification time: the record is revoked with reason "expired" and the
// revocation is audited before the caller sees ErrTokenExpired.
func (e *Engine) verifyRefresh(ctx context.Context, st *tenant.State, value string) (tenant.RefreshToken, error) {
	hash := token.HashOpaque(value)

	rec, ok := st.RefreshToken(hash)
	if !ok {
		e.metricInc(metrics.AccessRejected)
		e.recordAudit(ctx, st, auditRecord{
			action:   auditEventRefreshInvalid,
			actor:    systemActor(),
			severity: tenant.SeverityWarning,
		})
		return tenant.RefreshToken{}, ErrRefreshInvalid
	}

	if rec.TenantID != st.ID() {
		e.metricInc(metrics.TenantMismatch)
		e.recordAudit(ctx, st, auditRecord{
			action:   auditEventTenantMismatch,
			actor:    systemActor(),
			targetID: rec.UserID,
			severity: tenant.SeverityCritical,
			metadata: map[string]string{"token_tenant": rec.TenantID},
		})
		return tenant.RefreshToken{}, ErrTenantMismatch
	}

	if rec.Revoked() {
		// Revocation is permanent; a revoked token never verifies again.
		e.metricInc(metrics.RefreshRevoked)
		return tenant.RefreshToken{}, ErrRefreshInvalid
	}

	now := e.now()
	if rec.Expired(now) {
		st.RevokeRefreshToken(hash, now, RevocationExpired)
		e.metricInc(metrics.RefreshExpired)
		e.recordAudit(ctx, st, auditRecord{
			action:   auditEventRefreshRevoked,
			actor:    systemActor(),
			targetID: rec.UserID,
			metadata: map[string]string{"reason": RevocationExpired},
		})
		return tenant.RefreshToken{}, ErrTokenExpired
	}

	return rec, nil
}

// Refresh exchanges a live refresh token for a fresh access token. The
// refresh token itself stays valid; use RotateRefresh to replace it.
func (e *Engine) Refresh(ctx context.Context, tenantID, refreshValue string) (string, error) {
	if err := e.checkReady(); err != nil {
		return "", err
	}
	st, err := e.resolveTenant(tenantID)
	if err != nil {
		return "", err
	}

	rec, err := e.verifyRefresh(ctx, st, refreshValue)
	if err != nil {
		return "", err
	}
	user, err := st.UserByID(rec.UserID)
	if err != nil {
		return "", ErrRefreshInvalid
	}

	access, err := e.issueAccess(st.ID(), user, "")
	if err != nil {
		return "", err
	}

	e.metricInc(metrics.RefreshSuccess)
	e.recordAudit(ctx, st, auditRecord{
		action: auditEventRefreshSuccess,
		actor:  tenant.Identity{UserID: user.ID, Username: user.Username},
	})
	return access, nil
}

// RotateRefresh revokes the presented refresh token and issues a new
// access/refresh pair in its place.
func (e *Engine) RotateRefresh(ctx context.Context, tenantID, refreshValue string) (access, refresh string, err error) {
	if err := e.checkReady(); err != nil {
		return "", "", err
	}
	st, err := e.resolveTenant(tenantID)
	if err != nil {
		return "", "", err
	}

	rec, err := e.verifyRefresh(ctx, st, refreshValue)
	if err != nil {
		return "", "", err
	}
	user, err := st.UserByID(rec.UserID)
	if err != nil {
		return "", "", ErrRefreshInvalid
	}

	st.RevokeRefreshToken(token.HashOpaque(refreshValue), e.now(), RevocationRotated)

	access, err = e.issueAccess(st.ID(), user, "")
	if err != nil {
		return "", "", err
	}
	refresh, err = e.issueRefresh(ctx, st, user.ID)
	if err != nil {
		return "", "", err
	}

	e.metricInc(metrics.RefreshSuccess)
	e.recordAudit(ctx, st, auditRecord{
		action:   auditEventRefreshRevoked,
		actor:    tenant.Identity{UserID: user.ID, Username: user.Username},
		metadata: map[string]string{"reason": RevocationRotated},
	})
	return access, refresh, nil
}

// Logout revokes a single refresh token. Revoking an already revoked or
// unknown token returns ErrRefreshInvalid; revocation never resurrects.
func (e *Engine) Logout(ctx context.Context, tenantID, refreshValue string) error {
	if err := e.checkReady(); err != nil {
		return err
	}
	st, err := e.resolveTenant(tenantID)
	if err != nil {
		return err
	}

	rec, err := e.verifyRefresh(ctx, st, refreshValue)
	if err != nil {
		return err
	}

	st.RevokeRefreshToken(token.HashOpaque(refreshValue), e.now(), RevocationLogout)
	e.metricInc(metrics.Logout)
	e.recordAudit(ctx, st, auditRecord{
		action:   auditEventLogout,
		actor:    tenant.Identity{UserID: rec.UserID},
		metadata: map[string]string{"reason": RevocationLogout},
	})
	return nil
}

// LogoutAll revokes every live refresh token the user holds and returns how
// many were revoked.
func (e *Engine) LogoutAll(ctx context.Context, tenantID, userID string) (int, error) {
	if err := e.checkReady(); err != nil {
		return 0, err
	}
	st, err := e.resolveTenant(tenantID)
	if err != nil {
		return 0, err
	}
	if _, err := st.UserByID(userID); err != nil {
		return 0, ErrUserNotFound
	}

	n := st.RevokeAllForUser(userID, e.now(), RevocationLogout)
	e.metricInc(metrics.Logout)
	e.recordAudit(ctx, st, auditRecord{
		action:   auditEventLogout,
		actor:    tenant.Identity{UserID: userID},
		metadata: map[string]string{"reason": RevocationLogout, "sessions": strconv.Itoa(n)},
	})
	return n, nil
}
