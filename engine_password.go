package identity

import (
	"context"
	"strconv"

	"github.com/aurorafin/identity/internal/metrics"
	"github.com/aurorafin/identity/tenant"
)

// ChangePassword rotates a user's password after verifying the current one.
// Reusing the current password is rejected. Every refresh session for the
// user is revoked so stolen tokens die with the old credential.
func (e *Engine) ChangePassword(ctx context.Context, tenantID, userID, oldPassword, newPassword string) error {
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

	ok, err := e.passwordHash.Verify(oldPassword, user.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCredentials
	}
	if oldPassword == newPassword {
		return ErrPasswordReuse
	}
	if err := validatePassword(e.config.PasswordPolicy, newPassword); err != nil {
		return err
	}

	hash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := st.UpdateUser(userID, func(u *tenant.User) {
		u.PasswordHash = hash
	}); err != nil {
		return ErrUserNotFound
	}

	revoked := st.RevokeAllForUser(userID, e.now(), RevocationPasswordChanged)

	e.metricInc(metrics.PasswordChanged)
	e.recordAudit(ctx, st, auditRecord{
		action:   auditEventPasswordChanged,
		actor:    tenant.Identity{UserID: user.ID, Username: user.Username},
		metadata: map[string]string{"sessions_revoked": strconv.Itoa(revoked)},
	})
	e.logger.Info().
		Str("tenant", st.ID()).
		Str("user", userID).
		Int("sessions_revoked", revoked).
		Msg("password changed")
	return nil
}
