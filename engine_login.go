package identity

import (
	"context"
	"time"

	"github.com/aurorafin/identity/internal/metrics"
	"github.com/aurorafin/identity/tenant"
)

// Login verifies a username/password pair within a tenant. Failures collapse
// to two public reasons: ReasonInvalidCredentials and ReasonAccountLocked.
// A locked key answers ReasonAccountLocked even to the correct password, and
// attempts against unknown usernames consume lockout budget exactly like
// attempts against real ones.
func (e *Engine) Login(ctx context.Context, tenantID, username, pass string) (*LoginResult, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}

	st, err := e.resolveTenant(tenantID)
	if err != nil {
		return nil, err
	}

	key := guardKey(st.ID(), username)

	status, err := e.guard.Check(ctx, key)
	if err != nil {
		return nil, err
	}
	if !status.Allowed {
		return e.loginLocked(ctx, st, username)
	}

	user, lookupErr := st.UserByUsername(username)
	if lookupErr != nil {
		// Burn a verification anyway so unknown and known usernames cost
		// the same wall time.
		_, _ = e.passwordHash.Verify(pass, e.dummyHash)
		return e.loginFailed(ctx, st, key, username, "")
	}

	if user.Locked(e.now()) {
		return e.loginLocked(ctx, st, username)
	}

	ok, err := e.passwordHash.Verify(pass, user.PasswordHash)
	if err != nil || !ok {
		return e.loginFailed(ctx, st, key, username, user.ID)
	}

	// The password matched: the failure budget and lock clear here, before
	// any second factor is consulted.
	if err := e.guard.Reset(ctx, key); err != nil {
		return nil, err
	}
	now := e.now()
	_ = st.UpdateUser(user.ID, func(u *tenant.User) {
		u.FailedLogins = 0
		u.LockUntil = time.Time{}
		u.LastLogin = now
	})

	if user.TwoFactorEnabled {
		challengeID, err := e.challenges.Create(st.ID(), user.ID, e.now())
		if err != nil {
			return nil, err
		}
		e.metricInc(metrics.TwoFactorRequired)
		e.recordAudit(ctx, st, auditRecord{
			action: auditEventTwoFactorRequired,
			actor:  tenant.Identity{UserID: user.ID, Username: user.Username},
		})
		return &LoginResult{Status: LoginNeedsTwoFactor, ChallengeID: challengeID}, nil
	}

	return e.loginSucceeded(ctx, st, user)
}

// loginSucceeded issues the session tokens and records the success. Failure
// counters were already cleared when the password matched.
func (e *Engine) loginSucceeded(ctx context.Context, st *tenant.State, user tenant.User) (*LoginResult, error) {
	access, err := e.issueAccess(st.ID(), user, "")
	if err != nil {
		return nil, err
	}
	refresh, err := e.issueRefresh(ctx, st, user.ID)
	if err != nil {
		return nil, err
	}

	e.metricInc(metrics.LoginSuccess)
	e.recordAudit(ctx, st, auditRecord{
		action: auditEventLoginSuccess,
		actor:  tenant.Identity{UserID: user.ID, Username: user.Username},
	})
	e.logger.Info().Str("tenant", st.ID()).Str("user", user.ID).Msg("login succeeded")

	fresh, _ := st.UserByID(user.ID)
	return &LoginResult{
		Status:       LoginSucceeded,
		AccessToken:  access,
		RefreshToken: refresh,
		User:         &fresh,
	}, nil
}

// loginFailed charges the guard for a failed attempt. The attempt that
// reaches the threshold engages the lockout; userID is empty for unknown
// usernames, which get charged all the same.
func (e *Engine) loginFailed(ctx context.Context, st *tenant.State, key, username, userID string) (*LoginResult, error) {
	tripped, err := e.guard.RecordFailure(ctx, key)
	if err != nil {
		return nil, err
	}

	if userID != "" {
		now := e.now()
		lockFor := e.config.Lockout.LockoutDuration
		_ = st.UpdateUser(userID, func(u *tenant.User) {
			u.FailedLogins++
			if tripped {
				u.LockUntil = now.Add(lockFor)
			}
		})
	}

	e.metricInc(metrics.LoginFailure)
	severity := tenant.SeverityInfo
	action := auditEventLoginFailure
	if tripped {
		e.metricInc(metrics.LoginLocked)
		severity = tenant.SeverityWarning
		action = auditEventLoginLocked
	}
	e.recordAudit(ctx, st, auditRecord{
		action:   action,
		actor:    tenant.Identity{UserID: userID, Username: username},
		severity: severity,
		metadata: map[string]string{"reason": ReasonInvalidCredentials},
	})

	return &LoginResult{Status: LoginFailed, Reason: ReasonInvalidCredentials}, ErrInvalidCredentials
}

func (e *Engine) loginLocked(ctx context.Context, st *tenant.State, username string) (*LoginResult, error) {
	e.metricInc(metrics.LoginLocked)
	e.recordAudit(ctx, st, auditRecord{
		action:   auditEventLoginLocked,
		actor:    tenant.Identity{Username: username},
		severity: tenant.SeverityWarning,
		metadata: map[string]string{"reason": ReasonAccountLocked},
	})
	return &LoginResult{Status: LoginFailed, Reason: ReasonAccountLocked}, ErrAccountLocked
}
