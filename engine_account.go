package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/aurorafin/identity/tenant"
)

// RegisterRequest is the input for account creation within a tenant.
type RegisterRequest struct {
	Username    string
	Email       string
	DisplayName string
	Password    string
	Role        tenant.Role
	Tier        tenant.Tier
}

// Register creates a new account in the tenant. Username and email must be
// unique within the tenant; the password must satisfy the configured policy.
// When email verification is enabled a verification code is dispatched to
// the new address.
func (e *Engine) Register(ctx context.Context, tenantID string, req RegisterRequest) (*tenant.User, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}
	st, err := e.resolveTenant(tenantID)
	if err != nil {
		return nil, err
	}

	username := strings.ToLower(strings.TrimSpace(req.Username))
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if username == "" || email == "" {
		return nil, ErrInvalidCredentials
	}
	if err := validatePassword(e.config.PasswordPolicy, req.Password); err != nil {
		return nil, err
	}

	role := req.Role
	if role == "" {
		role = tenant.RoleUser
	}
	tier := req.Tier
	if tier == "" {
		tier = tenant.TierFree
	}
	if !role.Valid() || !tier.Valid() {
		return nil, ErrInvalidCredentials
	}

	hash, err := e.passwordHash.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	user := tenant.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		DisplayName:  req.DisplayName,
		Role:         role,
		Tier:         tier,
		PasswordHash: hash,
		CreatedAt:    e.now(),
	}
	if err := st.PutUser(user); err != nil {
		return nil, ErrAccountExists
	}

	e.recordAudit(ctx, st, auditRecord{
		action:   auditEventAccountCreated,
		actor:    tenant.Identity{UserID: user.ID, Username: user.Username},
		metadata: map[string]string{"role": string(role), "tier": string(tier)},
	})
	e.logger.Info().
		Str("tenant", st.ID()).
		Str("user", user.ID).
		Msg("account created")

	if e.config.EmailVerification.Enabled {
		// Best effort; the account exists either way.
		if err := e.RequestEmailVerification(ctx, tenantID, email); err != nil {
			e.logger.Warn().Err(err).Str("tenant", st.ID()).Msg("verification request failed")
		}
	}

	out := user
	out.PasswordHash = ""
	out.TwoFactorSecret = nil
	return &out, nil
}
