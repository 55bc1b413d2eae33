package identity

import (
	"errors"

	"github.com/aurorafin/identity/internal/rate"
	"github.com/aurorafin/identity/tenant"
	"github.com/aurorafin/identity/token"
)

// Sentinel errors returned by engine operations. Login failures collapse to
// ErrInvalidCredentials or ErrAccountLocked so responses never reveal which
// part of the credential was wrong or whether the account exists.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned while the lockout window holds, including
	// for attempts with the correct password.
	ErrAccountLocked   = errors.New("account locked")
	ErrTenantInvalid   = errors.New("invalid tenant id")
	ErrTenantNotFound  = errors.New("tenant not found")
	// ErrTenantMismatch is returned when a credential is presented to a
	// tenant other than the one it was issued for.
	ErrTenantMismatch   = errors.New("tenant mismatch")
	ErrUserNotFound     = errors.New("user not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrTokenInvalid     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrRefreshInvalid   = errors.New("invalid refresh token")
	// ErrChallengeInvalid covers unknown, expired, and already-consumed
	// two-factor challenges alike.
	ErrChallengeInvalid    = errors.New("two-factor challenge invalid")
	ErrTwoFactorRequired   = errors.New("two-factor verification required")
	ErrTwoFactorNotEnabled = errors.New("two-factor not enabled")
	ErrResetInvalid        = errors.New("password reset token invalid")
	ErrResetExpired        = errors.New("password reset token expired")
	ErrVerificationInvalid = errors.New("email verification code invalid")
	ErrVerificationExpired = errors.New("email verification code expired")
	ErrPasswordPolicy      = errors.New("password policy violation")
	ErrPasswordReuse       = errors.New("new password must be different from current password")
	ErrRateLimited         = errors.New("rate limited")
	// ErrImpersonationActive is returned by StartImpersonation when the
	// actor already has an open session and replacement was not requested.
	ErrImpersonationActive   = errors.New("impersonation already active")
	ErrImpersonationNotFound = errors.New("no active impersonation")
	ErrAccountExists         = errors.New("account already exists")
	ErrEngineNotReady        = errors.New("engine not initialized")
	ErrEngineClosed          = errors.New("engine closed")
)

// Class buckets every engine error for transport mapping. Consumers switch
// on the class instead of matching sentinel errors one by one.
type Class int

const (
	ClassUnknown Class = iota
	ClassValidation
	ClassAuthentication
	ClassAuthorization
	ClassNotFound
	ClassRateLimited
	ClassTokenExpired
	ClassInternal
)

// FailureClass maps an engine error to its Class. A tenant mismatch is
// authorization, not not-found: the caller presented a credential from the
// wrong tenant, and the engine does not pretend the record is absent.
func FailureClass(err error) Class {
	switch {
	case err == nil:
		return ClassUnknown
	case errors.Is(err, ErrTenantInvalid),
		errors.Is(err, tenant.ErrInvalidID),
		errors.Is(err, ErrPasswordPolicy),
		errors.Is(err, ErrPasswordReuse),
		errors.Is(err, ErrAccountExists):
		return ClassValidation
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrAccountLocked),
		errors.Is(err, ErrTokenInvalid),
		errors.Is(err, token.ErrInvalid),
		errors.Is(err, ErrRefreshInvalid),
		errors.Is(err, ErrChallengeInvalid),
		errors.Is(err, ErrTwoFactorRequired),
		errors.Is(err, ErrTwoFactorNotEnabled),
		errors.Is(err, ErrResetInvalid),
		errors.Is(err, ErrVerificationInvalid):
		return ClassAuthentication
	case errors.Is(err, ErrTenantMismatch),
		errors.Is(err, ErrPermissionDenied),
		errors.Is(err, ErrImpersonationActive):
		return ClassAuthorization
	case errors.Is(err, ErrTenantNotFound),
		errors.Is(err, tenant.ErrNotFound),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, tenant.ErrUserNotFound),
		errors.Is(err, ErrImpersonationNotFound):
		return ClassNotFound
	case errors.Is(err, ErrRateLimited):
		return ClassRateLimited
	case errors.Is(err, ErrTokenExpired),
		errors.Is(err, token.ErrExpired),
		errors.Is(err, ErrResetExpired),
		errors.Is(err, ErrVerificationExpired):
		return ClassTokenExpired
	case errors.Is(err, rate.ErrBackendUnavailable),
		errors.Is(err, ErrEngineNotReady),
		errors.Is(err, ErrEngineClosed):
		return ClassInternal
	default:
		return ClassUnknown
	}
}
