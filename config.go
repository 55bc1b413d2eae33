package identity

import (
	"errors"
	"time"

	"github.com/aurorafin/identity/token"
)

// Config is the engine's full configuration. Construct it by mutating the
// defaults applied by the builder; it is treated as immutable after Build.
type Config struct {
	Token             TokenConfig
	Lockout           LockoutConfig
	TwoFactor         TwoFactorConfig
	Password          PasswordConfig
	PasswordPolicy    PasswordPolicyConfig
	PasswordReset     PasswordResetConfig
	EmailVerification EmailVerificationConfig
	Audit             AuditConfig
	Metrics           MetricsConfig
	Security          SecurityConfig
	Cleanup           CleanupConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig configures the access token authority and refresh token
// lifetimes.
type TokenConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig tunes the failed-login guard. The window is fixed: attempts
// accumulate per (tenant, login) key, and the attempt that reaches
// MaxAttempts locks the key for LockoutDuration.
type LockoutConfig struct {
	MaxAttempts     int
	Window          time.Duration
	LockoutDuration time.Duration
}

/*
====================================
TWO-FACTOR CONFIG
====================================
*/

// TwoFactorConfig configures login challenges and step-up verification.
// AllowDemoBypass accepts DemoBypassCode in place of a real TOTP code; it
// exists for demo environments and must stay off everywhere else.
type TwoFactorConfig struct {
	ChallengeTTL    time.Duration
	TOTPDigits      int
	TOTPPeriod      uint64
	TOTPSkew        uint64
	AllowDemoBypass bool
	DemoBypassCode  string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id cost parameters.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// PasswordPolicyConfig is enforced on every new password: registration,
// change, and reset confirmation.
type PasswordPolicyConfig struct {
	MinLength        int
	MaxLength        int
	RequireUpper     bool
	RequireLower     bool
	RequireDigit     bool
	RequireSymbol    bool
	ForbidWhitespace bool
}

/*
====================================
RECOVERY CONFIG
====================================
*/

// PasswordResetConfig configures the credential-recovery flow.
type PasswordResetConfig struct {
	Enabled        bool
	ResetTTL       time.Duration
	RequestsPerMin float64
	RequestBurst   int
}

// EmailVerificationConfig configures email ownership verification.
type EmailVerificationConfig struct {
	Enabled         bool
	VerificationTTL time.Duration
	OTPDigits       int
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig bounds the per-tenant ledger and tunes the async sink
// dispatcher.
type AuditConfig struct {
	MaxEntriesPerTenant int
	BufferSize          int
	DropIfFull          bool
}

// MetricsConfig switches counter recording on.
type MetricsConfig struct {
	Enabled bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig carries deployment-wide hardening switches.
type SecurityConfig struct {
	ProductionMode bool
}

/*
====================================
CLEANUP CONFIG
====================================
*/

// CleanupConfig tunes the background janitor that prunes expired
// challenges, recovery tokens, dead refresh records, and stale guard
// entries.
type CleanupConfig struct {
	Interval       time.Duration
	RefreshKeepFor time.Duration
	DisableJanitor bool
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "ed25519",
			Issuer:        "identity",
			Audience:      "identity-clients",
			Leeway:        30 * time.Second,
		},
		Lockout: LockoutConfig{
			MaxAttempts:     5,
			Window:          15 * time.Minute,
			LockoutDuration: 15 * time.Minute,
		},
		TwoFactor: TwoFactorConfig{
			ChallengeTTL:    5 * time.Minute,
			TOTPDigits:      6,
			TOTPPeriod:      30,
			TOTPSkew:        1,
			AllowDemoBypass: false,
			DemoBypassCode:  "123456",
		},
		Password: PasswordConfig{
			Memory:      65536,
			Time:        2,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		PasswordPolicy: PasswordPolicyConfig{
			MinLength:        10,
			MaxLength:        128,
			RequireUpper:     true,
			RequireLower:     true,
			RequireDigit:     true,
			RequireSymbol:    false,
			ForbidWhitespace: true,
		},
		PasswordReset: PasswordResetConfig{
			Enabled:        true,
			ResetTTL:       time.Hour,
			RequestsPerMin: 3,
			RequestBurst:   3,
		},
		EmailVerification: EmailVerificationConfig{
			Enabled:         true,
			VerificationTTL: 24 * time.Hour,
			OTPDigits:       6,
		},
		Audit: AuditConfig{
			MaxEntriesPerTenant: 500,
			BufferSize:          1024,
			DropIfFull:          true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Security: SecurityConfig{
			ProductionMode: false,
		},
		Cleanup: CleanupConfig{
			Interval:       time.Minute,
			RefreshKeepFor: 24 * time.Hour,
		},
	}
}

// Validate rejects configurations the engine cannot run safely with.
// ProductionMode additionally hardens limits and forbids the demo bypass.
func (c *Config) Validate() error {
	if c.Token.AccessTTL <= 0 {
		return errors.New("token AccessTTL must be positive")
	}
	if c.Token.RefreshTTL <= c.Token.AccessTTL {
		return errors.New("token RefreshTTL must exceed AccessTTL")
	}
	switch token.SigningMethod(c.Token.SigningMethod) {
	case token.MethodEd25519, token.MethodHS256:
	default:
		return errors.New("unsupported token signing method")
	}
	if c.Token.Issuer == "" || c.Token.Audience == "" {
		return errors.New("token Issuer and Audience are required")
	}

	if c.Lockout.MaxAttempts <= 0 {
		return errors.New("lockout MaxAttempts must be positive")
	}
	if c.Lockout.Window <= 0 || c.Lockout.LockoutDuration <= 0 {
		return errors.New("lockout Window and LockoutDuration must be positive")
	}

	if c.TwoFactor.ChallengeTTL <= 0 {
		return errors.New("two-factor ChallengeTTL must be positive")
	}
	if c.TwoFactor.TOTPDigits < 6 || c.TwoFactor.TOTPDigits > 8 {
		return errors.New("two-factor TOTPDigits must be 6..8")
	}
	if c.TwoFactor.TOTPPeriod == 0 {
		return errors.New("two-factor TOTPPeriod must be positive")
	}
	if c.TwoFactor.AllowDemoBypass && c.TwoFactor.DemoBypassCode == "" {
		return errors.New("two-factor demo bypass requires a bypass code")
	}

	if c.PasswordPolicy.MinLength < 8 {
		return errors.New("password policy MinLength must be >= 8")
	}
	if c.PasswordPolicy.MaxLength < c.PasswordPolicy.MinLength {
		return errors.New("password policy MaxLength must be >= MinLength")
	}

	if c.PasswordReset.Enabled {
		if c.PasswordReset.ResetTTL <= 0 {
			return errors.New("password reset TTL must be positive")
		}
		if c.PasswordReset.RequestsPerMin <= 0 || c.PasswordReset.RequestBurst <= 0 {
			return errors.New("password reset throttle must be positive")
		}
	}
	if c.EmailVerification.Enabled {
		if c.EmailVerification.VerificationTTL <= 0 {
			return errors.New("email verification TTL must be positive")
		}
		if c.EmailVerification.OTPDigits < 6 || c.EmailVerification.OTPDigits > 10 {
			return errors.New("email verification OTPDigits must be 6..10")
		}
	}

	if c.Audit.MaxEntriesPerTenant < 0 {
		return errors.New("audit MaxEntriesPerTenant must be >= 0")
	}
	if c.Audit.BufferSize <= 0 {
		return errors.New("audit BufferSize must be positive")
	}

	if !c.Cleanup.DisableJanitor {
		if c.Cleanup.Interval <= 0 {
			return errors.New("cleanup Interval must be positive")
		}
		if c.Cleanup.RefreshKeepFor < 0 {
			return errors.New("cleanup RefreshKeepFor must be >= 0")
		}
	}

	if c.Security.ProductionMode {
		if c.TwoFactor.AllowDemoBypass {
			return errors.New("ProductionMode forbids the two-factor demo bypass")
		}
		if c.Token.AccessTTL > 15*time.Minute {
			return errors.New("ProductionMode requires token AccessTTL <= 15m")
		}
		if c.Token.RefreshTTL > 30*24*time.Hour {
			return errors.New("ProductionMode requires token RefreshTTL <= 30d")
		}
		if c.Token.SigningMethod == string(token.MethodHS256) && len(c.Token.PrivateKey) < 32 {
			return errors.New("ProductionMode requires hs256 key length >= 256 bits")
		}
		if c.Password.Memory < 65536 {
			return errors.New("ProductionMode requires Password Memory >= 65536 KB")
		}
		if c.Password.Time < 2 {
			return errors.New("ProductionMode requires Password Time >= 2")
		}
	}

	return nil
}
