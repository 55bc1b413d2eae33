package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/aurorafin/identity/internal/metrics"
	internalrate "github.com/aurorafin/identity/internal/rate"
	"github.com/aurorafin/identity/password"
	"github.com/aurorafin/identity/tenant"
	"github.com/aurorafin/identity/token"
)

// Builder assembles an Engine. A builder is single-use: Build consumes it.
type Builder struct {
	config Config
	redis  *redis.Client
	seeds  map[string]tenant.Seed

	notifier  Notifier
	auditSink AuditSink
	logger    *zerolog.Logger

	built bool
}

// New returns a Builder preloaded with defaults.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
		seeds:  make(map[string]tenant.Seed),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis switches the lockout guard to a Redis backend. Without it the
// engine uses the in-process guard.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithSeed registers the users a tenant starts with. The tenant itself is
// materialized lazily on first use.
func (b *Builder) WithSeed(tenantID string, seed tenant.Seed) *Builder {
	b.seeds[tenantID] = seed
	return b
}

// WithNotifier sets the mail delivery hook for recovery flows.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithAuditSink sets the external audit consumer.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the engine logger. Without it the engine logs nowhere.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = &logger
	return b
}

// Build validates the configuration, wires all subsystems, and starts the
// background janitor.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Ed25519 deployments without provided keys get an ephemeral pair.
	// Tokens then survive only the process lifetime, which is fine for
	// tests and demos; production supplies its own keys.
	if cfg.Token.SigningMethod == string(token.MethodEd25519) &&
		len(cfg.Token.PrivateKey) == 0 && len(cfg.Token.PublicKey) == 0 {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		cfg.Token.PrivateKey = priv
		cfg.Token.PublicKey = pub
	}

	logger := zerolog.Nop()
	if b.logger != nil {
		logger = *b.logger
	}

	tenants, err := tenant.NewStore(b.seeds, cfg.Audit.MaxEntriesPerTenant)
	if err != nil {
		return nil, err
	}

	guardCfg := internalrate.Config{
		MaxAttempts:     cfg.Lockout.MaxAttempts,
		Window:          cfg.Lockout.Window,
		LockoutDuration: cfg.Lockout.LockoutDuration,
	}

	engine := &Engine{
		config:  cfg,
		logger:  logger,
		tenants: tenants,
		now:     time.Now,
	}

	if b.redis != nil {
		guard, err := internalrate.NewRedisGuard(b.redis, guardCfg)
		if err != nil {
			return nil, err
		}
		engine.guard = guard
	} else {
		guard, err := internalrate.NewMemoryGuard(guardCfg)
		if err != nil {
			return nil, err
		}
		engine.guard = guard
		engine.memGuard = guard
	}

	ph, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph

	dummy, err := ph.Hash("decoy-password-for-timing")
	if err != nil {
		return nil, err
	}
	engine.dummyHash = dummy

	tm, err := token.NewManager(token.Config{
		AccessTTL:     cfg.Token.AccessTTL,
		SigningMethod: token.SigningMethod(cfg.Token.SigningMethod),
		PrivateKey:    cfg.Token.PrivateKey,
		PublicKey:     cfg.Token.PublicKey,
		Issuer:        cfg.Token.Issuer,
		Audience:      cfg.Token.Audience,
		Leeway:        cfg.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}
	engine.tokens = tm

	engine.totp = newTOTPVerifier(cfg.TwoFactor)
	engine.challenges = newChallengeStore(cfg.TwoFactor.ChallengeTTL)
	engine.recovery = newRecoveryStore()
	engine.recoveryLimiter = newRecoveryLimiter(cfg.PasswordReset)
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.metrics = metrics.New(cfg.Metrics.Enabled)
	engine.notifier = b.notifier

	if !cfg.Cleanup.DisableJanitor {
		engine.janitor = newJanitor(engine, cfg.Cleanup)
		engine.janitor.Start()
	}

	b.built = true

	return engine, nil
}
