package tenant

import "time"

// Role is the closed set of account roles within a tenant.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleManager  Role = "manager"
	RoleUser     Role = "user"
	RoleFamily   Role = "family"
	RoleReadOnly Role = "readonly"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleManager, RoleUser, RoleFamily, RoleReadOnly:
		return true
	default:
		return false
	}
}

// Tier is the subscription tier attached to a user. Feature entitlements in
// access tokens are derived from it.
type Tier string

const (
	TierFree     Tier = "free"
	TierAdvanced Tier = "advanced"
	TierPremium  Tier = "premium"
	TierFamily   Tier = "family"
)

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierAdvanced, TierPremium, TierFamily:
		return true
	default:
		return false
	}
}

// Features returns the entitlement flags for the tier. The slice is freshly
// allocated on every call so callers may append without aliasing.
func (t Tier) Features() []string {
	base := []string{"budgeting", "goal_tracking"}
	switch t {
	case TierAdvanced:
		return append(base, "advanced_reports", "csv_export")
	case TierPremium:
		return append(base, "advanced_reports", "csv_export", "investments", "priority_support")
	case TierFamily:
		return append(base, "advanced_reports", "shared_accounts", "family_members")
	default:
		return base
	}
}

// User is the full account record held in tenant state. Timestamps use the
// zero value to mean "not set".
type User struct {
	ID               string
	Username         string
	Email            string
	DisplayName      string
	Role             Role
	Tier             Tier
	PasswordHash     string
	TwoFactorSecret  []byte
	TwoFactorEnabled bool
	EmailVerified    bool
	PhoneVerified    bool
	FailedLogins     int
	LockUntil        time.Time
	LastLogin        time.Time
	CreatedAt        time.Time
}

// Locked reports whether the account-level lock is active at the given time.
func (u *User) Locked(now time.Time) bool {
	return !u.LockUntil.IsZero() && now.Before(u.LockUntil)
}

// RefreshToken is a server-side revocable credential record. The opaque value
// handed to the client is never stored; only its SHA-256 is kept.
type RefreshToken struct {
	ValueHash [32]byte
	TenantID  string
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
	RevokedAt time.Time
	Reason    string
	UserAgent string
	IP        string
}

// Revoked reports whether the token has been revoked.
func (t *RefreshToken) Revoked() bool {
	return !t.RevokedAt.IsZero()
}

// Expired reports whether the token's lifetime has elapsed at the given time.
func (t *RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// StepUpEvent is an append-only record of a sensitive-action re-verification.
// Events are never mutated after creation.
type StepUpEvent struct {
	UserID     string
	Action     string
	VerifiedAt time.Time
	Success    bool
	Metadata   map[string]string
}

// ImpersonationRecord tracks an owner acting as another user in the same
// tenant. EndedAt zero means the impersonation is still active.
type ImpersonationRecord struct {
	ID        string
	ActorID   string
	TargetID  string
	Reason    string
	StartedAt time.Time
	EndedAt   time.Time
}

// Active reports whether the record has not been closed yet.
func (r *ImpersonationRecord) Active() bool {
	return r.EndedAt.IsZero()
}

// Severity classifies audit ledger entries.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Identity names an acting principal in an audit entry.
type Identity struct {
	UserID      string
	Username    string
	DisplayName string
}

// AuditEntry is a tenant-scoped, append-only ledger record. Entries with
// Immutable set survive ledger capping and are never removed.
type AuditEntry struct {
	ID           string
	Actor        Identity
	Impersonated *Identity
	Action       string
	TargetID     string
	Metadata     map[string]string
	Severity     Severity
	Immutable    bool
	Timestamp    time.Time
}

// Seed is the pre-provisioned initial state for one tenant.
type Seed struct {
	Users []User
}
