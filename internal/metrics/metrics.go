package metrics

import "sync/atomic"

// ID identifies a single engine counter.
type ID uint16

const (
	LoginSuccess ID = iota
	LoginFailure
	LoginLocked
	TwoFactorRequired
	TwoFactorSuccess
	TwoFactorFailure
	StepUpSuccess
	StepUpFailure
	AccessIssued
	AccessRejected
	AccessExpired
	RefreshIssued
	RefreshSuccess
	RefreshRevoked
	RefreshExpired
	TenantMismatch
	Logout
	ImpersonationStarted
	ImpersonationStopped
	ImpersonationDenied
	PasswordChanged
	ResetRequested
	ResetCompleted
	ResetFailed
	VerificationRequested
	VerificationCompleted
	VerificationFailed
	RateLimited
	idCount
)

var names = [idCount]string{
	LoginSuccess:          "login_success",
	LoginFailure:          "login_failure",
	LoginLocked:           "login_locked",
	TwoFactorRequired:     "two_factor_required",
	TwoFactorSuccess:      "two_factor_success",
	TwoFactorFailure:      "two_factor_failure",
	StepUpSuccess:         "step_up_success",
	StepUpFailure:         "step_up_failure",
	AccessIssued:          "access_issued",
	AccessRejected:        "access_rejected",
	AccessExpired:         "access_expired",
	RefreshIssued:         "refresh_issued",
	RefreshSuccess:        "refresh_success",
	RefreshRevoked:        "refresh_revoked",
	RefreshExpired:        "refresh_expired",
	TenantMismatch:        "tenant_mismatch",
	Logout:                "logout",
	ImpersonationStarted:  "impersonation_started",
	ImpersonationStopped:  "impersonation_stopped",
	ImpersonationDenied:   "impersonation_denied",
	PasswordChanged:       "password_changed",
	ResetRequested:        "reset_requested",
	ResetCompleted:        "reset_completed",
	ResetFailed:           "reset_failed",
	VerificationRequested: "verification_requested",
	VerificationCompleted: "verification_completed",
	VerificationFailed:    "verification_failed",
	RateLimited:           "rate_limited",
}

// String returns the snake_case counter name used in exports.
func (id ID) String() string {
	if id >= idCount {
		return "unknown"
	}
	return names[id]
}

// IDs returns every counter id in declaration order.
func IDs() []ID {
	out := make([]ID, idCount)
	for i := range out {
		out[i] = ID(i)
	}
	return out
}

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is the engine's counter set. The zero value is unusable; a nil
// *Metrics is a valid no-op sink so callers never nil-check.
type Metrics struct {
	enabled  bool
	counters [idCount]paddedCounter
}

// New returns a counter set. When enabled is false every write is a no-op
// and Snapshot returns empty maps.
func New(enabled bool) *Metrics {
	return &Metrics{enabled: enabled}
}

// Enabled reports whether counters are being recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc adds one to the counter.
func (m *Metrics) Inc(id ID) {
	if m == nil || !m.enabled || id >= idCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Value reads a single counter.
func (m *Metrics) Value(id ID) uint64 {
	if m == nil || id >= idCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter.
func (m *Metrics) Snapshot() map[ID]uint64 {
	if m == nil || !m.enabled {
		return map[ID]uint64{}
	}
	s := make(map[ID]uint64, int(idCount))
	for id := ID(0); id < idCount; id++ {
		s[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return s
}
