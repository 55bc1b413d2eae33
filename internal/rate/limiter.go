package rate

import (
	"context"
	"errors"
	"time"
)

// Config holds guard tuning parameters.
type Config struct {
	MaxAttempts     int
	Window          time.Duration
	LockoutDuration time.Duration
}

// Validate rejects configurations the guard cannot enforce.
func (c Config) Validate() error {
	if c.MaxAttempts <= 0 {
		return errors.New("rate: max attempts must be positive")
	}
	if c.Window <= 0 {
		return errors.New("rate: window must be positive")
	}
	if c.LockoutDuration <= 0 {
		return errors.New("rate: lockout duration must be positive")
	}
	return nil
}

// Status is the guard's answer for a key.
type Status struct {
	Allowed     bool
	Remaining   int
	LockedUntil time.Time
}

// Guard tracks failed attempts per key and locks a key out once the
// threshold is reached within the window. Keys are opaque to the guard;
// callers build them from tenant and login identifiers, so unknown
// identifiers consume budget exactly like real ones.
type Guard interface {
	// Check reports whether the key may attempt right now.
	Check(ctx context.Context, key string) (Status, error)

	// RecordFailure counts a failed attempt and reports whether this
	// failure tripped the lockout.
	RecordFailure(ctx context.Context, key string) (bool, error)

	// Reset clears the key's counter and lock, typically after a
	// successful attempt.
	Reset(ctx context.Context, key string) error
}
