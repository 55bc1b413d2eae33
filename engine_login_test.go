package identity

import (
	"context"
	"errors"
	"testing"
)

func TestLoginSuccess(t *testing.T) {
	e := newTestEngine(t, nil)

	res, err := e.Login(context.Background(), "demo", "alice", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Status != LoginSucceeded {
		t.Fatalf("status = %q, want %q", res.Status, LoginSucceeded)
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatal("expected both tokens on success")
	}
	if res.User == nil || res.User.ID != "user-alice" {
		t.Fatalf("unexpected user in result: %+v", res.User)
	}

	st := mustState(t, e, "demo")
	if !hasAuditAction(st.AuditEntries(0), auditEventLoginSuccess) {
		t.Fatal("expected login_success audit entry")
	}
}

func TestLoginTenantIDNormalized(t *testing.T) {
	e := newTestEngine(t, nil)

	if _, err := e.Login(context.Background(), "  DEMO ", "alice", testPassword); err != nil {
		t.Fatalf("login with unnormalized tenant id: %v", err)
	}

	// Every operation resolves tenants through the same path.
	if _, err := e.ImpersonationHistory(" Demo "); err != nil {
		t.Fatalf("history with unnormalized tenant id: %v", err)
	}
}

// A correct password clears the failure budget even when a second factor is
// still outstanding.
func TestPasswordMatchClearsFailureState(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := e.Login(ctx, "demo", "mallory", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}

	res, err := e.Login(ctx, "demo", "mallory", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Status != LoginNeedsTwoFactor {
		t.Fatalf("status = %q, want %q", res.Status, LoginNeedsTwoFactor)
	}

	user, err := mustState(t, e, "demo").UserByID("user-mallory")
	if err != nil {
		t.Fatalf("user lookup: %v", err)
	}
	if user.FailedLogins != 0 {
		t.Fatalf("FailedLogins = %d, want 0 after password match", user.FailedLogins)
	}
	if user.LastLogin.IsZero() {
		t.Fatal("LastLogin must be set at password match")
	}

	// The guard budget is full again: four more misses stay unlocked.
	for i := 0; i < 4; i++ {
		if _, err := e.Login(ctx, "demo", "mallory", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("post-match attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}
}

func TestLoginWrongPasswordIsGeneric(t *testing.T) {
	e := newTestEngine(t, nil)

	res, err := e.Login(context.Background(), "demo", "alice", "wrong-password")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if res.Reason != ReasonInvalidCredentials {
		t.Fatalf("reason = %q, want %q", res.Reason, ReasonInvalidCredentials)
	}
}

func TestLoginUnknownUsernameSameReason(t *testing.T) {
	e := newTestEngine(t, nil)

	knownRes, knownErr := e.Login(context.Background(), "demo", "alice", "wrong-password")
	unknownRes, unknownErr := e.Login(context.Background(), "demo", "nobody", "wrong-password")

	if !errors.Is(knownErr, ErrInvalidCredentials) || !errors.Is(unknownErr, ErrInvalidCredentials) {
		t.Fatalf("errors differ: known=%v unknown=%v", knownErr, unknownErr)
	}
	if knownRes.Reason != unknownRes.Reason {
		t.Fatalf("reasons differ: known=%q unknown=%q", knownRes.Reason, unknownRes.Reason)
	}
}

func TestLoginUnknownTenant(t *testing.T) {
	e := newTestEngine(t, nil)

	if _, err := e.Login(context.Background(), "ghost-tenant", "alice", testPassword); !errors.Is(err, ErrTenantNotFound) {
		t.Fatalf("expected ErrTenantNotFound, got %v", err)
	}
	if _, err := e.Login(context.Background(), "x", "alice", testPassword); !errors.Is(err, ErrTenantInvalid) {
		t.Fatalf("expected ErrTenantInvalid for malformed id, got %v", err)
	}
}

// Five wrong passwords lock the account; the sixth attempt is rejected as
// locked even with the correct password, and the same username in a sibling
// tenant is untouched.
func TestLockoutAfterRepeatedFailures(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res, err := e.Login(ctx, "demo", "alice", "wrong-password")
		if !errors.Is(err, ErrInvalidCredentials) && !errors.Is(err, ErrAccountLocked) {
			t.Fatalf("attempt %d: unexpected error %v", i+1, err)
		}
		if i < 4 && res.Reason != ReasonInvalidCredentials {
			t.Fatalf("attempt %d: reason = %q", i+1, res.Reason)
		}
	}

	res, err := e.Login(ctx, "demo", "alice", testPassword)
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("sixth attempt with correct password: expected ErrAccountLocked, got %v", err)
	}
	if res.Reason != ReasonAccountLocked {
		t.Fatalf("sixth attempt reason = %q, want %q", res.Reason, ReasonAccountLocked)
	}

	// Same username, different tenant: no shared lockout state.
	if _, err := e.Login(ctx, "demo-instance", "alice", testPassword); err != nil {
		t.Fatalf("sibling tenant login should succeed, got %v", err)
	}
}

// The guard tracks unknown usernames too, so probing a nonexistent account
// behaves exactly like hammering a real one.
func TestLockoutAppliesToUnknownUsernames(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := e.Login(ctx, "demo", "nobody", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}

	res, err := e.Login(ctx, "demo", "nobody", "wrong-password")
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}
	if res.Reason != ReasonAccountLocked {
		t.Fatalf("reason = %q, want %q", res.Reason, ReasonAccountLocked)
	}
}

func TestSuccessfulLoginResetsGuard(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, _ = e.Login(ctx, "demo", "alice", "wrong-password")
	}
	if _, err := e.Login(ctx, "demo", "alice", testPassword); err != nil {
		t.Fatalf("login before threshold: %v", err)
	}

	// Counter was reset: four more failures still stay under the limit.
	for i := 0; i < 4; i++ {
		if _, err := e.Login(ctx, "demo", "alice", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("post-reset attempt %d: %v", i+1, err)
		}
	}
	if _, err := e.Login(ctx, "demo", "alice", testPassword); err != nil {
		t.Fatalf("login after reset: %v", err)
	}
}
