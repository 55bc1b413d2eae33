package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/aurorafin/identity/tenant"
)

func TestRegisterCreatesLoginableAccount(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	user, err := e.Register(ctx, "demo", RegisterRequest{
		Username:    "Dana",
		Email:       "Dana@Example.com",
		DisplayName: "Dana",
		Password:    "Sufficiently-long-pw1",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Username != "dana" || user.Email != "dana@example.com" {
		t.Fatalf("identifiers not normalized: %+v", user)
	}
	if user.Role != tenant.RoleUser || user.Tier != tenant.TierFree {
		t.Fatalf("defaults not applied: %+v", user)
	}
	if user.PasswordHash != "" {
		t.Fatal("password hash must not leak out of Register")
	}

	res, err := e.Login(ctx, "demo", "dana", "Sufficiently-long-pw1")
	if err != nil || res.Status != LoginSucceeded {
		t.Fatalf("login as new user: res=%+v err=%v", res, err)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := e.Register(ctx, "demo", RegisterRequest{
		Username: "alice",
		Email:    "fresh@example.com",
		Password: "Sufficiently-long-pw1",
	}); !errors.Is(err, ErrAccountExists) {
		t.Fatalf("duplicate username: expected ErrAccountExists, got %v", err)
	}
	if _, err := e.Register(ctx, "demo", RegisterRequest{
		Username: "fresh",
		Email:    "alice@example.com",
		Password: "Sufficiently-long-pw1",
	}); !errors.Is(err, ErrAccountExists) {
		t.Fatalf("duplicate email: expected ErrAccountExists, got %v", err)
	}

	// Same identifiers in a different tenant are fine.
	if _, err := e.Register(ctx, "demo-instance", RegisterRequest{
		Username: "dana",
		Email:    "dana@example.com",
		Password: "Sufficiently-long-pw1",
	}); err != nil {
		t.Fatalf("register in sibling tenant: %v", err)
	}
}

func TestRegisterEnforcesPasswordPolicy(t *testing.T) {
	e := newTestEngine(t, nil)

	_, err := e.Register(context.Background(), "demo", RegisterRequest{
		Username: "weakling",
		Email:    "weak@example.com",
		Password: "short",
	})
	if !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}
	if got := FailureClass(err); got != ClassValidation {
		t.Fatalf("FailureClass = %v, want ClassValidation", got)
	}
}

func TestChangePassword(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	res := loginDemo(t, e)

	if err := e.ChangePassword(ctx, "demo", "user-alice", "not-the-password", "A-brand-new-password1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong old password: expected ErrInvalidCredentials, got %v", err)
	}
	if err := e.ChangePassword(ctx, "demo", "user-alice", testPassword, testPassword); !errors.Is(err, ErrPasswordReuse) {
		t.Fatalf("reuse: expected ErrPasswordReuse, got %v", err)
	}
	if err := e.ChangePassword(ctx, "demo", "user-alice", testPassword, "tiny"); !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("weak: expected ErrPasswordPolicy, got %v", err)
	}

	if err := e.ChangePassword(ctx, "demo", "user-alice", testPassword, "A-brand-new-password1"); err != nil {
		t.Fatalf("change: %v", err)
	}

	// Old sessions die with the old credential.
	if _, err := e.Refresh(ctx, "demo", res.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected refresh revoked after change, got %v", err)
	}

	if _, err := e.Login(ctx, "demo", "alice", testPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password still works: %v", err)
	}
	if _, err := e.Login(ctx, "demo", "alice", "A-brand-new-password1"); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
}
