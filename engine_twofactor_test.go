package identity

import (
	"context"
	"errors"
	"testing"
)

func startChallenge(t *testing.T, e *Engine, tenantID string) string {
	t.Helper()
	res, err := e.Login(context.Background(), tenantID, "mallory", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Status != LoginNeedsTwoFactor {
		t.Fatalf("status = %q, want %q", res.Status, LoginNeedsTwoFactor)
	}
	if res.ChallengeID == "" {
		t.Fatal("expected a challenge id")
	}
	if res.AccessToken != "" || res.RefreshToken != "" {
		t.Fatal("no tokens may be issued before the second factor")
	}
	return res.ChallengeID
}

func TestCompleteTwoFactorWithValidCode(t *testing.T) {
	e := newTestEngine(t, nil)
	challengeID := startChallenge(t, e, "demo")

	res, err := e.CompleteTwoFactor(context.Background(), "demo", challengeID, currentTOTP(testTOTPSecret))
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.Status != LoginSucceeded || res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatalf("expected a full session, got %+v", res)
	}

	id, err := e.DecodeAccess(res.AccessToken)
	if err != nil || id.UserID != "user-mallory" {
		t.Fatalf("decode: id=%+v err=%v", id, err)
	}
}

// A challenge dies on its first redemption attempt. A wrong code burns it,
// and the right code afterwards is too late.
func TestChallengeIsSingleUse(t *testing.T) {
	e := newTestEngine(t, nil)
	challengeID := startChallenge(t, e, "demo")

	if _, err := e.CompleteTwoFactor(context.Background(), "demo", challengeID, "000000"); !errors.Is(err, ErrChallengeInvalid) {
		t.Fatalf("wrong code: expected ErrChallengeInvalid, got %v", err)
	}
	if _, err := e.CompleteTwoFactor(context.Background(), "demo", challengeID, currentTOTP(testTOTPSecret)); !errors.Is(err, ErrChallengeInvalid) {
		t.Fatalf("second attempt on burnt challenge: expected ErrChallengeInvalid, got %v", err)
	}
}

func TestChallengeBoundToTenant(t *testing.T) {
	e := newTestEngine(t, nil)
	challengeID := startChallenge(t, e, "demo")

	if _, err := e.CompleteTwoFactor(context.Background(), "demo-instance", challengeID, currentTOTP(testTOTPSecret)); !errors.Is(err, ErrChallengeInvalid) {
		t.Fatalf("cross-tenant redemption: expected ErrChallengeInvalid, got %v", err)
	}
}

func TestUnknownChallengeID(t *testing.T) {
	e := newTestEngine(t, nil)

	if _, err := e.CompleteTwoFactor(context.Background(), "demo", "no-such-challenge", "123456"); !errors.Is(err, ErrChallengeInvalid) {
		t.Fatalf("expected ErrChallengeInvalid, got %v", err)
	}
}

// The demo bypass code is rejected unless explicitly enabled.
func TestDemoBypassDisabledByDefault(t *testing.T) {
	e := newTestEngine(t, nil)
	challengeID := startChallenge(t, e, "demo")

	if _, err := e.CompleteTwoFactor(context.Background(), "demo", challengeID, "123456"); !errors.Is(err, ErrChallengeInvalid) {
		t.Fatalf("bypass code with bypass disabled: expected ErrChallengeInvalid, got %v", err)
	}
}

func TestDemoBypassWhenEnabled(t *testing.T) {
	e := newTestEngine(t, func(cfg *Config) {
		cfg.TwoFactor.AllowDemoBypass = true
	})
	challengeID := startChallenge(t, e, "demo")

	res, err := e.CompleteTwoFactor(context.Background(), "demo", challengeID, "123456")
	if err != nil {
		t.Fatalf("bypass code with bypass enabled: %v", err)
	}
	if res.Status != LoginSucceeded {
		t.Fatalf("status = %q, want %q", res.Status, LoginSucceeded)
	}
}

func TestEnableTwoFactorProvisionsSecret(t *testing.T) {
	e := newTestEngine(t, nil)

	encoded, err := e.EnableTwoFactor(context.Background(), "demo", "user-bob")
	if err != nil {
		t.Fatalf("enable: %v", err)
	}
	if encoded == "" {
		t.Fatal("expected a base32 secret")
	}

	st := mustState(t, e, "demo")
	user, err := st.UserByID("user-bob")
	if err != nil || !user.TwoFactorEnabled || len(user.TwoFactorSecret) == 0 {
		t.Fatalf("user not enrolled: %+v err=%v", user, err)
	}

	// Next login must now demand the second factor.
	res, err := e.Login(context.Background(), "demo", "bob", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Status != LoginNeedsTwoFactor {
		t.Fatalf("status = %q, want %q", res.Status, LoginNeedsTwoFactor)
	}

	done, err := e.CompleteTwoFactor(context.Background(), "demo", res.ChallengeID, currentTOTP(user.TwoFactorSecret))
	if err != nil || done.Status != LoginSucceeded {
		t.Fatalf("complete after enrollment: res=%+v err=%v", done, err)
	}
}

func TestDisableTwoFactor(t *testing.T) {
	e := newTestEngine(t, nil)

	if err := e.DisableTwoFactor(context.Background(), "demo", "user-bob", "000000"); !errors.Is(err, ErrTwoFactorNotEnabled) {
		t.Fatalf("disable without enrollment: expected ErrTwoFactorNotEnabled, got %v", err)
	}

	if err := e.DisableTwoFactor(context.Background(), "demo", "user-mallory", "000000"); !errors.Is(err, ErrChallengeInvalid) {
		t.Fatalf("disable with wrong code: expected ErrChallengeInvalid, got %v", err)
	}
	if err := e.DisableTwoFactor(context.Background(), "demo", "user-mallory", currentTOTP(testTOTPSecret)); err != nil {
		t.Fatalf("disable: %v", err)
	}

	res, err := e.Login(context.Background(), "demo", "mallory", testPassword)
	if err != nil || res.Status != LoginSucceeded {
		t.Fatalf("login after disable: res=%+v err=%v", res, err)
	}
}
