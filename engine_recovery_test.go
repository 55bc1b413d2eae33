package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aurorafin/identity/internal/metrics"
)

// recordingNotifier captures outbound mail for assertions.
type recordingNotifier struct {
	mu    sync.Mutex
	sends []struct {
		to, template string
		vars         map[string]string
	}
	err error
}

func (n *recordingNotifier) Send(to, template string, vars map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sends = append(n.sends, struct {
		to, template string
		vars         map[string]string
	}{to, template, vars})
	return n.err
}

func (n *recordingNotifier) last(t *testing.T, template string) map[string]string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sends) - 1; i >= 0; i-- {
		if n.sends[i].template == template {
			return n.sends[i].vars
		}
	}
	t.Fatalf("no %q mail sent", template)
	return nil
}

func newRecoveryEngine(t *testing.T, mutate func(*Config)) (*Engine, *recordingNotifier) {
	t.Helper()
	notifier := &recordingNotifier{}
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := New().
		WithConfig(cfg).
		WithSeed("demo", testSeed(t)).
		WithSeed("demo-instance", testSeed(t)).
		WithNotifier(notifier).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(e.Close)
	return e, notifier
}

// Known and unknown addresses get the same answer; only the mail differs.
func TestRequestPasswordResetEnumerationSafe(t *testing.T) {
	e, notifier := newRecoveryEngine(t, nil)
	ctx := context.Background()

	errKnown := e.RequestPasswordReset(ctx, "demo", "alice@example.com")
	errUnknown := e.RequestPasswordReset(ctx, "demo", "nobody@example.com")

	if errKnown != nil || errUnknown != nil {
		t.Fatalf("responses differ: known=%v unknown=%v", errKnown, errUnknown)
	}

	notifier.mu.Lock()
	sent := len(notifier.sends)
	notifier.mu.Unlock()
	if sent != 1 {
		t.Fatalf("expected exactly one mail, got %d", sent)
	}
}

func TestConfirmPasswordResetHappyPath(t *testing.T) {
	e, notifier := newRecoveryEngine(t, nil)
	ctx := context.Background()

	session := loginDemo(t, e)

	if err := e.RequestPasswordReset(ctx, "demo", "alice@example.com"); err != nil {
		t.Fatalf("request: %v", err)
	}
	resetToken := notifier.last(t, TemplatePasswordReset)["token"]

	if err := e.ConfirmPasswordReset(ctx, "demo", resetToken, "Recovered-password1"); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if _, err := e.Login(ctx, "demo", "alice", "Recovered-password1"); err != nil {
		t.Fatalf("login with recovered password: %v", err)
	}
	// The reset killed every open session.
	if _, err := e.Refresh(ctx, "demo", session.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected sessions revoked by reset, got %v", err)
	}
	// And the token is spent.
	if err := e.ConfirmPasswordReset(ctx, "demo", resetToken, "Another-password1"); !errors.Is(err, ErrResetInvalid) {
		t.Fatalf("reused token: expected ErrResetInvalid, got %v", err)
	}
}

// A weak replacement password rejects the attempt but keeps the token
// alive: the user retries without requesting a new link.
func TestConfirmPasswordResetPolicyFailureKeepsToken(t *testing.T) {
	e, notifier := newRecoveryEngine(t, nil)
	ctx := context.Background()

	if err := e.RequestPasswordReset(ctx, "demo", "alice@example.com"); err != nil {
		t.Fatalf("request: %v", err)
	}
	resetToken := notifier.last(t, TemplatePasswordReset)["token"]

	if err := e.ConfirmPasswordReset(ctx, "demo", resetToken, "weak"); !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}
	if err := e.ConfirmPasswordReset(ctx, "demo", resetToken, "Recovered-password1"); err != nil {
		t.Fatalf("retry after policy failure: %v", err)
	}
}

func TestConfirmPasswordResetExpires(t *testing.T) {
	e, notifier := newRecoveryEngine(t, nil)
	ctx := context.Background()

	if err := e.RequestPasswordReset(ctx, "demo", "alice@example.com"); err != nil {
		t.Fatalf("request: %v", err)
	}
	resetToken := notifier.last(t, TemplatePasswordReset)["token"]

	e.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	if err := e.ConfirmPasswordReset(ctx, "demo", resetToken, "Recovered-password1"); !errors.Is(err, ErrResetExpired) {
		t.Fatalf("expected ErrResetExpired, got %v", err)
	}
}

func TestConfirmPasswordResetWrongTenant(t *testing.T) {
	e, notifier := newRecoveryEngine(t, nil)
	ctx := context.Background()

	if err := e.RequestPasswordReset(ctx, "demo", "alice@example.com"); err != nil {
		t.Fatalf("request: %v", err)
	}
	resetToken := notifier.last(t, TemplatePasswordReset)["token"]

	if err := e.ConfirmPasswordReset(ctx, "demo-instance", resetToken, "Recovered-password1"); !errors.Is(err, ErrResetInvalid) {
		t.Fatalf("cross-tenant confirm: expected ErrResetInvalid, got %v", err)
	}
}

func TestRequestPasswordResetThrottled(t *testing.T) {
	e, notifier := newRecoveryEngine(t, nil)
	ctx := context.Background()

	// Default burst is 3; the fourth back-to-back request is dropped but
	// still answered identically.
	for i := 0; i < 4; i++ {
		if err := e.RequestPasswordReset(ctx, "demo", "alice@example.com"); err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
	}

	notifier.mu.Lock()
	sent := len(notifier.sends)
	notifier.mu.Unlock()
	if sent != 3 {
		t.Fatalf("expected 3 mails before throttle, got %d", sent)
	}
	if e.MetricsSnapshot()[metrics.RateLimited] == 0 {
		t.Fatal("expected rate limited counter to move")
	}
}

// Mail failure is logged and swallowed; the request still succeeds.
func TestRequestPasswordResetMailFailureNonFatal(t *testing.T) {
	e, notifier := newRecoveryEngine(t, nil)
	notifier.err = errors.New("smtp down")

	if err := e.RequestPasswordReset(context.Background(), "demo", "alice@example.com"); err != nil {
		t.Fatalf("request with failing mail: %v", err)
	}
}

func TestEmailVerificationFlow(t *testing.T) {
	e, notifier := newRecoveryEngine(t, nil)
	ctx := context.Background()

	if err := e.RequestEmailVerification(ctx, "demo", "bob@example.com"); err != nil {
		t.Fatalf("request: %v", err)
	}
	code := notifier.last(t, TemplateEmailVerification)["code"]
	if len(code) != 6 {
		t.Fatalf("code %q, want 6 digits", code)
	}

	if err := e.ConfirmEmailVerification(ctx, "demo", "user-bob", code); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	user, err := mustState(t, e, "demo").UserByID("user-bob")
	if err != nil || !user.EmailVerified {
		t.Fatalf("email not marked verified: %+v err=%v", user, err)
	}

	// Codes are single-use.
	if err := e.ConfirmEmailVerification(ctx, "demo", "user-bob", code); !errors.Is(err, ErrVerificationInvalid) {
		t.Fatalf("reused code: expected ErrVerificationInvalid, got %v", err)
	}
}

func TestEmailVerificationWrongCodeBurns(t *testing.T) {
	e, notifier := newRecoveryEngine(t, nil)
	ctx := context.Background()

	if err := e.RequestEmailVerification(ctx, "demo", "bob@example.com"); err != nil {
		t.Fatalf("request: %v", err)
	}
	code := notifier.last(t, TemplateEmailVerification)["code"]

	if err := e.ConfirmEmailVerification(ctx, "demo", "user-bob", "999999999"); !errors.Is(err, ErrVerificationInvalid) {
		t.Fatalf("wrong code: expected ErrVerificationInvalid, got %v", err)
	}
	if err := e.ConfirmEmailVerification(ctx, "demo", "user-bob", code); !errors.Is(err, ErrVerificationInvalid) {
		t.Fatalf("burnt code: expected ErrVerificationInvalid, got %v", err)
	}
}

func TestEmailVerificationExpires(t *testing.T) {
	e, notifier := newRecoveryEngine(t, nil)
	ctx := context.Background()

	if err := e.RequestEmailVerification(ctx, "demo", "bob@example.com"); err != nil {
		t.Fatalf("request: %v", err)
	}
	code := notifier.last(t, TemplateEmailVerification)["code"]

	e.now = func() time.Time { return time.Now().Add(25 * time.Hour) }

	if err := e.ConfirmEmailVerification(ctx, "demo", "user-bob", code); !errors.Is(err, ErrVerificationExpired) {
		t.Fatalf("expected ErrVerificationExpired, got %v", err)
	}
}
