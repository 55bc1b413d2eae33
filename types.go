package identity

import (
	"time"

	"github.com/aurorafin/identity/tenant"
)

// LoginStatus is the outcome of a Login call.
type LoginStatus string

const (
	LoginSucceeded      LoginStatus = "success"
	LoginNeedsTwoFactor LoginStatus = "needs_2fa"
	LoginFailed         LoginStatus = "failure"
)

// LoginResult is returned by Login and CompleteTwoFactor. On success both
// tokens are set; when two-factor is pending ChallengeID identifies the
// challenge to redeem; on failure Reason carries one of the generic reason
// strings.
type LoginResult struct {
	Status       LoginStatus
	Reason       string
	AccessToken  string
	RefreshToken string
	ChallengeID  string
	User         *tenant.User
}

// AccessIdentity is the decoded view of a verified access token.
type AccessIdentity struct {
	UserID       string
	TenantID     string
	Role         tenant.Role
	Tier         tenant.Tier
	FeatureFlags []string
	ActingAs     string
	ExpiresAt    time.Time
}

// Notifier delivers recovery and verification mail. Implementations must be
// safe for concurrent use; the engine calls Send outside its locks and
// treats failures as non-fatal.
type Notifier interface {
	Send(to, template string, vars map[string]string) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(to, template string, vars map[string]string) error

// Send implements Notifier.
func (f NotifierFunc) Send(to, template string, vars map[string]string) error {
	return f(to, template, vars)
}

// Notification template names passed to Notifier.Send.
const (
	TemplatePasswordReset     = "password_reset"
	TemplateEmailVerification = "email_verification"
)
