package identity

import (
	"fmt"
	"unicode"
)

// validatePassword checks a candidate password against the configured policy.
// The returned error wraps ErrPasswordPolicy so callers can classify it while
// still surfacing which rule failed.
func validatePassword(cfg PasswordPolicyConfig, pw string) error {
	if len(pw) < cfg.MinLength {
		return fmt.Errorf("%w: at least %d characters required", ErrPasswordPolicy, cfg.MinLength)
	}
	if cfg.MaxLength > 0 && len(pw) > cfg.MaxLength {
		return fmt.Errorf("%w: at most %d characters allowed", ErrPasswordPolicy, cfg.MaxLength)
	}

	var upper, lower, digit, symbol, space bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsSpace(r):
			space = true
		default:
			symbol = true
		}
	}

	if cfg.RequireUpper && !upper {
		return fmt.Errorf("%w: uppercase letter required", ErrPasswordPolicy)
	}
	if cfg.RequireLower && !lower {
		return fmt.Errorf("%w: lowercase letter required", ErrPasswordPolicy)
	}
	if cfg.RequireDigit && !digit {
		return fmt.Errorf("%w: digit required", ErrPasswordPolicy)
	}
	if cfg.RequireSymbol && !symbol {
		return fmt.Errorf("%w: symbol required", ErrPasswordPolicy)
	}
	if cfg.ForbidWhitespace && space {
		return fmt.Errorf("%w: whitespace not allowed", ErrPasswordPolicy)
	}
	return nil
}
