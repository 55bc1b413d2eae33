package identity

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"
)

const totpSecretBytes = 20

type totpVerifier struct {
	digits uint
	period uint64
	skew   uint64
}

func newTOTPVerifier(cfg TwoFactorConfig) *totpVerifier {
	return &totpVerifier{
		digits: uint(cfg.TOTPDigits),
		period: cfg.TOTPPeriod,
		skew:   cfg.TOTPSkew,
	}
}

// GenerateSecret returns a fresh shared secret plus its base32 form for
// authenticator enrollment.
func (v *totpVerifier) GenerateSecret() ([]byte, string, error) {
	raw := make([]byte, totpSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", err
	}
	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	return raw, enc.EncodeToString(raw), nil
}

// VerifyCode checks a code against the secret over the configured skew
// window. Malformed codes fail without error; comparison is constant-time.
func (v *totpVerifier) VerifyCode(secret []byte, code string, now time.Time) (bool, error) {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) != int(v.digits) || !isNumericString(trimmed) {
		return false, nil
	}
	if len(secret) == 0 {
		return false, errors.New("empty totp secret")
	}

	baseCounter := uint64(now.Unix()) / v.period
	for step := -int64(v.skew); step <= int64(v.skew); step++ {
		counter := int64(baseCounter) + step
		if counter < 0 {
			continue
		}
		generated := hotpCode(secret, uint64(counter), v.digits)
		if subtle.ConstantTimeCompare([]byte(generated), []byte(trimmed)) == 1 {
			return true, nil
		}
	}
	return false, nil
}

func hotpCode(secret []byte, counter uint64, digits uint) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(sha1.New, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := uint(0); i < digits; i++ {
		mod *= 10
	}

	return fmt.Sprintf("%0*d", digits, bin%mod)
}

func isNumericString(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
