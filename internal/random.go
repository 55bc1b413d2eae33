// Package internal holds small helpers shared by the identity engine that
// are not part of its public surface.
package internal

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

// NewOTP returns a cryptographically random numeric code of the given
// length, used for email verification codes. Each digit is drawn
// independently so the code keeps a uniform distribution.
func NewOTP(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", errors.New("invalid otp digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	return b.String(), nil
}
