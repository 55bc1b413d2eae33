package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const opaqueByteLen = 32

// NewOpaque returns a fresh opaque token value: 32 random bytes,
// base64url-encoded without padding. The value itself is handed to the
// client; only its hash is ever stored.
func NewOpaque() (string, error) {
	buf := make([]byte, opaqueByteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("token: generate opaque value: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashOpaque returns the SHA-256 digest of an opaque value, the storage key
// for refresh token records.
func HashOpaque(value string) [32]byte {
	return sha256.Sum256([]byte(value))
}
