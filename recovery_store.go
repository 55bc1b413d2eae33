package identity

import (
	"sync"
	"time"
)

type resetRecord struct {
	tenantID  string
	userID    string
	expiresAt time.Time
}

type verificationRecord struct {
	tenantID  string
	userID    string
	code      string
	expiresAt time.Time
}

// recoveryStore holds outstanding password-reset tokens and email
// verification codes. Reset tokens are keyed by the SHA-256 of the opaque
// value handed to the user; the value itself is never retained.
type recoveryStore struct {
	mu            sync.Mutex
	resets        map[[32]byte]resetRecord
	verifications map[string]verificationRecord
}

func newRecoveryStore() *recoveryStore {
	return &recoveryStore{
		resets:        make(map[[32]byte]resetRecord),
		verifications: make(map[string]verificationRecord),
	}
}

func verificationKey(tenantID, userID string) string {
	return tenantID + "|" + userID
}

func (s *recoveryStore) PutReset(hash [32]byte, rec resetRecord) {
	s.mu.Lock()
	s.resets[hash] = rec
	s.mu.Unlock()
}

// GetReset looks a token up without consuming it. A token stays valid until
// it is explicitly deleted or swept, so a failed policy check on the new
// password does not cost the user their reset link.
func (s *recoveryStore) GetReset(hash [32]byte) (resetRecord, bool) {
	s.mu.Lock()
	rec, ok := s.resets[hash]
	s.mu.Unlock()
	return rec, ok
}

func (s *recoveryStore) DeleteReset(hash [32]byte) {
	s.mu.Lock()
	delete(s.resets, hash)
	s.mu.Unlock()
}

// PutVerification replaces any outstanding code for the user.
func (s *recoveryStore) PutVerification(rec verificationRecord) {
	s.mu.Lock()
	s.verifications[verificationKey(rec.tenantID, rec.userID)] = rec
	s.mu.Unlock()
}

func (s *recoveryStore) GetVerification(tenantID, userID string) (verificationRecord, bool) {
	s.mu.Lock()
	rec, ok := s.verifications[verificationKey(tenantID, userID)]
	s.mu.Unlock()
	return rec, ok
}

func (s *recoveryStore) DeleteVerification(tenantID, userID string) {
	s.mu.Lock()
	delete(s.verifications, verificationKey(tenantID, userID))
	s.mu.Unlock()
}

// Sweep drops expired entries and reports how many were removed.
func (s *recoveryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for hash, rec := range s.resets {
		if now.After(rec.expiresAt) {
			delete(s.resets, hash)
			removed++
		}
	}
	for key, rec := range s.verifications {
		if now.After(rec.expiresAt) {
			delete(s.verifications, key)
			removed++
		}
	}
	return removed
}
