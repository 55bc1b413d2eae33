package identity

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type challenge struct {
	tenantID  string
	userID    string
	expiresAt time.Time
}

// challengeStore holds pending two-factor challenges. Challenges are
// single-use in the strictest sense: Consume removes the challenge on the
// first redemption attempt, before the caller knows whether the code was
// right, so a second attempt with the same id always fails.
type challengeStore struct {
	ttl time.Duration

	mu         sync.Mutex
	challenges map[string]challenge
}

func newChallengeStore(ttl time.Duration) *challengeStore {
	return &challengeStore{
		ttl:        ttl,
		challenges: make(map[string]challenge),
	}
}

func (s *challengeStore) Create(tenantID, userID string, now time.Time) (string, error) {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[id] = challenge{
		tenantID:  tenantID,
		userID:    userID,
		expiresAt: now.Add(s.ttl),
	}
	return id, nil
}

// Consume removes and returns the challenge. Expired challenges are removed
// but not returned.
func (s *challengeStore) Consume(id string, now time.Time) (challenge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[id]
	if !ok {
		return challenge{}, false
	}
	delete(s.challenges, id)
	if now.After(c.expiresAt) {
		return challenge{}, false
	}
	return c, true
}

// Sweep drops expired challenges, returning how many were removed.
func (s *challengeStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, c := range s.challenges {
		if now.After(c.expiresAt) {
			delete(s.challenges, id)
			n++
		}
	}
	return n
}

func (s *challengeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.challenges)
}
