package tenant

import (
	"errors"
	"strings"
	"sync"
)

var (
	// ErrInvalidID is returned when a tenant identifier fails validation
	// before any lookup is attempted.
	ErrInvalidID = errors.New("tenant: invalid tenant id")

	// ErrNotFound is returned when a well-formed tenant identifier has no
	// seed and no materialized state.
	ErrNotFound = errors.New("tenant: tenant not found")
)

const (
	minIDLength = 3
	maxIDLength = 50
)

// NormalizeID lowercases and trims a raw tenant identifier. Callers at the
// edge (HTTP headers, CLI flags) should normalize before calling Resolve;
// Resolve itself rejects anything not already in normalized form.
func NormalizeID(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ValidateID reports whether id is an acceptable tenant identifier: already
// normalized and between 3 and 50 characters.
func ValidateID(id string) error {
	if id == "" || id != NormalizeID(id) {
		return ErrInvalidID
	}
	if len(id) < minIDLength || len(id) > maxIDLength {
		return ErrInvalidID
	}
	return nil
}

// Store holds all tenant state, keyed by normalized tenant id. Tenants are
// materialized lazily on first Resolve: a tenant with a registered Seed gets
// its users installed exactly once, all other well-formed ids resolve to
// ErrNotFound. Store is safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	seeds  map[string]Seed
	states map[string]*State

	auditCap int
}

// NewStore builds a Store from the given seeds. auditCap bounds the audit
// ledger of every tenant; zero means unbounded.
func NewStore(seeds map[string]Seed, auditCap int) (*Store, error) {
	s := &Store{
		seeds:    make(map[string]Seed, len(seeds)),
		states:   make(map[string]*State),
		auditCap: auditCap,
	}
	for id, seed := range seeds {
		if err := ValidateID(id); err != nil {
			return nil, err
		}
		s.seeds[id] = seed
	}
	return s, nil
}

// Resolve returns the state for id, materializing it from the seed on first
// access. It distinguishes malformed ids (ErrInvalidID) from well-formed ids
// that are simply unknown (ErrNotFound).
func (s *Store) Resolve(id string) (*State, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.states[id]; ok {
		return st, nil
	}
	seed, ok := s.seeds[id]
	if !ok {
		return nil, ErrNotFound
	}
	st := newState(id, s.auditCap)
	for i := range seed.Users {
		if err := st.PutUser(seed.Users[i]); err != nil {
			return nil, err
		}
	}
	s.states[id] = st
	return st, nil
}

// IDs returns the ids of all materialized tenants. Seeded but never-resolved
// tenants are not included; they have no state to maintain yet.
func (s *Store) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.states))
	for id := range s.states {
		ids = append(ids, id)
	}
	return ids
}
