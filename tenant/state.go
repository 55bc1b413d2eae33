package tenant

import (
	"errors"
	"strings"
	"sync"
	"time"
)

var (
	// ErrUserNotFound is returned by user lookups and updates when no user
	// matches the given key within the tenant.
	ErrUserNotFound = errors.New("tenant: user not found")

	// ErrUserExists is returned by PutUser when the id, username, or email
	// is already taken within the tenant.
	ErrUserExists = errors.New("tenant: user already exists")
)

// State is the in-memory state of a single tenant: users, refresh tokens,
// step-up history, impersonation records, and the audit ledger. All access
// goes through its methods; the embedded lock makes it safe for concurrent
// use. User accessors return copies, so callers never hold a pointer into
// the store; mutations go through UpdateUser.
type State struct {
	id string

	mu            sync.RWMutex
	usersByID     map[string]*User
	usernameIndex map[string]string // lower(username) -> user id
	emailIndex    map[string]string // lower(email) -> user id

	refresh map[[32]byte]*RefreshToken

	stepUps        map[string][]StepUpEvent
	impersonations []ImpersonationRecord

	audit    []AuditEntry
	auditCap int
}

func newState(id string, auditCap int) *State {
	return &State{
		id:            id,
		usersByID:     make(map[string]*User),
		usernameIndex: make(map[string]string),
		emailIndex:    make(map[string]string),
		refresh:       make(map[[32]byte]*RefreshToken),
		stepUps:       make(map[string][]StepUpEvent),
		auditCap:      auditCap,
	}
}

// ID returns the normalized tenant id.
func (s *State) ID() string { return s.id }

// PutUser installs a new user. Username and email lookups are
// case-insensitive, so the indexes store lowercased keys.
func (s *State) PutUser(u User) error {
	uname := strings.ToLower(u.Username)
	email := strings.ToLower(u.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.usersByID[u.ID]; ok {
		return ErrUserExists
	}
	if _, ok := s.usernameIndex[uname]; ok {
		return ErrUserExists
	}
	if email != "" {
		if _, ok := s.emailIndex[email]; ok {
			return ErrUserExists
		}
	}

	cp := u
	s.usersByID[u.ID] = &cp
	s.usernameIndex[uname] = u.ID
	if email != "" {
		s.emailIndex[email] = u.ID
	}
	return nil
}

// UserByID returns a copy of the user with the given id.
func (s *State) UserByID(id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.usersByID[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return *u, nil
}

// UserByUsername returns a copy of the user with the given username,
// matched case-insensitively.
func (s *State) UserByUsername(username string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usernameIndex[strings.ToLower(username)]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return *s.usersByID[id], nil
}

// UserByEmail returns a copy of the user with the given email, matched
// case-insensitively.
func (s *State) UserByEmail(email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emailIndex[strings.ToLower(email)]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return *s.usersByID[id], nil
}

// UpdateUser applies fn to the stored user under the write lock. fn receives
// the live record; id, username, and email must not be changed through it.
func (s *State) UpdateUser(id string, fn func(*User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.usersByID[id]
	if !ok {
		return ErrUserNotFound
	}
	fn(u)
	return nil
}

// PutRefreshToken stores a refresh token record keyed by the hash of its
// opaque value.
func (s *State) PutRefreshToken(rec RefreshToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := rec
	s.refresh[rec.ValueHash] = &cp
}

// RefreshToken returns a copy of the record for the given value hash.
func (s *State) RefreshToken(hash [32]byte) (RefreshToken, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.refresh[hash]
	if !ok {
		return RefreshToken{}, false
	}
	return *rec, true
}

// RevokeRefreshToken marks the record revoked with the given reason. Already
// revoked records are left untouched so the original reason survives.
func (s *State) RevokeRefreshToken(hash [32]byte, at time.Time, reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.refresh[hash]
	if !ok {
		return false
	}
	if rec.Revoked() {
		return true
	}
	rec.RevokedAt = at
	rec.Reason = reason
	return true
}

// RevokeAllForUser revokes every live refresh token belonging to userID and
// returns how many were revoked.
func (s *State) RevokeAllForUser(userID string, at time.Time, reason string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, rec := range s.refresh {
		if rec.UserID != userID || rec.Revoked() {
			continue
		}
		rec.RevokedAt = at
		rec.Reason = reason
		n++
	}
	return n
}

// PruneRefreshTokens drops records that are revoked or expired and older
// than keepFor past their end of life. It returns the number removed.
func (s *State) PruneRefreshTokens(now time.Time, keepFor time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for hash, rec := range s.refresh {
		var endOfLife time.Time
		switch {
		case rec.Revoked():
			endOfLife = rec.RevokedAt
		case rec.Expired(now):
			endOfLife = rec.ExpiresAt
		default:
			continue
		}
		if now.Sub(endOfLife) >= keepFor {
			delete(s.refresh, hash)
			n++
		}
	}
	return n
}

// AppendStepUp records a step-up verification outcome for the user.
func (s *State) AppendStepUp(ev StepUpEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stepUps[ev.UserID] = append(s.stepUps[ev.UserID], ev)
}

// StepUpEvents returns a copy of the user's step-up history, oldest first.
func (s *State) StepUpEvents(userID string) []StepUpEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	evs := s.stepUps[userID]
	out := make([]StepUpEvent, len(evs))
	copy(out, evs)
	return out
}

// AppendImpersonation records a new impersonation session.
func (s *State) AppendImpersonation(rec ImpersonationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.impersonations = append(s.impersonations, rec)
}

// ActiveImpersonation returns the actor's open impersonation session, if any.
func (s *State) ActiveImpersonation(actorID string) (ImpersonationRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.impersonations) - 1; i >= 0; i-- {
		rec := s.impersonations[i]
		if rec.ActorID == actorID && rec.Active() {
			return rec, true
		}
	}
	return ImpersonationRecord{}, false
}

// CloseActiveImpersonation ends the actor's open session, returning the
// closed record.
func (s *State) CloseActiveImpersonation(actorID string, at time.Time) (ImpersonationRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.impersonations) - 1; i >= 0; i-- {
		rec := &s.impersonations[i]
		if rec.ActorID == actorID && rec.Active() {
			rec.EndedAt = at
			return *rec, true
		}
	}
	return ImpersonationRecord{}, false
}

// ImpersonationRecords returns a copy of all impersonation sessions, oldest
// first.
func (s *State) ImpersonationRecords() []ImpersonationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ImpersonationRecord, len(s.impersonations))
	copy(out, s.impersonations)
	return out
}

// AppendAudit appends an entry to the ledger. When the ledger exceeds its
// cap, the oldest entries are dropped from the head; trimming stops at the
// first immutable entry, so the ledger may run over the cap to preserve
// critical records.
func (s *State) AppendAudit(e AuditEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, e)
	if s.auditCap <= 0 {
		return
	}
	drop := 0
	for len(s.audit)-drop > s.auditCap && !s.audit[drop].Immutable {
		drop++
	}
	if drop > 0 {
		s.audit = append(s.audit[:0:0], s.audit[drop:]...)
	}
}

// AuditEntries returns the most recent entries, oldest first. limit <= 0
// returns the whole ledger.
func (s *State) AuditEntries(limit int) []AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.audit)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]AuditEntry, n)
	copy(out, s.audit[len(s.audit)-n:])
	return out
}

// AuditLen returns the current ledger size.
func (s *State) AuditLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.audit)
}

// Stats summarizes live security-relevant state for one tenant.
type Stats struct {
	Users                int
	LockedUsers          int
	ActiveImpersonations int
	LiveRefreshTokens    int
	RevokedRefreshTokens int
	AuditEntries         int
}

// Stats computes the summary under a single read lock.
func (s *State) Stats(now time.Time) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{
		Users:        len(s.usersByID),
		AuditEntries: len(s.audit),
	}
	for _, u := range s.usersByID {
		if u.Locked(now) {
			st.LockedUsers++
		}
	}
	for _, rec := range s.impersonations {
		if rec.Active() {
			st.ActiveImpersonations++
		}
	}
	for _, t := range s.refresh {
		switch {
		case t.Revoked():
			st.RevokedRefreshTokens++
		case !t.Expired(now):
			st.LiveRefreshTokens++
		}
	}
	return st
}
