package rate

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const shardCount = 32

type memoryEntry struct {
	count       int
	windowStart time.Time
	lockedUntil time.Time
}

type memoryShard struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

// MemoryGuard is an in-process Guard for single-node deployments. Entries
// are sharded by key hash so a check on one key never waits on activity
// against another. All operations are O(1) per key; Sweep reclaims expired
// entries and is meant to run from a background janitor.
type MemoryGuard struct {
	config Config
	now    func() time.Time

	shards [shardCount]memoryShard
}

// NewMemoryGuard validates cfg and returns a guard.
func NewMemoryGuard(cfg Config) (*MemoryGuard, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &MemoryGuard{
		config: cfg,
		now:    time.Now,
	}
	for i := range g.shards {
		g.shards[i].entries = make(map[string]*memoryEntry)
	}
	return g, nil
}

func (g *MemoryGuard) shard(key string) *memoryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &g.shards[h.Sum32()%shardCount]
}

// Check reports whether key may attempt right now.
func (g *MemoryGuard) Check(_ context.Context, key string) (Status, error) {
	s := g.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := g.now()
	e, ok := s.entries[key]
	if !ok {
		return Status{Allowed: true, Remaining: g.config.MaxAttempts}, nil
	}
	if now.Before(e.lockedUntil) {
		return Status{LockedUntil: e.lockedUntil}, nil
	}
	if now.Sub(e.windowStart) >= g.config.Window {
		// Stale window; the next failure starts a fresh one.
		return Status{Allowed: true, Remaining: g.config.MaxAttempts}, nil
	}
	remaining := g.config.MaxAttempts - e.count
	if remaining < 0 {
		remaining = 0
	}
	return Status{Allowed: true, Remaining: remaining}, nil
}

// RecordFailure counts a failed attempt; the failure that reaches the
// threshold locks the key and returns true.
func (g *MemoryGuard) RecordFailure(_ context.Context, key string) (bool, error) {
	s := g.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := g.now()
	e, ok := s.entries[key]
	if !ok || now.Sub(e.windowStart) >= g.config.Window {
		e = &memoryEntry{windowStart: now}
		s.entries[key] = e
	}
	e.count++
	if e.count >= g.config.MaxAttempts {
		e.lockedUntil = now.Add(g.config.LockoutDuration)
		return true, nil
	}
	return false, nil
}

// Reset clears the key entirely.
func (g *MemoryGuard) Reset(_ context.Context, key string) error {
	s := g.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Sweep drops entries whose window and lock have both passed, returning the
// number removed. The boundary matches Check: an entry aged exactly one
// window is already stale.
func (g *MemoryGuard) Sweep() int {
	now := g.now()
	n := 0
	for i := range g.shards {
		s := &g.shards[i]
		s.mu.Lock()
		for key, e := range s.entries {
			if now.Before(e.lockedUntil) {
				continue
			}
			if now.Sub(e.windowStart) < g.config.Window {
				continue
			}
			delete(s.entries, key)
			n++
		}
		s.mu.Unlock()
	}
	return n
}
