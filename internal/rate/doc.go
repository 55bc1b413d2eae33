// Package rate implements the failed-attempt guard behind login lockout.
//
// # Window semantics
//
// Fixed-window counters: failures within a window accumulate toward a
// threshold, and reaching the threshold locks the key for the lockout
// duration. Checking a key is O(1) and never depends on whether the key
// maps to a real account.
//
// Two implementations share the Guard interface: an in-process MemoryGuard
// for single-node deployments and a Redis-backed RedisGuard (INCR +
// conditional EXPIRE on first hit, per-key lock marker) for fleets.
package rate
