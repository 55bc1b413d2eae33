// Package identity provides a multi-tenant identity and session authority:
// signed JWT access tokens, server-side revocable refresh tokens, failed-login
// lockout, two-factor and step-up verification, owner impersonation,
// credential recovery, and a per-tenant append-only audit ledger.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Tenancy
//
// Every operation takes an explicit tenant id. Tenants are materialized
// lazily from seeds on first use and fully isolated from each other: users,
// sessions, lockout counters, and audit ledgers never cross tenant
// boundaries. A refresh token presented against the wrong tenant is an
// authorization failure, not a missing-resource one.
//
// # Architecture boundaries
//
// identity is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (LoginResult, AccessIdentity, SecurityReport). Rate
// limiting and counter plumbing live under internal/ and are never exported;
// tenant state, token codecs, and password hashing live in their own
// subpackages.
//
// # Failure taxonomy
//
// Engine methods return sentinel errors classifiable with [FailureClass].
// Authentication failures are deliberately generic: a caller cannot tell a
// wrong password from an unknown username, and recovery requests answer
// identically for known and unknown email addresses.
package identity
