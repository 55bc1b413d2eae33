// Package tenant implements the per-tenant isolated state container used by
// the identity engine.
//
// A [Store] maps normalized tenant ids to live [State] values. Tenants are
// pre-provisioned through a seed map; the first Resolve of a known id
// materializes its state exactly once, and later Resolves return the same
// live state. Every read and write on a [State] is guarded by a per-tenant
// lock, and no operation in this package can reach across tenant boundaries.
package tenant
