// Package metrics provides lock-free counters for identity engine
// observability.
//
// # Design
//
// Counters are stored in cache-line-padded uint64 slots and incremented
// atomically. The write path is allocation-free; Snapshot copies all
// counters at once for export.
//
// # Architecture boundaries
//
// This package owns metric storage and snapshot creation. Metric export
// lives in metrics/export/ and reads Snapshot values.
package metrics
