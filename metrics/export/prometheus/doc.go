// Package prometheus exposes engine counters as a Prometheus collector.
//
// [New] wraps anything satisfying [Source] (an *identity.Engine does) in a
// prometheus.Collector; [Handler] mounts it on a private registry and
// returns a ready scrape handler. Counter names are prefixed
// identity_*_total.
//
// Nothing here touches the default global registry; callers decide where
// the handler is mounted.
package prometheus
