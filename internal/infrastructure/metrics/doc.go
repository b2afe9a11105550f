// Package metrics exposes hub counters to Prometheus.
//
// A single Metrics value observes trigger fires and faults, dispatch
// outcomes and bridge transport activity, and serves them from a private
// registry on the configured metrics path.
package metrics
