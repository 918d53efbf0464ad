// Package prometheus provides Prometheus collectors for clipauth metrics.
//
// [NewPrometheusExporter] accepts a [clipauth.Engine] and exposes an [http.Handler]
// that renders all clipauth counters and histograms in Prometheus text exposition format.
// Counter names are prefixed clipauth_*_total; the single histogram is
// clipauth_validate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate engine state.
package prometheus
