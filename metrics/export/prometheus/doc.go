// Package prometheus renders statecore metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] accepts a [statecore.Engine] and exposes an
// [net/http.Handler]. Counter names are prefixed statecore_*_total.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the
//     Handler.
//   - Mutate engine state.
package prometheus
