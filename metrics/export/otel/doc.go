// Package otel bridges statecore metrics into an OpenTelemetry meter as
// observable counters, pulled from the engine's snapshot on collection.
package otel
