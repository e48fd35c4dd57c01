// Package internaldefs exposes the stable metric name definitions shared by
// exporter implementations.
//
// Counter definitions live here so that the Prometheus and OTel exporters
// expose identical metric names. Changes to definitions in this package
// affect all exporters simultaneously.
//
// # What this package must NOT do
//
//   - Import any exporter package.
//   - Perform I/O.
package internaldefs
