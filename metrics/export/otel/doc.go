// Package otel publishes Manager counters through an OpenTelemetry Meter.
//
// [NewExporter] registers one Int64ObservableCounter per counter and a bucket
// gauge keyed by an "le" attribute for the login latency histogram. A single
// callback reads [userauth.Manager.MetricsSnapshot] per collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate Manager state.
package otel
