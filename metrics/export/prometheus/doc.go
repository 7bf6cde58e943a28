// Package prometheus exposes Manager counters and the login latency histogram
// as a client_golang Collector.
//
// [NewExporter] accepts any [Source], normally a *userauth.Manager. Counter
// names follow userauth_*_total and the histogram is
// userauth_login_latency_seconds. Values are read from
// [userauth.Manager.MetricsSnapshot] at scrape time, so the Manager hot path
// never touches the Prometheus client.
//
// # What this package must NOT do
//
//   - Register into prometheus.DefaultRegisterer. Callers pick the registry.
//   - Mutate Manager state.
package prometheus
