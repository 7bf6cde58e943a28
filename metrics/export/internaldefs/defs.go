package internaldefs

import (
	"github.com/MrEthical07/userauth"
)

// Namespace prefixes every exported metric name.
const Namespace = "userauth"

// CounterDef binds a Manager counter to its exported name.
type CounterDef struct {
	ID   userauth.MetricID
	Name string
	Help string
}

// HistogramDef binds a Manager latency histogram to its exported name.
type HistogramDef struct {
	ID   userauth.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: userauth.MetricRegisterSuccess, Name: "userauth_register_success_total", Help: "Successful registrations."},
	{ID: userauth.MetricRegisterDuplicate, Name: "userauth_register_duplicate_total", Help: "Registrations rejected because the email is taken."},
	{ID: userauth.MetricLoginSuccess, Name: "userauth_login_success_total", Help: "Successful logins."},
	{ID: userauth.MetricLoginFailure, Name: "userauth_login_failure_total", Help: "Logins rejected for invalid credentials."},
	{ID: userauth.MetricSessionResolved, Name: "userauth_session_resolved_total", Help: "Session tokens resolved to a user."},
	{ID: userauth.MetricSessionRejected, Name: "userauth_session_rejected_total", Help: "Session tokens that matched no user."},
	{ID: userauth.MetricLogout, Name: "userauth_logout_total", Help: "Logout operations."},
	{ID: userauth.MetricPasswordResetRequest, Name: "userauth_password_reset_request_total", Help: "Password reset requests."},
	{ID: userauth.MetricPasswordResetUnknownEmail, Name: "userauth_password_reset_unknown_email_total", Help: "Password reset requests for an unregistered email."},
	{ID: userauth.MetricPasswordResetConfirmSuccess, Name: "userauth_password_reset_confirm_success_total", Help: "Completed password resets."},
	{ID: userauth.MetricPasswordResetConfirmFailure, Name: "userauth_password_reset_confirm_failure_total", Help: "Password reset confirmations with an invalid token."},
	{ID: userauth.MetricPasswordRehash, Name: "userauth_password_rehash_total", Help: "Stored password hashes upgraded on login."},
	{ID: userauth.MetricStoreUnavailable, Name: "userauth_store_unavailable_total", Help: "Operations that failed because the user store was unreachable."},
}

var HistogramDefs = []HistogramDef{
	{ID: userauth.MetricLoginLatency, Name: "userauth_login_latency_seconds", Help: "Login latency in seconds."},
}

// AuditDropped names the counter for audit events lost to backpressure.
var AuditDropped = CounterDef{
	Name: "userauth_audit_dropped_total",
	Help: "Audit events dropped because the dispatcher queue was full.",
}

// BucketCount is the number of histogram buckets including the +Inf bucket.
const BucketCount = len(userauth.HistogramBounds) + 1

// UpperBoundsSeconds returns the finite bucket bounds in seconds.
func UpperBoundsSeconds() []float64 {
	out := make([]float64, len(userauth.HistogramBounds))
	for i, b := range userauth.HistogramBounds {
		out[i] = b.Seconds()
	}
	return out
}

// NormalizeBuckets pads or truncates raw to BucketCount entries.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals. The last
// entry equals the total sample count.
func CumulativeBuckets(buckets [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i, v := range buckets {
		running += v
		out[i] = running
	}
	return out
}
