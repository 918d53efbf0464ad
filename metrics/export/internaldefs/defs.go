package internaldefs

import (
	clipauth "github.com/clipverse/clipauth"
)

// CounterDef defines a public type used by clipauth APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   clipauth.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by clipauth APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   clipauth.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the authentication engine.
var CounterDefs = []CounterDef{
	{ID: clipauth.MetricLoginSuccess, Name: "clipauth_login_success_total", Help: "Successful login attempts."},
	{ID: clipauth.MetricLoginFailure, Name: "clipauth_login_failure_total", Help: "Failed login attempts."},
	{ID: clipauth.MetricLoginRateLimited, Name: "clipauth_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: clipauth.MetricRefreshSuccess, Name: "clipauth_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: clipauth.MetricRefreshFailure, Name: "clipauth_refresh_failure_total", Help: "Failed refresh operations."},
	{ID: clipauth.MetricRefreshReuseDetected, Name: "clipauth_refresh_reuse_detected_total", Help: "Detected refresh token reuses."},
	{ID: clipauth.MetricRefreshRateLimited, Name: "clipauth_refresh_rate_limited_total", Help: "Rate-limited refresh attempts."},
	{ID: clipauth.MetricSessionCreated, Name: "clipauth_session_created_total", Help: "Created sessions."},
	{ID: clipauth.MetricSessionRevoked, Name: "clipauth_session_revoked_total", Help: "Sessions revoked outside logout."},
	{ID: clipauth.MetricLogout, Name: "clipauth_logout_total", Help: "Logout operations."},
	{ID: clipauth.MetricAccountCreationSuccess, Name: "clipauth_account_creation_success_total", Help: "Successful account creations."},
	{ID: clipauth.MetricAccountCreationDuplicate, Name: "clipauth_account_creation_duplicate_total", Help: "Account creation attempts rejected as duplicate."},
	{ID: clipauth.MetricAccountCreationRateLimited, Name: "clipauth_account_creation_rate_limited_total", Help: "Rate-limited account creation attempts."},
	{ID: clipauth.MetricPasswordChangeSuccess, Name: "clipauth_password_change_success_total", Help: "Successful password changes."},
	{ID: clipauth.MetricPasswordChangeInvalidOld, Name: "clipauth_password_change_invalid_old_total", Help: "Password change attempts with invalid old password."},
	{ID: clipauth.MetricPasswordChangeReuseRejected, Name: "clipauth_password_change_reuse_rejected_total", Help: "Password change attempts rejected for reuse."},
	{ID: clipauth.MetricProfileUpdateSuccess, Name: "clipauth_profile_update_success_total", Help: "Successful profile updates."},
	{ID: clipauth.MetricRateLimitHit, Name: "clipauth_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
}

// HistogramDefs is an exported constant or variable used by the authentication engine.
var HistogramDefs = []HistogramDef{
	{ID: clipauth.MetricValidateLatency, Name: "clipauth_validate_latency_seconds", Help: "Validate latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the authentication engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the authentication engine.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets may return an error when input validation, dependency calls, or security checks fail.
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets may return an error when input validation, dependency calls, or security checks fail.
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
