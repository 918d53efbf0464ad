// Package clipauth provides the authentication session core for the Clipverse
// video platform: JWT access tokens, rotating refresh tokens with reuse
// detection, and Redis-backed single-session-per-user storage.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// clipauth is the public surface. It exposes [Engine], [Builder], [Config], and value types
// (LoginResult, AuthResult, MetricsSnapshot, etc.). All internal coordination — rate
// limiting and audit dispatch — lives under internal/ and is never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its public API.
//   - Perform I/O outside of Engine methods (construction via Builder is allocation-only
//     until Build).
//   - Import any sub-package that re-imports clipauth (no import cycles).
//
// # Performance contract
//
// ValidateAccess is the hot path. It must not allocate beyond the returned AuthResult and
// must complete without Redis round-trips. Refresh, Login, and account operations are
// allowed a small fixed number of Redis round-trips per call; refresh rotation itself is
// a single Lua script.
package clipauth
