// Package session provides Redis-backed session persistence and compact binary session
// encoding for authentication hot paths.
//
// # Binary encoding
//
// Sessions are stored in Redis as a compact binary blob: version byte, length-prefixed
// user ID and username, big-endian rotation counter, refresh-token hash, and creation
// and expiry timestamps. One session exists per user; logging in again replaces it.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [Session] model. It does NOT
// interpret JWT tokens, verify passwords, or enforce authentication policy — those
// responsibilities belong to the Engine.
//
// # What this package must NOT do
//
//   - Import clipauth or jwt (no upward imports).
//   - Perform application-level authorization decisions.
//   - Store raw refresh tokens in [Session] fields (hashes only).
package session
