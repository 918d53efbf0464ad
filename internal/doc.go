// Package internal contains helper utilities that are intentionally private to clipauth,
// currently token digest helpers shared by the engine and the session store.
//
// # Sub-packages
//
//   - audit — async event dispatch (Dispatcher + Sink implementations)
//   - rate — Redis-backed fixed-window rate limit primitives
//
// # What this package must NOT do
//
//   - Export types that appear in the public clipauth API.
//   - Be imported by any package outside the clipauth module.
package internal
