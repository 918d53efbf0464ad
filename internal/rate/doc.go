// Package rate provides internal primitives used to build Redis-backed rate limit keys,
// errors, and limiter behavior for security-sensitive authentication workflows.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - cl:login:id:  — login per-identifier
//   - cl:login:ip:  — login per-IP
//   - cl:refresh:uid: — refresh per-user
//   - cl:signup:id: / cl:signup:ip: — account creation
//
// # What this package must NOT do
//
//   - Implement credential or token checks (those live in the engine).
//   - Be imported outside the clipauth module.
package rate
