// Package rate provides internal primitives used to build Redis-backed rate limit keys,
// errors, and limiter behavior for security-sensitive authentication workflows.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - acl:  — login per-identifier
//   - acli: — login per-IP
//   - acr:  — refresh per-family
//
// # What this package must NOT do
//
//   - Implement domain-specific lockout policies (those live in the engine).
//   - Be imported outside the authcore module.
package rate
