// Package authcore provides a credential authentication and session core with
// JWT access tokens, rotating opaque refresh tokens with reuse detection, and
// Redis-backed rate limiting.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (TokenPair, Identity, MetricsSnapshot). Credential hashing
// lives in password/, access token signing in token/, refresh persistence and
// rotation in refresh/, and all remaining coordination — audit dispatch, rate
// limiting, the refresh wire codec — lives under internal/ and is never
// exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its
//     public API.
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only until Build).
//   - Import any sub-package that re-imports authcore (no import cycles).
//
// # Performance contract
//
// VerifyAccess is the hot path. It completes without Redis round-trips;
// revocation takes effect at the access token's expiry, which is why the
// default access TTL is short. Login, Refresh, and Logout are allowed a
// bounded number of Redis round-trips per call.
package authcore
