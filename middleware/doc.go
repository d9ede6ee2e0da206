// Package middleware exposes an HTTP middleware adapter built on top of
// authcore.Engine access token verification.
//
// # Guard
//
// [Guard] reads the Authorization header, calls Engine.VerifyAccess, and
// injects the verified identity into the request context, retrievable via
// [IdentityFromContext].
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself — all decisions are delegated to
// Engine.VerifyAccess.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject from VerifyAccess.
package middleware
