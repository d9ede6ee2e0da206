// Package refresh provides Redis-backed refresh token persistence, compact
// binary record encoding, and the atomic rotation state machine that powers
// reuse detection.
//
// # Binary encoding
//
// Records are stored in Redis as a compact binary format with a fixed-offset
// header (version, status, token ID, family ID, secret hash, successor ID,
// timestamps) followed by length-prefixed subject and client fields. The fixed
// header lets the rotation Lua script patch the status byte and successor ID
// in place without a full re-encode.
//
// # Rotation state machine
//
// A record is active, rotated, or revoked. Rotation is a single Lua
// compare-and-swap: exactly one concurrent caller wins, the old record is
// marked rotated and kept until its natural expiry, and a successor record is
// written in the same script. Presenting a rotated or revoked token is reuse:
// the script revokes every live record in the same family before returning.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [Record] model. It
// does NOT mint or parse wire tokens, hash secrets, or issue access tokens —
// those responsibilities belong to the engine and the internal codec.
//
// # What this package must NOT do
//
//   - Import authcore or token (no upward imports).
//   - Store plaintext refresh secrets; only SHA-256 digests enter [Record].
//   - Log token material.
package refresh
