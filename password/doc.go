// Package password implements adaptive password hashing and verification with bcrypt.
//
// # Output format
//
// Hashes use the standard bcrypt modular crypt format:
//
//	$2a$<cost>$<22-char salt><31-char digest>
//
// The salt and the cost exponent are embedded in the hash string, so every stored
// hash is self-describing. The [Hasher] supports transparent cost upgrades: if the
// stored hash was produced with a lower cost, [Hasher.NeedsRehash] returns true so
// the caller can re-hash on the next successful login.
//
// # Scheduling
//
// Hashing is deliberately slow (work = 2^cost). All hash and verify calls are
// dispatched through a bounded worker pool so CPU-heavy bcrypt work cannot starve
// request-handling goroutines.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (length, reuse
// history) and hash persistence are enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords — callers supply plaintext and receive hashes.
//   - Import any other authcore package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
