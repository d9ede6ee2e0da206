// Package token manages access-token issuance and verification using configured
// signing keys and strict validation semantics suitable for low-latency
// authentication paths.
//
// Access tokens are compact three-segment JWS strings (header, payload,
// signature) with header type "AT". Verification is a pure in-memory
// computation: signature plus time window, never a storage lookup — this is
// what lets access tokens scale horizontally without a shared session store.
//
// # What this package must NOT do
//
//   - Access Redis or any I/O.
//   - Import any other authcore package.
//   - Log token contents.
package token
