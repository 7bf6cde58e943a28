// Package userauth manages email + password accounts and opaque session and
// password-reset tokens on top of a pluggable user record store.
//
// A [Manager] is built once through [Builder] and is safe for concurrent use.
// It keeps no user state between calls: every operation reads the record from
// the [store.UserStore] and writes changes back with a single atomic update.
//
// # Architecture boundaries
//
// userauth is the public surface. It exposes [Manager], [Builder], [Config],
// audit sinks and metrics snapshots. Hashing lives in package password, token
// generation in package token and persistence behind package store.
//
// # What this package must NOT do
//
//   - Log or emit plaintext passwords, password hashes, session tokens or reset tokens.
//   - Retry domain failures. Only [ErrStoreUnavailable] is transient.
//   - Cache user records across calls.
package userauth
