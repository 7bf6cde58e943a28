// Package password implements salted, adaptive password hashing.
//
// # Output formats
//
// Argon2id hashes use the PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// bcrypt hashes use the modular crypt format produced by x/crypto/bcrypt
// ($2a$, $2b$ or $2y$ followed by the cost).
//
// A [Dispatcher] hashes with one primary [Hasher] and verifies any format it
// recognises, so stores holding a mix of algorithms keep working while
// [Dispatcher.NeedsUpgrade] steers old hashes to the primary on next login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other userauth package.
//   - Log plaintext passwords or hashes.
package password
