// Package store defines the user record contract consumed by the userauth
// Manager and the values that cross it.
//
// # Architecture boundaries
//
// Implementations live in sub-packages (memory, redis, postgres). Each one owns
// id assignment and enforces uniqueness of email, session id and reset token.
// Every call to Update is atomic for a single record: either all requested
// fields commit or none do.
//
// # What this package must NOT do
//
//   - Import the root userauth package.
//   - Hash, generate or log secrets. Values arrive already hashed or generated.
package store
