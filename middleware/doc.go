// Package middleware exposes net/http adapters that resolve a session token to
// a userauth identity.
//
// # Guards
//
//   - [Guard] reads the session cookie (or an Authorization bearer token),
//     calls SessionUser and injects the identity into the request context.
//     With [WithBasicAuth] it also accepts HTTP Basic email:password
//     credentials when no session is present.
//   - [UserFromContext] returns the identity downstream.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Manager calls. It does NOT
// implement authentication logic itself; every decision is delegated to the
// resolver.
//
// # What this package must NOT do
//
//   - Access the user store directly.
//   - Log or echo session tokens.
package middleware
