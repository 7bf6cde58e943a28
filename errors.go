package userauth

import "errors"

var (
	// ErrAlreadyExists is returned by Register when the email is taken.
	ErrAlreadyExists = errors.New("account already exists")
	// ErrInvalidCredentials is returned by Login for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated is returned when a session token does not resolve.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrNotFound is returned by Logout when the user id does not resolve.
	ErrNotFound = errors.New("user not found")
	// ErrInvalidToken is returned by ConfirmPasswordReset for an unknown or spent reset token.
	ErrInvalidToken = errors.New("invalid reset token")
	// ErrNoSuchUser is returned by RequestPasswordReset when no account has the email.
	ErrNoSuchUser = errors.New("no such user")
	// ErrInvalidInput is returned for empty or policy-violating inputs.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStoreUnavailable wraps user store failures outside the domain taxonomy.
	// Callers may retry these with backoff.
	ErrStoreUnavailable = errors.New("user store unavailable")
	// ErrEngineNotReady is returned by a nil or closed Manager.
	ErrEngineNotReady = errors.New("manager not initialized")
)

// IsRetryable reports whether err is a transient backend failure. Domain
// failures are terminal for the calling operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
