package password

import "errors"

// DefaultMaxPasswordBytes bounds plaintext input when a config leaves the limit unset.
const DefaultMaxPasswordBytes = 1024

var (
	// ErrEmptyPassword is returned by Hash for an empty plaintext.
	ErrEmptyPassword = errors.New("password must not be empty")
	// ErrPasswordTooLong is returned when plaintext exceeds the configured byte limit.
	ErrPasswordTooLong = errors.New("password exceeds maximum length")
	// ErrUnrecognizedHash is returned when no hasher understands an encoded hash.
	ErrUnrecognizedHash = errors.New("unrecognized password hash format")
)

// Hasher hashes and verifies passwords for one algorithm.
//
// Verify reports a malformed encoded hash as an error and a mismatch as
// (false, nil). Recognizes must be cheap and must not parse parameters.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	NeedsUpgrade(encodedHash string) (bool, error)
	Recognizes(encodedHash string) bool
}

func checkLength(password string, max int) error {
	if password == "" {
		return ErrEmptyPassword
	}
	if max <= 0 {
		max = DefaultMaxPasswordBytes
	}
	if len(password) > max {
		return ErrPasswordTooLong
	}
	return nil
}
