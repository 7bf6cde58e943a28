package userauth

import (
	"context"
	"time"

	"github.com/MrEthical07/userauth/store"
)

// PublicUser is the non-secret identity of an account.
type PublicUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func publicUser(u *store.User) PublicUser {
	return PublicUser{ID: u.ID, Email: u.Email}
}

// PasswordHasher is the credential hashing dependency. password.Dispatcher,
// password.Argon2 and password.Bcrypt satisfy it.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, encodedHash string) (bool, error)
}

// upgradeChecker is implemented by hashers that can tell when a stored hash
// should be regenerated with current parameters.
type upgradeChecker interface {
	NeedsUpgrade(encodedHash string) (bool, error)
}

// TokenGenerator produces opaque session and reset tokens.
type TokenGenerator interface {
	Generate() (string, error)
}

// StoreProber is implemented by stores that can report backend health.
type StoreProber interface {
	Ping(ctx context.Context) error
}

// AuditEvent is one security-relevant outcome. It never carries passwords,
// hashes or tokens.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}
