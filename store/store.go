package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no record matches a lookup or update.
	ErrNotFound = errors.New("user record not found")
	// ErrAlreadyExists is returned when a unique field collides with another record.
	ErrAlreadyExists = errors.New("user record already exists")
	// ErrUnavailable classifies backend failures (connectivity, contention, timeouts).
	ErrUnavailable = errors.New("user store unavailable")
	// ErrInvalidCriteria is returned for a Criteria without a known field or value.
	ErrInvalidCriteria = errors.New("invalid lookup criteria")
	// ErrConflict is returned when an Update guard no longer matches the record.
	ErrConflict = errors.New("user record changed concurrently")
)

// User is a persisted user record. Empty SessionID and ResetToken mean no
// active value.
type User struct {
	ID             string
	Email          string
	HashedPassword string
	SessionID      string
	ResetToken     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Field names the unique column a Criteria matches on.
type Field uint8

const (
	FieldID Field = iota + 1
	FieldEmail
	FieldSessionID
	FieldResetToken
)

func (f Field) String() string {
	switch f {
	case FieldID:
		return "id"
	case FieldEmail:
		return "email"
	case FieldSessionID:
		return "session_id"
	case FieldResetToken:
		return "reset_token"
	default:
		return "unknown"
	}
}

// Criteria selects exactly one record by equality on a single unique field.
// Build it with ByID, ByEmail, BySessionID or ByResetToken.
type Criteria struct {
	Field Field
	Value string
}

// ByID matches the store-assigned id.
func ByID(id string) Criteria {
	return Criteria{Field: FieldID, Value: id}
}

// ByEmail matches the registered email.
func ByEmail(email string) Criteria {
	return Criteria{Field: FieldEmail, Value: email}
}

// BySessionID matches the active session token.
func BySessionID(sessionID string) Criteria {
	return Criteria{Field: FieldSessionID, Value: sessionID}
}

// ByResetToken matches the pending reset token.
func ByResetToken(token string) Criteria {
	return Criteria{Field: FieldResetToken, Value: token}
}

// Validate reports ErrInvalidCriteria for unknown fields and empty values.
// An empty value never matches, so stores reject it before touching the backend.
func (c Criteria) Validate() error {
	switch c.Field {
	case FieldID, FieldEmail, FieldSessionID, FieldResetToken:
	default:
		return ErrInvalidCriteria
	}
	if c.Value == "" {
		return ErrInvalidCriteria
	}
	return nil
}

// Matches reports whether u satisfies c.
func (c Criteria) Matches(u *User) bool {
	if u == nil || c.Value == "" {
		return false
	}
	switch c.Field {
	case FieldID:
		return u.ID == c.Value
	case FieldEmail:
		return u.Email == c.Value
	case FieldSessionID:
		return u.SessionID == c.Value
	case FieldResetToken:
		return u.ResetToken == c.Value
	default:
		return false
	}
}

// Update lists the mutable fields of a record. A nil field is left untouched;
// a pointer to the empty string clears a token.
//
// Guard and ExpectHashedPassword make the update conditional: it commits only
// while the stored record still matches Guard and still carries the expected
// hash, and fails with ErrConflict otherwise.
type Update struct {
	HashedPassword *string
	SessionID      *string
	ResetToken     *string

	Guard                *Criteria
	ExpectHashedPassword *string
}

// Set returns a pointer to v for use in Update.
func Set(v string) *string {
	return &v
}

// Clear returns the Update value that nulls a token field.
func Clear() *string {
	empty := ""
	return &empty
}

// Empty reports whether u changes nothing. Preconditions do not count as a
// change.
func (u Update) Empty() bool {
	return u.HashedPassword == nil && u.SessionID == nil && u.ResetToken == nil
}

// Conditional reports whether u carries any precondition.
func (u Update) Conditional() bool {
	return u.Guard != nil || u.ExpectHashedPassword != nil
}

// Holds reports whether rec satisfies every precondition of u.
func (u Update) Holds(rec *User) bool {
	if u.Guard != nil && !u.Guard.Matches(rec) {
		return false
	}
	return u.ExpectHashedPassword == nil || rec.HashedPassword == *u.ExpectHashedPassword
}

// Apply copies the requested fields onto rec.
func (u Update) Apply(rec *User) {
	if u.HashedPassword != nil {
		rec.HashedPassword = *u.HashedPassword
	}
	if u.SessionID != nil {
		rec.SessionID = *u.SessionID
	}
	if u.ResetToken != nil {
		rec.ResetToken = *u.ResetToken
	}
}

// UserStore is the persistence contract. Implementations must be safe for
// concurrent use and must respect ctx deadlines.
type UserStore interface {
	Create(ctx context.Context, email, hashedPassword string) (*User, error)
	FindBy(ctx context.Context, criteria Criteria) (*User, error)
	Update(ctx context.Context, id string, update Update) error
}
