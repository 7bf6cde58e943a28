// Package postgres implements store.UserStore on PostgreSQL through pgx.
//
// Uniqueness of email, session_id and reset_token is enforced by table
// constraints; violations surface as store.ErrAlreadyExists. Update is a single
// UPDATE statement, so a record changes atomically or not at all.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/MrEthical07/userauth/store"
)

// poolIface is the subset of *pgxpool.Pool the store needs. pgxmock satisfies
// it in unit tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

const selectUser = `SELECT id, email, hashed_password, COALESCE(session_id, ''), COALESCE(reset_token, ''), created_at, updated_at FROM users WHERE `

// Store is a PostgreSQL-backed user store.
type Store struct {
	pool poolIface
	now  func() time.Time
}

// New returns a Store over pool.
func New(pool poolIface) *Store {
	return &Store{pool: pool, now: time.Now}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return oops.Code("USER_STORE_UNAVAILABLE").
			With("operation", "ping").
			Wrap(unavailable(err))
	}
	return nil
}

// Create inserts a new record with a generated id.
func (s *Store) Create(ctx context.Context, email, hashedPassword string) (*store.User, error) {
	now := s.now().UTC().Truncate(time.Microsecond)
	rec := &store.User{
		ID:             uuid.NewString(),
		Email:          email,
		HashedPassword: hashedPassword,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, email, hashed_password, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.ID, rec.Email, rec.HashedPassword, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, oops.Code("USER_ALREADY_EXISTS").
				With("operation", "insert user").
				Wrap(store.ErrAlreadyExists)
		}
		return nil, oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			Wrap(unavailable(err))
	}

	return rec, nil
}

// FindBy selects the record matching criteria.
func (s *Store) FindBy(ctx context.Context, criteria store.Criteria) (*store.User, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}

	column, err := columnFor(criteria.Field)
	if err != nil {
		return nil, err
	}

	var rec store.User
	err = s.pool.QueryRow(ctx, selectUser+column+` = $1`, criteria.Value).Scan(
		&rec.ID,
		&rec.Email,
		&rec.HashedPassword,
		&rec.SessionID,
		&rec.ResetToken,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, oops.Code("USER_NOT_FOUND").
				With("field", criteria.Field.String()).
				Wrap(store.ErrNotFound)
		}
		if isInvalidText(err) {
			// a malformed uuid can never match a row
			return nil, oops.Code("USER_NOT_FOUND").
				With("field", criteria.Field.String()).
				Wrap(store.ErrNotFound)
		}
		return nil, oops.Code("USER_QUERY_FAILED").
			With("operation", "select user").
			With("field", criteria.Field.String()).
			Wrap(unavailable(err))
	}

	return &rec, nil
}

// Update writes the requested fields in one statement.
func (s *Store) Update(ctx context.Context, id string, update store.Update) error {
	sql, args, err := buildUpdate(id, update, s.now().UTC().Truncate(time.Microsecond))
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("USER_TOKEN_CONFLICT").
				With("operation", "update user").
				Wrap(store.ErrAlreadyExists)
		}
		if isInvalidText(err) {
			return oops.Code("USER_NOT_FOUND").
				With("operation", "update user").
				Wrap(store.ErrNotFound)
		}
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update user").
			Wrap(unavailable(err))
	}
	if tag.RowsAffected() == 0 && update.Conditional() {
		// an unknown id and a stale precondition are indistinguishable here
		return oops.Code("USER_UPDATE_CONFLICT").
			With("operation", "update user").
			With("guard", guardLabel(update)).
			Wrap(store.ErrConflict)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("operation", "update user").
			Wrap(store.ErrNotFound)
	}
	return nil
}

// buildUpdate renders the UPDATE statement for the non-nil fields of update.
// updated_at is always touched so an empty update still reports whether the
// row exists.
func buildUpdate(id string, update store.Update, now time.Time) (string, []any, error) {
	var sb strings.Builder
	args := []any{id}

	sb.WriteString("UPDATE users SET ")
	add := func(column string, value any) {
		args = append(args, value)
		sb.WriteString(column)
		sb.WriteString(" = $")
		sb.WriteString(strconv.Itoa(len(args)))
		sb.WriteString(", ")
	}

	if update.HashedPassword != nil {
		add("hashed_password", *update.HashedPassword)
	}
	if update.SessionID != nil {
		add("session_id", nullIfEmpty(*update.SessionID))
	}
	if update.ResetToken != nil {
		add("reset_token", nullIfEmpty(*update.ResetToken))
	}
	args = append(args, now)
	sb.WriteString("updated_at = $")
	sb.WriteString(strconv.Itoa(len(args)))
	sb.WriteString(" WHERE id = $1")

	if update.Guard != nil {
		if err := update.Guard.Validate(); err != nil {
			return "", nil, err
		}
		column, err := columnFor(update.Guard.Field)
		if err != nil {
			return "", nil, err
		}
		args = append(args, update.Guard.Value)
		sb.WriteString(" AND ")
		sb.WriteString(column)
		sb.WriteString(" = $")
		sb.WriteString(strconv.Itoa(len(args)))
	}
	if update.ExpectHashedPassword != nil {
		args = append(args, *update.ExpectHashedPassword)
		sb.WriteString(" AND hashed_password = $")
		sb.WriteString(strconv.Itoa(len(args)))
	}

	return sb.String(), args, nil
}

func guardLabel(update store.Update) string {
	switch {
	case update.Guard != nil && update.ExpectHashedPassword != nil:
		return update.Guard.Field.String() + "+hashed_password"
	case update.Guard != nil:
		return update.Guard.Field.String()
	default:
		return "hashed_password"
	}
}

func columnFor(field store.Field) (string, error) {
	switch field {
	case store.FieldID:
		return "id", nil
	case store.FieldEmail:
		return "email", nil
	case store.FieldSessionID:
		return "session_id", nil
	case store.FieldResetToken:
		return "reset_token", nil
	default:
		return "", store.ErrInvalidCriteria
	}
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func isInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.InvalidTextRepresentation
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
}
