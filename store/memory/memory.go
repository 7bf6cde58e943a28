// Package memory is an in-process implementation of store.UserStore.
//
// All state lives behind one RWMutex. Lookups by email, session id and reset
// token go through secondary indexes kept in step with the primary map under
// the same lock, so a record and its indexes never disagree.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/userauth/store"
)

// Store keeps user records in memory. The zero value is not usable; call New.
type Store struct {
	mu sync.RWMutex

	users    map[string]*store.User
	byEmail  map[string]string
	bySessID map[string]string
	byReset  map[string]string

	now func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:    make(map[string]*store.User),
		byEmail:  make(map[string]string),
		bySessID: make(map[string]string),
		byReset:  make(map[string]string),
		now:      time.Now,
	}
}

// Create inserts a record for email. It fails with store.ErrAlreadyExists when
// the email is taken.
func (s *Store) Create(ctx context.Context, email, hashedPassword string) (*store.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[email]; ok {
		return nil, store.ErrAlreadyExists
	}

	now := s.now().UTC()
	rec := &store.User{
		ID:             uuid.NewString(),
		Email:          email,
		HashedPassword: hashedPassword,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.users[rec.ID] = rec
	s.byEmail[email] = rec.ID

	out := *rec
	return &out, nil
}

// FindBy returns a copy of the single record matching criteria.
func (s *Store) FindBy(ctx context.Context, criteria store.Criteria) (*store.User, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.lookupID(criteria)
	if !ok {
		return nil, store.ErrNotFound
	}
	rec, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}

	out := *rec
	return &out, nil
}

// Update applies update to the record with id. Token uniqueness is checked
// before anything is written.
func (s *Store) Update(ctx context.Context, id string, update store.Update) error {
	if err := ctx.Err(); err != nil {
		return unavailable(err)
	}
	if update.Guard != nil {
		if err := update.Guard.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	if !update.Holds(rec) {
		return store.ErrConflict
	}
	if update.Empty() {
		return nil
	}

	if update.SessionID != nil && *update.SessionID != "" {
		if owner, taken := s.bySessID[*update.SessionID]; taken && owner != id {
			return store.ErrAlreadyExists
		}
	}
	if update.ResetToken != nil && *update.ResetToken != "" {
		if owner, taken := s.byReset[*update.ResetToken]; taken && owner != id {
			return store.ErrAlreadyExists
		}
	}

	if update.SessionID != nil {
		reindex(s.bySessID, rec.SessionID, *update.SessionID, id)
	}
	if update.ResetToken != nil {
		reindex(s.byReset, rec.ResetToken, *update.ResetToken, id)
	}

	update.Apply(rec)
	rec.UpdatedAt = s.now().UTC()
	return nil
}

// Len reports the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

func (s *Store) lookupID(c store.Criteria) (string, bool) {
	switch c.Field {
	case store.FieldID:
		return c.Value, true
	case store.FieldEmail:
		id, ok := s.byEmail[c.Value]
		return id, ok
	case store.FieldSessionID:
		id, ok := s.bySessID[c.Value]
		return id, ok
	case store.FieldResetToken:
		id, ok := s.byReset[c.Value]
		return id, ok
	default:
		return "", false
	}
}

func reindex(index map[string]string, old, next, id string) {
	if old != "" {
		delete(index, old)
	}
	if next != "" {
		index[next] = id
	}
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
}
