// Package redisstore implements store.UserStore on Redis.
//
// # Key layout
//
//	<prefix>:u:<id>       encoded user record
//	<prefix>:e:<email>    id index
//	<prefix>:s:<session>  id index
//	<prefix>:r:<reset>    id index
//
// Creation runs as a Lua script so the email index and the record appear
// together. Updates use WATCH on the record and on any index key they claim,
// then commit record and index changes in one MULTI/EXEC. A concurrent writer
// aborts the transaction and the update is retried a bounded number of times.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/userauth/store"
)

const (
	defaultPrefix = "ua"
	maxRetries    = 4
)

const createUserScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("SET", KEYS[2], ARGV[2])
redis.call("SET", KEYS[1], ARGV[1])
return 1
`

var createUserLua = redis.NewScript(createUserScript)

var errTokenTaken = errors.New("token index owned by another record")

// Store is a Redis-backed user store.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// New returns a Store using client. An empty prefix selects "ua".
func New(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{
		redis:  client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (s *Store) userKey(id string) string {
	return s.prefix + ":u:" + id
}

func (s *Store) indexKey(field store.Field, value string) string {
	switch field {
	case store.FieldEmail:
		return s.prefix + ":e:" + value
	case store.FieldSessionID:
		return s.prefix + ":s:" + value
	case store.FieldResetToken:
		return s.prefix + ":r:" + value
	default:
		return ""
	}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	return nil
}

// Create inserts a new record and claims the email index atomically.
func (s *Store) Create(ctx context.Context, email, hashedPassword string) (*store.User, error) {
	now := s.now().UTC()
	rec := &store.User{
		ID:             uuid.NewString(),
		Email:          email,
		HashedPassword: hashedPassword,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	data, err := encodeRecord(rec)
	if err != nil {
		return nil, err
	}

	created, err := createUserLua.Run(
		ctx,
		s.redis,
		[]string{s.indexKey(store.FieldEmail, email), s.userKey(rec.ID)},
		rec.ID,
		data,
	).Int64()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	if created == 0 {
		return nil, store.ErrAlreadyExists
	}

	return rec, nil
}

// FindBy resolves criteria through its index key and loads the record. A
// record whose field no longer matches the index is treated as absent.
func (s *Store) FindBy(ctx context.Context, criteria store.Criteria) (*store.User, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}

	id := criteria.Value
	if criteria.Field != store.FieldID {
		var err error
		id, err = s.redis.Get(ctx, s.indexKey(criteria.Field, criteria.Value)).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil, store.ErrNotFound
			}
			return nil, fmt.Errorf("%w: %w", store.ErrUnavailable, err)
		}
	}

	rec, err := s.load(ctx, s.redis, id)
	if err != nil {
		return nil, err
	}
	if !criteria.Matches(rec) {
		return nil, store.ErrNotFound
	}
	return rec, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *Store) load(ctx context.Context, c getter, id string) (*store.User, error) {
	data, err := c.Get(ctx, s.userKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	return decodeRecord(data)
}

// Update applies update to the record with id under optimistic locking.
// Exhausted retries surface as store.ErrUnavailable so callers can back off.
func (s *Store) Update(ctx context.Context, id string, update store.Update) error {
	if update.Guard != nil {
		if err := update.Guard.Validate(); err != nil {
			return err
		}
	}
	key := s.userKey(id)

	watched := []string{key}
	if update.SessionID != nil && *update.SessionID != "" {
		watched = append(watched, s.indexKey(store.FieldSessionID, *update.SessionID))
	}
	if update.ResetToken != nil && *update.ResetToken != "" {
		watched = append(watched, s.indexKey(store.FieldResetToken, *update.ResetToken))
	}

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			rec, err := s.load(ctx, tx, id)
			if err != nil {
				return err
			}
			if !update.Holds(rec) {
				return store.ErrConflict
			}
			if update.Empty() {
				return nil
			}

			if err := s.checkClaim(ctx, tx, store.FieldSessionID, update.SessionID, id); err != nil {
				return err
			}
			if err := s.checkClaim(ctx, tx, store.FieldResetToken, update.ResetToken, id); err != nil {
				return err
			}

			oldSession, oldReset := rec.SessionID, rec.ResetToken
			update.Apply(rec)
			rec.UpdatedAt = s.now().UTC()

			data, err := encodeRecord(rec)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, 0)
				if update.SessionID != nil {
					s.moveIndex(ctx, pipe, store.FieldSessionID, oldSession, rec.SessionID, id)
				}
				if update.ResetToken != nil {
					s.moveIndex(ctx, pipe, store.FieldResetToken, oldReset, rec.ResetToken, id)
				}
				return nil
			})
			return err
		}, watched...)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				return store.ErrNotFound
			case errors.Is(err, store.ErrConflict):
				return store.ErrConflict
			case errors.Is(err, errTokenTaken):
				return store.ErrAlreadyExists
			case errors.Is(err, errCorruptRecord):
				return err
			default:
				return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
			}
		}
		return nil
	}

	return fmt.Errorf("%w: update contention on %s", store.ErrUnavailable, id)
}

func (s *Store) checkClaim(ctx context.Context, tx *redis.Tx, field store.Field, value *string, id string) error {
	if value == nil || *value == "" {
		return nil
	}
	owner, err := tx.Get(ctx, s.indexKey(field, *value)).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	if owner != id {
		return errTokenTaken
	}
	return nil
}

func (s *Store) moveIndex(ctx context.Context, pipe redis.Pipeliner, field store.Field, old, next, id string) {
	if old != "" && old != next {
		pipe.Del(ctx, s.indexKey(field, old))
	}
	if next != "" {
		pipe.Set(ctx, s.indexKey(field, next), id, 0)
	}
}
