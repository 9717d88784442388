package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned when a session ID resolves to nothing,
// either because it never existed or because it expired and was swept.
var ErrSessionNotFound = errors.New("session: not found")

const keyPrefix = "booking:session:"

// Store is the persistence boundary for booking sessions.  The Redis
// implementation is used in production; tests substitute an in-memory
// one.
type Store interface {
	Save(ctx context.Context, s *BookingSession) error
	Get(ctx context.Context, id string) (*BookingSession, error)
	Delete(ctx context.Context, id string) error
	IDs(ctx context.Context) ([]string, error)
}

// RedisStore keeps each session as one JSON value with a TTL safety
// net: even if the janitor never reaches a session, Redis drops it.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore returns a store writing sessions with the given TTL.
// A non-positive TTL defaults to 30 minutes, comfortably beyond every
// workflow timer.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// Save writes the session document, refreshing its TTL.
func (s *RedisStore) Save(ctx context.Context, sess *BookingSession) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, keyPrefix+sess.ID, b, s.ttl).Err()
}

// Get loads one session by ID.
func (s *RedisStore) Get(ctx context.Context, id string) (*BookingSession, error) {
	b, err := s.rdb.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	var sess BookingSession
	if err := json.Unmarshal(b, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Delete removes a session.  Deleting an absent session is not an
// error.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, keyPrefix+id).Err()
}

// IDs scans all live session IDs.  Used by the expiry janitor; the scan
// is incremental so it never blocks Redis on large keyspaces.
func (s *RedisStore) IDs(ctx context.Context) ([]string, error) {
	var ids []string
	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			ids = append(ids, k[len(keyPrefix):])
		}
		if next == 0 {
			return ids, nil
		}
		cursor = next
	}
}
