package payment

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStashMiss is returned when no checkout details are stored for an
// order ID.
var ErrStashMiss = errors.New("payment: no stored checkout details for order")

const stashPrefix = "booking:checkout:"

// CheckoutDetails is what the return route needs to reserve or cancel
// the booking when the gateway callback arrives: the callback itself
// only carries the order ID reliably.
type CheckoutDetails struct {
	SessionID    string `json:"sessionId"`
	CinemaID     string `json:"cinemaId"`
	ShowID       string `json:"showId"`
	ReferenceNo  string `json:"referenceNo"`
	MembershipID string `json:"membershipId,omitempty"`
}

// DetailStash stores checkout details keyed by order ID.  The Redis
// implementation is used in production; the reconciler depends only on
// the interface.
type DetailStash interface {
	Put(ctx context.Context, orderID string, d CheckoutDetails) error
	Get(ctx context.Context, orderID string) (*CheckoutDetails, error)
}

// RedisStash keeps checkout details for long enough to cover slow
// gateway callbacks and manual retries.
type RedisStash struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStash returns a stash with the given TTL (default 24h).
func NewRedisStash(rdb *redis.Client, ttl time.Duration) *RedisStash {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStash{rdb: rdb, ttl: ttl}
}

func (s *RedisStash) Put(ctx context.Context, orderID string, d CheckoutDetails) error {
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, stashPrefix+orderID, b, s.ttl).Err()
}

func (s *RedisStash) Get(ctx context.Context, orderID string) (*CheckoutDetails, error) {
	b, err := s.rdb.Get(ctx, stashPrefix+orderID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrStashMiss
		}
		return nil, err
	}
	var d CheckoutDetails
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
