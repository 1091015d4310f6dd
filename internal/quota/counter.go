package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/krishna-platform/quotad/internal/clock"
)

// CounterStore is the durable per-user-per-day request counter shared by all
// process instances.
type CounterStore interface {
	// IncrementAndGet atomically increments the counter and returns the new
	// value. N concurrent calls for the same key yield exactly N increments.
	IncrementAndGet(ctx context.Context, key DayKey) (int64, error)

	// Get returns the current count. A key that does not exist yet reads as
	// zero, not as an error.
	Get(ctx context.Context, key DayKey) (int64, error)
}

// RedisCounterStore backs CounterStore with Redis. The increment is a native
// INCR, pipelined with an absolute EXPIREAT at end-of-day plus a grace
// period so abandoned counters self-clean without a sweep job.
type RedisCounterStore struct {
	client redis.Cmdable
	grace  time.Duration
}

func NewRedisCounterStore(client redis.Cmdable, grace time.Duration) *RedisCounterStore {
	return &RedisCounterStore{client: client, grace: grace}
}

func (s *RedisCounterStore) IncrementAndGet(ctx context.Context, key DayKey) (int64, error) {
	pipe := s.client.Pipeline()
	incr := pipe.Incr(ctx, key.String())
	pipe.ExpireAt(ctx, key.String(), s.expiryFor(key))

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("incrementing counter %s: %w", key, err)
	}
	return incr.Val(), nil
}

func (s *RedisCounterStore) Get(ctx context.Context, key DayKey) (int64, error) {
	n, err := s.client.Get(ctx, key.String()).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("reading counter %s: %w", key, err)
	}
	return n, nil
}

// expiryFor computes the absolute expiry for a day key. If the date fails to
// parse (cannot happen for keys built via NewDayKey) the counter falls back
// to a 48h relative guess via time.Now, still bounded.
func (s *RedisCounterStore) expiryFor(key DayKey) time.Time {
	day, err := time.Parse("2006-01-02", key.Date)
	if err != nil {
		return time.Now().UTC().Add(48 * time.Hour)
	}
	return clock.EndOfDay(day).Add(s.grace)
}

// NewDayKey builds the counter key for a user at instant t (UTC date).
func NewDayKey(userID uuid.UUID, t time.Time) DayKey {
	return DayKey{UserID: userID, Date: clock.DayString(t)}
}
