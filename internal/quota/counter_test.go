package quota

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCounterStore(t *testing.T) (*RedisCounterStore, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	return NewRedisCounterStore(rdb, time.Hour), s
}

func TestCounterStore_IncrementSequence(t *testing.T) {
	store, _ := setupCounterStore(t)
	ctx := context.Background()
	key := NewDayKey(uuid.New(), time.Now().UTC())

	for want := int64(1); want <= 5; want++ {
		n, err := store.IncrementAndGet(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	n, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestCounterStore_MissingKeyReadsAsZero(t *testing.T) {
	store, _ := setupCounterStore(t)

	n, err := store.Get(context.Background(), NewDayKey(uuid.New(), time.Now().UTC()))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCounterStore_KeysIsolatedByDay(t *testing.T) {
	store, _ := setupCounterStore(t)
	ctx := context.Background()
	userID := uuid.New()
	now := time.Now().UTC()

	today := NewDayKey(userID, now)
	tomorrow := NewDayKey(userID, now.Add(24*time.Hour))
	require.NotEqual(t, today.String(), tomorrow.String())

	_, err := store.IncrementAndGet(ctx, today)
	require.NoError(t, err)
	_, err = store.IncrementAndGet(ctx, today)
	require.NoError(t, err)

	n, err := store.Get(ctx, tomorrow)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "tomorrow's counter starts at zero")

	n, err = store.Get(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestCounterStore_KeysIsolatedByUser(t *testing.T) {
	store, _ := setupCounterStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	keyA := NewDayKey(uuid.New(), now)
	keyB := NewDayKey(uuid.New(), now)

	_, err := store.IncrementAndGet(ctx, keyA)
	require.NoError(t, err)

	n, err := store.Get(ctx, keyB)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCounterStore_SetsExpiry(t *testing.T) {
	store, s := setupCounterStore(t)
	ctx := context.Background()
	key := NewDayKey(uuid.New(), time.Now().UTC())

	_, err := store.IncrementAndGet(ctx, key)
	require.NoError(t, err)

	ttl := s.TTL(key.String())
	assert.Greater(t, ttl, time.Duration(0), "counter must expire")
	assert.LessOrEqual(t, ttl, 25*time.Hour, "expiry is end of day plus grace")
}

func TestCounterStore_ExpiryIsAbsolute(t *testing.T) {
	store, _ := setupCounterStore(t)
	ctx := context.Background()
	key := NewDayKey(uuid.New(), time.Now().UTC())

	_, err := store.IncrementAndGet(ctx, key)
	require.NoError(t, err)

	want := store.expiryFor(key)

	// A second increment re-applies the same absolute expiry; the deadline
	// must not slide forward with activity.
	_, err = store.IncrementAndGet(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, want, store.expiryFor(key))
}

func TestDayKey_Format(t *testing.T) {
	userID := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	at := time.Date(2026, 3, 14, 23, 59, 59, 0, time.UTC)

	key := NewDayKey(userID, at)
	assert.Equal(t, "quota:daily:6ba7b810-9dad-11d1-80b4-00c04fd430c8:2026-03-14", key.String())
}

func TestDayKey_UsesUTCDate(t *testing.T) {
	userID := uuid.New()
	// 23:30 in UTC-5 is 04:30 the next day in UTC.
	loc := time.FixedZone("EST", -5*3600)
	at := time.Date(2026, 3, 14, 23, 30, 0, 0, loc)

	key := NewDayKey(userID, at)
	assert.Equal(t, "2026-03-15", key.Date)
}
