package quota

import (
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/krishna-platform/quotad/internal/clock"
)

// FallbackCache is the process-local cache layer shared by plan and counter
// lookups. It is never persisted; the durable store remains the source of
// truth. Two independent entry families with their own TTLs live here:
// plans (coarse, change rarely) and counters (short, day-bounded).
type FallbackCache struct {
	plans    *gocache.Cache
	counters *gocache.Cache

	planTTL    time.Duration
	counterTTL time.Duration
	grace      time.Duration
}

func NewFallbackCache(planTTL, counterTTL, grace time.Duration) *FallbackCache {
	return &FallbackCache{
		plans:      gocache.New(planTTL, 10*time.Minute),
		counters:   gocache.New(counterTTL, time.Minute),
		planTTL:    planTTL,
		counterTTL: counterTTL,
		grace:      grace,
	}
}

func (c *FallbackCache) GetPlan(userID uuid.UUID) (Plan, bool) {
	v, ok := c.plans.Get(userID.String())
	if !ok {
		return Plan{}, false
	}
	return v.(Plan), true
}

func (c *FallbackCache) SetPlan(p Plan) {
	c.plans.Set(p.UserID.String(), p, c.planTTL)
}

func (c *FallbackCache) EvictPlan(userID uuid.UUID) {
	c.plans.Delete(userID.String())
}

func (c *FallbackCache) GetCount(key DayKey) (int64, bool) {
	v, ok := c.counters.Get(key.String())
	if !ok {
		return 0, false
	}
	return v.(int64), true
}

// SetCount caches a counter value. The entry TTL is capped at the end of the
// counter's UTC day plus the grace period, so a counter is never served past
// the day boundary that defines its key.
func (c *FallbackCache) SetCount(key DayKey, count int64, now time.Time) {
	ttl := c.counterTTL
	day, err := time.Parse("2006-01-02", key.Date)
	if err == nil {
		if untilReset := clock.EndOfDay(day).Add(c.grace).Sub(now); untilReset < ttl {
			ttl = untilReset
		}
	}
	if ttl <= 0 {
		return
	}
	c.counters.Set(key.String(), count, ttl)
}

func (c *FallbackCache) EvictCount(key DayKey) {
	c.counters.Delete(key.String())
}
