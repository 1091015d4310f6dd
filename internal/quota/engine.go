package quota

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/krishna-platform/quotad/internal/clock"
	"github.com/krishna-platform/quotad/internal/metrics"
)

// ErrMissingUser is the one contract violation Check surfaces: the caller
// must supply an authenticated, non-nil user ID.
var ErrMissingUser = errors.New("quota: missing user id")

// Engine orchestrates plan resolution, counter reads and the atomic
// increment into a single allow/deny decision. It owns no long-lived user
// data; the resolver and counter store own their caches.
type Engine struct {
	resolver     *PlanResolver
	counters     CounterStore
	cache        *FallbackCache
	clk          clock.Clock
	limits       Limits
	storeTimeout time.Duration
}

func NewEngine(resolver *PlanResolver, counters CounterStore, cache *FallbackCache, clk clock.Clock, limits Limits, storeTimeout time.Duration) *Engine {
	return &Engine{
		resolver:     resolver,
		counters:     counters,
		cache:        cache,
		clk:          clk,
		limits:       limits,
		storeTimeout: storeTimeout,
	}
}

// Check decides whether one more request is allowed for the user today.
//
// The check is two-phase on purpose: the count is read first so a request
// that will be denied never consumes a slot, and only an allowed request
// performs the atomic increment. Store faults on either phase degrade to
// allow rather than blocking traffic.
func (e *Engine) Check(ctx context.Context, userID uuid.UUID) (Decision, error) {
	if userID == uuid.Nil {
		return Decision{}, ErrMissingUser
	}

	plan := e.resolver.Resolve(ctx, userID)
	limit := e.limits.DailyLimit(plan.Tier)

	// Unlimited users impose zero counter-store load.
	if limit == Unlimited {
		metrics.QuotaChecksTotal.WithLabelValues(string(plan.Tier), "allowed").Inc()
		return Decision{Allowed: true, Tier: plan.Tier, Limit: Unlimited, Remaining: Unlimited}, nil
	}

	now := e.clk.Now()
	key := NewDayKey(userID, now)

	degraded := false
	count, known := e.cache.GetCount(key)
	if known {
		metrics.CacheHitsTotal.WithLabelValues("counter").Inc()
	} else {
		n, err := e.getCount(ctx, key)
		if err != nil {
			// Unknown usage; fall through to the increment, which settles it
			// or triggers the fully degraded path. Either way the store
			// faulted during this check, so the decision is flagged.
			slog.Warn("quota: counter read failed", "error", err, "key", key.String())
			metrics.StoreErrorsTotal.WithLabelValues("get").Inc()
			degraded = true
		} else {
			count, known = n, true
		}
	}

	if known && count >= int64(limit) {
		metrics.QuotaChecksTotal.WithLabelValues(string(plan.Tier), "denied").Inc()
		return Decision{Allowed: false, Tier: plan.Tier, Limit: limit, Remaining: 0}, nil
	}

	newCount, err := e.increment(ctx, key)
	if err != nil {
		// Never block a request because counting infrastructure is down.
		slog.Warn("quota: counter increment failed, allowing request",
			"error", err, "key", key.String())
		metrics.StoreErrorsTotal.WithLabelValues("incr").Inc()
		metrics.QuotaChecksTotal.WithLabelValues(string(plan.Tier), "degraded").Inc()

		remaining := Unlimited
		if known {
			if r := int64(limit) - count - 1; r > 0 {
				remaining = Amount(r)
			} else {
				remaining = 0
			}
		}
		return Decision{Allowed: true, Tier: plan.Tier, Limit: limit, Remaining: remaining, Degraded: true}, nil
	}

	e.cache.SetCount(key, newCount, now)

	// The pre-read and the increment are not one atomic step, so concurrent
	// requests can race past the read. The increment's return value is the
	// authoritative position in line: anyone landing past the limit is
	// denied, which keeps admissions exact under contention.
	if newCount > int64(limit) {
		metrics.QuotaChecksTotal.WithLabelValues(string(plan.Tier), "denied").Inc()
		return Decision{Allowed: false, Tier: plan.Tier, Limit: limit, Remaining: 0, Degraded: degraded}, nil
	}

	remaining := int64(limit) - newCount
	if remaining < 0 {
		remaining = 0
	}
	metrics.QuotaChecksTotal.WithLabelValues(string(plan.Tier), "allowed").Inc()
	return Decision{Allowed: true, Tier: plan.Tier, Limit: limit, Remaining: Amount(remaining), Degraded: degraded}, nil
}

// Status reports current usage without consuming quota.
func (e *Engine) Status(ctx context.Context, userID uuid.UUID) (Status, error) {
	if userID == uuid.Nil {
		return Status{}, ErrMissingUser
	}

	plan := e.resolver.Resolve(ctx, userID)
	limit := e.limits.DailyLimit(plan.Tier)
	if limit == Unlimited {
		return Status{Tier: plan.Tier, Limit: Unlimited, Used: 0, Remaining: Unlimited}, nil
	}

	key := NewDayKey(userID, e.clk.Now())
	count, ok := e.cache.GetCount(key)
	if !ok {
		n, err := e.getCount(ctx, key)
		if err != nil {
			slog.Warn("quota: counter read failed for status", "error", err, "key", key.String())
			metrics.StoreErrorsTotal.WithLabelValues("get").Inc()
			n = 0
		}
		count = n
	}

	remaining := int64(limit) - count
	if remaining < 0 {
		remaining = 0
	}
	return Status{Tier: plan.Tier, Limit: limit, Used: Amount(count), Remaining: Amount(remaining)}, nil
}

// Invalidate evicts the user's cached plan and today's cached counter so a
// subscription change takes effect without waiting for TTL expiry. The
// durable counter is untouched; usage already made counts toward the new
// limit. Idempotent.
func (e *Engine) Invalidate(userID uuid.UUID) {
	e.cache.EvictPlan(userID)
	e.cache.EvictCount(NewDayKey(userID, e.clk.Now()))
	metrics.InvalidationsTotal.Inc()
}

func (e *Engine) getCount(ctx context.Context, key DayKey) (int64, error) {
	cctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()

	n, err := e.counters.Get(cctx, key)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		// Invariant violation from the store; treated as unavailable.
		return 0, errors.New("quota: negative count from store")
	}
	return n, nil
}

func (e *Engine) increment(ctx context.Context, key DayKey) (int64, error) {
	cctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()

	n, err := e.counters.IncrementAndGet(cctx, key)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("quota: non-positive count after increment")
	}
	return n, nil
}
