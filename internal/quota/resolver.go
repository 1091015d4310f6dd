package quota

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/krishna-platform/quotad/internal/clock"
	"github.com/krishna-platform/quotad/internal/metrics"
)

// PlanResolver maps a user to a Plan via a read-through local cache over the
// subscription source. A store failure never fails the request: the user is
// treated as free tier (fail-closed on privilege, fail-open on availability)
// and the failure is logged, not returned.
type PlanResolver struct {
	source       SubscriptionSource
	cache        *FallbackCache
	clk          clock.Clock
	storeTimeout time.Duration
}

func NewPlanResolver(source SubscriptionSource, cache *FallbackCache, clk clock.Clock, storeTimeout time.Duration) *PlanResolver {
	return &PlanResolver{
		source:       source,
		cache:        cache,
		clk:          clk,
		storeTimeout: storeTimeout,
	}
}

// Resolve returns the user's plan, consulting the local cache first. Only
// successful resolutions are cached, so a degraded free-tier fallback heals
// as soon as the subscription source recovers.
func (r *PlanResolver) Resolve(ctx context.Context, userID uuid.UUID) Plan {
	if p, ok := r.cache.GetPlan(userID); ok {
		metrics.CacheHitsTotal.WithLabelValues("plan").Inc()
		return p
	}

	cctx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	defer cancel()

	sub, err := r.source.GetActiveSubscription(cctx, userID)
	if err != nil {
		slog.Warn("quota: subscription lookup failed, defaulting to free tier",
			"error", err, "user_id", userID)
		metrics.StoreErrorsTotal.WithLabelValues("plan").Inc()
		return Plan{UserID: userID, Tier: TierFree, ResolvedAt: r.clk.Now()}
	}

	tier := TierFree
	if sub != nil {
		tier = TierForProduct(sub.ProductID)
	}

	plan := Plan{UserID: userID, Tier: tier, ResolvedAt: r.clk.Now()}
	r.cache.SetPlan(plan)
	return plan
}
