package quota

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Tier is the closed set of subscription tiers.
type Tier string

const (
	TierFree      Tier = "free"
	TierTier2     Tier = "tier2"
	TierUnlimited Tier = "unlimited"
)

// Amount is a request count or limit. The Unlimited sentinel renders as the
// string "unlimited" in JSON bodies and response headers.
type Amount int64

const Unlimited Amount = -1

func (a Amount) String() string {
	if a == Unlimited {
		return "unlimited"
	}
	return strconv.FormatInt(int64(a), 10)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if a == Unlimited {
		return []byte(`"unlimited"`), nil
	}
	return []byte(strconv.FormatInt(int64(a), 10)), nil
}

// Plan is an immutable snapshot of a user's resolved tier. A tier change
// produces a new Plan value; cached copies are evicted, never mutated.
type Plan struct {
	UserID     uuid.UUID
	Tier       Tier
	ResolvedAt time.Time
}

// Limits is the tier→daily-limit table.
type Limits struct {
	free  int64
	tier2 int64
}

func NewLimits(free, tier2 int64) Limits {
	return Limits{free: free, tier2: tier2}
}

// DailyLimit returns the daily request budget for a tier.
func (l Limits) DailyLimit(t Tier) Amount {
	switch t {
	case TierUnlimited:
		return Unlimited
	case TierTier2:
		return Amount(l.tier2)
	default:
		return Amount(l.free)
	}
}

// DayKey identifies one user's counter for one UTC calendar day. A new day
// yields a new key with an implicit zero count, so there is no reset
// operation.
type DayKey struct {
	UserID uuid.UUID
	Date   string // "2006-01-02", UTC
}

func (k DayKey) String() string {
	return fmt.Sprintf("quota:daily:%s:%s", k.UserID, k.Date)
}

// Subscription is the slice of an external subscription record the resolver
// needs: the purchased product and its status.
type Subscription struct {
	ProductID string
	Status    string
}

// SubscriptionSource yields the latest active subscription for a user, or
// (nil, nil) when there is none.
type SubscriptionSource interface {
	GetActiveSubscription(ctx context.Context, userID uuid.UUID) (*Subscription, error)
}

// Decision is the outcome of a quota check. Degraded marks decisions where a
// store fault forced the fail-open path; such requests are allowed but the
// remaining budget may be unknown.
type Decision struct {
	Allowed   bool   `json:"allowed"`
	Tier      Tier   `json:"tier"`
	Limit     Amount `json:"limit"`
	Remaining Amount `json:"remaining"`
	Degraded  bool   `json:"degraded,omitempty"`
}

// Status is the quota usage snapshot served to the user.
type Status struct {
	Tier      Tier   `json:"tier"`
	Limit     Amount `json:"limit"`
	Used      Amount `json:"used"`
	Remaining Amount `json:"remaining"`
}

// productTiers maps product identifiers to tiers by case-insensitive
// substring match, first match wins. Anything unmatched is free.
var productTiers = []struct {
	substr string
	tier   Tier
}{
	{"utopia", TierUnlimited},
	{"tier2", TierTier2},
	{"pro", TierTier2},
}

// TierForProduct resolves a product identifier to a tier.
func TierForProduct(productID string) Tier {
	p := strings.ToLower(productID)
	for _, m := range productTiers {
		if strings.Contains(p, m.substr) {
			return m.tier
		}
	}
	return TierFree
}
