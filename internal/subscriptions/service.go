package subscriptions

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/krishna-platform/quotad/internal/nats"
	"github.com/krishna-platform/quotad/internal/quota"
)

// Invalidator evicts a user's cached quota state. Satisfied by
// *quota.Engine.
type Invalidator interface {
	Invalidate(userID uuid.UUID)
}

type Service struct {
	repo        Repository
	invalidator Invalidator
	publisher   *nats.Publisher // nil when NATS is disabled
}

func NewService(repo Repository, invalidator Invalidator, publisher *nats.Publisher) *Service {
	return &Service{
		repo:        repo,
		invalidator: invalidator,
		publisher:   publisher,
	}
}

// Upsert records the user's subscription change, evicts the local quota
// caches immediately and announces the change over NATS so peer instances
// evict theirs.
func (s *Service) Upsert(ctx context.Context, userID uuid.UUID, req *UpsertSubscriptionRequest) (*Subscription, error) {
	now := time.Now().UTC()
	row := &SubscriptionRow{
		ID:        uuid.New(),
		UserID:    userID,
		ProductID: req.ProductID,
		Status:    req.Status,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Upsert(ctx, row); err != nil {
		return nil, err
	}

	// Local eviction first so this instance serves the new tier on the very
	// next request, then the async fan-out for everyone else.
	s.invalidator.Invalidate(userID)

	if s.publisher != nil {
		event := nats.SubscriptionEvent{
			UserID:    userID,
			ProductID: req.ProductID,
			Status:    req.Status,
			EventType: eventTypeFor(req.Status),
			Timestamp: now,
		}
		if err := s.publisher.PublishSubscriptionEvent(ctx, event); err != nil {
			// The write and local eviction succeeded; peers converge on TTL
			// expiry at worst.
			slog.Error("publishing subscription event", "error", err, "user_id", userID)
		}
	}

	slog.Info("subscription updated",
		"user_id", userID,
		"product_id", req.ProductID,
		"status", req.Status,
		"tier", quota.TierForProduct(req.ProductID),
	)

	return rowToSubscription(row), nil
}

// Get returns the user's subscription record, or nil if they never had one.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	row, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return rowToSubscription(row), nil
}

func eventTypeFor(status string) string {
	switch status {
	case StatusActive:
		return nats.EventSubscriptionActivated
	case StatusCancelled:
		return nats.EventSubscriptionCancelled
	case StatusExpired:
		return nats.EventSubscriptionExpired
	case StatusPastDue:
		return nats.EventSubscriptionPastDue
	default:
		return "subscription_changed"
	}
}
