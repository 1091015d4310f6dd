package subscriptions

import (
	"time"

	"github.com/google/uuid"
)

// Subscription states. Only StatusActive grants a paid tier; every other
// state resolves to free.
const (
	StatusActive    = "active"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
	StatusPastDue   = "past_due"
)

// SubscriptionRow mirrors the subscriptions table.
type SubscriptionRow struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	ProductID string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Subscription is the API representation of a subscription record.
type Subscription struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	ProductID string    `json:"product_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpsertSubscriptionRequest is the payload for creating or updating a
// user's subscription.
type UpsertSubscriptionRequest struct {
	ProductID string `json:"product_id" validate:"required,max=255"`
	Status    string `json:"status" validate:"required,oneof=active cancelled expired past_due"`
}

func rowToSubscription(row *SubscriptionRow) *Subscription {
	return &Subscription{
		ID:        row.ID,
		UserID:    row.UserID,
		ProductID: row.ProductID,
		Status:    row.Status,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}
