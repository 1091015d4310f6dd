package nats

import (
	"time"

	"github.com/google/uuid"
)

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// Stream names.
const (
	StreamEvents = "QUOTAD_EVENTS"
)

// Subject constants.
const (
	SubjectSubscriptionEvent = "quotad.events.subscription"
)

// Subscription state transitions that other processes announce so every
// instance can evict its cached plan for the user.
const (
	EventSubscriptionActivated = "subscription_activated"
	EventSubscriptionCancelled = "subscription_cancelled"
	EventSubscriptionExpired   = "subscription_expired"
	EventSubscriptionPastDue   = "subscription_past_due"
)

// SubscriptionEvent is published on any subscription state transition.
type SubscriptionEvent struct {
	UserID    uuid.UUID `json:"user_id"`
	ProductID string    `json:"product_id"`
	Status    string    `json:"status"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}
