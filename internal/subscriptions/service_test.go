package subscriptions

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krishna-platform/quotad/internal/nats"
	"github.com/krishna-platform/quotad/internal/quota"
)

type fakeRepo struct {
	rows map[uuid.UUID]*SubscriptionRow
	err  error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: make(map[uuid.UUID]*SubscriptionRow)}
}

func (r *fakeRepo) Upsert(_ context.Context, row *SubscriptionRow) error {
	if r.err != nil {
		return r.err
	}
	r.rows[row.UserID] = row
	return nil
}

func (r *fakeRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*SubscriptionRow, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.rows[userID], nil
}

func (r *fakeRepo) GetActiveSubscription(_ context.Context, userID uuid.UUID) (*quota.Subscription, error) {
	if r.err != nil {
		return nil, r.err
	}
	row := r.rows[userID]
	if row == nil || row.Status != StatusActive {
		return nil, nil
	}
	return &quota.Subscription{ProductID: row.ProductID, Status: row.Status}, nil
}

type recordingInvalidator struct {
	users []uuid.UUID
}

func (i *recordingInvalidator) Invalidate(userID uuid.UUID) {
	i.users = append(i.users, userID)
}

func TestServiceUpsert_StoresAndInvalidates(t *testing.T) {
	repo := newFakeRepo()
	inv := &recordingInvalidator{}
	svc := NewService(repo, inv, nil)
	userID := uuid.New()

	sub, err := svc.Upsert(context.Background(), userID, &UpsertSubscriptionRequest{
		ProductID: "utopia-annual",
		Status:    StatusActive,
	})
	require.NoError(t, err)

	assert.Equal(t, userID, sub.UserID)
	assert.Equal(t, "utopia-annual", sub.ProductID)
	assert.Equal(t, StatusActive, sub.Status)

	require.Len(t, inv.users, 1, "upsert must invalidate the quota caches")
	assert.Equal(t, userID, inv.users[0])
}

func TestServiceUpsert_RepoFailureSkipsInvalidation(t *testing.T) {
	repo := newFakeRepo()
	repo.err = errors.New("db down")
	inv := &recordingInvalidator{}
	svc := NewService(repo, inv, nil)

	_, err := svc.Upsert(context.Background(), uuid.New(), &UpsertSubscriptionRequest{
		ProductID: "pro-monthly",
		Status:    StatusActive,
	})
	require.Error(t, err)
	assert.Empty(t, inv.users, "a failed write must not evict the current plan")
}

func TestServiceUpsert_OverwritesPreviousSubscription(t *testing.T) {
	repo := newFakeRepo()
	inv := &recordingInvalidator{}
	svc := NewService(repo, inv, nil)
	userID := uuid.New()
	ctx := context.Background()

	_, err := svc.Upsert(ctx, userID, &UpsertSubscriptionRequest{ProductID: "pro-monthly", Status: StatusActive})
	require.NoError(t, err)
	_, err = svc.Upsert(ctx, userID, &UpsertSubscriptionRequest{ProductID: "pro-monthly", Status: StatusCancelled})
	require.NoError(t, err)

	sub, err := svc.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, sub.Status)

	active, err := repo.GetActiveSubscription(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, active, "cancelled subscriptions resolve to no active subscription")

	assert.Len(t, inv.users, 2)
}

func TestServiceGet_NoSubscription(t *testing.T) {
	svc := NewService(newFakeRepo(), &recordingInvalidator{}, nil)

	sub, err := svc.Get(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, sub)
}

func TestEventTypeFor(t *testing.T) {
	assert.Equal(t, nats.EventSubscriptionActivated, eventTypeFor(StatusActive))
	assert.Equal(t, nats.EventSubscriptionCancelled, eventTypeFor(StatusCancelled))
	assert.Equal(t, nats.EventSubscriptionExpired, eventTypeFor(StatusExpired))
	assert.Equal(t, nats.EventSubscriptionPastDue, eventTypeFor(StatusPastDue))
	assert.Equal(t, "subscription_changed", eventTypeFor("weird"))
}
