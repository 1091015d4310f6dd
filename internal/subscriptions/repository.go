package subscriptions

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/krishna-platform/quotad/internal/quota"
)

type Repository interface {
	Upsert(ctx context.Context, row *SubscriptionRow) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*SubscriptionRow, error)
	GetActiveSubscription(ctx context.Context, userID uuid.UUID) (*quota.Subscription, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

// Upsert inserts or replaces the user's subscription. One row per user: a
// new purchase overwrites the previous record.
func (r *postgresRepository) Upsert(ctx context.Context, row *SubscriptionRow) error {
	query := `
		INSERT INTO subscriptions (id, user_id, product_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET product_id = EXCLUDED.product_id,
		    status = EXCLUDED.status,
		    updated_at = EXCLUDED.updated_at`

	_, err := r.pool.Exec(ctx, query,
		row.ID, row.UserID, row.ProductID, row.Status, row.CreatedAt, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting subscription: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*SubscriptionRow, error) {
	query := `
		SELECT id, user_id, product_id, status, created_at, updated_at
		FROM subscriptions
		WHERE user_id = $1`

	row := &SubscriptionRow{}
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&row.ID, &row.UserID, &row.ProductID, &row.Status, &row.CreatedAt, &row.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying subscription by user id: %w", err)
	}
	return row, nil
}

// GetActiveSubscription returns the user's subscription only if it is
// active; cancelled, expired and past-due records yield (nil, nil) so the
// caller falls back to the free tier.
func (r *postgresRepository) GetActiveSubscription(ctx context.Context, userID uuid.UUID) (*quota.Subscription, error) {
	query := `
		SELECT product_id, status
		FROM subscriptions
		WHERE user_id = $1 AND status = $2`

	var sub quota.Subscription
	err := r.pool.QueryRow(ctx, query, userID, StatusActive).Scan(&sub.ProductID, &sub.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying active subscription: %w", err)
	}
	return &sub, nil
}
