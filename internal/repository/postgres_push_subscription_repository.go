package repository

import (
	"context"
	"errors"

	"github.com/dawei41468/LOSMAX/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pushSubscriptionColumns = `id, user_id, endpoint, p256dh, auth, created_at, updated_at`

// PostgresPushSubscriptionRepository implements PushSubscriptionRepository using PostgreSQL
type PostgresPushSubscriptionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresPushSubscriptionRepository creates a new PostgresPushSubscriptionRepository
func NewPostgresPushSubscriptionRepository(pool *pgxpool.Pool) *PostgresPushSubscriptionRepository {
	return &PostgresPushSubscriptionRepository{pool: pool}
}

func scanPushSubscription(row pgx.Row) (*domain.PushSubscription, error) {
	sub := &domain.PushSubscription{}
	err := row.Scan(
		&sub.ID,
		&sub.UserID,
		&sub.Endpoint,
		&sub.P256dh,
		&sub.Auth,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	return sub, err
}

// Upsert stores sub as the user's only subscription. An existing row keeps
// its id and created_at. A missing user yields ErrNotFound.
func (r *PostgresPushSubscriptionRepository) Upsert(ctx context.Context, sub *domain.PushSubscription) (*domain.PushSubscription, error) {
	if !validID(sub.UserID) {
		return nil, ErrNotFound
	}
	query := `
		INSERT INTO push_subscriptions (` + pushSubscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE
		SET endpoint = EXCLUDED.endpoint,
			p256dh = EXCLUDED.p256dh,
			auth = EXCLUDED.auth,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + pushSubscriptionColumns
	stored, err := scanPushSubscription(r.pool.QueryRow(ctx, query,
		sub.ID,
		sub.UserID,
		sub.Endpoint,
		sub.P256dh,
		sub.Auth,
		sub.CreatedAt,
		sub.UpdatedAt,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return stored, nil
}

// GetByUser returns the user's subscription, or nil when none is stored
func (r *PostgresPushSubscriptionRepository) GetByUser(ctx context.Context, userID string) (*domain.PushSubscription, error) {
	if !validID(userID) {
		return nil, nil
	}
	query := `SELECT ` + pushSubscriptionColumns + ` FROM push_subscriptions WHERE user_id = $1`
	sub, err := scanPushSubscription(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return sub, nil
}

// DeleteByUser removes the user's subscription
func (r *PostgresPushSubscriptionRepository) DeleteByUser(ctx context.Context, userID string) error {
	if !validID(userID) {
		return ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM push_subscriptions WHERE user_id = $1`, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
