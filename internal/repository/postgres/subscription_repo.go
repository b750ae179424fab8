package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dietkit/notify/internal/domain/subscription"
)

var _ subscription.Registry = (*SubscriptionRepo)(nil)

type SubscriptionRepo struct {
	db *DB
}

func NewSubscriptionRepo(db *DB) *SubscriptionRepo { return &SubscriptionRepo{db: db} }

const (
	qSubUpsert = `
INSERT INTO subscriptions (recipient_id, channel, endpoint, p256dh, auth)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (channel, endpoint) DO UPDATE
SET recipient_id = EXCLUDED.recipient_id,
    p256dh       = EXCLUDED.p256dh,
    auth         = EXCLUDED.auth,
    updated_at   = NOW()
RETURNING id, recipient_id, channel, endpoint, p256dh, auth, created_at, updated_at;
`

	// A recipient keeps at most one mobile token; a fresh registration
	// replaces any older token rows of the same recipient.
	qSubDropStaleMobile = `
DELETE FROM subscriptions
WHERE recipient_id = $1 AND channel = $2 AND endpoint <> $3;
`

	qSubByRecipient = `
SELECT id, recipient_id, channel, endpoint, p256dh, auth, created_at, updated_at
FROM subscriptions
WHERE recipient_id = $1
ORDER BY id;
`

	qSubRemove = `DELETE FROM subscriptions WHERE channel = $1 AND endpoint = $2;`

	qSubRemoveOwned = `DELETE FROM subscriptions WHERE recipient_id = $1 AND endpoint = $2;`

	qSubRemoveByRecipient = `DELETE FROM subscriptions WHERE recipient_id = $1;`
)

func scanSub(row pgx.Row, s *subscription.Subscription) error {
	if err := row.Scan(
		&s.ID,
		&s.RecipientID,
		&s.Channel,
		&s.Endpoint,
		&s.Keys.P256dh,
		&s.Keys.Auth,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("scan subscription: %w", err)
	}
	return nil
}

func (r *SubscriptionRepo) Upsert(ctx context.Context, s *subscription.Subscription) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if s.Channel == subscription.ChannelMobile {
		if _, err := tx.Exec(ctx, qSubDropStaleMobile, s.RecipientID, s.Channel, s.Endpoint); err != nil {
			return fmt.Errorf("drop stale mobile tokens: %w", err)
		}
	}

	row := tx.QueryRow(ctx, qSubUpsert, s.RecipientID, s.Channel, s.Endpoint, s.Keys.P256dh, s.Keys.Auth)
	if err := scanSub(row, s); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *SubscriptionRepo) ListByRecipient(ctx context.Context, recipientID int64) ([]*subscription.Subscription, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qSubByRecipient, recipientID)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var out []*subscription.Subscription
	for rows.Next() {
		var s subscription.Subscription
		if err := scanSub(rows, &s); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *SubscriptionRepo) Remove(ctx context.Context, ch subscription.Channel, endpoint string) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.Pool.Exec(ctx, qSubRemove, ch, endpoint); err != nil {
		return fmt.Errorf("remove subscription: %w", err)
	}
	return nil
}

func (r *SubscriptionRepo) RemoveOwned(ctx context.Context, recipientID int64, endpoint string) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.Pool.Exec(ctx, qSubRemoveOwned, recipientID, endpoint); err != nil {
		return fmt.Errorf("remove owned subscription: %w", err)
	}
	return nil
}

func (r *SubscriptionRepo) RemoveByRecipient(ctx context.Context, recipientID int64) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.Pool.Exec(ctx, qSubRemoveByRecipient, recipientID); err != nil {
		return fmt.Errorf("remove recipient subscriptions: %w", err)
	}
	return nil
}
