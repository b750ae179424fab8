package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dietkit/notify/internal/domain/recipient"
)

var _ recipient.PreferenceRepo = (*PreferenceRepo)(nil)

type PreferenceRepo struct {
	db *DB
}

func NewPreferenceRepo(db *DB) *PreferenceRepo { return &PreferenceRepo{db: db} }

const (
	qPrefGet = `
SELECT recipient_id, meal_reminders, diet_updates, messages, updated_at
FROM notification_preferences
WHERE recipient_id = $1;
`

	qPrefUpsert = `
INSERT INTO notification_preferences (recipient_id, meal_reminders, diet_updates, messages)
VALUES ($1, $2, $3, $4)
ON CONFLICT (recipient_id) DO UPDATE
SET meal_reminders = EXCLUDED.meal_reminders,
    diet_updates   = EXCLUDED.diet_updates,
    messages       = EXCLUDED.messages,
    updated_at     = NOW()
RETURNING recipient_id, meal_reminders, diet_updates, messages, updated_at;
`
)

func (r *PreferenceRepo) Get(ctx context.Context, recipientID int64) (*recipient.Preference, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var p recipient.Preference
	err := r.db.Pool.QueryRow(ctx, qPrefGet, recipientID).
		Scan(&p.RecipientID, &p.MealReminders, &p.DietUpdates, &p.Messages, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get preference: %w", err)
	}
	return &p, nil
}

func (r *PreferenceRepo) Upsert(ctx context.Context, p *recipient.Preference) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if err := r.db.Pool.QueryRow(ctx, qPrefUpsert, p.RecipientID, p.MealReminders, p.DietUpdates, p.Messages).
		Scan(&p.RecipientID, &p.MealReminders, &p.DietUpdates, &p.Messages, &p.UpdatedAt); err != nil {
		return fmt.Errorf("upsert preference: %w", err)
	}
	return nil
}
