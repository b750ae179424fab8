package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dietkit/notify/internal/domain/plan"
)

var _ plan.Reader = (*PlanRepo)(nil)

// PlanRepo reads diets, meals and clients owned by the main application.
// Strictly read-only: the engine never writes these tables.
type PlanRepo struct {
	db *DB
}

func NewPlanRepo(db *DB) *PlanRepo { return &PlanRepo{db: db} }

const (
	qLatestPlans = `
SELECT DISTINCT ON (d.client_id)
       d.id, d.client_id, c.recipient_id, d.created_at
FROM diets d
JOIN clients c ON c.id = d.client_id
WHERE d.created_at >= $1
ORDER BY d.client_id, d.created_at DESC;
`

	qLatestPlanForRecipient = `
SELECT d.id, d.client_id, c.recipient_id, d.created_at
FROM diets d
JOIN clients c ON c.id = d.client_id
WHERE c.recipient_id = $1 AND d.created_at >= $2
ORDER BY d.created_at DESC
LIMIT 1;
`

	qCreatedSince = `
SELECT d.id, d.client_id, c.recipient_id, d.created_at
FROM diets d
JOIN clients c ON c.id = d.client_id
WHERE d.created_at >= $1
ORDER BY d.created_at;
`

	qMealsByDiet = `
SELECT id, diet_id, name, COALESCE(time_of_day, ''), COALESCE(menu_items, '{}')
FROM meals
WHERE diet_id = ANY($1)
ORDER BY diet_id, id;
`
)

func (r *PlanRepo) LatestPlans(ctx context.Context, since time.Time) ([]*plan.DietPlan, error) {
	return r.queryPlans(ctx, qLatestPlans, since)
}

func (r *PlanRepo) LatestPlanForRecipient(ctx context.Context, recipientID int64, since time.Time) (*plan.DietPlan, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var p plan.DietPlan
	err := r.db.Pool.QueryRow(ctx, qLatestPlanForRecipient, recipientID, since).
		Scan(&p.ID, &p.ClientID, &p.RecipientID, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("latest plan for recipient: %w", err)
	}
	if err := r.loadMeals(ctx, []*plan.DietPlan{&p}); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PlanRepo) CreatedSince(ctx context.Context, since time.Time) ([]*plan.DietPlan, error) {
	return r.queryPlans(ctx, qCreatedSince, since)
}

func (r *PlanRepo) queryPlans(ctx context.Context, q string, args ...any) ([]*plan.DietPlan, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer rows.Close()

	var out []*plan.DietPlan
	for rows.Next() {
		var p plan.DietPlan
		if err := rows.Scan(&p.ID, &p.ClientID, &p.RecipientID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if err := r.loadMeals(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PlanRepo) loadMeals(ctx context.Context, plans []*plan.DietPlan) error {
	if len(plans) == 0 {
		return nil
	}
	byID := make(map[int64]*plan.DietPlan, len(plans))
	ids := make([]int64, 0, len(plans))
	for _, p := range plans {
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}

	rows, err := r.db.Pool.Query(ctx, qMealsByDiet, ids)
	if err != nil {
		return fmt.Errorf("query meals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m plan.Meal
		if err := rows.Scan(&m.ID, &m.DietID, &m.Name, &m.TimeOfDay, &m.MenuItems); err != nil {
			return fmt.Errorf("scan meal: %w", err)
		}
		if p, ok := byID[m.DietID]; ok {
			p.Meals = append(p.Meals, m)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows: %w", err)
	}
	return nil
}
