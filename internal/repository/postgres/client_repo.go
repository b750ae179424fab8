package postgres

import (
	"context"
	"fmt"

	"github.com/dietkit/notify/internal/domain/plan"
)

var _ plan.ClientReader = (*ClientRepo)(nil)

type ClientRepo struct {
	db *DB
}

func NewClientRepo(db *DB) *ClientRepo { return &ClientRepo{db: db} }

const qClientsWithBirthDate = `
SELECT id, recipient_id, dietitian_id, name, birth_date
FROM clients
WHERE birth_date IS NOT NULL
ORDER BY id;
`

func (r *ClientRepo) ListWithBirthDate(ctx context.Context) ([]*plan.Client, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qClientsWithBirthDate)
	if err != nil {
		return nil, fmt.Errorf("query clients: %w", err)
	}
	defer rows.Close()

	var out []*plan.Client
	for rows.Next() {
		var c plan.Client
		if err := rows.Scan(&c.ID, &c.RecipientID, &c.DietitianID, &c.Name, &c.BirthDate); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
