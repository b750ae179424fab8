package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/dietkit/notify/internal/domain/plan"
)

var _ plan.AttachmentCleaner = (*AttachmentRepo)(nil)

type AttachmentRepo struct {
	db *DB
}

func NewAttachmentRepo(db *DB) *AttachmentRepo { return &AttachmentRepo{db: db} }

const qAttachmentDeleteExpired = `DELETE FROM photo_attachments WHERE expires_at <= $1;`

func (r *AttachmentRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.Pool.Exec(ctx, qAttachmentDeleteExpired, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired attachments: %w", err)
	}
	return int(cmd.RowsAffected()), nil
}
