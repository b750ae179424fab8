package trigger

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dietkit/notify/internal/domain/plan"
)

// Cleanup deletes ephemeral photo attachments past their expiry. Not a
// notification; it rides the same cron mechanism.
type Cleanup struct {
	Log         *zap.Logger
	Attachments plan.AttachmentCleaner
	Now         func() time.Time
}

type CleanupSummary struct {
	Deleted int `json:"deleted"`
}

func (t *Cleanup) Run(ctx context.Context) (CleanupSummary, error) {
	n, err := t.Attachments.DeleteExpired(ctx, clock(t.Now)())
	if err != nil {
		return CleanupSummary{}, fmt.Errorf("delete expired attachments: %w", err)
	}
	if n > 0 {
		t.Log.Info("expired attachments removed", zap.Int("count", n))
	}
	return CleanupSummary{Deleted: n}, nil
}
