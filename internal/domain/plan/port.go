package plan

import (
	"context"
	"time"
)

// Reader is the read-only view of the relational store this subsystem is
// allowed. The backing tables belong to the main application.
type Reader interface {
	// LatestPlans returns, per client, the most recently created plan with
	// a creation timestamp at or after since, meals included.
	LatestPlans(ctx context.Context, since time.Time) ([]*DietPlan, error)
	// LatestPlanForRecipient scopes LatestPlans to one recipient; nil when
	// the recipient has no plan inside the lookback.
	LatestPlanForRecipient(ctx context.Context, recipientID int64, since time.Time) (*DietPlan, error)
	// CreatedSince returns plans created inside the trailing window.
	CreatedSince(ctx context.Context, since time.Time) ([]*DietPlan, error)
}

// ClientReader lists clients for the birthday sweep.
type ClientReader interface {
	ListWithBirthDate(ctx context.Context) ([]*Client, error)
}

// AttachmentCleaner deletes ephemeral photo attachments past expiry.
// Shares the cron mechanism, not the notification pipeline.
type AttachmentCleaner interface {
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
