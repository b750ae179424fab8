package subscription

import "context"

// Registry owns endpoint lifecycle. Upsert is idempotent by
// (channel, endpoint) and rebinds the owning recipient on conflict;
// removals are no-ops on missing rows.
type Registry interface {
	Upsert(ctx context.Context, s *Subscription) error
	ListByRecipient(ctx context.Context, recipientID int64) ([]*Subscription, error)
	Remove(ctx context.Context, ch Channel, endpoint string) error
	RemoveOwned(ctx context.Context, recipientID int64, endpoint string) error
	RemoveByRecipient(ctx context.Context, recipientID int64) error
}
