package notification

import (
	"context"
	"time"

	"github.com/dietkit/notify/internal/domain/subscription"
)

// Sender delivers one payload to one endpoint. Provider errors never
// escape: every failure is folded into the DeliveryResult.
type Sender interface {
	Channel() subscription.Channel
	Send(ctx context.Context, sub *subscription.Subscription, p *Payload) DeliveryResult
}

// SentLog records that a notification identified by key was dispatched,
// returning false when the key was already marked inside ttl. Callers
// fail open on error: a broken log must not stop delivery. Unmark
// releases a key whose dispatch delivered nothing, so the next run can
// retry.
type SentLog interface {
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unmark(ctx context.Context, key string) error
}
