// Package trigger holds the externally invoked scheduling entry points.
// Each trigger loads a domain snapshot, runs its eligibility rule over
// every candidate and hands qualifying results to the dispatcher,
// returning a run summary to the caller.
package trigger

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dietkit/notify/internal/domain/notification"
)

// Dispatcher is the fan-out boundary the triggers talk to.
type Dispatcher interface {
	Dispatch(ctx context.Context, recipientID int64, p *notification.Payload) (notification.Summary, error)
}

// sentTTL bounds dedup keys; one calendar day covers every trigger's
// re-fire window.
const sentTTL = 24 * time.Hour

// markOnce claims the dedup key before dispatching so overlapping runs
// cannot double-send. Fails open: when the log is down the engine
// prefers a duplicate send over a missed one.
func markOnce(ctx context.Context, log *zap.Logger, sent notification.SentLog, key string) bool {
	if sent == nil {
		return true
	}
	first, err := sent.MarkOnce(ctx, key, sentTTL)
	if err != nil {
		log.Warn("sent-log unavailable, sending anyway", zap.String("key", key), zap.Error(err))
		return true
	}
	return first
}

// unmark releases a claimed key after a dispatch that delivered nothing,
// so the next run retries instead of skipping the candidate for the
// whole TTL. Best effort: a stuck key only delays the retry.
func unmark(ctx context.Context, log *zap.Logger, sent notification.SentLog, key string) {
	if sent == nil {
		return
	}
	if err := sent.Unmark(ctx, key); err != nil {
		log.Warn("sent-log release failed", zap.String("key", key), zap.Error(err))
	}
}

func clock(now func() time.Time) func() time.Time {
	if now == nil {
		return func() time.Time { return time.Now().UTC() }
	}
	return now
}
