package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dietkit/notify/internal/domain/notification"
)

var _ notification.SentLog = (*SentLog)(nil)

// SentLog dedups notification sends with SET NX keys. Both the cron
// sweep and the on-demand check can cover the same tolerance window; the
// first MarkOnce wins, the second sees the key and skips.
type SentLog struct {
	client *redis.Client
	prefix string
}

func NewSentLog(client *redis.Client) *SentLog {
	return &SentLog{client: client, prefix: "notify:sent:"}
}

func (l *SentLog) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.prefix+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("sentlog setnx: %w", err)
	}
	return ok, nil
}

func (l *SentLog) Unmark(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.prefix+key).Err(); err != nil {
		return fmt.Errorf("sentlog del: %w", err)
	}
	return nil
}
