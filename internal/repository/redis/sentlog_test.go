package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLog(t *testing.T) (*SentLog, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSentLog(client), mr
}

func TestMarkOnceFirstWinsSecondSkips(t *testing.T) {
	log, _ := newTestLog(t)
	ctx := context.Background()

	first, err := log.MarkOnce(ctx, "meal:1:5:2025-03-10", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := log.MarkOnce(ctx, "meal:1:5:2025-03-10", time.Hour)
	require.NoError(t, err)
	assert.False(t, second)

	other, err := log.MarkOnce(ctx, "meal:1:6:2025-03-10", time.Hour)
	require.NoError(t, err)
	assert.True(t, other, "distinct keys do not collide")
}

func TestUnmarkFreesTheKey(t *testing.T) {
	log, _ := newTestLog(t)
	ctx := context.Background()

	first, err := log.MarkOnce(ctx, "meal:1:5:2025-03-10", time.Hour)
	require.NoError(t, err)
	require.True(t, first)

	require.NoError(t, log.Unmark(ctx, "meal:1:5:2025-03-10"))

	again, err := log.MarkOnce(ctx, "meal:1:5:2025-03-10", time.Hour)
	require.NoError(t, err)
	assert.True(t, again, "a released key can be claimed again")

	// Unmarking an absent key is a no-op.
	assert.NoError(t, log.Unmark(ctx, "meal:9:9:2025-03-10"))
}

func TestMarkOnceKeyExpires(t *testing.T) {
	log, mr := newTestLog(t)
	ctx := context.Background()

	ok, err := log.MarkOnce(ctx, "diet:9", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("notify:sent:diet:9"))

	mr.FastForward(2 * time.Minute)

	again, err := log.MarkOnce(ctx, "diet:9", time.Minute)
	require.NoError(t, err)
	assert.True(t, again, "expired key frees the slot")
}

func TestMarkOnceErrorsWhenRedisDown(t *testing.T) {
	log, mr := newTestLog(t)
	mr.Close()

	_, err := log.MarkOnce(context.Background(), "meal:1:1:2025-03-10", time.Hour)
	assert.Error(t, err)
}
