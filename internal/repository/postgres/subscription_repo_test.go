//go:build integration

package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dietkit/notify/internal/domain/subscription"
)

// Runs against a real database: set TEST_DB_URL to a postgres DSN with
// the migrations applied (cmd/migrator). Each test truncates the
// subscriptions table first.
func testDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("TEST_DB_URL")
	if url == "" {
		t.Skip("TEST_DB_URL not set")
	}

	ctx := context.Background()
	db, err := New(ctx, Config{URL: url, QueryTimeout: 2 * time.Second})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	_, err = db.Pool.Exec(ctx, `TRUNCATE subscriptions`)
	require.NoError(t, err)
	return db
}

func webPushSub(recipientID int64, endpoint string) *subscription.Subscription {
	return &subscription.Subscription{
		RecipientID: recipientID,
		Channel:     subscription.ChannelWebPush,
		Endpoint:    endpoint,
		Keys:        subscription.Keys{P256dh: "pk", Auth: "secret"},
	}
}

func TestUpsertRebindsEndpointOwnership(t *testing.T) {
	ctx := context.Background()
	repo := NewSubscriptionRepo(testDB(t))

	first := webPushSub(1, "https://push.example/shared")
	require.NoError(t, repo.Upsert(ctx, first))

	second := webPushSub(2, "https://push.example/shared")
	require.NoError(t, repo.Upsert(ctx, second))
	assert.Equal(t, first.ID, second.ID, "ON CONFLICT must update the row, not add one")

	old, err := repo.ListByRecipient(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, old)

	cur, err := repo.ListByRecipient(ctx, 2)
	require.NoError(t, err)
	require.Len(t, cur, 1)
	assert.Equal(t, "https://push.example/shared", cur[0].Endpoint)
}

func TestUpsertSameEndpointIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewSubscriptionRepo(testDB(t))

	a := webPushSub(1, "https://push.example/ep")
	require.NoError(t, repo.Upsert(ctx, a))
	b := webPushSub(1, "https://push.example/ep")
	require.NoError(t, repo.Upsert(ctx, b))
	assert.Equal(t, a.ID, b.ID)

	subs, err := repo.ListByRecipient(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestRemoveOwnedIsOwnerScoped(t *testing.T) {
	ctx := context.Background()
	repo := NewSubscriptionRepo(testDB(t))

	require.NoError(t, repo.Upsert(ctx, webPushSub(1, "https://push.example/ep")))

	// Someone else's delete is a silent no-op.
	require.NoError(t, repo.RemoveOwned(ctx, 2, "https://push.example/ep"))
	subs, err := repo.ListByRecipient(ctx, 1)
	require.NoError(t, err)
	require.Len(t, subs, 1)

	require.NoError(t, repo.RemoveOwned(ctx, 1, "https://push.example/ep"))
	subs, err = repo.ListByRecipient(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestMobileUpsertKeepsSingleToken(t *testing.T) {
	ctx := context.Background()
	repo := NewSubscriptionRepo(testDB(t))

	require.NoError(t, repo.Upsert(ctx, &subscription.Subscription{
		RecipientID: 1, Channel: subscription.ChannelMobile, Endpoint: "ExponentPushToken[old]",
	}))
	require.NoError(t, repo.Upsert(ctx, &subscription.Subscription{
		RecipientID: 1, Channel: subscription.ChannelMobile, Endpoint: "ExponentPushToken[new]",
	}))

	subs, err := repo.ListByRecipient(ctx, 1)
	require.NoError(t, err)
	require.Len(t, subs, 1, "a fresh registration replaces the recipient's old token")
	assert.Equal(t, "ExponentPushToken[new]", subs[0].Endpoint)
}

func TestRemoveByRecipientDropsEverything(t *testing.T) {
	ctx := context.Background()
	repo := NewSubscriptionRepo(testDB(t))

	require.NoError(t, repo.Upsert(ctx, webPushSub(1, "https://push.example/a")))
	require.NoError(t, repo.Upsert(ctx, &subscription.Subscription{
		RecipientID: 1, Channel: subscription.ChannelMobile, Endpoint: "ExponentPushToken[a]",
	}))
	require.NoError(t, repo.Upsert(ctx, webPushSub(2, "https://push.example/b")))

	require.NoError(t, repo.RemoveByRecipient(ctx, 1))

	gone, err := repo.ListByRecipient(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, gone)

	kept, err := repo.ListByRecipient(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}
