package trigger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dietkit/notify/internal/domain/notification"
	"github.com/dietkit/notify/internal/domain/plan"
)

func TestNewDietsNotifyOnlyRecentPlans(t *testing.T) {
	now := trtTime(12, 0)
	out := &recordingDispatcher{summary: notification.Summary{Sent: 1}}
	tr := &NewDiets{
		Log: zap.NewNop(),
		Plans: &fakePlans{plans: []*plan.DietPlan{
			{ID: 1, RecipientID: 100, CreatedAt: now.Add(-5 * time.Minute)},
			{ID: 2, RecipientID: 200, CreatedAt: now.Add(-time.Hour)},
		}},
		Out:    out,
		Sent:   newMemSentLog(),
		Window: 15 * time.Minute,
		Now:    fixedNow(now),
	}

	sum, err := tr.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, NewDietSummary{Found: 1, Sent: 1}, sum)

	require.Equal(t, 1, out.calls())
	assert.Equal(t, int64(100), out.recipients[0])
	assert.Equal(t, "/diets/1", out.payloads[0].Link)
	assert.Equal(t, notification.KindDietReady, out.payloads[0].Meta[notification.MetaType])
}

func TestNewDietsTransientFailureRetried(t *testing.T) {
	now := trtTime(12, 0)
	out := &sequenceDispatcher{summaries: []notification.Summary{{Failed: 1}}}
	tr := &NewDiets{
		Log: zap.NewNop(),
		Plans: &fakePlans{plans: []*plan.DietPlan{
			{ID: 1, RecipientID: 100, CreatedAt: now.Add(-5 * time.Minute)},
		}},
		Out:    out,
		Sent:   newMemSentLog(),
		Window: 15 * time.Minute,
		Now:    fixedNow(now),
	}

	first, err := tr.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, NewDietSummary{Found: 1, Failed: 1}, first)

	tr.Now = fixedNow(now.Add(5 * time.Minute))
	second, err := tr.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, NewDietSummary{Found: 1, Sent: 1}, second)
	assert.Equal(t, 2, out.calls)
}

func TestNewDietsDedupByDietID(t *testing.T) {
	now := trtTime(12, 0)
	out := &recordingDispatcher{summary: notification.Summary{Sent: 1}}
	tr := &NewDiets{
		Log: zap.NewNop(),
		Plans: &fakePlans{plans: []*plan.DietPlan{
			{ID: 1, RecipientID: 100, CreatedAt: now.Add(-5 * time.Minute)},
		}},
		Out:    out,
		Sent:   newMemSentLog(),
		Window: 15 * time.Minute,
		Now:    fixedNow(now),
	}

	_, err := tr.Run(context.Background())
	require.NoError(t, err)

	// Overlapping sweeps see the same plan; only the first one sends.
	tr.Now = fixedNow(now.Add(5 * time.Minute))
	second, err := tr.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, NewDietSummary{Found: 1}, second)
	assert.Equal(t, 1, out.calls())
}
