package trigger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/dietkit/notify/internal/domain/notification"
	"github.com/dietkit/notify/internal/domain/plan"
	"github.com/dietkit/notify/internal/eligibility"
)

// NewDiets tells a client their dietitian just published a plan. The
// "just" is a trailing window over created_at, not a persisted flag, so
// delivery is at-least-once; the sent-log keeps repeats out in practice.
type NewDiets struct {
	Log    *zap.Logger
	Plans  plan.Reader
	Out    Dispatcher
	Sent   notification.SentLog
	Window time.Duration
	Now    func() time.Time
}

type NewDietSummary struct {
	Found  int `json:"found"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

func (t *NewDiets) Run(ctx context.Context) (NewDietSummary, error) {
	tr := otel.Tracer("trigger.newdiet")
	ctx, span := tr.Start(ctx, "trigger.new_diets")
	defer span.End()

	now := clock(t.Now)()
	plans, err := t.Plans.CreatedSince(ctx, now.Add(-t.Window))
	if err != nil {
		span.RecordError(err)
		return NewDietSummary{}, fmt.Errorf("load recent plans: %w", err)
	}

	var sum NewDietSummary
	for _, p := range plans {
		if !eligibility.DietRecentlyCreated(p.CreatedAt, now, t.Window) {
			continue
		}
		sum.Found++

		key := "diet:" + strconv.FormatInt(p.ID, 10)
		if !markOnce(ctx, t.Log, t.Sent, key) {
			continue
		}

		out, err := t.Out.Dispatch(ctx, p.RecipientID, &notification.Payload{
			Title: "Your new diet is ready",
			Body:  "Your dietitian published a new diet plan for you.",
			Link:  "/diets/" + strconv.FormatInt(p.ID, 10),
			Tag:   "diet-" + strconv.FormatInt(p.ID, 10),
			Meta: map[string]string{
				notification.MetaType: notification.KindDietReady,
				"diet_id":             strconv.FormatInt(p.ID, 10),
			},
		})
		if err != nil {
			t.Log.Warn("new-diet dispatch", zap.Int64("recipient_id", p.RecipientID), zap.Error(err))
			unmark(ctx, t.Log, t.Sent, key)
			sum.Failed++
			continue
		}
		if out.Sent == 0 {
			unmark(ctx, t.Log, t.Sent, key)
		}
		sum.Sent += out.Sent
		sum.Failed += out.Failed
	}

	span.SetAttributes(
		attribute.Int("diets.found", sum.Found),
		attribute.Int("delivery.sent", sum.Sent),
		attribute.Int("delivery.failed", sum.Failed),
	)
	return sum, nil
}
