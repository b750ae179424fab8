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

// Birthdays alerts each dietitian about clients whose birthday is
// today. Direction is dietitian-facing: the client is the subject, the
// dietitian is the recipient.
type Birthdays struct {
	Log     *zap.Logger
	Clients plan.ClientReader
	Out     Dispatcher
	Sent    notification.SentLog
	Now     func() time.Time
}

type BirthdaySummary struct {
	Eligible int `json:"eligible"`
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
}

func (t *Birthdays) Run(ctx context.Context) (BirthdaySummary, error) {
	tr := otel.Tracer("trigger.birthday")
	ctx, span := tr.Start(ctx, "trigger.birthdays")
	defer span.End()

	now := clock(t.Now)()
	clients, err := t.Clients.ListWithBirthDate(ctx)
	if err != nil {
		span.RecordError(err)
		return BirthdaySummary{}, fmt.Errorf("load clients: %w", err)
	}

	day := now.In(eligibility.BusinessZone).Format("2006-01-02")

	var sum BirthdaySummary
	for _, c := range clients {
		if c.BirthDate == nil || !eligibility.BirthdayToday(*c.BirthDate, now) {
			continue
		}
		sum.Eligible++

		key := "birthday:" + strconv.FormatInt(c.ID, 10) + ":" + day
		if !markOnce(ctx, t.Log, t.Sent, key) {
			continue
		}

		out, err := t.Out.Dispatch(ctx, c.DietitianID, &notification.Payload{
			Title: "Client birthday",
			Body:  c.Name + " has their birthday today.",
			Link:  "/clients/" + strconv.FormatInt(c.ID, 10),
			Tag:   "birthday-" + strconv.FormatInt(c.ID, 10),
			Meta: map[string]string{
				notification.MetaType: notification.KindBirthday,
				"client_id":           strconv.FormatInt(c.ID, 10),
			},
		})
		if err != nil {
			t.Log.Warn("birthday dispatch", zap.Int64("dietitian_id", c.DietitianID), zap.Error(err))
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
		attribute.Int("birthdays.eligible", sum.Eligible),
		attribute.Int("delivery.sent", sum.Sent),
		attribute.Int("delivery.failed", sum.Failed),
	)
	return sum, nil
}
