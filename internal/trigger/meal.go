package trigger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dietkit/notify/internal/domain/notification"
	"github.com/dietkit/notify/internal/domain/plan"
	"github.com/dietkit/notify/internal/eligibility"
	"github.com/dietkit/notify/internal/repository/postgres"
)

// MealReminders fires a reminder shortly before each meal of every
// active diet plan. Only the most recent plan per client inside the
// lookback counts as active.
type MealReminders struct {
	Log   *zap.Logger
	Plans plan.Reader
	Out   Dispatcher
	Sent  notification.SentLog

	Lead        time.Duration
	Tolerance   time.Duration
	Lookback    time.Duration
	MaxInFlight int
	Now         func() time.Time
}

type MealSummary struct {
	RemindersFound int `json:"remindersFound"`
	Sent           int `json:"sent"`
	Failed         int `json:"failed"`
}

// candidate carries the minimal facts needed to build one reminder.
type mealCandidate struct {
	recipientID int64
	dietID      int64
	meal        plan.Meal
}

func (t *MealReminders) Run(ctx context.Context) (MealSummary, error) {
	now := clock(t.Now)()
	plans, err := t.Plans.LatestPlans(ctx, now.Add(-t.Lookback))
	if err != nil {
		return MealSummary{}, fmt.Errorf("load active plans: %w", err)
	}
	return t.run(ctx, plans, now)
}

// RunFor scopes the sweep to one recipient; used by the on-demand
// endpoint so an authenticated client can only check its own reminders.
func (t *MealReminders) RunFor(ctx context.Context, recipientID int64) (MealSummary, error) {
	now := clock(t.Now)()
	p, err := t.Plans.LatestPlanForRecipient(ctx, recipientID, now.Add(-t.Lookback))
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return MealSummary{}, nil
		}
		return MealSummary{}, fmt.Errorf("load active plan: %w", err)
	}
	return t.run(ctx, []*plan.DietPlan{p}, now)
}

func (t *MealReminders) run(ctx context.Context, plans []*plan.DietPlan, now time.Time) (MealSummary, error) {
	tr := otel.Tracer("trigger.meal")
	ctx, span := tr.Start(ctx, "trigger.meal_reminders",
		trace.WithAttributes(attribute.Int("plans", len(plans))))
	defer span.End()

	var cands []mealCandidate
	for _, p := range plans {
		for _, m := range p.Meals {
			if eligibility.MealDue(m.TimeOfDay, now, t.Lead, t.Tolerance) {
				cands = append(cands, mealCandidate{recipientID: p.RecipientID, dietID: p.ID, meal: m})
			}
		}
	}

	sum := MealSummary{RemindersFound: len(cands)}
	if len(cands) == 0 {
		return sum, nil
	}

	day := now.In(eligibility.BusinessZone).Format("2006-01-02")

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInFlight(t.MaxInFlight))
	for _, c := range cands {
		c := c
		g.Go(func() error {
			key := "meal:" + strconv.FormatInt(c.recipientID, 10) + ":" + strconv.FormatInt(c.meal.ID, 10) + ":" + day
			if !markOnce(gctx, t.Log, t.Sent, key) {
				return nil
			}
			out, err := t.Out.Dispatch(gctx, c.recipientID, mealPayload(c))
			if err != nil {
				t.Log.Warn("meal reminder dispatch", zap.Int64("recipient_id", c.recipientID), zap.Error(err))
				unmark(gctx, t.Log, t.Sent, key)
				mu.Lock()
				sum.Failed++
				mu.Unlock()
				return nil
			}
			if out.Sent == 0 {
				unmark(gctx, t.Log, t.Sent, key)
			}
			mu.Lock()
			sum.Sent += out.Sent
			sum.Failed += out.Failed
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	span.SetAttributes(
		attribute.Int("reminders.found", sum.RemindersFound),
		attribute.Int("delivery.sent", sum.Sent),
		attribute.Int("delivery.failed", sum.Failed),
	)
	return sum, nil
}

func mealPayload(c mealCandidate) *notification.Payload {
	body := c.meal.Name + " at " + c.meal.TimeOfDay
	if len(c.meal.MenuItems) > 0 {
		body += ": " + strings.Join(c.meal.MenuItems, ", ")
	}
	return &notification.Payload{
		Title: "Meal reminder",
		Body:  body,
		Link:  "/diets/" + strconv.FormatInt(c.dietID, 10),
		Tag:   "meal-" + strconv.FormatInt(c.meal.ID, 10),
		Meta: map[string]string{
			notification.MetaType: notification.KindMealReminder,
			"diet_id":             strconv.FormatInt(c.dietID, 10),
			"meal_id":             strconv.FormatInt(c.meal.ID, 10),
		},
	}
}

func maxInFlight(n int) int {
	if n <= 0 {
		return 8
	}
	return n
}
