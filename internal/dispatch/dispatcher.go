package dispatch

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dietkit/notify/internal/domain/notification"
	"github.com/dietkit/notify/internal/domain/recipient"
	"github.com/dietkit/notify/internal/domain/subscription"
	"github.com/dietkit/notify/internal/obs"
	"github.com/dietkit/notify/internal/repository/postgres"
)

// ErrUnknownChannel is a programming-contract violation: a subscription
// row names a channel no adapter was registered for.
var ErrUnknownChannel = errors.New("unknown channel")

type Config struct {
	// MaxInFlight caps concurrent adapter calls per dispatch.
	MaxInFlight int
	// Disabled turns every Dispatch into a zero-count no-op; set when no
	// provider credentials are configured.
	Disabled bool
}

// Dispatcher resolves a recipient's endpoints, fans payload delivery out
// across the channel adapters and prunes endpoints reported dead.
type Dispatcher struct {
	log      *zap.Logger
	prefs    recipient.PreferenceRepo
	registry subscription.Registry
	senders  map[subscription.Channel]notification.Sender
	cfg      Config
}

func New(log *zap.Logger, prefs recipient.PreferenceRepo, registry subscription.Registry, senders []notification.Sender, cfg Config) *Dispatcher {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 8
	}
	m := make(map[subscription.Channel]notification.Sender, len(senders))
	for _, s := range senders {
		m[s.Channel()] = s
	}
	return &Dispatcher{
		log:      log.With(zap.String("component", "dispatch")),
		prefs:    prefs,
		registry: registry,
		senders:  m,
		cfg:      cfg,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, recipientID int64, p *notification.Payload) (notification.Summary, error) {
	if d.cfg.Disabled {
		return notification.Summary{}, nil
	}

	tr := otel.Tracer("dispatch")
	ctx, span := tr.Start(ctx, "dispatch.fanout")
	defer span.End()
	log := obs.WithTrace(ctx, d.log)
	span.SetAttributes(
		attribute.Int64("recipient.id", recipientID),
		attribute.String("notification.kind", p.Kind()),
	)

	if !d.allowed(ctx, recipientID, p.Kind()) {
		span.SetAttributes(attribute.Bool("preference.blocked", true))
		return notification.Summary{}, nil
	}

	subs, err := d.registry.ListByRecipient(ctx, recipientID)
	if err != nil {
		span.RecordError(err)
		return notification.Summary{}, fmt.Errorf("list subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return notification.Summary{}, nil
	}

	// Resolve adapters up front so a bad channel fails the whole call
	// instead of surfacing mid-flight.
	for _, s := range subs {
		if _, ok := d.senders[s.Channel]; !ok {
			return notification.Summary{}, fmt.Errorf("%w: %q", ErrUnknownChannel, s.Channel)
		}
	}

	results := make([]notification.DeliveryResult, len(subs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.MaxInFlight)
	for i, s := range subs {
		i, s := i, s
		g.Go(func() error {
			results[i] = d.senders[s.Channel].Send(gctx, s, p)
			return nil
		})
	}
	_ = g.Wait() // adapters never return errors, only results

	var (
		sum  notification.Summary
		dead []*subscription.Subscription
	)
	for i, res := range results {
		switch res.Status {
		case notification.StatusSent:
			sum.Sent++
		case notification.StatusDead:
			sum.Failed++
			dead = append(dead, subs[i])
		default:
			sum.Failed++
			log.Debug("transient delivery failure",
				zap.Int64("recipient_id", recipientID),
				zap.String("channel", string(subs[i].Channel)),
				zap.String("reason", res.Reason))
		}
	}

	for _, s := range dead {
		if err := d.registry.Remove(ctx, s.Channel, s.Endpoint); err != nil {
			log.Warn("prune dead subscription",
				zap.String("channel", string(s.Channel)),
				zap.Error(err))
		} else {
			log.Info("pruned dead subscription",
				zap.Int64("recipient_id", s.RecipientID),
				zap.String("channel", string(s.Channel)))
		}
	}

	span.SetAttributes(
		attribute.Int("delivery.sent", sum.Sent),
		attribute.Int("delivery.failed", sum.Failed),
	)
	return sum, nil
}

// allowed applies the recipient's preference toggle for the payload
// kind. No stored row means every kind is enabled; lookup failures fail
// open so a flaky preference read cannot silence notifications.
func (d *Dispatcher) allowed(ctx context.Context, recipientID int64, kind string) bool {
	pref, err := d.prefs.Get(ctx, recipientID)
	if err != nil {
		if !errors.Is(err, postgres.ErrNotFound) {
			d.log.Warn("preference lookup failed", zap.Int64("recipient_id", recipientID), zap.Error(err))
		}
		pref = recipient.DefaultPreference(recipientID)
	}
	switch kind {
	case notification.KindMealReminder:
		return pref.MealReminders
	case notification.KindDietReady:
		return pref.DietUpdates
	case notification.KindMessage:
		return pref.Messages
	default:
		return true
	}
}
