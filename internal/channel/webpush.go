package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"github.com/dietkit/notify/internal/domain/notification"
	"github.com/dietkit/notify/internal/domain/subscription"
)

var _ notification.Sender = (*WebPush)(nil)

type WebPushConfig struct {
	VAPIDPublicKey  string        `mapstructure:"vapid_public_key"`
	VAPIDPrivateKey string        `mapstructure:"vapid_private_key"`
	Subject         string        `mapstructure:"subject"`
	TTL             int           `mapstructure:"ttl"`
	SendTimeout     time.Duration `mapstructure:"send_timeout"`
}

// WebPush encrypts payloads per RFC 8291 and posts them to the
// provider endpoint stored in the subscription.
type WebPush struct {
	cfg  WebPushConfig
	http *http.Client
	log  *zap.Logger
}

func NewWebPush(cfg WebPushConfig, log *zap.Logger) *WebPush {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 5 * time.Second
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 3600
	}
	return &WebPush{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.SendTimeout},
		log:  log.With(zap.String("component", "channel.webpush")),
	}
}

func (w *WebPush) Channel() subscription.Channel { return subscription.ChannelWebPush }

func (w *WebPush) Send(ctx context.Context, sub *subscription.Subscription, p *notification.Payload) notification.DeliveryResult {
	body, err := json.Marshal(p)
	if err != nil {
		return notification.Transient("marshal payload: " + err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, w.cfg.SendTimeout)
	defer cancel()

	resp, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      w.http,
		Subscriber:      w.cfg.Subject,
		TTL:             w.cfg.TTL,
		VAPIDPublicKey:  w.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: w.cfg.VAPIDPrivateKey,
	})
	if err != nil {
		w.log.Debug("webpush send failed", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return notification.Transient(err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return notification.Sent()
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		// Provider says the endpoint is gone for good.
		w.log.Debug("webpush endpoint dead", zap.String("endpoint", sub.Endpoint), zap.Int("status", resp.StatusCode))
		return notification.Dead(resp.Status)
	default:
		w.log.Warn("webpush provider error", zap.String("endpoint", sub.Endpoint), zap.Int("status", resp.StatusCode))
		return notification.Transient(resp.Status)
	}
}
