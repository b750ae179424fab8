package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/dietkit/notify/internal/domain/notification"
	"github.com/dietkit/notify/internal/domain/subscription"
)

var _ notification.Sender = (*Expo)(nil)

const (
	defaultExpoURL = "https://exp.host/--/api/v2/push/send"

	expoErrDeviceNotRegistered = "DeviceNotRegistered"
)

var expoTokenPrefixes = []string{"ExponentPushToken[", "ExpoPushToken["}

type ExpoConfig struct {
	URL         string        `mapstructure:"url"`
	AccessToken string        `mapstructure:"access_token"`
	SendTimeout time.Duration `mapstructure:"send_timeout"`
}

// ExpoMessage is one entry of the batch body the push relay accepts.
type ExpoMessage struct {
	To       string            `json:"to"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
	Sound    string            `json:"sound,omitempty"`
	Priority string            `json:"priority,omitempty"`
}

// ExpoTicket is the per-message status in the relay response.
type ExpoTicket struct {
	Status  string `json:"status"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
	Details struct {
		Error string `json:"error,omitempty"`
	} `json:"details,omitempty"`
}

// Expo talks JSON over HTTPS to the Expo push relay. A circuit breaker
// shields the relay when it starts failing across the board.
type Expo struct {
	cfg     ExpoConfig
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

func NewExpo(cfg ExpoConfig, log *zap.Logger) *Expo {
	if cfg.URL == "" {
		cfg.URL = defaultExpoURL
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 5 * time.Second
	}
	return &Expo{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.SendTimeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "expo-push",
			MaxRequests: 3,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 5 && failureRatio >= 0.6
			},
		}),
		log: log.With(zap.String("component", "channel.expo")),
	}
}

func (e *Expo) Channel() subscription.Channel { return subscription.ChannelMobile }

// ValidExpoToken reports whether the token carries the provider prefix.
// Malformed tokens are rejected locally, no network call.
func ValidExpoToken(token string) bool {
	for _, p := range expoTokenPrefixes {
		if strings.HasPrefix(token, p) && strings.HasSuffix(token, "]") {
			return true
		}
	}
	return false
}

func (e *Expo) Send(ctx context.Context, sub *subscription.Subscription, p *notification.Payload) notification.DeliveryResult {
	if !ValidExpoToken(sub.Endpoint) {
		e.log.Debug("malformed expo token", zap.Int64("recipient_id", sub.RecipientID))
		return notification.Dead("malformed token")
	}

	data := make(map[string]string, len(p.Meta)+2)
	for k, v := range p.Meta {
		data[k] = v
	}
	if p.Link != "" {
		data["link"] = p.Link
	}
	if p.Tag != "" {
		data["tag"] = p.Tag
	}

	tickets, err := e.Publish(ctx, []ExpoMessage{{
		To:       sub.Endpoint,
		Title:    p.Title,
		Body:     p.Body,
		Data:     data,
		Sound:    "default",
		Priority: "high",
	}})
	if err != nil {
		e.log.Debug("expo publish failed", zap.Error(err))
		return notification.Transient(err.Error())
	}
	if len(tickets) != 1 {
		return notification.Transient(fmt.Sprintf("expected 1 ticket, got %d", len(tickets)))
	}

	t := tickets[0]
	switch {
	case t.Status == "ok":
		return notification.Sent()
	case t.Details.Error == expoErrDeviceNotRegistered:
		e.log.Debug("expo token dead", zap.Int64("recipient_id", sub.RecipientID))
		return notification.Dead(t.Message)
	default:
		return notification.Transient(t.Message)
	}
}

// Publish posts a batch to the relay and returns one ticket per message.
func (e *Expo) Publish(ctx context.Context, msgs []ExpoMessage) ([]ExpoTicket, error) {
	if len(msgs) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(msgs)
	if err != nil {
		return nil, fmt.Errorf("marshal messages: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.SendTimeout)
	defer cancel()

	res, err := e.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.URL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if e.cfg.AccessToken != "" {
			req.Header.Set("Authorization", "Bearer "+e.cfg.AccessToken)
		}

		resp, err := e.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return nil, fmt.Errorf("expo relay status %d: %s", resp.StatusCode, raw)
		}

		var parsed struct {
			Data []ExpoTicket `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return nil, fmt.Errorf("decode relay response: %w", err)
		}
		return parsed.Data, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("expo relay unavailable: %w", err)
		}
		return nil, err
	}

	tickets := res.([]ExpoTicket)
	if len(tickets) != len(msgs) {
		return nil, fmt.Errorf("relay returned %d tickets for %d messages", len(tickets), len(msgs))
	}
	return tickets, nil
}
