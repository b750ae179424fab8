package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dietkit/notify/internal/config"
	"github.com/dietkit/notify/internal/domain/notification"
	"github.com/dietkit/notify/internal/domain/plan"
	"github.com/dietkit/notify/internal/domain/recipient"
	"github.com/dietkit/notify/internal/domain/subscription"
	"github.com/dietkit/notify/internal/eligibility"
	"github.com/dietkit/notify/internal/repository/postgres"
	"github.com/dietkit/notify/internal/trigger"
)

const (
	testJWTSecret  = "unit-test-jwt-secret"
	testCronSecret = "unit-test-cron-secret"
)

type stubRegistry struct {
	subs []*subscription.Subscription
}

func (s *stubRegistry) Upsert(_ context.Context, sub *subscription.Subscription) error {
	for _, existing := range s.subs {
		if existing.Channel == sub.Channel && existing.Endpoint == sub.Endpoint {
			existing.RecipientID = sub.RecipientID
			existing.Keys = sub.Keys
			return nil
		}
	}
	s.subs = append(s.subs, sub)
	return nil
}

func (s *stubRegistry) ListByRecipient(_ context.Context, id int64) ([]*subscription.Subscription, error) {
	var out []*subscription.Subscription
	for _, sub := range s.subs {
		if sub.RecipientID == id {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *stubRegistry) Remove(_ context.Context, ch subscription.Channel, endpoint string) error {
	kept := s.subs[:0]
	for _, sub := range s.subs {
		if !(sub.Channel == ch && sub.Endpoint == endpoint) {
			kept = append(kept, sub)
		}
	}
	s.subs = kept
	return nil
}

func (s *stubRegistry) RemoveOwned(_ context.Context, id int64, endpoint string) error {
	kept := s.subs[:0]
	for _, sub := range s.subs {
		if !(sub.RecipientID == id && sub.Endpoint == endpoint) {
			kept = append(kept, sub)
		}
	}
	s.subs = kept
	return nil
}

func (s *stubRegistry) RemoveByRecipient(_ context.Context, id int64) error {
	kept := s.subs[:0]
	for _, sub := range s.subs {
		if sub.RecipientID != id {
			kept = append(kept, sub)
		}
	}
	s.subs = kept
	return nil
}

type stubPrefs struct {
	prefs map[int64]*recipient.Preference
}

func (s *stubPrefs) Get(_ context.Context, id int64) (*recipient.Preference, error) {
	if p, ok := s.prefs[id]; ok {
		return p, nil
	}
	return nil, postgres.ErrNotFound
}

func (s *stubPrefs) Upsert(_ context.Context, p *recipient.Preference) error {
	s.prefs[p.RecipientID] = p
	return nil
}

type stubPlans struct {
	plans []*plan.DietPlan
}

func (s *stubPlans) LatestPlans(_ context.Context, _ time.Time) ([]*plan.DietPlan, error) {
	return s.plans, nil
}

func (s *stubPlans) LatestPlanForRecipient(_ context.Context, id int64, _ time.Time) (*plan.DietPlan, error) {
	for _, p := range s.plans {
		if p.RecipientID == id {
			return p, nil
		}
	}
	return nil, postgres.ErrNotFound
}

func (s *stubPlans) CreatedSince(_ context.Context, since time.Time) ([]*plan.DietPlan, error) {
	var out []*plan.DietPlan
	for _, p := range s.plans {
		if p.CreatedAt.After(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

type stubClients struct {
	clients []*plan.Client
}

func (s *stubClients) ListWithBirthDate(_ context.Context) ([]*plan.Client, error) {
	return s.clients, nil
}

type stubCleaner struct {
	deleted int
}

func (s *stubCleaner) DeleteExpired(_ context.Context, _ time.Time) (int, error) {
	return s.deleted, nil
}

type countingDispatcher struct {
	mu         sync.Mutex
	recipients []int64
}

func (d *countingDispatcher) Dispatch(_ context.Context, id int64, _ *notification.Payload) (notification.Summary, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recipients = append(d.recipients, id)
	return notification.Summary{Sent: 1}, nil
}

type fixture struct {
	router   *gin.Engine
	handlers *Handlers
	registry *stubRegistry
	prefs    *stubPrefs
	out      *countingDispatcher
}

func newFixture(t *testing.T, plans []*plan.DietPlan) *fixture {
	t.Helper()

	now := time.Date(2025, time.March, 10, 17, 30, 0, 0, eligibility.BusinessZone)
	registry := &stubRegistry{}
	prefs := &stubPrefs{prefs: map[int64]*recipient.Preference{}}
	out := &countingDispatcher{}

	h := &Handlers{
		Log:      zap.NewNop(),
		Registry: registry,
		Prefs:    prefs,
		Meal: &trigger.MealReminders{
			Log:       zap.NewNop(),
			Plans:     &stubPlans{plans: plans},
			Out:       out,
			Lead:      30 * time.Minute,
			Tolerance: 15 * time.Minute,
			Lookback:  14 * 24 * time.Hour,
			Now:       func() time.Time { return now },
		},
		Birthday: &trigger.Birthdays{
			Log:     zap.NewNop(),
			Clients: &stubClients{},
			Out:     out,
			Now:     func() time.Time { return now },
		},
		NewDiet: &trigger.NewDiets{
			Log:    zap.NewNop(),
			Plans:  &stubPlans{plans: plans},
			Out:    out,
			Window: 15 * time.Minute,
			Now:    func() time.Time { return now },
		},
		Cleanup: &trigger.Cleanup{
			Log:         zap.NewNop(),
			Attachments: &stubCleaner{deleted: 3},
			Now:         func() time.Time { return now },
		},
		Health: func(context.Context) error { return nil },
	}

	return &fixture{
		router:   NewRouter(h, config.AuthCfg{JWTSecret: testJWTSecret, CronSecret: testCronSecret}),
		handlers: h,
		registry: registry,
		prefs:    prefs,
		out:      out,
	}
}

func bearerToken(t *testing.T, subject string, secret string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func doJSON(f *fixture, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}
