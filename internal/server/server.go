package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dietkit/notify/internal/config"
	"github.com/dietkit/notify/internal/domain/recipient"
	"github.com/dietkit/notify/internal/domain/subscription"
	"github.com/dietkit/notify/internal/trigger"
)

// Handlers bundles what the HTTP layer needs; everything behind ports
// or trigger usecases.
type Handlers struct {
	Log      *zap.Logger
	Registry subscription.Registry
	Prefs    recipient.PreferenceRepo
	Meal     *trigger.MealReminders
	Birthday *trigger.Birthdays
	NewDiet  *trigger.NewDiets
	Cleanup  *trigger.Cleanup
	Health   func(ctx context.Context) error
}

func NewRouter(h *Handlers, auth config.AuthCfg) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), CorrelationID(), RequestLogger(h.Log))

	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 500*time.Millisecond)
		defer cancel()
		if err := h.Health(ctx); err != nil {
			c.String(http.StatusServiceUnavailable, "unhealthy")
			return
		}
		c.String(http.StatusOK, "ok")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")

	user := v1.Group("", RequireUser(auth.JWTSecret))
	user.POST("/subscriptions", h.RegisterSubscription)
	user.DELETE("/subscriptions", h.DeregisterSubscription)
	user.PUT("/preferences", h.UpdatePreferences)

	triggers := v1.Group("/triggers")
	triggers.POST("/meal-reminders", RequireCronOrUser(auth.CronSecret, auth.JWTSecret), h.RunMealReminders)

	cron := triggers.Group("", RequireCron(auth.CronSecret))
	cron.POST("/birthdays", h.RunBirthdays)
	cron.POST("/new-diets", h.RunNewDiets)
	cron.POST("/cleanup", h.RunCleanup)

	// Back-office calls from the main application share the cron secret.
	backoffice := v1.Group("", RequireCron(auth.CronSecret))
	backoffice.DELETE("/recipients/:id/subscriptions", h.PurgeRecipientSubscriptions)

	return r
}

func NewHTTPServer(cfg config.ServerCfg, router *gin.Engine) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           http.TimeoutHandler(router, cfg.RequestTimeout, `{"success":false,"message":"request timed out"}`),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}
