package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dietkit/notify/internal/channel"
	"github.com/dietkit/notify/internal/config"
	"github.com/dietkit/notify/internal/dispatch"
	"github.com/dietkit/notify/internal/domain/notification"
	"github.com/dietkit/notify/internal/obs"
	pg "github.com/dietkit/notify/internal/repository/postgres"
	redisrepo "github.com/dietkit/notify/internal/repository/redis"
	"github.com/dietkit/notify/internal/scheduler"
	"github.com/dietkit/notify/internal/server"
	"github.com/dietkit/notify/internal/trigger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal(err)
	}

	l, err := obs.NewLogger(cfg.Log.AsLoggerConfig())
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()

	if !cfg.Push.Configured() {
		l.Warn("no push provider credentials configured, delivery disabled")
	}

	otelCloser, err := obs.SetupOTel(ctx, cfg.OTEL.AsOTELConfig())
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	db, err := pg.New(ctx, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis only backs the dedup sent-log; the engine runs without it.
	var sentLog notification.SentLog
	rdb, err := redisrepo.New(ctx, cfg.Redis)
	if err != nil {
		l.Warn("redis unavailable, duplicate sends possible", zap.Error(err))
	} else {
		defer func() { _ = rdb.Close() }()
		sentLog = redisrepo.NewSentLog(rdb)
	}

	registry := pg.NewSubscriptionRepo(db)
	prefs := pg.NewPreferenceRepo(db)
	plans := pg.NewPlanRepo(db)
	clients := pg.NewClientRepo(db)
	attachments := pg.NewAttachmentRepo(db)

	dispatcher := dispatch.New(l, prefs, registry, []notification.Sender{
		channel.NewWebPush(cfg.Push.WebPush, l),
		channel.NewExpo(cfg.Push.Expo, l),
	}, dispatch.Config{
		MaxInFlight: cfg.Push.MaxInFlight,
		Disabled:    !cfg.Push.Configured(),
	})

	trig := scheduler.Triggers{
		Meal: &trigger.MealReminders{
			Log:         l,
			Plans:       plans,
			Out:         dispatcher,
			Sent:        sentLog,
			Lead:        cfg.Push.Lead,
			Tolerance:   cfg.Push.Tolerance,
			Lookback:    cfg.Push.Lookback,
			MaxInFlight: cfg.Push.MaxInFlight,
		},
		Birthday: &trigger.Birthdays{Log: l, Clients: clients, Out: dispatcher, Sent: sentLog},
		NewDiet:  &trigger.NewDiets{Log: l, Plans: plans, Out: dispatcher, Sent: sentLog, Window: cfg.Push.DietWindow},
		Cleanup:  &trigger.Cleanup{Log: l, Attachments: attachments},
	}

	runner := scheduler.New(l, cfg.Sched, trig)
	if err := runner.Start(); err != nil {
		l.Fatal("start cron", zap.Error(err))
	}

	router := server.NewRouter(&server.Handlers{
		Log:      l,
		Registry: registry,
		Prefs:    prefs,
		Meal:     trig.Meal,
		Birthday: trig.Birthday,
		NewDiet:  trig.NewDiet,
		Cleanup:  trig.Cleanup,
		Health: func(ctx context.Context) error {
			return db.Pool.Ping(ctx)
		},
	}, cfg.Auth)
	srv := server.NewHTTPServer(cfg.Server, router)

	errCh := make(chan error, 1)
	go func() {
		l.Info("http listening", zap.String("addr", cfg.Server.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err = <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("http server error", zap.Error(err))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	runner.Stop(shCtx)
	_ = srv.Shutdown(shCtx)
	l.Info("bye")
}
