// Package scheduler wires the trigger usecases to an in-process cron so
// the sweeps also run without an external scheduler hitting the HTTP
// endpoints.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/dietkit/notify/internal/config"
	"github.com/dietkit/notify/internal/trigger"
)

type Triggers struct {
	Meal     *trigger.MealReminders
	Birthday *trigger.Birthdays
	NewDiet  *trigger.NewDiets
	Cleanup  *trigger.Cleanup
}

type Runner struct {
	log  *zap.Logger
	cfg  config.SchedCfg
	trig Triggers
	cron *cron.Cron

	mRuns   *prometheus.CounterVec
	mSent   *prometheus.CounterVec
	mFailed *prometheus.CounterVec
	mDur    prometheus.Histogram
}

func New(log *zap.Logger, cfg config.SchedCfg, trig Triggers) *Runner {
	return &Runner{
		log:  log.With(zap.String("component", "scheduler")),
		cfg:  cfg,
		trig: trig,
		cron: cron.New(),
		mRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "notify_trigger_runs_total", Help: "Trigger runs by outcome",
		}, []string{"trigger", "outcome"}),
		mSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "notify_sent_total", Help: "Notifications delivered",
		}, []string{"trigger"}),
		mFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "notify_failed_total", Help: "Delivery failures",
		}, []string{"trigger"}),
		mDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "notify_trigger_duration_seconds", Help: "Trigger run duration",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (r *Runner) Start() error {
	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{"meal_reminders", r.cfg.MealSpec, func(ctx context.Context) error {
			sum, err := r.trig.Meal.Run(ctx)
			r.observe("meal_reminders", sum.Sent, sum.Failed, err)
			return err
		}},
		{"birthdays", r.cfg.BirthdaySpec, func(ctx context.Context) error {
			sum, err := r.trig.Birthday.Run(ctx)
			r.observe("birthdays", sum.Sent, sum.Failed, err)
			return err
		}},
		{"new_diets", r.cfg.NewDietSpec, func(ctx context.Context) error {
			sum, err := r.trig.NewDiet.Run(ctx)
			r.observe("new_diets", sum.Sent, sum.Failed, err)
			return err
		}},
		{"cleanup", r.cfg.CleanupSpec, func(ctx context.Context) error {
			sum, err := r.trig.Cleanup.Run(ctx)
			r.observe("cleanup", sum.Deleted, 0, err)
			return err
		}},
	}

	for _, j := range jobs {
		j := j
		if _, err := r.cron.AddFunc(j.spec, func() { r.runJob(j.name, j.run) }); err != nil {
			return fmt.Errorf("cron spec %q for %s: %w", j.spec, j.name, err)
		}
	}

	r.cron.Start()
	r.log.Info("cron started")
	return nil
}

func (r *Runner) Stop(ctx context.Context) {
	stopped := r.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		r.log.Warn("cron jobs still running at shutdown deadline")
	}
}

func (r *Runner) runJob(name string, run func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.RunTimeout)
	defer cancel()

	start := time.Now()
	err := run(ctx)
	r.mDur.Observe(time.Since(start).Seconds())
	if err != nil {
		r.log.Warn("trigger run failed", zap.String("trigger", name), zap.Error(err))
		return
	}
	r.log.Debug("trigger run done", zap.String("trigger", name), zap.Duration("elapsed", time.Since(start)))
}

func (r *Runner) observe(name string, sent, failed int, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.mRuns.WithLabelValues(name, outcome).Inc()
	if sent > 0 {
		r.mSent.WithLabelValues(name).Add(float64(sent))
	}
	if failed > 0 {
		r.mFailed.WithLabelValues(name).Add(float64(failed))
	}
}
