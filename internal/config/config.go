package config

import (
	"time"

	"github.com/dietkit/notify/internal/channel"
	"github.com/dietkit/notify/internal/obs"
	pginfra "github.com/dietkit/notify/internal/repository/postgres"
	redisinfra "github.com/dietkit/notify/internal/repository/redis"
)

type ServerCfg struct {
	Addr           string        `mapstructure:"addr"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type AuthCfg struct {
	JWTSecret  string `mapstructure:"jwt_secret"`
	CronSecret string `mapstructure:"cron_secret"`
}

// PushCfg is the explicitly injected notification configuration: provider
// credentials plus the temporal constants of the evaluators.
type PushCfg struct {
	WebPush channel.WebPushConfig `mapstructure:"webpush"`
	Expo    channel.ExpoConfig    `mapstructure:"expo"`

	Lead        time.Duration `mapstructure:"lead"`
	Tolerance   time.Duration `mapstructure:"tolerance"`
	Lookback    time.Duration `mapstructure:"lookback"`
	DietWindow  time.Duration `mapstructure:"diet_window"`
	MaxInFlight int           `mapstructure:"max_in_flight"`
}

// Configured reports whether any provider credentials are present.
// When false every trigger and dispatch degrades to a zero-count no-op
// instead of failing the calling request.
func (p PushCfg) Configured() bool {
	if p.WebPush.VAPIDPublicKey != "" && p.WebPush.VAPIDPrivateKey != "" {
		return true
	}
	return p.Expo.AccessToken != ""
}

type SchedCfg struct {
	MealSpec     string        `mapstructure:"meal_spec"`
	BirthdaySpec string        `mapstructure:"birthday_spec"`
	NewDietSpec  string        `mapstructure:"new_diet_spec"`
	CleanupSpec  string        `mapstructure:"cleanup_spec"`
	RunTimeout   time.Duration `mapstructure:"run_timeout"`
}

type LogCfg struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
	Env    string `mapstructure:"env"`
	Ver    string `mapstructure:"version"`
}

func (c LogCfg) AsLoggerConfig() obs.LogConfig {
	return obs.LogConfig{
		Level:  c.Level,
		Pretty: c.Pretty,
		App:    "notifyd",
		Env:    c.Env,
		Ver:    c.Ver,
	}
}

type OTELCfg struct {
	Enable      bool    `mapstructure:"enable"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

func (c OTELCfg) AsOTELConfig() *obs.OTELConfig {
	return &obs.OTELConfig{
		Enable:      c.Enable,
		Endpoint:    c.Endpoint,
		ServiceName: "notifyd",
		SampleRatio: c.SampleRatio,
	}
}

type Config struct {
	Server ServerCfg         `mapstructure:"server"`
	DB     pginfra.Config    `mapstructure:"db"`
	Redis  redisinfra.Config `mapstructure:"redis"`
	Push   PushCfg           `mapstructure:"push"`
	Sched  SchedCfg          `mapstructure:"sched"`
	Auth   AuthCfg           `mapstructure:"auth"`
	Log    LogCfg            `mapstructure:"log"`
	OTEL   OTELCfg           `mapstructure:"otel"`
}
