package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env          string
	Port         string
	DatabaseURL  string
	RedisURL     string
	NATSURL      string // optional; events are not relayed to NATS when empty
	AdminKeyHash string // bcrypt hash of the X-Admin-Key value
	LogLevel     string

	BidIncrement       int64
	ProxyMaxSteps      int
	SnipeWindow        time.Duration
	SnipeExtension     time.Duration
	SnipeMaxExtensions int
	SweepInterval      time.Duration
	SweepBatch         int
	DispatchInterval   time.Duration
	DispatchBatch      int
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("BID_INCREMENT", 1)
	v.SetDefault("PROXY_MAX_STEPS", 64)
	v.SetDefault("SNIPE_WINDOW", "60s")
	v.SetDefault("SNIPE_EXTENSION", "30s")
	v.SetDefault("SNIPE_MAX_EXTENSIONS", 20)
	v.SetDefault("SWEEP_INTERVAL", "5s")
	v.SetDefault("SWEEP_BATCH", 100)
	v.SetDefault("DISPATCH_INTERVAL", "1s")
	v.SetDefault("DISPATCH_BATCH", 200)

	env := v.GetString("APP_ENV")

	dbURL := v.GetString("DATABASE_URL_DEV")
	if env == "production" {
		dbURL = v.GetString("DATABASE_URL_PROD")
	} else if env == "test" {
		dbURL = v.GetString("DATABASE_URL_TEST")
	}
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}

	return &Config{
		Env:                env,
		Port:               v.GetString("PORT"),
		DatabaseURL:        dbURL,
		RedisURL:           v.GetString("REDIS_URL"),
		NATSURL:            v.GetString("NATS_URL"),
		AdminKeyHash:       v.GetString("ADMIN_KEY_HASH"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		BidIncrement:       v.GetInt64("BID_INCREMENT"),
		ProxyMaxSteps:      v.GetInt("PROXY_MAX_STEPS"),
		SnipeWindow:        v.GetDuration("SNIPE_WINDOW"),
		SnipeExtension:     v.GetDuration("SNIPE_EXTENSION"),
		SnipeMaxExtensions: v.GetInt("SNIPE_MAX_EXTENSIONS"),
		SweepInterval:      v.GetDuration("SWEEP_INTERVAL"),
		SweepBatch:         v.GetInt("SWEEP_BATCH"),
		DispatchInterval:   v.GetDuration("DISPATCH_INTERVAL"),
		DispatchBatch:      v.GetInt("DISPATCH_BATCH"),
	}, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
