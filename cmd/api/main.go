package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auction-backend/internal/config"
	"auction-backend/internal/infrastructure/database"
	"auction-backend/internal/interfaces/router"
	"auction-backend/internal/pkg/logging"

	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load")
	}
	logging.Setup(cfg.Env, cfg.LogLevel)
	if cfg.IsProduction() && cfg.AdminKeyHash == "" {
		log.Warn().Msg("ADMIN_KEY_HASH is empty, admin routes will refuse every request")
	}

	app, rt, err := router.CreateApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("app create")
	}
	defer rt.Close()

	if rt.DB == nil {
		log.Fatal().Msg("DATABASE_URL is required")
	}
	if err := database.AutoMigrate(rt.DB); err != nil {
		log.Fatal().Err(err).Msg("database migrate")
	}
	log.Info().Msg("Postgres connected")
	if rt.Rdb != nil {
		if err := rt.Rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatal().Err(err).Msg("Redis connection failed")
		}
		log.Info().Msg("Redis connected")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	rt.Start(ctx)

	go func() {
		<-ctx.Done()
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	log.Info().Str("port", cfg.Port).Msg("server listening")
	if err := app.Listen(":" + cfg.Port); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("server stopped")
	}
}
