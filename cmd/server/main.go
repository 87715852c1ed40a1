package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/relay402/server/internal/config"
	"github.com/relay402/server/internal/logger"
	"github.com/relay402/server/pkg/relay402"
)

func main() {
	cfgPath := flag.String("config", "", "path to config file (optional, env vars override)")
	flag.Parse()

	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	if *cfgPath == "" {
		*cfgPath = os.Getenv("RELAY402_CONFIG")
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	appLogger := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Service:     "relay402",
		Environment: cfg.Logging.Environment,
	})
	log.Logger = appLogger

	app, err := relay402.NewApp(cfg)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("build app")
	}

	go func() {
		appLogger.Info().
			Str("address", cfg.Server.Address).
			Str("facilitator", cfg.Facilitator.URL).
			Str("storage", cfg.Storage.Backend).
			Msg("server starting")
		if err := app.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	appLogger.Info().Str("signal", sig.String()).Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		appLogger.Error().Err(err).Msg("shutdown incomplete")
	}
	if err := app.Close(); err != nil {
		appLogger.Error().Err(err).Msg("resource cleanup incomplete")
	}
	appLogger.Info().Msg("server stopped")
}
