package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"ynabmirror/internal/infrastructure/postgres"
	"ynabmirror/internal/shared/config"
	"ynabmirror/internal/shared/logger"
	"ynabmirror/internal/shared/telemetry"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.LoadAPI()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log).With().Str("component", "api").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry, log)
	if err != nil {
		return err
	}
	defer flushTelemetry(shutdownTelemetry, log)

	deps, err := NewDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	if err := postgres.Migrate(ctx, deps.DB, log); err != nil {
		return err
	}

	handler := SetupRoutes(deps, cfg, log)
	srv, serveErr := StartServer(NewServerConfigFromConfig(handler, cfg), log)

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return err
	}

	return GracefulShutdown(srv, shutdownTimeout, log)
}

func flushTelemetry(shutdown telemetry.Shutdown, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("telemetry shutdown failed")
	}
}
