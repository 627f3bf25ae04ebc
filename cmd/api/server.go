package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"ynabmirror/internal/shared/config"
)

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Handler http.Handler
	Addr    string
}

// NewServerConfigFromConfig creates ServerConfig from application config.
func NewServerConfigFromConfig(handler http.Handler, cfg *config.Config) ServerConfig {
	return ServerConfig{
		Handler: handler,
		Addr:    cfg.Server.Host + ":" + cfg.Server.Port,
	}
}

// StartServer starts listening in the background. The channel receives the
// error that stopped the server unless it was closed by Shutdown.
func StartServer(scfg ServerConfig, log zerolog.Logger) (*http.Server, <-chan error) {
	srv := &http.Server{
		Addr:         scfg.Addr,
		Handler:      scfg.Handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", scfg.Addr).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	return srv, errCh
}

// GracefulShutdown lets in-flight requests finish within timeout.
func GracefulShutdown(srv *http.Server, timeout time.Duration, log zerolog.Logger) error {
	log.Info().Msg("server shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}
