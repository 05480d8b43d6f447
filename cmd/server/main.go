// Server runs the trust subsystem: periodic sweeps plus /metrics and /healthz.
// The outer HTTP layer embeds internal/app directly; this binary hosts the
// background work and operational endpoints for a standalone deployment.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"trustcore/internal/app"
	"trustcore/internal/config"
	"trustcore/internal/logging"
	"trustcore/internal/telemetry"
	telemetryotel "trustcore/internal/telemetry/otel"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logging.Setup(cfg.LogLevel, cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTelEndpoint, cfg.OTelServiceName, cfg.OTelInsecure)
	if err != nil {
		log.Fatal().Err(err).Msg("otel")
	}
	providers.SetGlobal()

	a, err := app.New(ctx, cfg, app.WithLoggerProvider(providers.LoggerProvider))
	if err != nil {
		log.Fatal().Err(err).Msg("app")
	}
	if err := a.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("start sweeps")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", a.Metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if db := a.DB(); db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("serve")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("metrics server shutdown")
	}
	drainCtx, drainCancel := context.WithTimeout(shutdownCtx, telemetry.ShutdownDrainDuration)
	defer drainCancel()
	if err := a.Close(drainCtx); err != nil {
		log.Warn().Err(err).Msg("app close")
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("otel shutdown")
	}
	log.Info().Msg("stopped")
}
