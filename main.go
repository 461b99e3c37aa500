package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"journal_backend/internal/app"
	"journal_backend/internal/config"
	"journal_backend/internal/telemetry"
	httptransport "journal_backend/internal/transport/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

func main() {
	app.SetupEnvironment()

	cfg, err := config.LoadApp()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector, err := telemetry.NewPrometheusCollector(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to register metrics")
	}

	svc := app.NewJournal(ctx, cfg, collector)
	router := httptransport.NewRouter(svc, httptransport.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Gatherer:       prometheus.DefaultGatherer,
		LogWriter:      os.Stdout,
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// writes wait on remote workbook calls
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Str("backend", cfg.Workbook.Backend).Msg("Trade journal API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
