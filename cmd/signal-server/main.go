// Command signal-server serves the latest evaluation result and the
// observation history over HTTP, with Prometheus metrics and an
// on-demand evaluation endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"jpxsignal/internal/config"
	"jpxsignal/internal/datasources"
	"jpxsignal/internal/infrastructure"
	"jpxsignal/internal/pipeline"
	transport "jpxsignal/internal/transport/http"
)

func main() {
	configFile := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := infrastructure.MustInitializeLogger(cfg.Logging)
	defer infrastructure.CloseLogFile()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	providers, err := infrastructure.InitializeMetrics(logger)
	if err != nil {
		return fmt.Errorf("initialize metrics: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(ctx); err != nil {
			logger.Warn("metrics shutdown failed", slog.String("error", err.Error()))
		}
	}()

	engineMetrics, err := infrastructure.CreateEngineMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("create engine metrics: %w", err)
	}

	client := datasources.NewClient(cfg.Sources, logger)
	holidays := datasources.LoadHolidayCalendar(cfg.Paths.HolidayFile, logger)
	runner := pipeline.NewRunner(
		cfg,
		logger,
		engineMetrics,
		datasources.NewArbitrageScraper(client, cfg.Sources, logger),
		datasources.NewTurnoverScraper(client, cfg.Sources, logger),
		datasources.NewChartClient(client, cfg.Sources, logger),
		holidays,
	)

	stateService := transport.NewStateService(cfg.Paths.StateFile, logger)
	handler := transport.NewResultHandler(stateService, runner, logger)
	router := transport.NewRouter(handler, providers.PrometheusHTTP, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case sig := <-stop:
		logger.Info("shutting down", slog.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
