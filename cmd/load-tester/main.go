package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"load-tester/internal/adapters/catalog"
	"load-tester/internal/adapters/storage/memory"
	"load-tester/internal/adapters/storage/sqlite"
	"load-tester/internal/engine"
	"load-tester/internal/infrastructure/config"
	"load-tester/internal/infrastructure/httpapi"
	obs "load-tester/internal/infrastructure/observability"
	"load-tester/internal/usecase"
)

func main() {
	cfg := config.FromEnv()

	logger := obs.NewLogger(cfg.LogLevel)
	logger.Info().Str("addr", cfg.Addr).Str("version", obs.Version).Msg("starting load-tester")

	metrics := obs.NewMetrics()

	store := memory.NewStore(cfg.MaxTests)

	cat := catalog.NewCatalog()
	if cfg.ScenarioDir != "" {
		n, err := cat.LoadDir(cfg.ScenarioDir)
		if err != nil {
			logger.Error().Err(err).Str("dir", cfg.ScenarioDir).Msg("scenario dir load failed")
		} else {
			logger.Info().Int("loaded", n).Str("dir", cfg.ScenarioDir).Msg("scenario dir loaded")
		}
	}

	var history usecase.RunHistory
	if cfg.HistoryDB != "" {
		h, err := sqlite.NewHistory(cfg.HistoryDB)
		if err != nil {
			logger.Error().Err(err).Str("path", cfg.HistoryDB).Msg("run history disabled")
		} else {
			history = h
			defer func() { _ = h.Close() }()
			logger.Info().Str("path", cfg.HistoryDB).Msg("run history enabled")
		}
	}

	reports := engine.NewReportWriter(cfg.ReportsDir)
	hub := httpapi.NewMonitorHub()

	runner := engine.NewRunner(engine.RunnerDeps{
		Tests:    store,
		Reports:  reports,
		History:  history,
		Notifier: hub,
		Metrics:  metrics,
		Logger:   logger,
	}, engine.RunnerOptions{
		MetricsInterval: cfg.MetricsInterval(),
		JoinTimeout:     cfg.WorkerJoinTimeout(),
		PreviewMaxBytes: cfg.PreviewMaxBytes,
		RecentErrors:    cfg.RecentErrors,
	})

	svc := usecase.NewTestService(store, cat, runner, usecase.TestServiceOptions{
		MaxUsers:          cfg.MaxConcurrentUsers,
		DefaultTimeoutSec: cfg.RequestTimeoutMs / 1000,
	})

	deps := &httpapi.Deps{
		Cfg:       cfg,
		Logger:    logger,
		Metrics:   metrics,
		Svc:       svc,
		Scenarios: usecase.NewScenarioService(cat),
		History:   history,
		Reports:   reports,
		Monitor:   hub,
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server error")
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	if n := runner.StopAll(); n > 0 {
		logger.Info().Int("stopped", n).Msg("cancelled running tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}
	logger.Info().Msg("load-tester stopped")
}
