package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/price-comb/app/alerts"
	"github.com/lysyi3m/price-comb/app/api"
	"github.com/lysyi3m/price-comb/app/cfg"
	"github.com/lysyi3m/price-comb/app/database"
	"github.com/lysyi3m/price-comb/app/listing"
	"github.com/lysyi3m/price-comb/app/metrics"
	"github.com/lysyi3m/price-comb/app/scraper"
	"github.com/lysyi3m/price-comb/app/source"
	"github.com/lysyi3m/price-comb/app/tasks"
)

func main() {
	appConfig, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appConfig == nil {
		// Help was shown
		return
	}

	setupLogging(appConfig.Debug)

	if err := run(appConfig); err != nil {
		slog.Error("Price Comb server failed", "error", err)
		os.Exit(1)
	}
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func run(appConfig *cfg.Cfg) error {
	slog.Info("Starting Price Comb server", "version", appConfig.Version)

	db, err := database.NewConnection(appConfig.DBPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return err
	}
	slog.Info("Database ready", "path", appConfig.DBPath, "schema_version", version, "dirty", dirty)

	configCache := source.NewConfigCache(appConfig.SourcesDir)
	if err := configCache.Run(); err != nil {
		return fmt.Errorf("failed to load source configurations: %w", err)
	}
	slog.Info("Source configurations loaded", "dir", appConfig.SourcesDir, "count", configCache.GetConfigCount())

	httpClient := &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	fetcher := source.NewFetcher(httpClient, appConfig.UserAgent)

	catalog, err := scraper.LoadCatalog(configCache, fetcher)
	if err != nil {
		return err
	}

	sourceRepo := database.NewSourceStore(db)
	productRepo := database.NewProductStore(db)
	alertRepo := database.NewAlertStore(db)

	registry := scraper.NewSourceRegistry(sourceRepo)
	if err := registry.Seed(context.Background()); err != nil {
		return err
	}

	appMetrics := metrics.New()
	orchestrator := scraper.NewOrchestrator(catalog, registry, productRepo, listing.NewFilterer(), appMetrics, appConfig.CheapestLimit)

	notifier, closeNotifier, err := buildNotifier(appConfig)
	if err != nil {
		return err
	}
	defer closeNotifier()

	evaluator := alerts.NewEvaluator(alertRepo, productRepo, orchestrator, catalog, notifier, appMetrics, appConfig.SourcePacing)

	scheduler, err := tasks.NewScheduler(configCache, registry, evaluator, orchestrator, appConfig.WorkerCount, appConfig.AlertSchedule)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(orchestrator, catalog, productRepo, alertRepo, scheduler, appMetrics.Handler(), appConfig.Version)
	server := api.NewServer(handler, appConfig.APIAccessKey)

	// Write timeout covers a multi-source search under per-source timeouts
	httpServer := &http.Server{
		Addr:         ":" + appConfig.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appConfig.Port, "auth", appConfig.APIAccessKey != "")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case runErr = <-serverErrChan:
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Price Comb server shutdown complete")
	return runErr
}

// buildNotifier always logs alert events and also publishes them to Redis
// when REDIS_ADDR is set
func buildNotifier(appConfig *cfg.Cfg) (alerts.Notifier, func(), error) {
	if appConfig.RedisAddr == "" {
		return alerts.LogNotifier{}, func() {}, nil
	}

	redisNotifier, err := alerts.NewRedisNotifier(appConfig.RedisAddr, appConfig.RedisStream)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("Alert events published to Redis", "addr", appConfig.RedisAddr, "stream", appConfig.RedisStream)

	closeFn := func() {
		if err := redisNotifier.Close(); err != nil {
			slog.Warn("Failed to close Redis notifier", "error", err)
		}
	}
	return alerts.MultiNotifier{alerts.LogNotifier{}, redisNotifier}, closeFn, nil
}
