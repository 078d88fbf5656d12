package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/civic-problem-map/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/civic-problem-map/internal/adapter/kafka"
	"github.com/couchcryptid/civic-problem-map/internal/adapter/mapbox"
	"github.com/couchcryptid/civic-problem-map/internal/adapter/sqlite"
	"github.com/couchcryptid/civic-problem-map/internal/config"
	"github.com/couchcryptid/civic-problem-map/internal/domain"
	"github.com/couchcryptid/civic-problem-map/internal/observability"
	"github.com/couchcryptid/civic-problem-map/internal/pipeline"
	"github.com/couchcryptid/civic-problem-map/internal/report"
	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)

	if err := report.Setup(cfg.SentryDSN, cfg.Environment, version); err != nil {
		logger.Warn("error reporting disabled", "error", err)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("service failed", "error", err)
		report.ErrorWithOptions(err, report.Options{Level: sentry.LevelFatal})
		report.Flush()
		os.Exit(1)
	}
	report.Flush()
}

func run(cfg *config.Config, logger *slog.Logger) error {
	metrics := observability.NewMetrics()

	store, err := sqlite.Open(cfg.DBPath, metrics)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeWithLog(logger, "sqlite store", store.Close)

	if n, err := store.Count(context.Background()); err == nil {
		metrics.StoredProblems.Set(float64(n))
	}

	// Reverse geocoding is feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN.
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, cfg.MapboxRateLimit, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, cfg.MapboxCacheTTL, nil, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled",
			"cache_size", cfg.MapboxCacheSize,
			"cache_ttl", cfg.MapboxCacheTTL,
			"rate_limit", cfg.MapboxRateLimit,
			"timeout", cfg.MapboxTimeout,
		)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	reader := kafkaadapter.NewReader(cfg, logger)
	defer closeWithLog(logger, "kafka reader", reader.Close)

	loaders := pipeline.FanoutLoader{store}
	if cfg.KafkaSinkTopic != "" {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer closeWithLog(logger, "kafka writer", writer.Close)
		loaders = append(loaders, writer)
	} else {
		logger.Info("republishing disabled", "reason", "KAFKA_SINK_TOPIC is empty")
	}

	transformer := pipeline.NewTransformer(geocoder, logger)
	p := pipeline.New(reader, transformer, loaders, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, store, httpadapter.AllReady(store, p), cfg.ProximityMeters, metrics, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := p.Run(gctx); err != nil {
			return fmt.Errorf("pipeline: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	logger.Info("shutdown complete")
	return err
}

func closeWithLog(logger *slog.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logger.Error("close failed", "component", name, "error", err)
	}
}
