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
	"time"

	"github.com/joho/godotenv"

	"github.com/outfitlab/outfit-relay/internal/bootstrap"
	"github.com/outfitlab/outfit-relay/internal/config"
	"github.com/outfitlab/outfit-relay/internal/core/domain"
	"github.com/outfitlab/outfit-relay/internal/observability/logging"
	"github.com/outfitlab/outfit-relay/internal/observability/metrics"
)

const serviceName = "outfit-worker"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, cfg, logger)
	stop()
	if err != nil {
		logger.Error("worker_failed", "error", err)
		os.Exit(1)
	}
}

// run returns once ctx is cancelled; deferred cleanup finishes before main decides the exit code.
func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if cfg.NATSURL == "" {
		return errors.New("NATS_URL is required")
	}

	bus := bootstrap.NewEventBus(cfg, logger)
	if bus == nil {
		return fmt.Errorf("connect event bus at %s", cfg.NATSURL)
	}
	defer bus.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "subject", bus.Subject())
	err := bus.SubscribeOutfitRecommended(ctx, "outfit-workers", func(_ context.Context, event domain.OutfitEvent) error {
		lag := time.Duration(-1)
		if !event.CreatedAt.IsZero() {
			lag = time.Since(event.CreatedAt)
		}
		workerMetrics.ObserveEvent(serviceName, event.BaseProductID, event.Mock, lag)
		logger.Info("outfit_recommended",
			"request_id", event.RequestID,
			"base_product_id", event.BaseProductID,
			"suggestions", len(event.SuggestionIDs),
			"mock", event.Mock,
			"model", event.Model,
		)
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribe outfit events: %w", err)
	}
	return nil
}
