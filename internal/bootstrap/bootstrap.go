package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/outfitlab/outfit-relay/internal/config"
	"github.com/outfitlab/outfit-relay/internal/core/ports"
	"github.com/outfitlab/outfit-relay/internal/core/usecase"
	natsbus "github.com/outfitlab/outfit-relay/internal/infrastructure/events/nats"
	"github.com/outfitlab/outfit-relay/internal/infrastructure/resilience"
	"github.com/outfitlab/outfit-relay/internal/observability/metrics"
)

type App struct {
	Config  config.Config
	Metrics *metrics.HTTPServerMetrics

	Recommender ports.OutfitRecommender
	Catalog     ports.CatalogReader
	Generator   ports.TextGenerator

	closeFns []func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	app := &App{
		Config:  cfg,
		Metrics: metrics.NewHTTPServerMetrics("outfit-relay"),
	}

	provider, closeCatalog, err := NewCatalogProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.onClose(closeCatalog)

	executor := resilience.NewExecutor(upstreamPolicy(cfg))
	generator, err := NewTextGenerator(ctx, cfg, executor)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Generator = generator

	var events ports.OutfitEventPublisher
	if bus := NewEventBus(cfg, slog.Default()); bus != nil {
		events = bus
		app.onClose(bus.Close)
	}

	uc := usecase.NewRecommendUseCase(provider, generator, events, app.Metrics, usecase.RecommendOptions{
		Categories: cfg.OutfitCategories,
		ForceMock:  cfg.MockMode,
	})
	app.Recommender = uc
	app.Catalog = usecase.NewCatalogUseCase(provider)

	mode := "model"
	if generator == nil || cfg.MockMode {
		mode = "mock"
	}
	slog.Info("relay_configured",
		"provider", cfg.LLMProvider,
		"mode", mode,
		"catalog_source", cfg.CatalogSource,
		"events", events != nil,
	)
	return app, nil
}

// NewEventBus connects to NATS when NATS_URL is set. Connection failures are logged
// and leave the relay without events.
func NewEventBus(cfg config.Config, logger *slog.Logger) *natsbus.Bus {
	if cfg.NATSURL == "" {
		return nil
	}
	policy := resilience.DefaultConfig()
	policy.RetryMaxAttempts = 2
	bus, err := natsbus.Connect(cfg.NATSURL, cfg.NATSSubject, natsbus.Options{
		ResilienceExecutor: resilience.NewExecutor(policy),
		Logger:             logger,
	})
	if err != nil {
		logger.Warn("outfit_events_disabled", "error", err)
		return nil
	}
	return bus
}

func upstreamPolicy(cfg config.Config) resilience.Config {
	policy := resilience.DefaultConfig()
	if cfg.LLMRetryMaxAttempts > 0 {
		policy.RetryMaxAttempts = cfg.LLMRetryMaxAttempts
	}
	policy.BreakerEnabled = cfg.LLMBreakerEnabled
	return policy
}

func llmTimeout(cfg config.Config) time.Duration {
	if cfg.LLMTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(cfg.LLMTimeoutSeconds) * time.Second
}

func (a *App) onClose(fn func()) {
	if fn != nil {
		a.closeFns = append(a.closeFns, fn)
	}
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}

func unknownOption(key, value string) error {
	return fmt.Errorf("unsupported %s %q", key, value)
}
