package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/outfitlab/outfit-relay/internal/config"
	"github.com/outfitlab/outfit-relay/internal/core/ports"
	"github.com/outfitlab/outfit-relay/internal/infrastructure/catalog/localfs"
	"github.com/outfitlab/outfit-relay/internal/infrastructure/catalog/postgres"
	"github.com/outfitlab/outfit-relay/internal/infrastructure/llm/gemini"
	"github.com/outfitlab/outfit-relay/internal/infrastructure/llm/ollama"
	"github.com/outfitlab/outfit-relay/internal/infrastructure/llm/openai"
	"github.com/outfitlab/outfit-relay/internal/infrastructure/resilience"
)

// NewTextGenerator picks the provider named by LLM_PROVIDER. A credentialed provider
// without its key yields a nil generator, which the relay treats as mock mode.
func NewTextGenerator(ctx context.Context, cfg config.Config, executor *resilience.Executor) (ports.TextGenerator, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.LLMProvider)) {
	case "", "gemini":
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			slog.Warn("llm_credentials_missing", "provider", "gemini", "env", "GEMINI_API_KEY", "mode", "mock")
			return nil, nil
		}
		client, err := gemini.New(ctx, gemini.Config{
			APIKey:   cfg.GeminiAPIKey,
			Model:    cfg.GeminiModel,
			BaseURL:  cfg.GeminiBaseURL,
			Timeout:  llmTimeout(cfg),
			Executor: executor,
		})
		if err != nil {
			return nil, fmt.Errorf("init gemini provider: %w", err)
		}
		return client, nil
	case "openai":
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			slog.Warn("llm_credentials_missing", "provider", "openai", "env", "OPENAI_API_KEY", "mode", "mock")
			return nil, nil
		}
		client, err := openai.New(openai.Config{
			APIKey:   cfg.OpenAIAPIKey,
			Model:    cfg.OpenAIModel,
			BaseURL:  cfg.OpenAIBaseURL,
			Timeout:  llmTimeout(cfg),
			Executor: executor,
		})
		if err != nil {
			return nil, fmt.Errorf("init openai provider: %w", err)
		}
		return client, nil
	case "ollama":
		return ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, ollama.Options{
			Timeout:  llmTimeout(cfg),
			Executor: executor,
		}), nil
	default:
		return nil, unknownOption("LLM_PROVIDER", cfg.LLMProvider)
	}
}

// NewCatalogProvider returns the configured catalog source and a close hook.
func NewCatalogProvider(ctx context.Context, cfg config.Config) (ports.CatalogProvider, func(), error) {
	switch strings.ToLower(strings.TrimSpace(cfg.CatalogSource)) {
	case "", "file":
		return localfs.New(cfg.CatalogPath, localfs.Options{Cache: cfg.CatalogCache}), nil, nil
	case "postgres":
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		repo := postgres.NewCatalogRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ensure catalog schema: %w", err)
		}
		if seed := strings.TrimSpace(cfg.CatalogSeed); seed != "" {
			if err := seedCatalog(ctx, repo, seed); err != nil {
				_ = db.Close()
				return nil, nil, err
			}
		}
		return repo, func() { _ = db.Close() }, nil
	default:
		return nil, nil, unknownOption("CATALOG_SOURCE", cfg.CatalogSource)
	}
}

func seedCatalog(ctx context.Context, repo *postgres.CatalogRepository, source string) error {
	catalog, err := localfs.New(source, localfs.Options{}).Load(ctx)
	if err != nil {
		return fmt.Errorf("read catalog seed %s: %w", source, err)
	}
	if err := repo.Seed(ctx, catalog); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	slog.Info("catalog_seeded", "source", source, "products", len(catalog))
	return nil
}
