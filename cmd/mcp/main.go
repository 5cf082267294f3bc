package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	mcpadapter "github.com/outfitlab/outfit-relay/internal/adapters/mcp"
	"github.com/outfitlab/outfit-relay/internal/bootstrap"
	"github.com/outfitlab/outfit-relay/internal/config"
	"github.com/outfitlab/outfit-relay/internal/observability/logging"
)

var version = "dev"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	// stdout carries the protocol.
	logger := logging.NewStderrJSONLogger("outfit-mcp", cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg); err != nil {
		logger.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	app, err := bootstrap.New(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	return mcpadapter.New(app.Recommender, app.Catalog).ServeStdio(version)
}
