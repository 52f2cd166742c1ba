package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Divas-Gupta30/hmo-assistant/internal/config"
	"github.com/Divas-Gupta30/hmo-assistant/internal/knowledge"
	"github.com/Divas-Gupta30/hmo-assistant/internal/llm"
	"github.com/Divas-Gupta30/hmo-assistant/internal/processing"
	"github.com/Divas-Gupta30/hmo-assistant/internal/profile"
	"github.com/Divas-Gupta30/hmo-assistant/internal/storage"
	"github.com/Divas-Gupta30/hmo-assistant/internal/tools"
	"github.com/Divas-Gupta30/hmo-assistant/internal/toolserver"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	logger := cfg.Logger()
	slog.SetDefault(logger)

	ctx := context.Background()
	pool, err := storage.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("DB init", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	var (
		client   llm.Client
		embedder processing.Embedder
	)
	if cfg.UseAzure() {
		client = llm.NewAzureClient(cfg.AzureEndpoint, cfg.AzureAPIVersion, cfg.AzureAPIKey, cfg.ChatModel)
		embedder = processing.NewAzureEmbedder(cfg.AzureEndpoint, cfg.AzureAPIVersion, cfg.AzureAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDim)
	} else {
		client = llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.ChatModel)
		embedder = processing.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDim)
	}
	if cfg.EmbeddingProvider == "ollama" {
		embedder = processing.NewOllamaEmbedder(cfg.OllamaURL, cfg.EmbeddingModel, cfg.EmbeddingDim)
	}

	kb := knowledge.NewService(embedder, storage.NewVectorStore(pool, cfg.EmbeddingDim), cfg.SearchTopK, knowledge.WithLogger(logger))
	handlers := tools.NewHandlers(profile.NewExtractor(client), kb, logger)

	server := &http.Server{
		Addr:    ":" + cfg.MCPPort,
		Handler: toolserver.New(handlers, logger).Router(),
	}

	// Graceful shutdown
	go func() {
		logger.Info("MCP server starting", "port", cfg.MCPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	logger.Info("shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server exited")
}
