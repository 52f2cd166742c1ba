package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-redis/redis/v8"

	"github.com/Divas-Gupta30/hmo-assistant/internal/config"
	"github.com/Divas-Gupta30/hmo-assistant/internal/graph"
	"github.com/Divas-Gupta30/hmo-assistant/internal/knowledge"
	"github.com/Divas-Gupta30/hmo-assistant/internal/llm"
	"github.com/Divas-Gupta30/hmo-assistant/internal/processing"
	"github.com/Divas-Gupta30/hmo-assistant/internal/profile"
	"github.com/Divas-Gupta30/hmo-assistant/internal/storage"
	"github.com/Divas-Gupta30/hmo-assistant/internal/tools"
)

// app holds the dependencies shared by the commands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

func newApp() (*app, error) {
	cfg, err := config.Load(opts.EnvFile)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger()
	slog.SetDefault(logger)
	return &app{cfg: cfg, logger: logger}, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) chatClient() (llm.Client, error) {
	if a.cfg.UseAzure() {
		return llm.NewAzureClient(a.cfg.AzureEndpoint, a.cfg.AzureAPIVersion, a.cfg.AzureAPIKey, a.cfg.ChatModel), nil
	}
	if a.cfg.OpenAIAPIKey == "" {
		return nil, errors.New("set AZURE_OPENAI_ENDPOINT or OPENAI_API_KEY")
	}
	return llm.NewOpenAIClient(a.cfg.OpenAIAPIKey, a.cfg.ChatModel), nil
}

func (a *app) embedder() processing.Embedder {
	c := a.cfg
	switch {
	case c.EmbeddingProvider == "ollama":
		return processing.NewOllamaEmbedder(c.OllamaURL, c.EmbeddingModel, c.EmbeddingDim)
	case c.UseAzure():
		return processing.NewAzureEmbedder(c.AzureEndpoint, c.AzureAPIVersion, c.AzureAPIKey, c.EmbeddingModel, c.EmbeddingDim)
	default:
		return processing.NewOpenAIEmbedder(c.OpenAIAPIKey, c.EmbeddingModel, c.EmbeddingDim)
	}
}

func (a *app) vectorStore(ctx context.Context) (*storage.VectorStore, error) {
	pool, err := storage.Connect(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, pool.Close)
	vs := storage.NewVectorStore(pool, a.cfg.EmbeddingDim)
	if err := vs.Migrate(ctx); err != nil {
		return nil, err
	}
	return vs, nil
}

// searchCache returns a Redis cache for search results, or nil when Redis is
// not reachable.
func (a *app) searchCache(ctx context.Context) knowledge.Cache {
	if a.cfg.SearchCacheTTL <= 0 {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.RedisURL,
		Password: a.cfg.RedisPassword,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		a.logger.Warn("search cache disabled, redis unavailable", "addr", a.cfg.RedisURL, "error", err)
		client.Close()
		return nil
	}
	a.closers = append(a.closers, func() { client.Close() })
	return storage.NewSearchCache(client, a.cfg.SearchCacheTTL)
}

func (a *app) knowledge(ctx context.Context) (*knowledge.Service, error) {
	vs, err := a.vectorStore(ctx)
	if err != nil {
		return nil, err
	}
	kbOpts := []knowledge.Option{knowledge.WithLogger(a.logger)}
	if cache := a.searchCache(ctx); cache != nil {
		kbOpts = append(kbOpts, knowledge.WithCache(cache))
	}
	return knowledge.NewService(a.embedder(), vs, a.cfg.SearchTopK, kbOpts...), nil
}

// toolHandlers builds the handlers behind extract_user_info and search_info.
func (a *app) toolHandlers(ctx context.Context, client llm.Client) (*tools.Handlers, *knowledge.Service, error) {
	kb, err := a.knowledge(ctx)
	if err != nil {
		return nil, nil, err
	}
	return tools.NewHandlers(profile.NewExtractor(client), kb, a.logger), kb, nil
}

func (a *app) workflow(ctx context.Context) (*graph.Workflow, *knowledge.Service, error) {
	client, err := a.chatClient()
	if err != nil {
		return nil, nil, err
	}
	handlers, kb, err := a.toolHandlers(ctx, client)
	if err != nil {
		return nil, nil, err
	}
	wf := graph.New(client, handlers,
		graph.WithMaxToolRounds(a.cfg.MaxToolRounds),
		graph.WithLogger(a.logger),
	)
	return wf, kb, nil
}

func (a *app) sessions(ctx context.Context) (storage.SessionStore, error) {
	store, err := storage.OpenSessionStore(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { store.Close() })
	return store, nil
}
