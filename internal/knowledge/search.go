// Package knowledge answers search queries against the embedded HMO knowledge base.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Divas-Gupta30/hmo-assistant/internal/metrics"
	"github.com/Divas-Gupta30/hmo-assistant/internal/processing"
	"github.com/Divas-Gupta30/hmo-assistant/internal/storage"
)

// NoResultsText is the search result when nothing relevant was found.
const NoResultsText = "No relevant information found in the knowledge base."

// MaxFormatted is how many results FormatResults includes.
const MaxFormatted = 3

var ErrEmptyQuery = errors.New("empty search query")

// Index is the similarity search backend.
type Index interface {
	QuerySimilar(ctx context.Context, queryEmb []float32, topK int) ([]storage.Match, error)
	Stats(ctx context.Context) (storage.Stats, error)
}

// Cache stores search results by query.
type Cache interface {
	Get(ctx context.Context, query string, topK int, v any) error
	Set(ctx context.Context, query string, topK int, v any) error
}

// Result is one retrieved chunk.
type Result struct {
	Content  string              `json:"content"`
	Metadata processing.Metadata `json:"metadata"`
	Score    float64             `json:"score"`
}

type Service struct {
	embedder processing.Embedder
	index    Index
	topK     int
	cache    Cache
	logger   *slog.Logger
}

type Option func(*Service)

// WithCache enables result caching.
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(embedder processing.Embedder, index Index, topK int, opts ...Option) *Service {
	if topK < 1 {
		topK = 5
	}
	s := &Service{embedder: embedder, index: index, topK: topK, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search embeds query and returns the closest chunks, best first.
func (s *Service) Search(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	if s.cache != nil {
		var cached []Result
		err := s.cache.Get(ctx, query, s.topK, &cached)
		if err == nil {
			metrics.SearchCacheHitsTotal.Inc()
			return cached, nil
		}
		metrics.SearchCacheMissesTotal.Inc()
		if !errors.Is(err, storage.ErrCacheMiss) {
			s.logger.Warn("search cache read failed", "error", err)
		}
	}

	emb, err := processing.QueryEmbedding(ctx, s.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	matches, err := s.index.QuerySimilar(ctx, emb, s.topK)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	results := make([]Result, len(matches))
	for i, m := range matches {
		results[i] = Result{Content: m.Content, Metadata: m.Metadata, Score: m.Score}
	}
	s.logger.Debug("knowledge search", "query", query, "results", len(results))

	if s.cache != nil {
		if err := s.cache.Set(ctx, query, s.topK, results); err != nil {
			s.logger.Warn("search cache write failed", "error", err)
		}
	}
	return results, nil
}

// Stats reports the size of the underlying index.
func (s *Service) Stats(ctx context.Context) (storage.Stats, error) {
	return s.index.Stats(ctx)
}

// FormatResults renders the top results as context text for the QA agent.
func FormatResults(results []Result) string {
	if len(results) == 0 {
		return NoResultsText
	}
	n := min(len(results), MaxFormatted)
	parts := make([]string, n)
	for i := range n {
		parts[i] = fmt.Sprintf("Result %d:\n%s\n", i+1, results[i].Content)
	}
	return strings.Join(parts, "\n")
}
