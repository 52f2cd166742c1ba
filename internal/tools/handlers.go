package tools

import (
	"context"
	"log/slog"

	"github.com/Divas-Gupta30/hmo-assistant/internal/knowledge"
	"github.com/Divas-Gupta30/hmo-assistant/internal/llm"
	"github.com/Divas-Gupta30/hmo-assistant/internal/metrics"
	"github.com/Divas-Gupta30/hmo-assistant/internal/profile"
)

// Result texts returned to the model.
const (
	ExtractSuccessText = "User information collected successfully! How can I help you with HMO services?"
	extractErrorPrefix = "Error collecting user information: "
	searchErrorPrefix  = "Error searching for information: "
)

// Extractor builds a profile from a conversation transcript.
type Extractor interface {
	Extract(ctx context.Context, transcript string) (profile.UserProfile, error)
}

// Searcher retrieves knowledge-base chunks for a question.
type Searcher interface {
	Search(ctx context.Context, query string) ([]knowledge.Result, error)
}

// Handlers executes tool calls. Failures never escape as errors; they become
// the text of the tool result so the model can react to them.
type Handlers struct {
	extractor Extractor
	searcher  Searcher
	logger    *slog.Logger
}

func NewHandlers(extractor Extractor, searcher Searcher, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{extractor: extractor, searcher: searcher, logger: logger}
}

// Extract runs profile extraction over transcript. The profile is nil when
// extraction failed.
func (h *Handlers) Extract(ctx context.Context, transcript string) (string, *profile.UserProfile) {
	p, err := h.extractor.Extract(ctx, transcript)
	if err != nil {
		metrics.ToolCallsTotal.WithLabelValues(ExtractUserInfoName, "error").Inc()
		h.logger.Info("profile extraction failed", "error", err)
		return extractErrorPrefix + err.Error(), nil
	}
	metrics.ToolCallsTotal.WithLabelValues(ExtractUserInfoName, "success").Inc()
	return ExtractSuccessText, &p
}

// Search validates the call arguments, searches and formats the results.
func (h *Handlers) Search(ctx context.Context, arguments string) string {
	var args struct {
		Question string `json:"question"`
	}
	err := ValidateArguments(SearchInfo, arguments)
	if err == nil {
		err = llm.ToolCall{Arguments: arguments}.DecodeArguments(&args)
	}
	if err != nil {
		metrics.ToolCallsTotal.WithLabelValues(SearchInfoName, "invalid").Inc()
		return searchErrorPrefix + err.Error()
	}

	results, err := h.searcher.Search(ctx, args.Question)
	if err != nil {
		metrics.ToolCallsTotal.WithLabelValues(SearchInfoName, "error").Inc()
		h.logger.Warn("knowledge search failed", "question", args.Question, "error", err)
		return searchErrorPrefix + err.Error()
	}
	status := "success"
	if len(results) == 0 {
		status = "empty"
	}
	metrics.ToolCallsTotal.WithLabelValues(SearchInfoName, status).Inc()
	return knowledge.FormatResults(results)
}
