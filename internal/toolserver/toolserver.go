// Package toolserver exposes extract_user_info and search_info over an
// MCP-style JSON API.
package toolserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Divas-Gupta30/hmo-assistant/internal/metrics"
	"github.com/Divas-Gupta30/hmo-assistant/internal/profile"
	"github.com/Divas-Gupta30/hmo-assistant/internal/tools"
)

// MCP Protocol structures
type MCPRequest struct {
	ID     string         `json:"id"`
	Method string         `json:"method"`
	Params map[string]any `json:"params,omitempty"`
}

type MCPResponse struct {
	ID     string    `json:"id"`
	Result any       `json:"result,omitempty"`
	Error  *MCPError `json:"error,omitempty"`
}

type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// Content is one block of a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallResult is the result of tools/call.
type CallResult struct {
	Content     []Content            `json:"content"`
	IsError     bool                 `json:"isError,omitempty"`
	UserProfile *profile.UserProfile `json:"user_profile,omitempty"`
}

const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// ToolRunner executes the tools.
type ToolRunner interface {
	Extract(ctx context.Context, transcript string) (string, *profile.UserProfile)
	Search(ctx context.Context, arguments string) string
}

type Server struct {
	runner ToolRunner
	logger *slog.Logger
}

func New(runner ToolRunner, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{runner: runner, logger: logger}
}

// Router wires the MCP, tool listing, health and metrics endpoints.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	// MCP endpoints
	router.HandleFunc("/mcp", s.handleMCP).Methods("POST")
	router.HandleFunc("/tools/list", s.handleToolsList).Methods("GET")
	router.HandleFunc("/health", handleHealth).Methods("GET")

	// Metrics endpoint
	router.Handle("/metrics", promhttp.Handler())
	return router
}

func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req MCPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, req.ID, codeParseError, "Parse error")
		metrics.MCPRequestsTotal.WithLabelValues(req.Method, "error").Inc()
		return
	}

	defer func() {
		metrics.MCPRequestDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
	}()

	var response MCPResponse
	switch req.Method {
	case "tools/call":
		response = s.handleToolCall(r.Context(), req)
	case "tools/list":
		response = MCPResponse{ID: req.ID, Result: map[string]any{"tools": availableTools()}}
	default:
		response = MCPResponse{
			ID:    req.ID,
			Error: &MCPError{Code: codeMethodNotFound, Message: "Method not found"},
		}
	}

	status := "success"
	if response.Error != nil {
		status = "error"
	}
	metrics.MCPRequestsTotal.WithLabelValues(req.Method, status).Inc()
	writeJSONResponse(w, response)
}

func (s *Server) handleToolCall(ctx context.Context, req MCPRequest) MCPResponse {
	toolName, ok := req.Params["name"].(string)
	if !ok {
		return MCPResponse{
			ID:    req.ID,
			Error: &MCPError{Code: codeInvalidParams, Message: "Invalid tool name"},
		}
	}
	arguments, _ := req.Params["arguments"].(map[string]any)
	s.logger.Info("tool call", "tool", toolName, "id", req.ID)

	switch toolName {
	case tools.ExtractUserInfoName:
		history, _ := arguments["chat_history"].(string)
		if history == "" {
			return MCPResponse{
				ID:    req.ID,
				Error: &MCPError{Code: codeInvalidParams, Message: "chat_history is required"},
			}
		}
		text, p := s.runner.Extract(ctx, history)
		return MCPResponse{ID: req.ID, Result: CallResult{
			Content:     []Content{{Type: "text", Text: text}},
			IsError:     p == nil,
			UserProfile: p,
		}}
	case tools.SearchInfoName:
		raw, err := json.Marshal(arguments)
		if err != nil {
			return MCPResponse{
				ID:    req.ID,
				Error: &MCPError{Code: codeInvalidParams, Message: err.Error()},
			}
		}
		text := s.runner.Search(ctx, string(raw))
		return MCPResponse{ID: req.ID, Result: CallResult{
			Content: []Content{{Type: "text", Text: text}},
		}}
	default:
		return MCPResponse{
			ID:    req.ID,
			Error: &MCPError{Code: codeMethodNotFound, Message: "Tool not found"},
		}
	}
}

func (s *Server) handleToolsList(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, map[string]any{"tools": availableTools()})
}

func availableTools() []Tool {
	return []Tool{
		{
			Name:        tools.ExtractUserInfo.Name,
			Description: tools.ExtractUserInfo.Description,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"chat_history": map[string]any{
						"type":        "string",
						"description": "Conversation transcript, one \"User: ...\" or \"Assistant: ...\" line per turn",
					},
				},
				"required": []string{"chat_history"},
			},
		},
		{
			Name:        tools.SearchInfo.Name,
			Description: tools.SearchInfo.Description,
			InputSchema: tools.SearchInfo.Parameters,
		},
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, map[string]string{"status": "healthy"})
}

func writeJSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeErrorResponse(w http.ResponseWriter, id string, code int, message string) {
	writeJSONResponse(w, MCPResponse{
		ID:    id,
		Error: &MCPError{Code: code, Message: message},
	})
}
