// Package server is the HTTP chat API used by web front ends.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/Divas-Gupta30/hmo-assistant/internal/conversation"
	"github.com/Divas-Gupta30/hmo-assistant/internal/graph"
	"github.com/Divas-Gupta30/hmo-assistant/internal/metrics"
	"github.com/Divas-Gupta30/hmo-assistant/internal/profile"
	"github.com/Divas-Gupta30/hmo-assistant/internal/storage"
)

// Turner runs one conversation turn.
type Turner interface {
	Turn(ctx context.Context, prev *conversation.State, utterance string) (*graph.Result, error)
}

// StatsSource reports knowledge index statistics.
type StatsSource interface {
	Stats(ctx context.Context) (storage.Stats, error)
}

// ChatRequest represents the request payload for a chat turn. State, when
// set, carries the whole conversation and takes precedence over SessionID.
// An inline state is always stored under a fresh id so it can never replace
// another stored session.
type ChatRequest struct {
	SessionID string          `json:"session_id,omitempty"`
	State     json.RawMessage `json:"state,omitempty"`
	Message   string          `json:"message"`
}

type ChatResponse struct {
	SessionID            string               `json:"session_id"`
	Message              string               `json:"message"`
	Messages             []string             `json:"messages"`
	Phase                conversation.Phase   `json:"phase"`
	UserProfile          *profile.UserProfile `json:"user_profile"`
	RequiresConfirmation bool                 `json:"requires_confirmation"`
	State                *conversation.State  `json:"state"`
}

type StatsResponse struct {
	Status         string `json:"status"`
	TotalDocuments int64  `json:"total_documents"`
	Dimension      int    `json:"dimension"`
}

type Server struct {
	workflow Turner
	sessions storage.SessionStore
	stats    StatsSource
	logger   *slog.Logger
	locks    *sessionLocks
}

func New(workflow Turner, sessions storage.SessionStore, stats StatsSource, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{workflow: workflow, sessions: sessions, stats: stats, logger: logger, locks: newSessionLocks()}
}

// Handler returns the routed, instrumented and CORS-enabled API.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(instrument)

	router.HandleFunc("/", handleHealth).Methods("GET")
	router.HandleFunc("/health", handleHealth).Methods("GET")
	router.HandleFunc("/welcome", handleWelcome).Methods("GET")
	router.HandleFunc("/chat", s.handleChat).Methods("POST")
	router.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	router.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")
	router.HandleFunc("/vector-store/stats", s.handleStats).Methods("GET")

	// Metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(router)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	// Stored sessions are loaded, advanced and saved under their lock so
	// concurrent turns append in order instead of overwriting each other.
	if req.SessionID != "" && !hasInlineState(req) {
		unlock := s.locks.lock(req.SessionID)
		defer unlock()
	}

	prev, status, err := s.previousState(r.Context(), req)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	res, err := s.workflow.Turn(r.Context(), prev, req.Message)
	if err != nil {
		if errors.Is(err, graph.ErrEmptyUtterance) {
			writeError(w, http.StatusBadRequest, "Message cannot be empty")
			return
		}
		var perr *graph.ProtocolError
		if errors.As(err, &perr) {
			s.logger.Error("protocol violation", "error", err)
		} else {
			s.logger.Error("workflow execution failed", "error", err)
		}
		writeError(w, http.StatusInternalServerError, "Workflow execution failed")
		return
	}

	if err := s.sessions.Save(r.Context(), res.State); err != nil {
		s.logger.Error("saving session failed", "session", res.State.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save session")
		return
	}

	resp := ChatResponse{
		SessionID:            res.State.ID,
		Message:              res.Reply,
		Messages:             make([]string, 0, len(res.Messages)),
		Phase:                res.State.Phase,
		UserProfile:          res.State.Profile,
		RequiresConfirmation: res.ProfileCollected,
		State:                res.State,
	}
	for _, m := range res.Messages {
		resp.Messages = append(resp.Messages, m.Content)
	}
	writeJSON(w, http.StatusOK, resp)
}

func hasInlineState(req ChatRequest) bool {
	return len(req.State) > 0 && string(req.State) != "null"
}

// previousState resolves the conversation a chat request continues. A nil
// state starts a new conversation.
func (s *Server) previousState(ctx context.Context, req ChatRequest) (*conversation.State, int, error) {
	if hasInlineState(req) {
		st, err := conversation.Unmarshal(req.State)
		if err != nil {
			return nil, http.StatusBadRequest, err
		}
		st.ID = uuid.NewString()
		return st, 0, nil
	}
	if req.SessionID == "" {
		return nil, 0, nil
	}
	st, err := s.sessions.Load(ctx, req.SessionID)
	if errors.Is(err, storage.ErrSessionNotFound) {
		return nil, http.StatusNotFound, err
	}
	if err != nil {
		s.logger.Error("loading session failed", "session", req.SessionID, "error", err)
		return nil, http.StatusInternalServerError, errors.New("failed to load session")
	}
	return st, 0, nil
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	st, err := s.sessions.Load(r.Context(), id)
	if errors.Is(err, storage.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		s.logger.Error("loading session failed", "session", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load session")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	err := s.sessions.Delete(r.Context(), id)
	if errors.Is(err, storage.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		s.logger.Error("deleting session failed", "session", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeError(w, http.StatusServiceUnavailable, "Vector store not configured")
		return
	}
	st, err := s.stats.Stats(r.Context())
	if err != nil {
		s.logger.Error("vector store stats failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Error retrieving vector store statistics")
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{
		Status:         "loaded",
		TotalDocuments: st.TotalDocuments,
		Dimension:      st.Dimension,
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"message": "HMO services chatbot API is running",
	})
}

func handleWelcome(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": conversation.WelcomeMessage})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		metrics.HTTPRequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
