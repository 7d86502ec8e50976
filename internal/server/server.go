package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adpilot-ai/agentkernel/internal/kernel"
	"github.com/adpilot-ai/agentkernel/internal/observability"
	"github.com/adpilot-ai/agentkernel/pkg/models"
)

// Server exposes the kernel's single streaming run endpoint (spec.md §6).
type Server struct {
	kernel *kernel.Kernel
	log    *slog.Logger
	router chi.Router
}

// Option configures optional ambient behavior on top of New's required
// kernel+logger wiring, so tests that only need the bare handler (e.g.
// server_test.go) aren't forced to stand up a Metrics registry.
type Option func(*Server, chi.Router)

// WithMetrics wraps every route in m's HTTP latency/count middleware and
// exposes a Prometheus scrape endpoint at /metrics, grounded on
// kadirpekel-hector's metricsMiddleware wiring.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server, r chi.Router) {
		r.Use(m.Middleware)
		r.Handle("/metrics", promhttp.Handler())
	}
}

func New(k *kernel.Kernel, log *slog.Logger, opts ...Option) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{kernel: k, log: log}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	for _, opt := range opts {
		opt(s, r)
	}
	r.Post("/v1/agent/run", s.handleRun)
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req models.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.SessionID == "" {
		http.Error(w, "user_id and session_id are required", http.StatusBadRequest)
		return
	}

	userMessage := lastMessageContent(req.Messages)
	if req.Resume == nil && userMessage == "" {
		http.Error(w, "messages must contain at least one entry when not resuming", http.StatusBadRequest)
		return
	}

	principal := models.Principal{ID: req.UserID}
	if req.ModelPreferences != nil {
		principal.Preferences = *req.ModelPreferences
	}

	emitter, ok := newSSEEmitter(w)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	s.kernel.Run(r.Context(), emitter, principal, req.SessionID, userMessage, req.Resume)
}

func lastMessageContent(messages []models.InboundMessage) string {
	if len(messages) == 0 {
		return ""
	}
	return messages[len(messages)-1].Content
}
