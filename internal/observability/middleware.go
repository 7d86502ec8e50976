package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// responseWriter wraps http.ResponseWriter to capture the status code
// and stays transparent to SSE streaming, grounded on
// kadirpekel-hector's pkg/transport/http_metrics_middleware.go
// responseWriter (Flush passthrough is required here: the agent run
// endpoint is among the routes this middleware wraps, and it streams).
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware returns a chi-compatible middleware that records HTTP
// latency/count metrics per matched route pattern, grounded on
// kadirpekel-hector's metricsMiddleware, trimmed of its OTel span
// creation (the agent run handler opens its own kernel-scoped spans via
// Tracer.KernelIteration/ToolCall instead of a generic per-request one).
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		m.RecordHTTPRequest(r.Method, route, strconv.Itoa(wrapped.statusCode), time.Since(start))
	})
}
