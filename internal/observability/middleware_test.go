package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareRecordsMatchedRoutePattern(t *testing.T) {
	m := newTestMetrics()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/v1/agent/run", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/agent/run", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if count := testutil.CollectAndCount(m.HTTPRequestCounter); count != 1 {
		t.Fatalf("expected 1 recorded route, got %d", count)
	}
}

func TestMiddlewareDefaultsStatusToOKWhenNotExplicitlySet(t *testing.T) {
	m := newTestMetrics()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/ok", func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte("fine"))
	})

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
