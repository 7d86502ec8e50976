package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adpilot-ai/agentkernel/internal/errtax"
	"github.com/adpilot-ai/agentkernel/internal/retry"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	c := New(Config{
		BaseURL:      srv.URL,
		ServiceToken: "tok",
		Retry:        retry.Config{MaxRetries: 1, Base: 0, Multiplier: 1, Cap: 0, Jitter: 0},
	})
	return c, srv.Close
}

func TestCallDecodesSuccessData(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "u1", body["user_id"])
		assert.Equal(t, "/tools/create_campaign", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","data":{"campaign_id":"c-1"}}`))
	})
	defer closeFn()

	var out struct {
		CampaignID string `json:"campaign_id"`
	}
	err := c.Call(context.Background(), "create_campaign", "u1", map[string]any{"name": "x"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "c-1", out.CampaignID)
}

func TestCall4xxIsNotRetryable(t *testing.T) {
	calls := 0
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":"error","error":{"code":"INVALID_BUDGET","message":"budget too low"}}`))
	})
	defer closeFn()

	err := c.Call(context.Background(), "update_budget", "u1", nil, nil)
	require.Error(t, err)
	te, ok := errtax.As(err)
	require.True(t, ok)
	assert.Equal(t, errtax.KindBackendToolError, te.Kind)
	assert.Equal(t, 1, calls)
}

func TestCall5xxIsRetried(t *testing.T) {
	calls := 0
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	defer closeFn()

	err := c.Call(context.Background(), "get_reports", "u1", nil, nil)
	require.Error(t, err)
	te, ok := errtax.As(err)
	require.True(t, ok)
	assert.Equal(t, errtax.KindBackendConnection, te.Kind)
	assert.Equal(t, 2, calls)
}
