package proxy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adpilot-ai/agentkernel/internal/backend"
	"github.com/adpilot-ai/agentkernel/internal/objectstore"
	"github.com/adpilot-ai/agentkernel/internal/registry"
	"github.com/adpilot-ai/agentkernel/internal/retry"
	"github.com/adpilot-ai/agentkernel/pkg/models"
)

func TestRegisterAddsAllProxyTools(t *testing.T) {
	reg := registry.New()
	client := backend.New(backend.Config{BaseURL: "http://unused"})
	store := objectstore.NewMemoryClient("")
	require.NoError(t, Register(reg, client, store))

	for _, name := range []string{
		"create_campaign", "update_campaign", "pause_campaign", "update_budget",
		"disconnect_account", "save_creative", "list_creatives",
		"publish_landing_page", "get_reports", "get_balance", "upload_object",
	} {
		assert.True(t, reg.Has(name), name)
	}
}

func TestCreateCampaignPassesOperationIDAndUserID(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","data":{"campaign_id":"c-9"}}`))
	}))
	defer srv.Close()

	reg := registry.New()
	client := backend.New(backend.Config{BaseURL: srv.URL, Retry: retry.Config{MaxRetries: 0, Base: 0, Multiplier: 1}})
	require.NoError(t, Register(reg, client, objectstore.NewMemoryClient("")))

	_, handler, err := reg.Lookup("create_campaign")
	require.NoError(t, err)

	tc := models.ToolContext{Principal: models.Principal{ID: "u1"}, OperationID: "op-1"}
	obs := handler(context.Background(), map[string]any{"name": "Q4 Push", "budget": 75.0}, tc)
	require.True(t, obs.OK)
	assert.Equal(t, "u1", received["user_id"])
	assert.Equal(t, "op-1", received["operation_id"])
	assert.Equal(t, "Q4 Push", received["name"])
}

func TestPassthroughHandlerSurfacesBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":"error","error":{"code":"INVALID_BUDGET","message":"budget too low","details":{"minimum":10}}}`))
	}))
	defer srv.Close()

	reg := registry.New()
	client := backend.New(backend.Config{BaseURL: srv.URL, Retry: retry.Config{MaxRetries: 0, Base: 0, Multiplier: 1}})
	require.NoError(t, Register(reg, client, objectstore.NewMemoryClient("")))

	_, handler, err := reg.Lookup("update_budget")
	require.NoError(t, err)

	obs := handler(context.Background(), map[string]any{"campaign_id": "c-1", "budget": 1.0}, models.ToolContext{Principal: models.Principal{ID: "u1"}})
	require.False(t, obs.OK)
	assert.Equal(t, "3003", obs.Error.Code)
	assert.Equal(t, map[string]any{"minimum": float64(10)}, obs.Error.Details)
}

func TestUploadObjectStoresDataAndReturnsURL(t *testing.T) {
	reg := registry.New()
	store := objectstore.NewMemoryClient("https://media.example.com")
	require.NoError(t, Register(reg, backend.New(backend.Config{BaseURL: "http://unused"}), store))

	_, handler, err := reg.Lookup("upload_object")
	require.NoError(t, err)

	tc := models.ToolContext{Principal: models.Principal{ID: "u1"}}
	obs := handler(context.Background(), map[string]any{"key": "banner.png", "data_base64": "Zm9v", "content_type": "image/png"}, tc)
	require.True(t, obs.OK)
	data, ok := obs.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "https://media.example.com/u1/banner.png", data["url"])

	stored, ok := store.Get("u1/banner.png")
	require.True(t, ok)
	assert.Equal(t, "Zm9v", string(stored))
}

func TestUploadObjectRequiresKey(t *testing.T) {
	reg := registry.New()
	require.NoError(t, Register(reg, backend.New(backend.Config{BaseURL: "http://unused"}), objectstore.NewMemoryClient("")))
	_, handler, err := reg.Lookup("upload_object")
	require.NoError(t, err)

	obs := handler(context.Background(), map[string]any{}, models.ToolContext{})
	require.False(t, obs.OK)
	assert.Equal(t, "1001", obs.Error.Code)
}
