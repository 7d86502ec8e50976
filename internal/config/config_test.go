package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadExpandsEnvVarsInYAML(t *testing.T) {
	t.Setenv("TEST_BACKEND_TOKEN", "secret-123")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend:
  api_url: https://backend.internal
  service_token: ${TEST_BACKEND_TOKEN}
credit_ledger:
  url: https://ledger.internal
llm:
  anthropic_api_key: test-key
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-123", cfg.Backend.ServiceToken)
	assert.Equal(t, "https://backend.internal", cfg.Backend.APIURL)
	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
}

func TestLoadFallsBackToEnvironmentVariables(t *testing.T) {
	t.Setenv("BACKEND_API_URL", "https://backend.from-env")
	t.Setenv("CREDIT_LEDGER_URL", "https://ledger.from-env")
	t.Setenv("ANTHROPIC_API_KEY", "env-key")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://backend.from-env", cfg.Backend.APIURL)
	assert.Equal(t, "https://ledger.from-env", cfg.CreditLedger.URL)
	assert.Equal(t, "env-key", cfg.LLM.AnthropicAPIKey)
}

func TestLoadRejectsMissingRequiredFields(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Setenv("BACKEND_API_URL", "https://backend.internal")
	t.Setenv("CREDIT_LEDGER_URL", "https://ledger.internal")
	t.Setenv("ANTHROPIC_API_KEY", "k")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bogus_field: true\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
