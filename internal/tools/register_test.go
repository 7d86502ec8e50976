package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adpilot-ai/agentkernel/internal/backend"
	"github.com/adpilot-ai/agentkernel/internal/llm"
	"github.com/adpilot-ai/agentkernel/internal/objectstore"
	"github.com/adpilot-ai/agentkernel/internal/registry"
	"github.com/adpilot-ai/agentkernel/internal/tools/builtin"
)

type noopProvider struct{}

func (noopProvider) Name() string { return "noop" }
func (noopProvider) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	return "{}", nil
}

type noopSearcher struct{}

func (noopSearcher) Search(ctx context.Context, query string, maxResults int) ([]builtin.SearchResult, error) {
	return nil, nil
}

func TestRegisterAllAddsEveryToolClass(t *testing.T) {
	reg := registry.New()
	deps := Deps{
		Provider:      noopProvider{},
		Model:         "claude-3",
		BackendClient: backend.New(backend.Config{BaseURL: "http://unused"}),
		ObjectStore:   objectstore.NewMemoryClient(""),
		WebSearcher:   noopSearcher{},
	}
	require.NoError(t, RegisterAll(reg, deps))

	for _, name := range []string{
		"datetime", "calculator", "web_search",
		"generate_ad_copy", "translate_content",
		"create_campaign", "get_reports", "upload_object",
	} {
		assert.True(t, reg.Has(name), name)
	}
}
