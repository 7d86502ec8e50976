package builtin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adpilot-ai/agentkernel/internal/registry"
	"github.com/adpilot-ai/agentkernel/pkg/models"
)

func TestRegisterAddsDatetimeAndCalculator(t *testing.T) {
	reg := registry.New()
	require.NoError(t, Register(reg))
	assert.True(t, reg.Has("datetime"))
	assert.True(t, reg.Has("calculator"))
	assert.False(t, reg.Has("web_search"))
}

func TestDatetimeHandlerOperations(t *testing.T) {
	reg := registry.New()
	require.NoError(t, Register(reg))
	_, handler, err := reg.Lookup("datetime")
	require.NoError(t, err)

	obs := handler(context.Background(), map[string]any{"operation": "today"}, models.ToolContext{})
	require.True(t, obs.OK)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}$`, obs.Data)

	obs = handler(context.Background(), map[string]any{"operation": "offset", "offset_days": 1.0}, models.ToolContext{})
	require.True(t, obs.OK)
	expected := time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")
	assert.Equal(t, expected, obs.Data)

	obs = handler(context.Background(), map[string]any{"operation": "bogus"}, models.ToolContext{})
	require.False(t, obs.OK)
	assert.Equal(t, "1001", obs.Error.Code)
}

func TestCalculatorHandlerEvaluatesExpressions(t *testing.T) {
	reg := registry.New()
	require.NoError(t, Register(reg))
	_, handler, err := reg.Lookup("calculator")
	require.NoError(t, err)

	obs := handler(context.Background(), map[string]any{"expression": "(120 * 1.08) / 4"}, models.ToolContext{})
	require.True(t, obs.OK)
	assert.InDelta(t, 32.4, obs.Data, 0.0001)

	obs = handler(context.Background(), map[string]any{"expression": "1 / 0"}, models.ToolContext{})
	require.False(t, obs.OK)
	assert.Contains(t, obs.Error.Message, "division by zero")

	obs = handler(context.Background(), map[string]any{"expression": "(1 + 2"}, models.ToolContext{})
	require.False(t, obs.OK)
}

type fakeSearcher struct {
	results []SearchResult
	err     error
}

func (f *fakeSearcher) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	return f.results, f.err
}

func TestRegisterWebSearchReturnsResults(t *testing.T) {
	reg := registry.New()
	searcher := &fakeSearcher{results: []SearchResult{{Title: "Go", URL: "https://go.dev", Snippet: "The Go language"}}}
	require.NoError(t, RegisterWebSearch(reg, searcher))

	_, handler, err := reg.Lookup("web_search")
	require.NoError(t, err)

	obs := handler(context.Background(), map[string]any{"query": "golang"}, models.ToolContext{})
	require.True(t, obs.OK)
	assert.Equal(t, searcher.results, obs.Data)
}

func TestRegisterWebSearchRequiresQuery(t *testing.T) {
	reg := registry.New()
	require.NoError(t, RegisterWebSearch(reg, &fakeSearcher{}))
	_, handler, err := reg.Lookup("web_search")
	require.NoError(t, err)

	obs := handler(context.Background(), map[string]any{}, models.ToolContext{})
	require.False(t, obs.OK)
	assert.Equal(t, "1001", obs.Error.Code)
}

func TestRegisterWebSearchSurfacesBackendFailure(t *testing.T) {
	reg := registry.New()
	require.NoError(t, RegisterWebSearch(reg, &fakeSearcher{err: errors.New("boom")}))
	_, handler, err := reg.Lookup("web_search")
	require.NoError(t, err)

	obs := handler(context.Background(), map[string]any{"query": "golang"}, models.ToolContext{})
	require.False(t, obs.OK)
	assert.NotEmpty(t, obs.Error.Code)
}

func TestParseDuckDuckGoHTMLExtractsResults(t *testing.T) {
	html := `<div><a class="result__a" href="https://example.com/a">Example A</a></div>` +
		`<div><a class="result__a" href="https://example.com/b">Example B</a></div>`
	results := parseDuckDuckGoHTML(html, 5)
	require.Len(t, results, 2)
	assert.Equal(t, "https://example.com/a", results[0].URL)
	assert.Equal(t, "Example A", results[0].Title)
	assert.Equal(t, "https://example.com/b", results[1].URL)
}

func TestParseDuckDuckGoHTMLRespectsMaxResults(t *testing.T) {
	html := `<a class="result__a" href="https://example.com/a">A</a>` +
		`<a class="result__a" href="https://example.com/b">B</a>` +
		`<a class="result__a" href="https://example.com/c">C</a>`
	results := parseDuckDuckGoHTML(html, 2)
	assert.Len(t, results, 2)
}
