package builtin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/adpilot-ai/agentkernel/internal/errtax"
	"github.com/adpilot-ai/agentkernel/internal/registry"
	"github.com/adpilot-ai/agentkernel/pkg/models"
)

// SearchResult is one entry of a web search response, grounded on the
// teacher's websearch.SearchResult (internal/tools/websearch/search.go),
// trimmed to the single DuckDuckGo HTML backend the kernel needs rather
// than the teacher's pluggable SearXNG/DuckDuckGo/Brave backend set.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// WebSearcher performs a web search. DuckDuckGoSearcher is the default
// production implementation; tests substitute a fake.
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

// DuckDuckGoSearcher calls DuckDuckGo's lite HTML endpoint, which needs
// no API key -- the same no-credentials default the teacher's
// websearch.Config.DefaultBackend favors.
type DuckDuckGoSearcher struct {
	client *http.Client
}

func NewDuckDuckGoSearcher(timeout time.Duration) *DuckDuckGoSearcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DuckDuckGoSearcher{client: &http.Client{Timeout: timeout}}
}

func (s *DuckDuckGoSearcher) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	endpoint := "https://duckduckgo.com/html/?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errtax.New(errtax.KindBackendConnection, err, map[string]any{"query": query})
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return nil, errtax.New(errtax.KindBackendConnection, fmt.Errorf("search backend returned %d", resp.StatusCode), nil)
	}
	if resp.StatusCode >= 400 {
		return nil, errtax.New(errtax.KindBackendToolError, fmt.Errorf("search backend returned %d", resp.StatusCode), nil)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, errtax.New(errtax.KindBackendConnection, err, nil)
	}
	return parseDuckDuckGoHTML(string(body), maxResults), nil
}

// RegisterWebSearch adds the web_search tool backed by searcher.
func RegisterWebSearch(reg *registry.Registry, searcher WebSearcher) error {
	handler := func(ctx context.Context, params map[string]any, tc models.ToolContext) models.Observation {
		query, _ := params["query"].(string)
		if query == "" {
			return models.Observation{Tool: "web_search", OK: false, Error: &models.ObservationError{
				Code: "1001", Message: "query is required", Retryable: false,
			}}
		}
		maxResults := int(numberParam(params, "max_results"))
		if maxResults <= 0 {
			maxResults = 5
		}
		results, err := searcher.Search(ctx, query, maxResults)
		if err != nil {
			te, ok := errtax.As(err)
			if !ok {
				te = errtax.New(errtax.KindBackendConnection, err, nil)
			}
			return models.Observation{Tool: "web_search", OK: false, Error: &models.ObservationError{
				Code: string(te.Code()), Message: te.Message(), Retryable: te.Retryable(),
			}}
		}
		return models.Observation{Tool: "web_search", OK: true, Data: results}
	}
	return reg.Register(webSearchDescriptor(), handler)
}

func parseDuckDuckGoHTML(html string, maxResults int) []SearchResult {
	var results []SearchResult
	const marker = `class="result__a"`
	pos := 0
	for len(results) < maxResults {
		idx := indexFrom(html, marker, pos)
		if idx < 0 {
			break
		}
		hrefStart := indexFrom(html, `href="`, idx)
		if hrefStart < 0 {
			break
		}
		hrefStart += len(`href="`)
		hrefEnd := indexFrom(html, `"`, hrefStart)
		if hrefEnd < 0 {
			break
		}
		titleStart := indexFrom(html, ">", hrefEnd) + 1
		titleEnd := indexFrom(html, "</a>", titleStart)
		if titleStart <= 0 || titleEnd < 0 {
			break
		}
		results = append(results, SearchResult{
			URL:   stripTags(html[hrefStart:hrefEnd]),
			Title: stripTags(html[titleStart:titleEnd]),
		})
		pos = titleEnd + 1
	}
	return results
}

func indexFrom(s, substr string, from int) int {
	if from < 0 || from > len(s) {
		return -1
	}
	i := strings.Index(s[from:], substr)
	if i < 0 {
		return -1
	}
	return from + i
}

func stripTags(s string) string {
	var out []byte
	inTag := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			inTag = true
		case '>':
			inTag = false
		default:
			if !inTag {
				out = append(out, s[i])
			}
		}
	}
	return string(out)
}
