// Package backend is the HTTP client shared by every external-proxy tool
// (spec.md §4.10, §6): one backend endpoint per tool name, JSON body
// `{user_id, <tool params>}`, response `{status, data | error:{code,
// message, details}}`. Grounded on the teacher's venice provider client
// shape, reusing the same retry-wrapped-doJSON pattern as
// internal/credit/http_ledger.go since the ledger is, per spec.md §4.10,
// "just another backend endpoint".
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/adpilot-ai/agentkernel/internal/errtax"
	"github.com/adpilot-ai/agentkernel/internal/retry"
	"golang.org/x/time/rate"
)

// Config configures Client. PerHostRate/Burst bound outbound concurrency
// to the single shared pool spec.md §5 calls for per (backend, process).
type Config struct {
	BaseURL      string
	ServiceToken string
	Timeout      time.Duration
	Retry        retry.Config
	PerHostRate  float64
	PerHostBurst int
}

// Client calls the backend's per-tool endpoints directly.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PerHostRate <= 0 {
		cfg.PerHostRate = 20
	}
	if cfg.PerHostBurst <= 0 {
		cfg.PerHostBurst = 20
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     100,
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout, Transport: transport},
		limiter: rate.NewLimiter(rate.Limit(cfg.PerHostRate), cfg.PerHostBurst),
	}
}

// envelope is the response shape every tool endpoint returns.
type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *toolError      `json:"error"`
}

type toolError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Call invokes the endpoint for toolName with {user_id, params...} and
// decodes the "data" field of a successful response into out. It never
// returns a raw transport error; every failure is an *errtax.Error,
// except that a cancelled or expired ctx is returned as ctx.Err().
func (c *Client) Call(ctx context.Context, toolName, userID string, params map[string]any, out any) error {
	body := map[string]any{"user_id": userID}
	for k, v := range params {
		body[k] = v
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return errtax.New(errtax.KindValidation, err, nil)
	}

	classify := func(err error) bool {
		te, ok := errtax.As(err)
		return ok && te.Retryable()
	}

	_, result := retry.DoWithValue(ctx, c.cfg.Retry, classify, func(attempt int) (struct{}, error) {
		return struct{}{}, c.callOnce(ctx, toolName, payload, out)
	})
	return result.Err
}

func (c *Client) callOnce(ctx context.Context, toolName string, payload []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errtax.New(errtax.KindBackendConnection, err, nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/tools/"+toolName, bytes.NewReader(payload))
	if err != nil {
		return errtax.New(errtax.KindValidation, err, nil)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.ServiceToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return errtax.New(errtax.KindBackendConnection, err, map[string]any{"tool": toolName})
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errtax.New(errtax.KindBackendConnection, err, map[string]any{"tool": toolName})
	}

	if resp.StatusCode >= 500 {
		return errtax.New(errtax.KindBackendConnection, fmt.Errorf("backend tool %s: HTTP %d", toolName, resp.StatusCode), nil)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return errtax.New(errtax.KindBackendToolError, fmt.Errorf("decode backend tool %s response: %w", toolName, err), nil)
	}

	if resp.StatusCode >= 400 {
		if env.Error != nil {
			return errtax.New(errtax.KindBackendToolError, fmt.Errorf("%s", env.Error.Message), env.Error.Details)
		}
		return errtax.New(errtax.KindBackendToolError, fmt.Errorf("backend tool %s: HTTP %d", toolName, resp.StatusCode), nil)
	}

	if env.Error != nil {
		return errtax.New(errtax.KindBackendToolError, fmt.Errorf("%s", env.Error.Message), env.Error.Details)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return errtax.New(errtax.KindBackendToolError, fmt.Errorf("decode backend tool %s data: %w", toolName, err), nil)
		}
	}
	return nil
}
