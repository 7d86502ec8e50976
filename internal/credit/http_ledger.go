package credit

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
)

// HTTPLedgerConfig configures HTTPLedger, mirroring the venice provider's
// VeniceConfig shape (internal/providers/venice/venice.go): base URL,
// bearer token, timeout, and an overridable retry policy.
type HTTPLedgerConfig struct {
	BaseURL      string
	ServiceToken string
	Timeout      time.Duration
	Retry        retry.Config
}

// HTTPLedger calls the backend's credit API directly (not through the
// tool registry), grounded on
// original_source/ai-orchestrator/app/services/credit_client.py's
// check/deduct/refund endpoints, with retry handled by internal/retry
// instead of the python client's hand-rolled backoff loop.
type HTTPLedger struct {
	cfg    HTTPLedgerConfig
	client *http.Client
}

func NewHTTPLedger(cfg HTTPLedgerConfig) *HTTPLedger {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HTTPLedger{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type checkRequest struct {
	UserID        string  `json:"user_id"`
	Amount        float64 `json:"amount"`
	OperationType string  `json:"operation_type,omitempty"`
}

type checkResponse struct {
	Sufficient bool    `json:"sufficient"`
	Available  float64 `json:"available"`
}

func (l *HTTPLedger) Check(ctx context.Context, userID string, required float64, operationType string) (CheckResult, error) {
	var resp checkResponse
	err := l.doJSON(ctx, "/api/v1/credits/check", checkRequest{
		UserID:        userID,
		Amount:        required,
		OperationType: operationType,
	}, &resp)
	if err != nil {
		return CheckResult{}, err
	}
	return CheckResult{Sufficient: resp.Sufficient, Available: resp.Available, Required: required}, nil
}

type mutateRequest struct {
	UserID        string         `json:"user_id"`
	Amount        float64        `json:"amount"`
	OperationType string         `json:"operation_type"`
	OperationID   string         `json:"operation_id,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
	Reason        string         `json:"reason,omitempty"`
}

type mutateResponse struct {
	TransactionID string  `json:"transaction_id"`
	BalanceAfter  float64 `json:"balance_after"`
}

func (l *HTTPLedger) Deduct(ctx context.Context, userID string, amount float64, operationType, operationID string, details map[string]any) (Transaction, error) {
	var resp mutateResponse
	err := l.doJSON(ctx, "/api/v1/credits/deduct", mutateRequest{
		UserID:        userID,
		Amount:        amount,
		OperationType: operationType,
		OperationID:   operationID,
		Details:       details,
	}, &resp)
	if err != nil {
		return Transaction{}, err
	}
	return Transaction{TransactionID: resp.TransactionID, BalanceAfter: resp.BalanceAfter}, nil
}

func (l *HTTPLedger) Refund(ctx context.Context, userID string, amount float64, operationType, operationID, reason string) (Transaction, error) {
	var resp mutateResponse
	err := l.doJSON(ctx, "/api/v1/credits/refund", mutateRequest{
		UserID:        userID,
		Amount:        amount,
		OperationType: operationType,
		OperationID:   operationID,
		Reason:        reason,
	}, &resp)
	if err != nil {
		return Transaction{}, err
	}
	return Transaction{TransactionID: resp.TransactionID, BalanceAfter: resp.BalanceAfter}, nil
}

// apiError mirrors the {"error": {"code", "message"}} envelope the python
// client parses.
type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (l *HTTPLedger) doJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errtax.New(errtax.KindValidation, err, nil)
	}

	classify := func(err error) bool {
		te, ok := errtax.As(err)
		return ok && te.Retryable()
	}

	_, result := retry.DoWithValue(ctx, l.cfg.Retry, classify, func(attempt int) (struct{}, error) {
		return struct{}{}, l.doOnce(ctx, path, payload, out)
	})
	return result.Err
}

func (l *HTTPLedger) doOnce(ctx context.Context, path string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errtax.New(errtax.KindValidation, err, nil)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+l.cfg.ServiceToken)

	resp, err := l.client.Do(req)
	if err != nil {
		return errtax.New(errtax.KindLedgerUnavailable, err, nil)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errtax.New(errtax.KindLedgerUnavailable, err, nil)
	}

	switch {
	case resp.StatusCode >= 500:
		return errtax.New(errtax.KindLedgerUnavailable, fmt.Errorf("credit API: HTTP %d", resp.StatusCode), nil)
	case resp.StatusCode == 400:
		var apiErr apiError
		_ = json.Unmarshal(body, &apiErr)
		if apiErr.Error.Code == "INSUFFICIENT_CREDITS" {
			return errtax.New(errtax.KindInsufficientCredit, nil, map[string]any{"message": apiErr.Error.Message})
		}
		return errtax.New(errtax.KindLedgerUnavailable, fmt.Errorf("credit API: %s", apiErr.Error.Message), nil)
	case resp.StatusCode == 200, resp.StatusCode == 201:
		if out != nil {
			if err := json.Unmarshal(body, out); err != nil {
				return errtax.New(errtax.KindLedgerUnavailable, fmt.Errorf("decode credit API response: %w", err), nil)
			}
		}
		return nil
	default:
		return errtax.New(errtax.KindLedgerUnavailable, fmt.Errorf("credit API: unexpected status %d", resp.StatusCode), nil)
	}
}
