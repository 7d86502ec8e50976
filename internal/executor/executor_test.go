package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adpilot-ai/agentkernel/internal/credit"
	"github.com/adpilot-ai/agentkernel/internal/errtax"
	"github.com/adpilot-ai/agentkernel/internal/registry"
	"github.com/adpilot-ai/agentkernel/internal/retry"
	"github.com/adpilot-ai/agentkernel/internal/sessions"
	"github.com/adpilot-ai/agentkernel/pkg/models"
)

type fakeLedger struct {
	sufficient bool
	deductErr  error
}

func (f *fakeLedger) Check(ctx context.Context, userID string, required float64, operationType string) (credit.CheckResult, error) {
	return credit.CheckResult{Sufficient: f.sufficient, Available: 1000, Required: required}, nil
}
func (f *fakeLedger) Deduct(ctx context.Context, userID string, amount float64, operationType, operationID string, details map[string]any) (credit.Transaction, error) {
	return credit.Transaction{TransactionID: "t1", BalanceAfter: 1000 - amount}, f.deductErr
}
func (f *fakeLedger) Refund(ctx context.Context, userID string, amount float64, operationType, operationID, reason string) (credit.Transaction, error) {
	return credit.Transaction{}, nil
}

func newTestExecutor(t *testing.T, reg *registry.Registry, ledger *fakeLedger) (*Executor, sessions.Store) {
	t.Helper()
	store := sessions.NewMemoryStore()
	gate := credit.NewGate(ledger, nil)
	cfg := DefaultConfig()
	cfg.Retry.MaxRetries = 1
	cfg.Retry.Base = time.Millisecond
	return New(reg, gate, store, cfg, nil), store
}

func TestExecuteSuccessDeductsCreditAndRecordsObservation(t *testing.T) {
	cost := 5.0
	reg := registry.New()
	require.NoError(t, reg.Register(models.ToolDescriptor{Name: "generate_ad_copy", CreditCost: &cost},
		func(ctx context.Context, params map[string]any, tc models.ToolContext) models.Observation {
			return models.Observation{Tool: "generate_ad_copy", OK: true, Data: "great ad copy"}
		}))
	exec, store := newTestExecutor(t, reg, &fakeLedger{sufficient: true})

	obs, err := exec.Execute(context.Background(), "sess-1", models.ToolContext{Principal: models.Principal{ID: "u1"}}, "generate_ad_copy", map[string]any{})
	require.NoError(t, err)
	assert.True(t, obs.OK)
	assert.Equal(t, 5.0, obs.CreditCharged)

	recs, rerr := store.LoadObservations(context.Background(), "sess-1")
	require.NoError(t, rerr)
	require.Len(t, recs, 1)
	assert.Equal(t, "generate_ad_copy", recs[0].Tool)
}

func TestExecuteFreeToolBypassesCreditGate(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(models.ToolDescriptor{Name: "datetime"},
		func(ctx context.Context, params map[string]any, tc models.ToolContext) models.Observation {
			return models.Observation{Tool: "datetime", OK: true, Data: "2026-07-30"}
		}))
	exec, _ := newTestExecutor(t, reg, &fakeLedger{sufficient: false})

	obs, err := exec.Execute(context.Background(), "sess-1", models.ToolContext{Principal: models.Principal{ID: "u1"}}, "datetime", map[string]any{})
	require.NoError(t, err)
	assert.True(t, obs.OK)
	assert.Equal(t, 0.0, obs.CreditCharged)
}

func TestExecuteInsufficientCreditNeverCallsHandler(t *testing.T) {
	cost := 10.0
	handlerCalled := false
	reg := registry.New()
	require.NoError(t, reg.Register(models.ToolDescriptor{Name: "generate_page_content_tool", CreditCost: &cost},
		func(ctx context.Context, params map[string]any, tc models.ToolContext) models.Observation {
			handlerCalled = true
			return models.Observation{OK: true}
		}))
	exec, _ := newTestExecutor(t, reg, &fakeLedger{sufficient: false})

	obs, err := exec.Execute(context.Background(), "sess-1", models.ToolContext{Principal: models.Principal{ID: "u1"}}, "generate_page_content_tool", map[string]any{})
	require.NoError(t, err)
	assert.False(t, obs.OK)
	require.NotNil(t, obs.Error)
	assert.Equal(t, string(errtax.CodeInsufficientCredit), obs.Error.Code)
	assert.False(t, handlerCalled)
}

func TestExecuteUnknownToolIsFatal(t *testing.T) {
	reg := registry.New()
	exec, _ := newTestExecutor(t, reg, &fakeLedger{sufficient: true})

	_, err := exec.Execute(context.Background(), "sess-1", models.ToolContext{}, "missing_tool", nil)
	require.Error(t, err)
	var fatal *FatalError
	assert.ErrorAs(t, err, &fatal)
}

func TestExecuteHandlerFailureDoesNotDeductAndRetriesRetryableErrors(t *testing.T) {
	cost := 3.0
	attempts := 0
	reg := registry.New()
	require.NoError(t, reg.Register(models.ToolDescriptor{Name: "fetch_report", CreditCost: &cost},
		func(ctx context.Context, params map[string]any, tc models.ToolContext) models.Observation {
			attempts++
			return models.Observation{OK: false, Error: &models.ObservationError{Code: "3000", Message: "backend down", Retryable: true}}
		}))
	exec, _ := newTestExecutor(t, reg, &fakeLedger{sufficient: true})

	obs, err := exec.Execute(context.Background(), "sess-1", models.ToolContext{Principal: models.Principal{ID: "u1"}}, "fetch_report", map[string]any{})
	require.NoError(t, err)
	assert.False(t, obs.OK)
	assert.Equal(t, 0.0, obs.CreditCharged)
	assert.Equal(t, 2, attempts) // MaxRetries=1 => 2 total attempts
}

func TestExecuteDeductFailureDoesNotUnwindSuccessfulObservation(t *testing.T) {
	cost := 4.0
	reg := registry.New()
	require.NoError(t, reg.Register(models.ToolDescriptor{Name: "generate_ad_copy", CreditCost: &cost},
		func(ctx context.Context, params map[string]any, tc models.ToolContext) models.Observation {
			return models.Observation{OK: true, Data: "ok"}
		}))
	exec, _ := newTestExecutor(t, reg, &fakeLedger{sufficient: true, deductErr: errors.New("ledger down")})

	obs, err := exec.Execute(context.Background(), "sess-1", models.ToolContext{Principal: models.Principal{ID: "u1"}}, "generate_ad_copy", map[string]any{})
	require.NoError(t, err)
	assert.True(t, obs.OK)
	assert.Equal(t, 0.0, obs.CreditCharged) // SettleSuccess returns 0 on deduct failure
}

func TestExecuteRetryConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, retry.DefaultConfig().MaxRetries, cfg.Retry.MaxRetries)
}

func TestExecuteMissingRequiredParamFailsValidationWithoutCallingHandlerOrGate(t *testing.T) {
	cost := 5.0
	handlerCalled := false
	reg := registry.New()
	require.NoError(t, reg.Register(models.ToolDescriptor{
		Name:       "generate_ad_copy",
		CreditCost: &cost,
		Parameters: []models.Parameter{{Name: "product", Type: models.ParamString, Required: true}},
	}, func(ctx context.Context, params map[string]any, tc models.ToolContext) models.Observation {
		handlerCalled = true
		return models.Observation{OK: true}
	}))
	exec, _ := newTestExecutor(t, reg, &fakeLedger{sufficient: true})

	obs, err := exec.Execute(context.Background(), "sess-1", models.ToolContext{Principal: models.Principal{ID: "u1"}}, "generate_ad_copy", map[string]any{})
	require.NoError(t, err)
	assert.False(t, obs.OK)
	require.NotNil(t, obs.Error)
	assert.Equal(t, string(errtax.CodeValidation), obs.Error.Code)
	assert.False(t, handlerCalled)
	assert.Equal(t, 0.0, obs.CreditCharged)
}

func TestExecuteWrongParamTypeFailsValidation(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(models.ToolDescriptor{
		Name:       "update_budget",
		Parameters: []models.Parameter{{Name: "budget", Type: models.ParamNumber, Required: true}},
	}, func(ctx context.Context, params map[string]any, tc models.ToolContext) models.Observation {
		return models.Observation{OK: true}
	}))
	exec, _ := newTestExecutor(t, reg, &fakeLedger{sufficient: true})

	obs, err := exec.Execute(context.Background(), "sess-1", models.ToolContext{Principal: models.Principal{ID: "u1"}}, "update_budget", map[string]any{"budget": "a lot"})
	require.NoError(t, err)
	assert.False(t, obs.OK)
	require.NotNil(t, obs.Error)
	assert.Equal(t, string(errtax.CodeValidation), obs.Error.Code)
}
