package credit

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adpilot-ai/agentkernel/internal/errtax"
	"github.com/adpilot-ai/agentkernel/internal/observability"
)

type fakeLedger struct {
	checkResult CheckResult
	checkErr    error
	deductErr   error
	deductTxn   Transaction
	deductCalls int
}

func (f *fakeLedger) Check(ctx context.Context, userID string, required float64, operationType string) (CheckResult, error) {
	return f.checkResult, f.checkErr
}

func (f *fakeLedger) Deduct(ctx context.Context, userID string, amount float64, operationType, operationID string, details map[string]any) (Transaction, error) {
	f.deductCalls++
	return f.deductTxn, f.deductErr
}

func (f *fakeLedger) Refund(ctx context.Context, userID string, amount float64, operationType, operationID, reason string) (Transaction, error) {
	return Transaction{}, nil
}

func TestGatePreCheckSufficientPasses(t *testing.T) {
	ledger := &fakeLedger{checkResult: CheckResult{Sufficient: true, Available: 100}}
	gate := NewGate(ledger, nil)

	err := gate.PreCheck(context.Background(), "user-1", 10, "generate_ad_copy")
	require.NoError(t, err)
}

func TestGatePreCheckInsufficientReturnsTaxonomyError(t *testing.T) {
	ledger := &fakeLedger{checkResult: CheckResult{Sufficient: false, Available: 2}}
	gate := NewGate(ledger, nil)

	err := gate.PreCheck(context.Background(), "user-1", 10, "generate_page_content")
	require.Error(t, err)

	te, ok := errtax.As(err)
	require.True(t, ok)
	assert.Equal(t, errtax.KindInsufficientCredit, te.Kind)
	assert.Equal(t, errtax.CodeInsufficientCredit, te.Code())
	assert.Equal(t, 10.0, te.Details["required"])
	assert.Equal(t, 2.0, te.Details["available"])
}

func TestGateSettleSuccessDeducts(t *testing.T) {
	ledger := &fakeLedger{deductTxn: Transaction{TransactionID: "t1", BalanceAfter: 90}}
	gate := NewGate(ledger, nil)

	charged := gate.SettleSuccess(context.Background(), "user-1", 10, "generate_ad_copy", "op-1", nil)
	assert.Equal(t, 10.0, charged)
	assert.Equal(t, 1, ledger.deductCalls)
}

func TestGateSettleSuccessDeductFailureDoesNotPanicOrUnwind(t *testing.T) {
	ledger := &fakeLedger{deductErr: errors.New("ledger down")}
	gate := NewGate(ledger, nil)

	charged := gate.SettleSuccess(context.Background(), "user-1", 10, "generate_ad_copy", "op-1", nil)
	assert.Equal(t, 0.0, charged)
}

func TestGateSettleSuccessRecordsCreditMetricWhenAttached(t *testing.T) {
	ledger := &fakeLedger{deductTxn: Transaction{TransactionID: "t1", BalanceAfter: 90}}
	metrics := observability.NewMetricsOn(prometheus.NewRegistry())
	gate := NewGate(ledger, nil).WithMetrics(metrics)

	gate.SettleSuccess(context.Background(), "user-1", 10, "generate_ad_copy", "op-1", nil)

	if count := testutil.CollectAndCount(metrics.CreditDeductionCounter); count != 1 {
		t.Fatalf("expected credit deduction to be recorded, got %d label combinations", count)
	}
}

func TestGateSettleSuccessSkipsMetricOnDeductFailure(t *testing.T) {
	ledger := &fakeLedger{deductErr: errors.New("ledger down")}
	metrics := observability.NewMetricsOn(prometheus.NewRegistry())
	gate := NewGate(ledger, nil).WithMetrics(metrics)

	gate.SettleSuccess(context.Background(), "user-1", 10, "generate_ad_copy", "op-1", nil)

	if count := testutil.CollectAndCount(metrics.CreditDeductionCounter); count != 0 {
		t.Fatalf("expected no metric recorded on deduct failure, got %d", count)
	}
}
