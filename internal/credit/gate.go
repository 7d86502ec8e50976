package credit

import (
	"context"
	"log/slog"

	"github.com/adpilot-ai/agentkernel/internal/errtax"
	"github.com/adpilot-ai/agentkernel/internal/observability"
)

// Gate wraps a Ledger with the pre-check/deduct/refund sequencing spec.md
// §4.5 requires around every credit-bearing tool invocation. Tools with a
// nil cost bypass the gate entirely (§4.5: "Tools with null credit_cost
// bypass the gate entirely").
type Gate struct {
	ledger  Ledger
	log     *slog.Logger
	metrics *observability.Metrics
}

func NewGate(ledger Ledger, log *slog.Logger) *Gate {
	if log == nil {
		log = slog.Default()
	}
	return &Gate{ledger: ledger, log: log}
}

// WithMetrics attaches the ambient credit-deduction counters; callers
// that never set this (every existing test) get a Gate that behaves
// exactly as before.
func (g *Gate) WithMetrics(m *observability.Metrics) *Gate {
	g.metrics = m
	return g
}

// PreCheck asks the ledger whether userID can afford cost. It returns an
// errtax KindInsufficientCredit error carrying {required, available} on
// insufficient balance (spec.md §4.5 step 1).
func (g *Gate) PreCheck(ctx context.Context, userID string, cost float64, operationType string) error {
	result, err := g.ledger.Check(ctx, userID, cost, operationType)
	if err != nil {
		return err
	}
	if !result.Sufficient {
		return errtax.New(errtax.KindInsufficientCredit, nil, map[string]any{
			"required":  cost,
			"available": result.Available,
		})
	}
	return nil
}

// SettleSuccess deducts exactly cost after a successful tool run (spec.md
// §4.5 step 3). A deduction failure is logged, never unwinds the tool
// result, and relies on the ledger's idempotent operation_id to
// reconcile later (§4.5: "deduction failure... does not unwind the tool
// result").
func (g *Gate) SettleSuccess(ctx context.Context, userID string, cost float64, operationType, operationID string, details map[string]any) float64 {
	txn, err := g.ledger.Deduct(ctx, userID, cost, operationType, operationID, details)
	if err != nil {
		g.log.Warn("credit: deduct failed after successful tool run, relying on ledger reconciliation",
			"user_id", userID, "operation_id", operationID, "operation_type", operationType, "error", err)
		return 0
	}
	_ = txn
	if g.metrics != nil {
		g.metrics.RecordCreditDeduction(operationType, cost)
	}
	return cost
}

// SettleFailure releases any reservation made by PreCheck when the tool
// itself fails (spec.md §4.5 step 3: "on failure, do not deduct; if
// pre-check had reserved, release"). The HTTP ledger's Check is a
// read-only query with no reservation side effect, so this is a no-op
// today; it exists so a ledger backend that does reserve has a release
// point to call through the same Gate API.
func (g *Gate) SettleFailure(ctx context.Context, userID string, cost float64, operationType, operationID, reason string) {
	// no-op: see doc comment.
}
