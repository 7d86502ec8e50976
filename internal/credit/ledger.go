// Package credit implements the Credit Gate (C5, spec.md §4.5): a
// pre-check/deduct/refund gate in front of the backend's credit ledger,
// grounded on original_source/ai-orchestrator/app/services/credit_client.py
// (check_credit/deduct_credit/refund_credit over a direct HTTP API,
// idempotent via operation_id) and rendered in the teacher's retry/error
// idiom (internal/retry + errtax instead of python's backoff loop and
// exception hierarchy).
package credit

import "context"

// CheckResult is the outcome of a pre-flight balance check.
type CheckResult struct {
	Sufficient bool
	Available  float64
	Required   float64
}

// Transaction describes a completed ledger mutation.
type Transaction struct {
	TransactionID string
	BalanceAfter  float64
}

// Ledger is the backend credit ledger. Every mutating call is idempotent
// on OperationID: retrying deduct or refund with the same ID must not
// double-charge or double-refund (spec.md §4.5 invariant, §9 Open
// Question resolved in DESIGN.md).
type Ledger interface {
	Check(ctx context.Context, userID string, required float64, operationType string) (CheckResult, error)
	Deduct(ctx context.Context, userID string, amount float64, operationType, operationID string, details map[string]any) (Transaction, error)
	Refund(ctx context.Context, userID string, amount float64, operationType, operationID, reason string) (Transaction, error)
}
