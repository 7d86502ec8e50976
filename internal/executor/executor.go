// Package executor implements the Executor (C8, spec.md §4.8): looks a
// tool up in the Registry, gates it through Credit, runs it through
// Retry, and always returns an Observation -- it never re-raises a tool
// failure to the kernel. Grounded on the teacher's
// internal/agent/tool_exec.go (ToolExecutor.executeWithTimeout's
// per-attempt timeout+retry wrapping a single tool call).
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adpilot-ai/agentkernel/internal/credit"
	"github.com/adpilot-ai/agentkernel/internal/errtax"
	"github.com/adpilot-ai/agentkernel/internal/registry"
	"github.com/adpilot-ai/agentkernel/internal/retry"
	"github.com/adpilot-ai/agentkernel/internal/sessions"
	"github.com/adpilot-ai/agentkernel/pkg/models"
)

// Config mirrors the teacher's ToolExecConfig (per-tool timeout, retry
// budget), trimmed to single-tool sequential execution since the
// kernel's state machine runs exactly one tool per iteration (spec.md
// §4.9), unlike the teacher's concurrent multi-tool batches.
type Config struct {
	PerToolTimeout time.Duration
	Retry          retry.Config
}

func DefaultConfig() Config {
	return Config{
		PerToolTimeout: 30 * time.Second,
		Retry:          retry.DefaultConfig(),
	}
}

// Executor runs one approved PlanStep to completion (spec.md §4.8).
type Executor struct {
	registry *registry.Registry
	gate     *credit.Gate
	store    sessions.Store
	cfg      Config
	log      *slog.Logger
}

func New(reg *registry.Registry, gate *credit.Gate, store sessions.Store, cfg Config, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{registry: reg, gate: gate, store: store, cfg: cfg, log: log}
}

// FatalError wraps a system-level failure (registry lookup miss, memory
// store unreachable) that the Executor must propagate instead of
// absorbing into a failed Observation (spec.md §4.8: "Fatal system
// errors... propagate").
type FatalError struct{ Err error }

func (e *FatalError) Error() string { return e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// Execute runs the plan's tool call and returns a normalized
// Observation. It never returns an error for a tool failure; only for
// fatal system errors (*FatalError).
func (x *Executor) Execute(ctx context.Context, sessionID string, tc models.ToolContext, action string, params map[string]any) (models.Observation, error) {
	desc, handler, err := x.registry.Lookup(action)
	if err != nil {
		return models.Observation{}, &FatalError{Err: fmt.Errorf("executor: %w", err)}
	}

	if verr := x.registry.ValidateParams(action, params); verr != nil {
		obs := observationFromError(action, verr, 0)
		if recErr := x.recordObservation(ctx, sessionID, action, params, obs); recErr != nil {
			return models.Observation{}, recErr
		}
		return obs, nil
	}

	if desc.CreditCost != nil {
		if cerr := x.gate.PreCheck(ctx, tc.Principal.ID, *desc.CreditCost, action); cerr != nil {
			obs := observationFromError(action, cerr, 0)
			if recErr := x.recordObservation(ctx, sessionID, action, params, obs); recErr != nil {
				return models.Observation{}, recErr
			}
			return obs, nil
		}
	}

	// runOnce returns KindBackendToolError only for failures the handler
	// itself flagged as retryable, so that kind is retried here too.
	classify := func(err error) bool {
		te, ok := errtax.As(err)
		return ok && (te.Retryable() || te.Kind == errtax.KindBackendToolError)
	}

	var lastObs models.Observation
	result := retry.Do(ctx, x.cfg.Retry, classify, func(attempt int) error {
		obs, rerr := x.runOnce(ctx, handler, tc, action, params)
		lastObs = obs
		lastObs.Attempts = attempt
		if rerr != nil {
			return rerr
		}
		if !obs.OK {
			// a handler-reported failure (obs.Error set) is not itself a Go
			// error to retry.Do; retry decisions for handler-level failures
			// are the handler's own responsibility via returned err above.
			return nil
		}
		return nil
	})

	if result.Err != nil {
		taxErr := classifyAsTaxonomy(result.Err)
		obs := observationFromError(action, taxErr, result.Attempts)
		if desc.CreditCost != nil {
			x.gate.SettleFailure(ctx, tc.Principal.ID, *desc.CreditCost, action, tc.OperationID, "tool_failed")
		}
		if recErr := x.recordObservation(ctx, sessionID, action, params, obs); recErr != nil {
			return models.Observation{}, recErr
		}
		return obs, nil
	}

	if lastObs.OK && desc.CreditCost != nil {
		lastObs.CreditCharged = x.gate.SettleSuccess(ctx, tc.Principal.ID, *desc.CreditCost, action, tc.OperationID, nil)
	} else if !lastObs.OK && desc.CreditCost != nil {
		x.gate.SettleFailure(ctx, tc.Principal.ID, *desc.CreditCost, action, tc.OperationID, "tool_failed")
	}

	if err := x.recordObservation(ctx, sessionID, action, params, lastObs); err != nil {
		return models.Observation{}, err
	}
	return lastObs, nil
}

func (x *Executor) runOnce(ctx context.Context, handler registry.Handler, tc models.ToolContext, action string, params map[string]any) (models.Observation, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, x.cfg.PerToolTimeout)
	defer cancel()

	type result struct {
		obs models.Observation
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{obs: models.Observation{
					Tool: action, OK: false,
					Error: &models.ObservationError{Code: string(errtax.CodeInternal), Message: fmt.Sprintf("tool panicked: %v", r), Retryable: false},
				}}
			}
		}()
		done <- result{obs: handler(attemptCtx, params, tc)}
	}()

	select {
	case <-attemptCtx.Done():
		return models.Observation{}, errtax.New(errtax.KindBackendTimeout, attemptCtx.Err(), map[string]any{"tool": action})
	case r := <-done:
		if !r.obs.OK && r.obs.Error != nil && r.obs.Error.Retryable {
			return r.obs, errtax.New(errtax.KindBackendToolError, errors.New(r.obs.Error.Message), map[string]any{"tool": action})
		}
		return r.obs, nil
	}
}

func (x *Executor) recordObservation(ctx context.Context, sessionID, action string, params map[string]any, obs models.Observation) error {
	rec := models.ToolObservationRecord{Tool: action, Params: params, Result: &obs, Timestamp: time.Now()}
	if err := x.store.RecordObservation(ctx, sessionID, rec, sessions.DefaultObservationRing, sessions.DefaultHistoryTTL); err != nil {
		return &FatalError{Err: errtax.New(errtax.KindMemoryIO, err, nil)}
	}
	return nil
}

func observationFromError(action string, err error, attempts int) models.Observation {
	te, ok := errtax.As(err)
	if !ok {
		te = errtax.New(errtax.KindBackendToolError, err, nil)
	}
	return models.Observation{
		Tool:     action,
		OK:       false,
		Attempts: attempts,
		Error: &models.ObservationError{
			Code:      string(te.Code()),
			Message:   te.Message(),
			Retryable: te.Retryable(),
			Details:   te.Details,
		},
	}
}

func classifyAsTaxonomy(err error) error {
	if _, ok := errtax.As(err); ok {
		return err
	}
	return errtax.New(errtax.KindBackendToolError, err, nil)
}
