// Package kernel implements the Agent Kernel (C9, spec.md §4.9): the
// driver that loads session memory, runs the PLAN -> EVALUATE -> BRANCH
// state machine, and streams typed events until the plan completes,
// suspends for human input, or the iteration cap is hit. Grounded on the
// teacher's internal/agent/loop.go driving loop, generalized from its
// concurrent multi-tool-call runtime to the spec's strictly sequential
// one-tool-per-iteration state machine.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/adpilot-ai/agentkernel/internal/errtax"
	"github.com/adpilot-ai/agentkernel/internal/executor"
	"github.com/adpilot-ai/agentkernel/internal/observability"
	"github.com/adpilot-ai/agentkernel/internal/registry"
	"github.com/adpilot-ai/agentkernel/internal/sessions"
	"github.com/adpilot-ai/agentkernel/pkg/models"
)

// DefaultMaxIterations matches spec.md §4.9.
const DefaultMaxIterations = 10

// planStepper is the narrow seam the Kernel needs from the Planner
// (C6), satisfied by *planner.Planner.
type planStepper interface {
	Plan(ctx context.Context, userMessage string, history []models.Message, observations []models.ToolObservationRecord, modelPreference string) models.PlanStep
}

// gatekeeper is the narrow seam the Kernel needs from the Evaluator
// (C7), satisfied by *evaluator.Evaluator.
type gatekeeper interface {
	Evaluate(ctx context.Context, step models.PlanStep, userMessage string, history []models.Message) models.Evaluation
}

// runner is the narrow seam the Kernel needs from the Executor (C8),
// satisfied by *executor.Executor.
type runner interface {
	Execute(ctx context.Context, sessionID string, tc models.ToolContext, action string, params map[string]any) (models.Observation, error)
}

// Deps bundles the Kernel's collaborators, each implementing exactly
// one of C1-C8. Narrow interfaces rather than the concrete package
// types let tests substitute fakes for Planner/Eval/Exec without
// standing up an LLM provider, registry, or credit ledger.
type Deps struct {
	Store    sessions.Store
	Locker   sessions.Locker
	Planner  planStepper
	Eval     gatekeeper
	Exec     runner
	MaxIters int

	// Tracer and Metrics are the ambient instrumentation hooks (nil-safe:
	// a zero-value Deps keeps running the kernel without any collector
	// configured, which is what every existing test does).
	Tracer  *observability.Tracer
	Metrics *observability.Metrics
}

// Kernel is the public entry point (spec.md §4.9's run()).
type Kernel struct {
	deps Deps
}

func New(deps Deps) *Kernel {
	if deps.MaxIters <= 0 {
		deps.MaxIters = DefaultMaxIterations
	}
	return &Kernel{deps: deps}
}

// Run executes spec.md §4.9's state machine for one inbound request. It
// blocks until the run reaches a terminal state (DONE, SUSPENDED, or a
// fatal error), emitting events to em throughout.
func (k *Kernel) Run(ctx context.Context, em Emitter, principal models.Principal, sessionID, userMessage string, resume *models.ResumeAnswer) {
	release, err := k.deps.Locker.Lock(ctx, sessionID)
	if err != nil {
		k.emitTaxonomyError(em, err)
		return
	}
	defer release()

	state, err := k.deps.Store.LoadState(ctx, sessionID)
	if err != nil {
		emitErrorAndDone(em, string(errtax.CodeDB), "session storage is unavailable", true, "", "", nil)
		return
	}
	if state == nil {
		state = &models.ExecutionState{Phase: models.PhaseIdle}
	}

	if resume != nil && state.Phase == models.PhaseSuspended {
		k.resume(ctx, em, principal, sessionID, state, resume)
		return
	}

	if err := k.appendUserMessage(ctx, sessionID, userMessage); err != nil {
		emitErrorAndDone(em, string(errtax.CodeDB), "session storage is unavailable", true, "", "", nil)
		return
	}

	state = &models.ExecutionState{Phase: models.PhasePlanning, Iteration: 0, OriginalGoal: userMessage}
	k.loop(ctx, em, principal, sessionID, state, userMessage)
}

// resume merges the caller's answer into the suspended plan and
// executes it directly (spec.md §4.9 "Resume path"); it does not
// re-invoke the Evaluator, since the decision that triggered suspension
// would otherwise fire again on the same action and suspend forever.
func (k *Kernel) resume(ctx context.Context, em Emitter, principal models.Principal, sessionID string, state *models.ExecutionState, answer *models.ResumeAnswer) {
	if state.PendingPlan == nil {
		emitErrorAndDone(em, string(errtax.CodeInternal), "no pending plan to resume", false, "", "", nil)
		return
	}

	if answer.Cancelled {
		state.Phase = models.PhaseDone
		state.PendingPlan = nil
		state.PendingEval = nil
		_ = k.deps.Store.SaveState(ctx, sessionID, *state, sessions.DefaultStateTTL)
		emitText(em, "Okay, I've cancelled that action.")
		emitDone(em)
		return
	}

	plan := mergeResumeAnswer(*state.PendingPlan, state.PendingEval, answer)
	state.PendingPlan = nil
	state.PendingEval = nil
	state.Phase = models.PhaseExecuting

	// The suspended evaluation already decided this step needs a human
	// answer; once supplied, the step executes directly rather than
	// re-entering the decision table (spec.md §4.9 resume path), since a
	// high-risk or over-threshold action would otherwise trip the same
	// rule again and suspend forever.
	if !k.executeAction(ctx, em, principal, sessionID, state, plan) {
		return
	}
	k.loop(ctx, em, principal, sessionID, state, state.OriginalGoal)
}

// mergeResumeAnswer applies the caller's answer to the suspended plan's
// parameters (spec.md §4.9): confirm means proceed as-is; select/input
// overwrite the targeted parameter.
func mergeResumeAnswer(plan models.PlanStep, eval *models.Evaluation, answer *models.ResumeAnswer) models.PlanStep {
	if eval == nil || eval.Kind == models.EvalKindConfirm {
		return plan
	}

	// the Evaluator quotes the targeted parameter name in Reason for
	// ambiguous-value selects and in Question for every select/input
	// evaluation (spec.md §4.7); each names exactly one parameter.
	target := targetParamFromReason(eval.Reason)
	if target == "" {
		target = targetParamFromReason(eval.Question)
	}
	if target == "" {
		return plan
	}

	if plan.ActionInput == nil {
		plan.ActionInput = map[string]any{}
	}
	switch {
	case answer.SelectedOption != "" && answer.SelectedOption != models.OptionOther:
		plan.ActionInput[target] = answer.SelectedOption
	case answer.CustomValue != "":
		plan.ActionInput[target] = answer.CustomValue
	case answer.Value != nil:
		plan.ActionInput[target] = answer.Value
	}
	return plan
}

func targetParamFromReason(reason string) string {
	// Returns the first double-quoted substring, or "" if there is none.
	// Reason strings are of the form `"param" value "x" is too generic` or
	// `missing required parameter` (no param name) or `LLM clarity check
	// below threshold`; the Evaluator's Question for input/select kinds
	// quotes the parameter name, so mergeResumeAnswer also applies this
	// helper to Question when Reason names no parameter.
	start := -1
	for i, r := range reason {
		if r == '"' {
			if start == -1 {
				start = i + 1
			} else {
				return reason[start:i]
			}
		}
	}
	return ""
}

// loop is the PLAN -> EVALUATE -> BRANCH cycle (spec.md §4.9).
func (k *Kernel) loop(ctx context.Context, em Emitter, principal models.Principal, sessionID string, state *models.ExecutionState, userMessage string) {
	for state.Iteration < k.deps.MaxIters {
		state.Iteration++

		iterCtx := ctx
		var iterSpan trace.Span
		if k.deps.Tracer != nil {
			iterCtx, iterSpan = k.deps.Tracer.KernelIteration(ctx, sessionID, state.Iteration)
		}
		shouldContinue := k.runIteration(iterCtx, em, principal, sessionID, state, userMessage)
		if iterSpan != nil {
			iterSpan.End()
		}
		if !shouldContinue {
			return
		}
	}

	if k.deps.Metrics != nil {
		k.deps.Metrics.RecordKernelRun("truncated", state.Iteration)
	}
	state.Phase = models.PhaseDone
	_ = k.deps.Store.SaveState(ctx, sessionID, *state, sessions.DefaultStateTTL)
	emitText(em, "I've reached my iteration limit for this request and the task was truncated before completion.")
	emitDone(em)
}

// runIteration runs one PLAN -> EVALUATE -> BRANCH cycle and reports
// whether the loop should continue to the next iteration.
func (k *Kernel) runIteration(ctx context.Context, em Emitter, principal models.Principal, sessionID string, state *models.ExecutionState, userMessage string) bool {
	history, err := k.deps.Store.LoadLog(ctx, sessionID, sessions.DefaultMaxHistoryLength)
	if err != nil {
		emitErrorAndDone(em, string(errtax.CodeDB), "session storage is unavailable", true, "", "", nil)
		return false
	}
	observations, err := k.deps.Store.LoadObservations(ctx, sessionID)
	if err != nil {
		emitErrorAndDone(em, string(errtax.CodeDB), "session storage is unavailable", true, "", "", nil)
		return false
	}

	emitThinking(em, "Deciding what to do next...")
	plan := k.deps.Planner.Plan(ctx, userMessage, history, observations, principal.Preferences.TextModel)
	emitThought(em, plan.Thought)

	if plan.IsComplete || plan.SpeaksOnly() {
		k.finishWithText(ctx, em, sessionID, state, plan.Thought)
		if k.deps.Metrics != nil {
			k.deps.Metrics.RecordKernelRun("done", state.Iteration)
		}
		return false
	}

	state.Phase = models.PhaseEvaluated
	return k.evaluateAndBranch(ctx, em, principal, sessionID, state, userMessage, plan)
}

// evaluateAndBranch runs EVALUATE then BRANCH for one PlanStep. It
// returns true if the loop should continue to the next PLAN iteration
// (i.e. the step executed and the run is not yet terminal).
func (k *Kernel) evaluateAndBranch(ctx context.Context, em Emitter, principal models.Principal, sessionID string, state *models.ExecutionState, userMessage string, plan models.PlanStep) bool {
	history, _ := k.deps.Store.LoadLog(ctx, sessionID, sessions.DefaultMaxHistoryLength)
	eval := k.safeEvaluate(ctx, em, plan, userMessage, history)
	if eval == nil {
		return false
	}

	if eval.NeedsInput {
		state.Phase = models.PhaseSuspended
		state.PendingPlan = &plan
		state.PendingEval = eval
		if err := k.deps.Store.SaveState(ctx, sessionID, *state, sessions.DefaultStateTTL); err != nil {
			emitErrorAndDone(em, string(errtax.CodeDB), "session storage is unavailable", true, "", "", nil)
			return false
		}
		emitUserInputRequest(em, *eval)
		return false
	}

	return k.executeAction(ctx, em, principal, sessionID, state, plan)
}

// executeAction emits action/observation for one approved PlanStep and
// persists the post-execution state. Returns true if the caller should
// continue looping (PLAN again).
func (k *Kernel) executeAction(ctx context.Context, em Emitter, principal models.Principal, sessionID string, state *models.ExecutionState, plan models.PlanStep) bool {
	emitAction(em, plan.Action, plan.Thought)

	tc := models.ToolContext{
		Principal:   principal,
		SessionID:   sessionID,
		Preferences: principal.Preferences,
		OperationID: fmt.Sprintf("%s:%s:%d", sessionID, plan.Action, state.Iteration),
	}

	toolCtx := ctx
	var toolSpan trace.Span
	if k.deps.Tracer != nil {
		toolCtx, toolSpan = k.deps.Tracer.ToolCall(ctx, plan.Action, principal.ID)
	}
	start := time.Now()
	obs, err := k.deps.Exec.Execute(toolCtx, sessionID, tc, plan.Action, plan.ActionInput)
	if toolSpan != nil {
		k.deps.Tracer.RecordError(toolSpan, err)
		toolSpan.End()
	}
	if k.deps.Metrics != nil {
		status := "success"
		if err != nil || (!obs.OK) {
			status = "error"
		}
		k.deps.Metrics.RecordToolExecution(plan.Action, status, time.Since(start))
		if obs.Attempts > 1 {
			k.deps.Metrics.RecordToolRetries(plan.Action, obs.Attempts-1)
		}
	}
	if err != nil {
		var fatal *executor.FatalError
		if isFatal(err, &fatal) {
			k.emitFatalError(em, fatal)
			return false
		}
		emitErrorAndDone(em, string(errtax.CodeInternal), err.Error(), false, "", "", nil)
		return false
	}

	// A failed observation whose cause is a recoverable business-rule
	// error (the backend rejected the specific parameters) is shown to
	// the planner as an "observation" message so it can retry
	// differently (spec.md §4.9). Every other failure kind (credits,
	// backend/model outages that already exhausted their retry budget)
	// is terminal: surface it as a top-level error with no preceding
	// observation event, and end the run (spec.md §8 S3).
	if !obs.OK && obs.Error != nil && obs.Error.Code != string(errtax.CodeBackendToolError) {
		state.Phase = models.PhaseDone
		_ = k.deps.Store.SaveState(ctx, sessionID, *state, sessions.DefaultStateTTL)
		emitErrorAndDone(em, obs.Error.Code, obs.Error.Message, obs.Error.Retryable, "", "", obs.Error.Details)
		return false
	}

	emitObservation(em, obs)

	state.Phase = models.PhasePlanning
	if err := k.deps.Store.SaveState(ctx, sessionID, *state, sessions.DefaultStateTTL); err != nil {
		emitErrorAndDone(em, string(errtax.CodeDB), "session storage is unavailable", true, "", "", nil)
		return false
	}
	return true
}

func isFatal(err error, target **executor.FatalError) bool {
	fe, ok := err.(*executor.FatalError)
	if ok {
		*target = fe
	}
	return ok
}

// emitFatalError classifies a *executor.FatalError by its real underlying
// cause instead of reporting a fixed code (spec.md §7): a genuine
// memory_io failure (recordObservation's store write) carries an
// *errtax.Error already and is reported as-is; a registry miss on
// Execute's initial Lookup wraps registry.ErrUnknownTool with no
// *errtax.Error in the chain and is classified explicitly. Anything else
// falls back to a generic internal error rather than claiming a DB
// outage it cannot confirm.
func (k *Kernel) emitFatalError(em Emitter, fatal *executor.FatalError) {
	if te, ok := errtax.As(fatal.Err); ok {
		action, url := te.Action()
		emitErrorAndDone(em, string(te.Code()), te.Message(), te.Retryable(), action, url, te.Details)
		return
	}
	if errors.Is(fatal.Err, registry.ErrUnknownTool) {
		te := errtax.New(errtax.KindUnknownTool, fatal.Err, nil)
		emitErrorAndDone(em, string(te.Code()), te.Message(), te.Retryable(), "", "", nil)
		return
	}
	emitErrorAndDone(em, string(errtax.CodeInternal), fatal.Error(), false, "", "", nil)
}

// safeEvaluate runs the Evaluator, failing open if it panics: the step
// then proceeds as if it needed no input. The Evaluator interface reports
// no errors, so no evaluation outcome (insufficient_credits included) is
// turned into an error event here, and the result is never nil.
func (k *Kernel) safeEvaluate(ctx context.Context, em Emitter, plan models.PlanStep, userMessage string, history []models.Message) (result *models.Evaluation) {
	defer func() {
		if r := recover(); r != nil {
			result = &models.Evaluation{NeedsInput: false} // Evaluator panics fail open
		}
	}()
	eval := k.deps.Eval.Evaluate(ctx, plan, userMessage, history)
	return &eval
}

func (k *Kernel) finishWithText(ctx context.Context, em Emitter, sessionID string, state *models.ExecutionState, content string) {
	state.Phase = models.PhaseDone
	_ = k.deps.Store.SaveState(ctx, sessionID, *state, sessions.DefaultStateTTL)
	if err := k.deps.Store.AppendMessage(ctx, sessionID, models.Message{Role: models.RoleAssistant, Content: content}, sessions.DefaultMaxHistoryLength, sessions.DefaultHistoryTTL); err != nil {
		emitErrorAndDone(em, string(errtax.CodeDB), "session storage is unavailable", true, "", "", nil)
		return
	}
	emitText(em, content)
	emitDone(em)
}

func (k *Kernel) appendUserMessage(ctx context.Context, sessionID, content string) error {
	return k.deps.Store.AppendMessage(ctx, sessionID, models.Message{Role: models.RoleUser, Content: content}, sessions.DefaultMaxHistoryLength, sessions.DefaultHistoryTTL)
}

func (k *Kernel) emitTaxonomyError(em Emitter, err error) {
	if te, ok := errtax.As(err); ok {
		action, url := te.Action()
		emitErrorAndDone(em, string(te.Code()), te.Message(), te.Retryable(), action, url, te.Details)
		return
	}
	emitErrorAndDone(em, string(errtax.CodeUnknown), err.Error(), false, "", "", nil)
}
