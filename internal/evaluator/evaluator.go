// Package evaluator implements the Evaluator (C7, spec.md §4.7): the
// first-match-wins decision table that decides whether a PlanStep can
// proceed unattended or needs human-in-the-loop input, grounded on the
// teacher's ApprovalChecker.Check (internal/agent/approval.go) whose
// denylist -> allowlist -> skill -> safe-bin -> require-approval ->
// default chain is the same shape as this package's richer table.
package evaluator

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/adpilot-ai/agentkernel/internal/llm"
	"github.com/adpilot-ai/agentkernel/internal/registry"
	"github.com/adpilot-ai/agentkernel/pkg/models"
)

// clarityChecker asks the LLM how clear a parameter's value is,
// returning a score in [0,1]. It is a narrow seam so the Evaluator's
// decision-table logic can be tested without a live model.
type clarityChecker func(ctx context.Context, step models.PlanStep) (param string, score float64, err error)

// Evaluator applies Policy to a PlanStep.
type Evaluator struct {
	policy   Policy
	registry *registry.Registry
	provider llm.Provider
	check    clarityChecker
}

func New(policy Policy, reg *registry.Registry, provider llm.Provider) *Evaluator {
	e := &Evaluator{policy: policy, registry: reg, provider: provider}
	e.check = e.llmClarityCheck
	return e
}

// optionPresets gives preset choices for the spec's ambiguous parameter
// set; a real deployment would source these from campaign/account
// metadata, out of scope for the kernel (spec.md §2).
var optionPresets = map[string][]models.Option{
	"style":     {{Value: "professional", Label: "Professional"}, {Value: "casual", Label: "Casual"}, {Value: "bold", Label: "Bold"}},
	"template":  {{Value: "single_image", Label: "Single image"}, {Value: "carousel", Label: "Carousel"}, {Value: "video", Label: "Video"}},
	"targeting": {{Value: "broad", Label: "Broad"}, {Value: "lookalike", Label: "Lookalike audience"}, {Value: "custom", Label: "Custom audience"}},
	"objective": {{Value: "awareness", Label: "Awareness"}, {Value: "traffic", Label: "Traffic"}, {Value: "sales", Label: "Sales"}},
	"placement": {{Value: "automatic", Label: "Automatic placements"}, {Value: "feed", Label: "Feed only"}, {Value: "stories", Label: "Stories only"}},
}

// Evaluate applies the decision table of spec.md §4.7, first match wins.
func (e *Evaluator) Evaluate(ctx context.Context, step models.PlanStep, userMessage string, history []models.Message) models.Evaluation {
	if step.IsComplete || step.Action == "" {
		return models.Evaluation{NeedsInput: false}
	}

	if contains(e.policy.AutoApprove, step.Action) {
		return models.Evaluation{NeedsInput: false}
	}

	if contains(e.policy.HighRisk, step.Action) {
		s := step
		return models.Evaluation{NeedsInput: true, Kind: models.EvalKindConfirm, SuggestedAction: &s, Reason: "high-risk action requires confirmation"}
	}

	if contains(e.policy.Spending, step.Action) {
		if budget, ok := numericParam(step.ActionInput, "budget"); ok && budget > e.policy.SpendingThreshold {
			s := step
			return models.Evaluation{NeedsInput: true, Kind: models.EvalKindConfirm, SuggestedAction: &s, Reason: fmt.Sprintf("budget %.2f exceeds threshold %.2f", budget, e.policy.SpendingThreshold)}
		}
	}

	if desc, _, err := e.registry.Lookup(step.Action); err == nil {
		if missing, ok := desc.FirstMissingRequired(step.ActionInput); ok {
			return models.Evaluation{
				NeedsInput: true,
				Kind:       models.EvalKindInput,
				Question:   fmt.Sprintf("What value should I use for %q?", missing),
				Reason:     "missing required parameter",
			}
		}
	}

	for _, name := range e.policy.Ambiguous {
		val, ok := stringParam(step.ActionInput, name)
		if !ok {
			continue
		}
		if isShortOrGeneric(val) {
			return models.Evaluation{
				NeedsInput: true,
				Kind:       models.EvalKindSelect,
				Question:   fmt.Sprintf("Which %s would you like?", name),
				Options:    withReservedOptions(optionPresets[name]),
				Reason:     fmt.Sprintf("%q value %q is too generic", name, val),
			}
		}
	}

	if e.check != nil {
		param, score, err := e.check(ctx, step)
		if err != nil {
			// fail open: high-risk and spending gates already ran above.
			return models.Evaluation{NeedsInput: false}
		}
		if param != "" && score < e.policy.ClarityThreshold {
			return models.Evaluation{
				NeedsInput: true,
				Kind:       models.EvalKindSelect,
				Question:   fmt.Sprintf("I want to make sure about %q, which option did you mean?", param),
				Options:    withReservedOptions(optionPresets[param]),
				Reason:     "LLM clarity check below threshold",
			}
		}
	}

	return models.Evaluation{NeedsInput: false}
}

func withReservedOptions(opts []models.Option) []models.Option {
	out := make([]models.Option, 0, len(opts)+2)
	out = append(out, opts...)
	out = append(out, models.Option{Value: models.OptionOther, Label: "Something else"})
	out = append(out, models.Option{Value: models.OptionCancel, Label: "Cancel"})
	return out
}

func numericParam(params map[string]any, name string) (float64, bool) {
	v, ok := params[name]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func stringParam(params map[string]any, name string) (string, bool) {
	v, ok := params[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// isShortOrGeneric flags values too vague to act on without confirming,
// e.g. "style": "nice" or "targeting": "everyone".
func isShortOrGeneric(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return true
	}
	if len(v) < 4 {
		return true
	}
	generic := []string{"good", "nice", "normal", "default", "anything", "whatever", "standard", "everyone", "all"}
	return contains(generic, strings.ToLower(v))
}

func (e *Evaluator) llmClarityCheck(ctx context.Context, step models.PlanStep) (string, float64, error) {
	if e.provider == nil {
		return "", 1.0, nil
	}
	type clarityResp struct {
		Param string  `json:"param"`
		Score float64 `json:"score"`
	}
	req := llm.CompletionRequest{
		System: "Rate how clear and unambiguous the action parameters below are for automated execution, from 0 (very unclear) to 1 (perfectly clear). Respond as strict JSON: {\"param\": \"<name of the least clear parameter, or empty string>\", \"score\": <number>}.",
		Messages: []llm.Message{{
			Role:    "user",
			Content: fmt.Sprintf("action=%s input=%v", step.Action, step.ActionInput),
		}},
		MaxTokens: 128,
	}
	resp, err := llm.StructuredCall[clarityResp](ctx, e.provider, req)
	if err != nil {
		return "", 0, err
	}
	return resp.Param, resp.Score, nil
}
