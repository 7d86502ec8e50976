// Package planner implements the Planner (C6, spec.md §4.6): asks the
// LLM for the next PlanStep given the conversation, the tool catalog,
// and prior observations, grounded on the teacher's loop planning phase
// (internal/agent/loop.go's PLAN step) and rendered through
// llm.StructuredCall per spec.md §8's structured_call<T> redesign flag.
package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/adpilot-ai/agentkernel/internal/llm"
	"github.com/adpilot-ai/agentkernel/internal/registry"
	"github.com/adpilot-ai/agentkernel/pkg/models"
)

const systemPrompt = `You are the planning component of an advertising assistant agent.
Given the conversation so far, the available tools, and any prior tool observations,
decide the single next action to take.

Respond with strict JSON only, matching exactly this shape:
{"thought": "<your reasoning>", "action": "<tool name or empty string>", "action_input": {<parameters>}, "is_complete": <bool>}

Set "is_complete" to true and leave "action" empty when the task is finished and you are ready
to give the user a final answer; put that answer in "thought".
Only ever name a tool that appears in the tool catalog below.`

type rawPlanStep struct {
	Thought     string         `json:"thought"`
	Action      string         `json:"action"`
	ActionInput map[string]any `json:"action_input"`
	IsComplete  bool           `json:"is_complete"`
}

// Planner produces one PlanStep per call.
type Planner struct {
	provider llm.Provider
	registry *registry.Registry
	model    string
}

func New(provider llm.Provider, reg *registry.Registry, model string) *Planner {
	return &Planner{provider: provider, registry: reg, model: model}
}

// Plan builds the prompt from history/catalog/observations and requests
// a structured PlanStep (spec.md §4.6 steps 1-2). On parse failure after
// one repair attempt, it returns a graceful apology PlanStep rather than
// propagating an error (step 3). A PlanStep naming an unknown tool is
// rewritten to is_complete=true with a diagnostic thought (step 4).
func (p *Planner) Plan(ctx context.Context, userMessage string, history []models.Message, observations []models.ToolObservationRecord, modelPreference string) models.PlanStep {
	model := modelPreference
	if model == "" {
		model = p.model
	}

	req := llm.CompletionRequest{
		Model:     model,
		System:    systemPrompt + "\n\n" + p.catalogListing(),
		Messages:  p.buildMessages(userMessage, history, observations),
		MaxTokens: 1024,
	}

	raw, err := llm.StructuredCall[rawPlanStep](ctx, p.provider, req)
	if err != nil {
		return models.PlanStep{
			IsComplete: true,
			Thought:    "I'm sorry, I had trouble deciding what to do next. Could you rephrase your request?",
		}
	}

	step := models.PlanStep{
		Thought:     raw.Thought,
		Action:      raw.Action,
		ActionInput: raw.ActionInput,
		IsComplete:  raw.IsComplete,
	}

	if step.Action != "" && !step.IsComplete && !p.registry.Has(step.Action) {
		return models.PlanStep{
			IsComplete: true,
			Thought:    fmt.Sprintf("I tried to use a tool called %q, but it doesn't exist. Let me stop here rather than guess.", step.Action),
		}
	}

	return step
}

func (p *Planner) catalogListing() string {
	descs := p.registry.DescribeAll()
	var sb strings.Builder
	sb.WriteString("Tool catalog:\n")
	for _, d := range descs {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", d.Name, d.Description))
		for _, param := range d.Parameters {
			req := ""
			if param.Required {
				req = ", required"
			}
			sb.WriteString(fmt.Sprintf("    %s (%s%s): %s\n", param.Name, param.Type, req, param.Description))
		}
	}
	return sb.String()
}

func (p *Planner) buildMessages(userMessage string, history []models.Message, observations []models.ToolObservationRecord) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+len(observations)+1)
	for _, m := range history {
		role := "user"
		if m.Role == models.RoleAssistant {
			role = "assistant"
		}
		msgs = append(msgs, llm.Message{Role: role, Content: m.Content})
	}
	for _, obs := range observations {
		msgs = append(msgs, llm.Message{
			Role:    "user",
			Content: fmt.Sprintf("[observation] tool=%s result=%v", obs.Tool, obs.Result),
		})
	}
	msgs = append(msgs, llm.Message{Role: "user", Content: userMessage})
	return msgs
}
