package models

// PlanStep is the Planner's (C6) output for a single kernel iteration
// (spec.md §3). Exactly one of "call a tool" / "speak only" / "complete"
// holds:
//
//	IsComplete=true            => Action == ""
//	Action == "" && !IsComplete => speak-only: Thought is the final message
//	Action != ""               => a tool call is proposed
type PlanStep struct {
	Action      string         `json:"action,omitempty"`
	ActionInput map[string]any `json:"action_input,omitempty"`
	Thought     string         `json:"thought"`
	IsComplete  bool           `json:"is_complete"`
}

// SpeaksOnly reports whether this step terminates the loop with a plain
// assistant message and no tool call.
func (p PlanStep) SpeaksOnly() bool {
	return !p.IsComplete && p.Action == ""
}
