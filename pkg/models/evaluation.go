package models

// EvalKind distinguishes the flavor of human input the Evaluator (C7)
// requests for a plan step.
type EvalKind string

const (
	EvalKindNone    EvalKind = "none"
	EvalKindConfirm EvalKind = "confirm"
	EvalKindSelect  EvalKind = "select"
	EvalKindInput   EvalKind = "input"
)

// Option is one selectable choice offered by a "select" evaluation. The
// reserved values __other__ and __cancel__ are always appended by the
// Evaluator (spec.md §4.7) so the caller can supply a custom value or
// abandon the plan.
type Option struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Primary     bool   `json:"primary,omitempty"`
}

const (
	OptionOther  = "__other__"
	OptionCancel = "__cancel__"
)

// Evaluation is the Evaluator's (C7) decision about a PlanStep (spec.md §3).
// NeedsInput=false implies Kind==EvalKindNone.
type Evaluation struct {
	NeedsInput      bool       `json:"needs_input"`
	Kind            EvalKind   `json:"kind"`
	Question        string     `json:"question,omitempty"`
	Options         []Option   `json:"options,omitempty"`
	SuggestedAction *PlanStep  `json:"suggested_action,omitempty"`
	Reason          string     `json:"reason,omitempty"`
}

// ResumeAnswer is the caller-supplied answer to a suspended user_input_request
// (spec.md §6 "resume" request field).
type ResumeAnswer struct {
	Value          any    `json:"value,omitempty"`
	SelectedOption string `json:"selected_option,omitempty"`
	CustomValue    string `json:"custom_value,omitempty"`
	Cancelled      bool   `json:"cancelled,omitempty"`
}
