package models

// EventType is the "type" discriminator of an externally streamed SSE
// frame (spec.md §6).
type EventType string

const (
	EventThinking          EventType = "thinking"
	EventThought           EventType = "thought"
	EventAction            EventType = "action"
	EventObservation       EventType = "observation"
	EventEvaluation        EventType = "evaluation"
	EventReflection        EventType = "reflection"
	EventText              EventType = "text"
	EventUserInputRequest  EventType = "user_input_request"
	EventError             EventType = "error"
	EventDone              EventType = "done"
)

// UserInputKind is the external-facing flavor name for an Evaluation's
// EvalKind (spec.md §6): confirm -> confirmation, select -> selection,
// input -> input.
type UserInputKind string

const (
	UserInputConfirmation UserInputKind = "confirmation"
	UserInputSelection    UserInputKind = "selection"
	UserInputInput        UserInputKind = "input"
)

// Event is the tagged union streamed to callers as SSE frames. Only the
// field(s) matching Type are populated; the rest are omitted from the JSON
// encoding.
type Event struct {
	Type EventType `json:"type"`

	// thinking / thought / text / reflection
	Message string `json:"message,omitempty"`
	Content string `json:"content,omitempty"`

	// action
	Tool string `json:"tool,omitempty"`

	// observation
	Success bool           `json:"success,omitempty"`
	Result  any            `json:"result,omitempty"`
	Attachments []string   `json:"attachments,omitempty"`
	Images      []string   `json:"images,omitempty"`
	VideoURL        string `json:"video_url,omitempty"`
	VideoObjectName string `json:"video_object_name,omitempty"`
	VideoDataB64    string `json:"video_data_b64,omitempty"`

	// evaluation (internal; may be suppressed per spec.md §6)
	NeedsInput bool   `json:"needs_input,omitempty"`
	Reason     string `json:"reason,omitempty"`

	// user_input_request
	Kind         UserInputKind  `json:"kind,omitempty"`
	Question     string         `json:"question,omitempty"`
	Options      []Option       `json:"options,omitempty"`
	DefaultValue any            `json:"default_value,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`

	// error
	Code        string `json:"code,omitempty"`
	Retryable   bool   `json:"retryable,omitempty"`
	RetryAfter  int    `json:"retry_after,omitempty"`
	Action      string `json:"action,omitempty"`
	ActionURL   string `json:"action_url,omitempty"`
	Details     any    `json:"details,omitempty"`
}
