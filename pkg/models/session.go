package models

import "time"

// Role is the author of a conversation log entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one entry in a session's conversation log (spec.md §3).
type Message struct {
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// KernelPhase is the last-known phase of a suspended or finished kernel run.
type KernelPhase string

const (
	PhaseIdle      KernelPhase = "idle"
	PhasePlanning  KernelPhase = "planning"
	PhaseEvaluated KernelPhase = "evaluated"
	PhaseExecuting KernelPhase = "executing"
	PhaseSuspended KernelPhase = "suspended"
	PhaseDone      KernelPhase = "done"
)

// ExecutionState is the kernel's resumable state for a session (spec.md §3).
// Invariant (b): Phase == PhaseSuspended implies PendingPlan != nil.
type ExecutionState struct {
	Phase        KernelPhase   `json:"phase"`
	Iteration    int           `json:"iteration"`
	PendingPlan  *PlanStep     `json:"pending_plan,omitempty"`
	PendingEval  *Evaluation   `json:"pending_evaluation,omitempty"`
	OriginalGoal string        `json:"original_goal,omitempty"`
}

// ToolObservationRecord is one entry in a session's bounded observation ring.
type ToolObservationRecord struct {
	Tool      string      `json:"tool"`
	Params    any         `json:"parameters,omitempty"`
	Result    *Observation `json:"result,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Session is the full durable state keyed by (principal, session_id). It is
// not persisted as a single blob — sessions.Store splits it across the log,
// state, and observation keys described in spec.md §6 — but this struct is
// the unit handed to/from the kernel.
type Session struct {
	ID           string
	Log          []Message
	State        *ExecutionState
	Observations []ToolObservationRecord
}
