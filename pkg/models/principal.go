package models

// Principal identifies the caller driving a kernel run. It is opaque to the
// kernel beyond the preference record below, and is never stored — it is
// attached fresh to every request per spec.md §3.
type Principal struct {
	ID          string
	Preferences ModelPreferences
}

// ModelPreferences carries the caller's preferred provider/model per
// modality. Any field may be empty, in which case the kernel's configured
// default for that modality applies.
type ModelPreferences struct {
	TextProvider  string `json:"conversational_provider,omitempty"`
	TextModel     string `json:"conversational_model,omitempty"`
	ImageProvider string `json:"image_generation_provider,omitempty"`
	ImageModel    string `json:"image_generation_model,omitempty"`
	VideoProvider string `json:"video_generation_provider,omitempty"`
	VideoModel    string `json:"video_generation_model,omitempty"`
}

// ToolContext is threaded into every tool handler invocation (spec.md §4.1).
// Handlers must not retain it after Execute returns.
type ToolContext struct {
	Principal   Principal
	SessionID   string
	Preferences ModelPreferences
	// OperationID is a caller/kernel-assigned idempotency key. Mutating
	// tools must use it to avoid double-creating resources on retry.
	OperationID string
}
