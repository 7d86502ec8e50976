// Package llm defines the LLM provider boundary the Planner (C6) and
// Evaluator (C7) call through, grounded on the teacher's
// internal/agent/provider_types.go (LLMProvider interface,
// CompletionRequest/CompletionMessage shape) generalized to the
// spec's "dynamic LLM-shaped JSON" requirement: a single
// structured_call[T] helper per provider with one prompt-repair retry
// (spec.md §8 REDESIGN FLAGS).
package llm

import "context"

// Message is one turn in a conversation sent to a provider.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// CompletionRequest mirrors the teacher's CompletionRequest, trimmed to
// what the Planner/Evaluator need: no tool-calling fields, since this
// system's "tools" are resolved by the kernel, not the model provider.
type CompletionRequest struct {
	Model     string
	System    string
	Messages  []Message
	MaxTokens int
}

// Provider is the narrow interface every LLM backend implements,
// generalizing the teacher's LLMProvider to a single blocking call
// (the kernel streams its own events; it does not need the teacher's
// token-level streaming channel for plan/evaluate calls).
type Provider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
