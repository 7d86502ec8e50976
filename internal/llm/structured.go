package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// StructuredCall requests a strict-JSON response from a provider and
// unmarshals it into T, generalizing spec.md §8's "let the provider
// adapter be a single structured_call<T>(prompt, schema) function per
// provider with one prompt-repair retry" into a Go generic. The "schema"
// argument is the prompt-embedded description of the expected shape
// (the provider is not asked to validate JSON Schema itself); T's own
// json tags define the contract.
//
// On a parse failure, it sends the malformed output back to the model as
// an assistant message followed by a user message asking for corrected
// JSON, exactly once (spec.md §4.6 step 3), before giving up.
func StructuredCall[T any](ctx context.Context, provider Provider, req CompletionRequest) (T, error) {
	var out T

	raw, err := provider.Complete(ctx, req)
	if err != nil {
		return out, err
	}

	if perr := json.Unmarshal([]byte(extractJSON(raw)), &out); perr == nil {
		return out, nil
	}

	repairReq := req
	repairReq.Messages = append(append([]Message{}, req.Messages...), Message{
		Role:    "assistant",
		Content: raw,
	}, Message{
		Role:    "user",
		Content: "That response was not valid JSON matching the required shape. Reply again with only the corrected JSON object, no surrounding prose.",
	})

	raw, err = provider.Complete(ctx, repairReq)
	if err != nil {
		return out, err
	}
	if perr := json.Unmarshal([]byte(extractJSON(raw)), &out); perr != nil {
		return out, fmt.Errorf("llm: structured response still invalid after repair attempt: %w", perr)
	}
	return out, nil
}

// extractJSON trims leading/trailing prose a model sometimes wraps JSON
// in (code fences, "Here is the JSON:" preambles) by slicing from the
// first '{' to the last '}'.
func extractJSON(s string) string {
	start := -1
	end := -1
	for i, r := range s {
		if r == '{' && start == -1 {
			start = i
		}
		if r == '}' {
			end = i
		}
	}
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}
