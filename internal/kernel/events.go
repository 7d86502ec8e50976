package kernel

import "github.com/adpilot-ai/agentkernel/pkg/models"

// Emitter is the sink the Kernel writes its event stream into, grounded
// on the teacher's EventEmitter (internal/agent/event_emitter.go), trimmed
// to a single method since this package streams the externally-visible
// tagged union directly rather than an internal richer event model.
type Emitter interface {
	Emit(models.Event)
}

// EmitterFunc adapts a plain function to Emitter.
type EmitterFunc func(models.Event)

func (f EmitterFunc) Emit(e models.Event) { f(e) }

func emitThinking(em Emitter, message string) {
	em.Emit(models.Event{Type: models.EventThinking, Message: message})
}

func emitThought(em Emitter, content string) {
	em.Emit(models.Event{Type: models.EventThought, Content: content})
}

func emitAction(em Emitter, tool, message string) {
	em.Emit(models.Event{Type: models.EventAction, Tool: tool, Message: message})
}

func emitObservation(em Emitter, obs models.Observation) {
	em.Emit(models.Event{Type: models.EventObservation, Tool: obs.Tool, Success: obs.OK, Result: obs.Data})
}

func emitText(em Emitter, content string) {
	em.Emit(models.Event{Type: models.EventText, Content: content})
}

func emitUserInputRequest(em Emitter, eval models.Evaluation) {
	kind := evalKindToUserInputKind(eval.Kind)
	var meta map[string]any
	if eval.SuggestedAction != nil {
		meta = map[string]any{"suggested_action": eval.SuggestedAction}
	}
	em.Emit(models.Event{
		Type:     models.EventUserInputRequest,
		Kind:     kind,
		Question: eval.Question,
		Options:  eval.Options,
		Metadata: meta,
	})
}

func evalKindToUserInputKind(k models.EvalKind) models.UserInputKind {
	switch k {
	case models.EvalKindConfirm:
		return models.UserInputConfirmation
	case models.EvalKindSelect:
		return models.UserInputSelection
	default:
		return models.UserInputInput
	}
}

func emitError(em Emitter, code, message string, retryable bool, action, actionURL string, details any) {
	em.Emit(models.Event{
		Type:      models.EventError,
		Code:      code,
		Message:   message,
		Retryable: retryable,
		Action:    action,
		ActionURL: actionURL,
		Details:   details,
	})
}

func emitDone(em Emitter) {
	em.Emit(models.Event{Type: models.EventDone})
}

// emitErrorAndDone emits an error frame followed by the done terminator
// that must close every stream (spec.md §4.9, §8.3): every early return
// out of the kernel funnels through this instead of calling emitError on
// its own, so a caught failure never leaves a client waiting on a done
// frame that never arrives.
func emitErrorAndDone(em Emitter, code, message string, retryable bool, action, actionURL string, details any) {
	emitError(em, code, message, retryable, action, actionURL, details)
	emitDone(em)
}
