// Package server exposes the kernel over HTTP: a single streaming POST
// endpoint (spec.md §6) that decodes a RunRequest, resolves a Principal,
// and drives kernel.Kernel.Run against an SSE-backed Emitter. The SSE
// writer is grounded nearly verbatim on kadirpekel-hector's
// pkg/a2a/server.go sendSSEEvent (event: <type>\ndata: <json>\n\n plus
// http.Flusher), adapted from that package's ad-hoc event payloads to
// this kernel's single tagged-union models.Event.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/adpilot-ai/agentkernel/internal/kernel"
	"github.com/adpilot-ai/agentkernel/pkg/models"
)

// sseEmitter writes each Event as one SSE frame and flushes immediately,
// so the client observes kernel events in the strict program order
// spec.md §5 requires.
type sseEmitter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEEmitter(w http.ResponseWriter) (*sseEmitter, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &sseEmitter{w: w, flusher: flusher}, true
}

func (e *sseEmitter) Emit(ev models.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	// Each frame gets its own SSE id so a reconnecting client can send
	// Last-Event-ID and a future resume path can skip already-delivered
	// frames; the kernel's own event order (spec.md §5) is untouched.
	fmt.Fprintf(e.w, "id: %s\n", uuid.NewString())
	fmt.Fprintf(e.w, "event: %s\n", ev.Type)
	fmt.Fprintf(e.w, "data: %s\n\n", data)
	e.flusher.Flush()
}

var _ kernel.Emitter = (*sseEmitter)(nil)
