package server

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adpilot-ai/agentkernel/internal/kernel"
	"github.com/adpilot-ai/agentkernel/internal/sessions"
	"github.com/adpilot-ai/agentkernel/pkg/models"
)

type fakePlanner struct{}

func (fakePlanner) Plan(ctx context.Context, userMessage string, history []models.Message, observations []models.ToolObservationRecord, modelPreference string) models.PlanStep {
	return models.PlanStep{IsComplete: true, Thought: "It's Tuesday."}
}

type fakeEvaluator struct{}

func (fakeEvaluator) Evaluate(ctx context.Context, step models.PlanStep, userMessage string, history []models.Message) models.Evaluation {
	return models.Evaluation{}
}

type fakeExecutor struct{}

func (fakeExecutor) Execute(ctx context.Context, sessionID string, tc models.ToolContext, action string, params map[string]any) (models.Observation, error) {
	return models.Observation{Tool: action, OK: true}, nil
}

func newTestServer() *Server {
	deps := kernel.Deps{
		Store:    sessions.NewMemoryStore(),
		Locker:   sessions.NewLocalLocker(sessions.DefaultLockConfig()),
		Planner:  fakePlanner{},
		Eval:     fakeEvaluator{},
		Exec:     fakeExecutor{},
		MaxIters: 10,
	}
	return New(kernel.New(deps), nil)
}

func TestHandleRunStreamsSSEFrames(t *testing.T) {
	s := newTestServer()
	srv := httptest.NewServer(s)
	defer srv.Close()

	body := `{"user_id":"u1","session_id":"sess-1","messages":[{"role":"user","content":"what day is it"}]}`
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/agent/run", strings.NewReader(body))
	require.NoError(t, err)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var eventLines []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			eventLines = append(eventLines, strings.TrimPrefix(line, "event: "))
		}
	}
	assert.Equal(t, []string{"thinking", "thought", "text", "done"}, eventLines)
}

func TestHandleRunRejectsMissingSessionID(t *testing.T) {
	s := newTestServer()
	srv := httptest.NewServer(s)
	defer srv.Close()

	body := `{"user_id":"u1","messages":[{"role":"user","content":"hi"}]}`
	resp, err := http.Post(srv.URL+"/v1/agent/run", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleRunRejectsMalformedBody(t *testing.T) {
	s := newTestServer()
	srv := httptest.NewServer(s)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/agent/run", "application/json", strings.NewReader("not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
