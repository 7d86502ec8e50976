package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name      string
	responses []string
	errs      []error
	calls     int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return "", errors.New("fakeProvider: no more scripted responses")
}

type planStep struct {
	Thought    string `json:"thought"`
	Action     string `json:"action"`
	IsComplete bool   `json:"is_complete"`
}

func TestStructuredCallParsesCleanJSON(t *testing.T) {
	p := &fakeProvider{responses: []string{`{"thought":"checking the date","action":"datetime","is_complete":false}`}}

	out, err := StructuredCall[planStep](context.Background(), p, CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "datetime", out.Action)
	assert.Equal(t, 1, p.calls)
}

func TestStructuredCallExtractsJSONFromProse(t *testing.T) {
	p := &fakeProvider{responses: []string{"Sure, here you go:\n```json\n{\"thought\":\"t\",\"action\":\"calculator\",\"is_complete\":false}\n```"}}

	out, err := StructuredCall[planStep](context.Background(), p, CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "calculator", out.Action)
}

func TestStructuredCallRepairsOnceThenSucceeds(t *testing.T) {
	p := &fakeProvider{responses: []string{
		"not json at all",
		`{"thought":"fixed","action":"search","is_complete":false}`,
	}}

	out, err := StructuredCall[planStep](context.Background(), p, CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "search", out.Action)
	assert.Equal(t, 2, p.calls)
}

func TestStructuredCallGivesUpAfterOneRepair(t *testing.T) {
	p := &fakeProvider{responses: []string{"still not json", "still not json either"}}

	_, err := StructuredCall[planStep](context.Background(), p, CompletionRequest{})
	require.Error(t, err)
	assert.Equal(t, 2, p.calls)
}

func TestFailoverFallsThroughOnError(t *testing.T) {
	primary := &fakeProvider{name: "primary", errs: []error{errors.New("down")}}
	secondary := &fakeProvider{name: "secondary", responses: []string{"ok"}}

	fo := NewFailover(DefaultFailoverConfig(), nil, primary, secondary)

	out, err := fo.Complete(context.Background(), CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestFailoverOpensCircuitAfterThreshold(t *testing.T) {
	cfg := DefaultFailoverConfig()
	cfg.CircuitBreakerThreshold = 2
	primary := &fakeProvider{name: "primary", errs: []error{errors.New("e1"), errors.New("e2"), errors.New("e3")}}
	secondary := &fakeProvider{name: "secondary", responses: []string{"a", "b", "c"}}

	fo := NewFailover(cfg, nil, primary, secondary)

	for i := 0; i < 2; i++ {
		_, err := fo.Complete(context.Background(), CompletionRequest{})
		require.NoError(t, err)
	}

	assert.True(t, fo.stateFor("primary").circuitOpen)

	out, err := fo.Complete(context.Background(), CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "c", out)
	assert.Equal(t, 2, primary.calls)
}
