package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adpilot-ai/agentkernel/pkg/models"
)

func echoHandler(ctx context.Context, params map[string]any, tc models.ToolContext) models.Observation {
	return models.Observation{Tool: "echo", OK: true, Data: params}
}

func TestRegisterAndLookup(t *testing.T) {
	r := New()
	d := models.ToolDescriptor{Name: "echo", Category: models.CategoryBuiltin}

	require.NoError(t, r.Register(d, echoHandler))

	got, handler, err := r.Lookup("echo")
	require.NoError(t, err)
	assert.Equal(t, d, got)
	assert.NotNil(t, handler)
}

func TestRegisterDuplicateRejected(t *testing.T) {
	r := New()
	d := models.ToolDescriptor{Name: "echo"}
	require.NoError(t, r.Register(d, echoHandler))

	err := r.Register(d, echoHandler)
	assert.ErrorIs(t, err, ErrDuplicateTool)
}

func TestRegisterInvalidSchemaRejected(t *testing.T) {
	r := New()
	d := models.ToolDescriptor{
		Name: "bad",
		Parameters: []models.Parameter{
			{Name: "style", Type: models.ParamNumber, Enum: []string{"a", "b"}},
		},
	}
	err := r.Register(d, echoHandler)
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestLookupUnknownTool(t *testing.T) {
	r := New()
	_, _, err := r.Lookup("missing")
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestDescribeAllStableOrder(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(models.ToolDescriptor{Name: "b"}, echoHandler))
	require.NoError(t, r.Register(models.ToolDescriptor{Name: "a"}, echoHandler))

	all := r.DescribeAll()
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].Name)
	assert.Equal(t, "a", all[1].Name)
}

func TestValidateParamsRejectsMissingRequired(t *testing.T) {
	r := New()
	d := models.ToolDescriptor{
		Name:       "create_campaign",
		Parameters: []models.Parameter{{Name: "budget", Type: models.ParamNumber, Required: true}},
	}
	require.NoError(t, r.Register(d, echoHandler))

	err := r.ValidateParams("create_campaign", map[string]any{})
	require.Error(t, err)
}

func TestValidateParamsRejectsWrongType(t *testing.T) {
	r := New()
	d := models.ToolDescriptor{
		Name:       "create_campaign",
		Parameters: []models.Parameter{{Name: "budget", Type: models.ParamNumber, Required: true}},
	}
	require.NoError(t, r.Register(d, echoHandler))

	err := r.ValidateParams("create_campaign", map[string]any{"budget": "a lot"})
	require.Error(t, err)
}

func TestValidateParamsRejectsEnumViolation(t *testing.T) {
	r := New()
	d := models.ToolDescriptor{
		Name: "set_objective",
		Parameters: []models.Parameter{
			{Name: "objective", Type: models.ParamString, Required: true, Enum: []string{"awareness", "traffic", "sales"}},
		},
	}
	require.NoError(t, r.Register(d, echoHandler))

	err := r.ValidateParams("set_objective", map[string]any{"objective": "world_domination"})
	require.Error(t, err)
}

func TestValidateParamsPassesValidInput(t *testing.T) {
	r := New()
	d := models.ToolDescriptor{
		Name: "set_objective",
		Parameters: []models.Parameter{
			{Name: "objective", Type: models.ParamString, Required: true, Enum: []string{"awareness", "traffic", "sales"}},
		},
	}
	require.NoError(t, r.Register(d, echoHandler))

	assert.NoError(t, r.ValidateParams("set_objective", map[string]any{"objective": "awareness"}))
}

func TestValidateParamsUnknownToolReturnsErrUnknownTool(t *testing.T) {
	r := New()
	err := r.ValidateParams("missing", map[string]any{})
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestRoundTripRegisterLookup(t *testing.T) {
	r := New()
	d := models.ToolDescriptor{Name: "datetime", Category: models.CategoryBuiltin}
	require.NoError(t, r.Register(d, echoHandler))

	got, _, err := r.Lookup(d.Name)
	require.NoError(t, err)
	assert.Equal(t, d, got)
}
