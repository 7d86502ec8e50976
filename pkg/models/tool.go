package models

// ToolCategory classifies a tool for the Evaluator's auto-approve/high-risk
// gating (spec.md §4.7) and for the Executor's credit-gate bypass
// (spec.md §4.5).
type ToolCategory string

const (
	CategoryBuiltin     ToolCategory = "builtin"
	CategoryAIAssisted  ToolCategory = "ai_assisted"
	CategoryExternal    ToolCategory = "external_proxy"
)

// ParamType is the JSON-schema-ish type of a tool parameter (spec.md §3).
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamNumber  ParamType = "number"
	ParamInteger ParamType = "integer"
	ParamBoolean ParamType = "boolean"
	ParamObject  ParamType = "object"
	ParamArray   ParamType = "array"
)

// Parameter describes one entry of a tool's ordered parameter list.
type Parameter struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Required    bool      `json:"required,omitempty"`
	Default     any       `json:"default,omitempty"`
	Enum        []string  `json:"enum,omitempty"`
	Description string    `json:"description,omitempty"`
}

// ToolDescriptor is the immutable-once-registered metadata for a tool
// (spec.md §3). CreditCost is nil for free/builtin tools, which bypass the
// Credit Gate entirely (spec.md §4.5).
type ToolDescriptor struct {
	Name                 string       `json:"name"`
	Description          string       `json:"description"`
	Category             ToolCategory `json:"category"`
	Parameters           []Parameter  `json:"parameters"`
	Returns              string       `json:"returns,omitempty"`
	CreditCost           *float64     `json:"credit_cost,omitempty"`
	RequiresConfirmation bool         `json:"requires_confirmation"`
	Tags                 []string     `json:"tags,omitempty"`
}

// FirstMissingRequired returns the first required parameter name that is absent or
// empty in params, used by the Evaluator's "missing required parameter"
// rule (spec.md §4.7 decision table).
func (d ToolDescriptor) FirstMissingRequired(params map[string]any) (string, bool) {
	for _, p := range d.Parameters {
		if !p.Required {
			continue
		}
		v, ok := params[p.Name]
		if !ok || isEmptyValue(v) {
			return p.Name, true
		}
	}
	return "", false
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}
