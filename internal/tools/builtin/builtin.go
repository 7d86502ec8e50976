// Package builtin implements the built-in utility tools (spec.md §4.10):
// no credit cost, no external mutation, safe to auto-approve. Grounded
// on the teacher's internal/tools/exec package's plain func-based
// handler shape, adapted to the registry.Handler signature instead of
// the teacher's Name/Description/Schema/Execute tool interface.
package builtin

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adpilot-ai/agentkernel/internal/registry"
	"github.com/adpilot-ai/agentkernel/pkg/models"
)

// Register adds the builtin tools that need no external collaborator.
// web_search is registered separately via RegisterWebSearch, since it
// needs a WebSearcher.
func Register(reg *registry.Registry) error {
	tools := []struct {
		desc    models.ToolDescriptor
		handler registry.Handler
	}{
		{datetimeDescriptor(), datetimeHandler},
		{calculatorDescriptor(), calculatorHandler},
	}
	for _, t := range tools {
		if err := reg.Register(t.desc, t.handler); err != nil {
			return fmt.Errorf("builtin: register %s: %w", t.desc.Name, err)
		}
	}
	return nil
}

func datetimeDescriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "datetime",
		Description: "Returns the current date/time, or computes a relative offset from it.",
		Category:    models.CategoryBuiltin,
		Parameters: []models.Parameter{
			{Name: "operation", Type: models.ParamString, Required: true, Enum: []string{"today", "now", "offset"}, Description: "today/now return the current date/time; offset adds offset_days to today."},
			{Name: "offset_days", Type: models.ParamInteger, Description: "Days to add (may be negative); only used with operation=offset."},
		},
		Returns: "ISO-8601 date or timestamp string.",
		Tags:    []string{"time"},
	}
}

func datetimeHandler(ctx context.Context, params map[string]any, tc models.ToolContext) models.Observation {
	op, _ := params["operation"].(string)
	now := time.Now().UTC()
	switch op {
	case "now", "":
		return models.Observation{Tool: "datetime", OK: true, Data: now.Format(time.RFC3339)}
	case "today":
		return models.Observation{Tool: "datetime", OK: true, Data: now.Format("2006-01-02")}
	case "offset":
		days := numberParam(params, "offset_days")
		return models.Observation{Tool: "datetime", OK: true, Data: now.AddDate(0, 0, int(days)).Format("2006-01-02")}
	default:
		return models.Observation{Tool: "datetime", OK: false, Error: &models.ObservationError{
			Code: "1001", Message: fmt.Sprintf("unknown operation %q", op), Retryable: false,
		}}
	}
}

func calculatorDescriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "calculator",
		Description: "Evaluates a simple arithmetic expression using +, -, *, /, and parentheses.",
		Category:    models.CategoryBuiltin,
		Parameters: []models.Parameter{
			{Name: "expression", Type: models.ParamString, Required: true, Description: "e.g. \"(120 * 1.08) / 4\""},
		},
		Returns: "The numeric result.",
		Tags:    []string{"math"},
	}
}

func calculatorHandler(ctx context.Context, params map[string]any, tc models.ToolContext) models.Observation {
	expr, _ := params["expression"].(string)
	result, err := evalArithmetic(expr)
	if err != nil {
		return models.Observation{Tool: "calculator", OK: false, Error: &models.ObservationError{
			Code: "1001", Message: err.Error(), Retryable: false,
		}}
	}
	return models.Observation{Tool: "calculator", OK: true, Data: result}
}

func webSearchDescriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "web_search",
		Description: "Searches the public web and returns a short list of results.",
		Category:    models.CategoryBuiltin,
		Parameters: []models.Parameter{
			{Name: "query", Type: models.ParamString, Required: true},
			{Name: "max_results", Type: models.ParamInteger, Default: 5},
		},
		Returns: "A list of {title, url, snippet}.",
		Tags:    []string{"search"},
	}
}

func numberParam(params map[string]any, name string) float64 {
	v, ok := params[name]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	default:
		return 0
	}
}

// evalArithmetic is a minimal recursive-descent evaluator over
// +,-,*,/ and parentheses -- just enough for the calculator tool
// without pulling in a full expression-language dependency for four
// operators.
func evalArithmetic(expr string) (float64, error) {
	p := &arithParser{input: strings.TrimSpace(expr)}
	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return 0, fmt.Errorf("unexpected trailing input at position %d", p.pos)
	}
	return v, nil
}

type arithParser struct {
	input string
	pos   int
}

func (p *arithParser) skipSpace() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func (p *arithParser) parseExpr() (float64, error) {
	v, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		if p.pos >= len(p.input) {
			return v, nil
		}
		switch p.input[p.pos] {
		case '+':
			p.pos++
			rhs, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			v += rhs
		case '-':
			p.pos++
			rhs, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			v -= rhs
		default:
			return v, nil
		}
	}
}

func (p *arithParser) parseTerm() (float64, error) {
	v, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		if p.pos >= len(p.input) {
			return v, nil
		}
		switch p.input[p.pos] {
		case '*':
			p.pos++
			rhs, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			v *= rhs
		case '/':
			p.pos++
			rhs, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			if rhs == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			v /= rhs
		default:
			return v, nil
		}
	}
}

func (p *arithParser) parseFactor() (float64, error) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return 0, fmt.Errorf("unexpected end of expression")
	}
	if p.input[p.pos] == '-' {
		p.pos++
		v, err := p.parseFactor()
		return -v, err
	}
	if p.input[p.pos] == '(' {
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		p.skipSpace()
		if p.pos >= len(p.input) || p.input[p.pos] != ')' {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return v, nil
	}
	start := p.pos
	for p.pos < len(p.input) && (p.input[p.pos] == '.' || (p.input[p.pos] >= '0' && p.input[p.pos] <= '9')) {
		p.pos++
	}
	if start == p.pos {
		return 0, fmt.Errorf("expected a number at position %d", p.pos)
	}
	return strconv.ParseFloat(p.input[start:p.pos], 64)
}
