// Package aiassisted implements the AI-assisted helper tools (spec.md
// §4.10): thin LLM delegations with loosely-typed string/object
// parameters, moderate credit cost, always refundable on LLM failure.
// Grounded on the teacher's internal/agent/provider_types.go Complete
// call shape, reusing the Planner's (internal/planner/planner.go)
// pattern of building a CompletionRequest from a fixed system prompt
// plus the caller's parameters, but returning free text instead of a
// structured PlanStep -- these tools hand the model's prose straight
// back to the user rather than parsing it into a typed struct.
package aiassisted

import (
	"context"
	"fmt"

	"github.com/adpilot-ai/agentkernel/internal/errtax"
	"github.com/adpilot-ai/agentkernel/internal/llm"
	"github.com/adpilot-ai/agentkernel/internal/registry"
	"github.com/adpilot-ai/agentkernel/pkg/models"
)

// defaultCreditCost is charged for every AI-assisted helper unless a
// tool overrides it; the credit gate bypasses null-cost tools
// entirely (spec.md §4.5), so this value just needs to be positive.
const defaultCreditCost = 3.0

// Register adds every AI-assisted helper tool to reg, backed by provider.
func Register(reg *registry.Registry, provider llm.Provider, model string) error {
	tools := []struct {
		desc   models.ToolDescriptor
		prompt promptSpec
	}{
		{generateAdCopyDescriptor(), generateAdCopyPrompt},
		{optimizeCopyDescriptor(), optimizeCopyPrompt},
		{suggestTargetingDescriptor(), suggestTargetingPrompt},
		{analyzePerformanceDescriptor(), analyzePerformancePrompt},
		{analyzeCompetitorDescriptor(), analyzeCompetitorPrompt},
		{generateLandingPageContentDescriptor(), generateLandingPageContentPrompt},
		{translateContentDescriptor(), translateContentPrompt},
	}
	for _, t := range tools {
		handler := newHandler(provider, model, t.desc.Name, t.prompt)
		if err := reg.Register(t.desc, handler); err != nil {
			return fmt.Errorf("aiassisted: register %s: %w", t.desc.Name, err)
		}
	}
	return nil
}

// promptSpec builds the system prompt and user content for one helper
// from its caller-supplied parameters.
type promptSpec func(params map[string]any) (system, user string)

func newHandler(provider llm.Provider, model, toolName string, spec promptSpec) registry.Handler {
	return func(ctx context.Context, params map[string]any, tc models.ToolContext) models.Observation {
		m := model
		if tc.Preferences.TextModel != "" {
			m = tc.Preferences.TextModel
		}
		system, user := spec(params)
		req := llm.CompletionRequest{
			Model:     m,
			System:    system,
			Messages:  []llm.Message{{Role: "user", Content: user}},
			MaxTokens: 1024,
		}
		text, err := provider.Complete(ctx, req)
		if err != nil {
			te, ok := errtax.As(err)
			if !ok {
				te = errtax.New(errtax.KindAIModelUnavailable, err, nil)
			}
			return models.Observation{Tool: toolName, OK: false, Error: &models.ObservationError{
				Code: string(te.Code()), Message: te.Message(), Retryable: te.Retryable(),
			}}
		}
		return models.Observation{Tool: toolName, OK: true, Data: text}
	}
}

func creditCost() *float64 {
	c := defaultCreditCost
	return &c
}

func generateAdCopyDescriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "generate_ad_copy",
		Description: "Generates ad copy (headline + body) for a product or campaign brief.",
		Category:    models.CategoryAIAssisted,
		Parameters: []models.Parameter{
			{Name: "product", Type: models.ParamString, Required: true, Description: "What is being advertised."},
			{Name: "audience", Type: models.ParamString, Description: "Target audience description."},
			{Name: "tone", Type: models.ParamString, Description: "Desired tone, e.g. \"playful\", \"authoritative\"."},
		},
		Returns:    "Free-text ad copy.",
		CreditCost: creditCost(),
		Tags:       []string{"copywriting"},
	}
}

func generateAdCopyPrompt(params map[string]any) (string, string) {
	system := "You are an advertising copywriter. Write a short headline and a one-paragraph body for the product described. Return plain text, no markdown."
	user := fmt.Sprintf("Product: %v\nAudience: %v\nTone: %v", strVal(params, "product"), strVal(params, "audience"), strVal(params, "tone"))
	return system, user
}

func optimizeCopyDescriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "optimize_copy",
		Description: "Rewrites existing ad copy to improve clarity or conversion, given a goal.",
		Category:    models.CategoryAIAssisted,
		Parameters: []models.Parameter{
			{Name: "copy", Type: models.ParamString, Required: true, Description: "The existing copy to improve."},
			{Name: "goal", Type: models.ParamString, Description: "e.g. \"increase click-through rate\"."},
		},
		Returns:    "Rewritten copy.",
		CreditCost: creditCost(),
		Tags:       []string{"copywriting"},
	}
}

func optimizeCopyPrompt(params map[string]any) (string, string) {
	system := "You are an advertising editor. Rewrite the given copy toward the stated goal. Return only the rewritten copy."
	user := fmt.Sprintf("Copy: %v\nGoal: %v", strVal(params, "copy"), strVal(params, "goal"))
	return system, user
}

func suggestTargetingDescriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "suggest_targeting",
		Description: "Suggests audience targeting parameters (demographics, interests, placements) for a campaign brief.",
		Category:    models.CategoryAIAssisted,
		Parameters: []models.Parameter{
			{Name: "product", Type: models.ParamString, Required: true},
			{Name: "budget", Type: models.ParamNumber, Description: "Daily budget in dollars."},
		},
		Returns:    "Free-text targeting recommendations.",
		CreditCost: creditCost(),
		Tags:       []string{"targeting"},
	}
}

func suggestTargetingPrompt(params map[string]any) (string, string) {
	system := "You are a media buyer. Suggest concrete audience targeting (age range, interests, placements) for the product and budget given."
	user := fmt.Sprintf("Product: %v\nDaily budget: %v", strVal(params, "product"), strVal(params, "budget"))
	return system, user
}

func analyzePerformanceDescriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "analyze_performance",
		Description: "Analyzes a campaign's performance metrics and summarizes what's working and what isn't.",
		Category:    models.CategoryAIAssisted,
		Parameters: []models.Parameter{
			{Name: "metrics", Type: models.ParamObject, Required: true, Description: "e.g. {impressions, clicks, spend, conversions}."},
		},
		Returns:    "Free-text analysis.",
		CreditCost: creditCost(),
		Tags:       []string{"analytics"},
	}
}

func analyzePerformancePrompt(params map[string]any) (string, string) {
	system := "You are a performance marketing analyst. Summarize what the given metrics say is working and what isn't, in three sentences or fewer."
	user := fmt.Sprintf("Metrics: %v", params["metrics"])
	return system, user
}

func analyzeCompetitorDescriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "analyze_competitor",
		Description: "Analyzes a competitor's advertising approach from a short description and suggests a differentiated angle.",
		Category:    models.CategoryAIAssisted,
		Parameters: []models.Parameter{
			{Name: "competitor", Type: models.ParamString, Required: true},
			{Name: "notes", Type: models.ParamString, Description: "Anything already known about the competitor's ads."},
		},
		Returns:    "Free-text analysis.",
		CreditCost: creditCost(),
		Tags:       []string{"analytics"},
	}
}

func analyzeCompetitorPrompt(params map[string]any) (string, string) {
	system := "You are a competitive strategist for advertisers. Analyze the competitor described and suggest one differentiated angle."
	user := fmt.Sprintf("Competitor: %v\nNotes: %v", strVal(params, "competitor"), strVal(params, "notes"))
	return system, user
}

func generateLandingPageContentDescriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "generate_page_content_tool",
		Description: "Generates landing page copy (headline, subhead, body, call-to-action) for a product.",
		Category:    models.CategoryAIAssisted,
		Parameters: []models.Parameter{
			{Name: "product", Type: models.ParamString, Required: true},
			{Name: "value_proposition", Type: models.ParamString},
		},
		Returns:    "Free-text landing page copy.",
		CreditCost: creditCost(),
		Tags:       []string{"copywriting", "landing_page"},
	}
}

func generateLandingPageContentPrompt(params map[string]any) (string, string) {
	system := "You are a landing page copywriter. Write a headline, subhead, one body paragraph, and a call-to-action for the product described."
	user := fmt.Sprintf("Product: %v\nValue proposition: %v", strVal(params, "product"), strVal(params, "value_proposition"))
	return system, user
}

func translateContentDescriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "translate_content",
		Description: "Translates copy into a target language, preserving tone and intent.",
		Category:    models.CategoryAIAssisted,
		Parameters: []models.Parameter{
			{Name: "content", Type: models.ParamString, Required: true},
			{Name: "target_language", Type: models.ParamString, Required: true},
		},
		Returns:    "Translated text.",
		CreditCost: creditCost(),
		Tags:       []string{"localization"},
	}
}

func translateContentPrompt(params map[string]any) (string, string) {
	system := "You are a professional translator. Translate the given content into the target language, preserving tone and intent. Return only the translation."
	user := fmt.Sprintf("Content: %v\nTarget language: %v", strVal(params, "content"), strVal(params, "target_language"))
	return system, user
}

func strVal(params map[string]any, name string) string {
	v, ok := params[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
