// Package proxy implements the external-proxy tool class (spec.md
// §4.10): thin wrappers over the backend HTTP API's per-tool endpoints.
// Grounded on internal/credit/http_ledger.go's request/response
// envelope handling, generalized from a fixed set of ledger endpoints
// to the backend.Client's one-endpoint-per-tool-name shape. Mutating
// tools are all in the evaluator's HighRisk or Spending sets
// (internal/evaluator/policy.go) and so always surface a confirmation
// prompt before the Executor ever calls this package's handlers.
package proxy

import (
	"context"
	"fmt"

	"github.com/adpilot-ai/agentkernel/internal/backend"
	"github.com/adpilot-ai/agentkernel/internal/errtax"
	"github.com/adpilot-ai/agentkernel/internal/objectstore"
	"github.com/adpilot-ai/agentkernel/internal/registry"
	"github.com/adpilot-ai/agentkernel/pkg/models"
)

// Register adds every external-proxy tool to reg, backed by client (for
// the backend-mutation/read tools) and store (for upload_object).
func Register(reg *registry.Registry, client *backend.Client, store objectstore.Client) error {
	tools := []struct {
		desc    models.ToolDescriptor
		handler registry.Handler
	}{
		{createCampaignDescriptor(), passthroughHandler(client, "create_campaign")},
		{updateCampaignDescriptor(), passthroughHandler(client, "update_campaign")},
		{pauseCampaignDescriptor(), passthroughHandler(client, "pause_campaign")},
		{updateBudgetDescriptor(), passthroughHandler(client, "update_budget")},
		{disconnectAccountDescriptor(), passthroughHandler(client, "disconnect_account")},
		{saveCreativeDescriptor(), passthroughHandler(client, "save_creative")},
		{listCreativesDescriptor(), passthroughHandler(client, "list_creatives")},
		{publishLandingPageDescriptor(), passthroughHandler(client, "publish_landing_page")},
		{getReportsDescriptor(), passthroughHandler(client, "get_reports")},
		{getBalanceDescriptor(), passthroughHandler(client, "get_balance")},
		{uploadObjectDescriptor(), uploadObjectHandler(store)},
	}
	for _, t := range tools {
		if err := reg.Register(t.desc, t.handler); err != nil {
			return fmt.Errorf("proxy: register %s: %w", t.desc.Name, err)
		}
	}
	return nil
}

// passthroughHandler forwards params verbatim to the backend endpoint
// named toolName and hands back whatever "data" object it returns; the
// per-tool business logic (budget math, report rendering) lives on the
// backend side of this boundary per spec.md §2.
func passthroughHandler(client *backend.Client, toolName string) registry.Handler {
	return func(ctx context.Context, params map[string]any, tc models.ToolContext) models.Observation {
		var data map[string]any
		err := client.Call(ctx, toolName, tc.Principal.ID, withOperationID(params, tc.OperationID), &data)
		if err != nil {
			te, ok := errtax.As(err)
			if !ok {
				te = errtax.New(errtax.KindBackendConnection, err, nil)
			}
			return models.Observation{Tool: toolName, OK: false, Error: &models.ObservationError{
				Code: string(te.Code()), Message: te.Message(), Retryable: te.Retryable(), Details: te.Details,
			}}
		}
		return models.Observation{Tool: toolName, OK: true, Data: data}
	}
}

func withOperationID(params map[string]any, operationID string) map[string]any {
	if operationID == "" {
		return params
	}
	out := make(map[string]any, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	out["operation_id"] = operationID
	return out
}

func uploadObjectHandler(store objectstore.Client) registry.Handler {
	return func(ctx context.Context, params map[string]any, tc models.ToolContext) models.Observation {
		key, _ := params["key"].(string)
		if key == "" {
			return models.Observation{Tool: "upload_object", OK: false, Error: &models.ObservationError{
				Code: "1001", Message: "key is required", Retryable: false,
			}}
		}
		dataStr, _ := params["data_base64"].(string)
		contentType, _ := params["content_type"].(string)
		url, err := store.Put(ctx, fmt.Sprintf("%s/%s", tc.Principal.ID, key), []byte(dataStr), contentType)
		if err != nil {
			return models.Observation{Tool: "upload_object", OK: false, Error: &models.ObservationError{
				Code: string(errtax.CodeInternal), Message: err.Error(), Retryable: false,
			}}
		}
		return models.Observation{Tool: "upload_object", OK: true, Data: map[string]any{"url": url}}
	}
}

func createCampaignDescriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "create_campaign",
		Description: "Creates a new ad campaign.",
		Category:    models.CategoryExternal,
		Parameters: []models.Parameter{
			{Name: "name", Type: models.ParamString, Required: true},
			{Name: "budget", Type: models.ParamNumber, Required: true, Description: "Daily budget in dollars."},
			{Name: "objective", Type: models.ParamString, Required: true, Enum: []string{"awareness", "traffic", "sales"}},
			{Name: "ad_account_id", Type: models.ParamString, Required: true},
		},
		Returns:              "{campaign_id}",
		RequiresConfirmation: true,
		Tags:                 []string{"campaign", "mutation"},
	}
}

func updateCampaignDescriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "update_campaign",
		Description: "Updates fields on an existing campaign.",
		Category:    models.CategoryExternal,
		Parameters: []models.Parameter{
			{Name: "campaign_id", Type: models.ParamString, Required: true},
			{Name: "budget", Type: models.ParamNumber, Description: "New daily budget in dollars."},
			{Name: "name", Type: models.ParamString},
		},
		Returns:              "{campaign_id, updated: true}",
		RequiresConfirmation: true,
		Tags:                 []string{"campaign", "mutation"},
	}
}

func pauseCampaignDescriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "pause_campaign",
		Description: "Pauses a running campaign.",
		Category:    models.CategoryExternal,
		Parameters: []models.Parameter{
			{Name: "campaign_id", Type: models.ParamString, Required: true},
		},
		Returns:              "{campaign_id, status}",
		RequiresConfirmation: true,
		Tags:                 []string{"campaign", "mutation"},
	}
}

func updateBudgetDescriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "update_budget",
		Description: "Updates the daily budget on an existing campaign.",
		Category:    models.CategoryExternal,
		Parameters: []models.Parameter{
			{Name: "campaign_id", Type: models.ParamString, Required: true},
			{Name: "budget", Type: models.ParamNumber, Required: true},
		},
		Returns:              "{campaign_id, budget}",
		RequiresConfirmation: true,
		Tags:                 []string{"campaign", "mutation", "spending"},
	}
}

func disconnectAccountDescriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "disconnect_account",
		Description: "Disconnects a connected ad account from the user's workspace.",
		Category:    models.CategoryExternal,
		Parameters: []models.Parameter{
			{Name: "ad_account_id", Type: models.ParamString, Required: true},
		},
		Returns:              "{ad_account_id, disconnected: true}",
		RequiresConfirmation: true,
		Tags:                 []string{"account", "mutation"},
	}
}

func saveCreativeDescriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "save_creative",
		Description: "Saves a creative asset (ad copy, image reference) against a campaign.",
		Category:    models.CategoryExternal,
		Parameters: []models.Parameter{
			{Name: "campaign_id", Type: models.ParamString, Required: true},
			{Name: "headline", Type: models.ParamString, Required: true},
			{Name: "body", Type: models.ParamString},
			{Name: "image_url", Type: models.ParamString},
		},
		Returns: "{creative_id}",
		Tags:    []string{"creative"},
	}
}

func listCreativesDescriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "list_creatives",
		Description: "Lists creative assets saved against a campaign.",
		Category:    models.CategoryExternal,
		Parameters: []models.Parameter{
			{Name: "campaign_id", Type: models.ParamString, Required: true},
		},
		Returns: "{creatives: [...]}",
		Tags:    []string{"creative"},
	}
}

func publishLandingPageDescriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "publish_landing_page",
		Description: "Publishes landing page content under the workspace's hosted domain.",
		Category:    models.CategoryExternal,
		Parameters: []models.Parameter{
			{Name: "slug", Type: models.ParamString, Required: true},
			{Name: "content", Type: models.ParamString, Required: true},
		},
		Returns:              "{url}",
		RequiresConfirmation: true,
		Tags:                 []string{"landing_page", "mutation"},
	}
}

func getReportsDescriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "get_reports",
		Description: "Fetches a performance report for a campaign over a date range.",
		Category:    models.CategoryExternal,
		Parameters: []models.Parameter{
			{Name: "campaign_id", Type: models.ParamString, Required: true},
			{Name: "start_date", Type: models.ParamString},
			{Name: "end_date", Type: models.ParamString},
		},
		Returns: "{impressions, clicks, spend, conversions}",
		Tags:    []string{"reporting"},
	}
}

func getBalanceDescriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "get_balance",
		Description: "Fetches the caller's current credit balance.",
		Category:    models.CategoryExternal,
		Parameters:  []models.Parameter{},
		Returns:     "{available}",
		Tags:        []string{"credits"},
	}
}

func uploadObjectDescriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "upload_object",
		Description: "Uploads a base64-encoded object (e.g. a generated image) and returns its URL.",
		Category:    models.CategoryExternal,
		Parameters: []models.Parameter{
			{Name: "key", Type: models.ParamString, Required: true},
			{Name: "data_base64", Type: models.ParamString, Required: true},
			{Name: "content_type", Type: models.ParamString},
		},
		Returns: "{url}",
		Tags:    []string{"media"},
	}
}
