// Package tools wires every tool class (C10, spec.md §4.10) into a
// single Registry (C1) at startup, grounded on the teacher's
// cmd/*/main.go composition pattern of a single RegisterAll entry point
// invoked once before the server starts accepting requests.
package tools

import (
	"fmt"
	"time"

	"github.com/adpilot-ai/agentkernel/internal/backend"
	"github.com/adpilot-ai/agentkernel/internal/llm"
	"github.com/adpilot-ai/agentkernel/internal/objectstore"
	"github.com/adpilot-ai/agentkernel/internal/registry"
	"github.com/adpilot-ai/agentkernel/internal/tools/aiassisted"
	"github.com/adpilot-ai/agentkernel/internal/tools/builtin"
	"github.com/adpilot-ai/agentkernel/internal/tools/proxy"
)

// Deps are the collaborators every non-builtin tool class needs.
type Deps struct {
	Provider      llm.Provider
	Model         string
	BackendClient *backend.Client
	ObjectStore   objectstore.Client
	WebSearcher   builtin.WebSearcher
	SearchTimeout time.Duration
}

// RegisterAll adds builtin, AI-assisted, and external-proxy tools to reg.
func RegisterAll(reg *registry.Registry, deps Deps) error {
	if err := builtin.Register(reg); err != nil {
		return err
	}
	searcher := deps.WebSearcher
	if searcher == nil {
		searcher = builtin.NewDuckDuckGoSearcher(deps.SearchTimeout)
	}
	if err := builtin.RegisterWebSearch(reg, searcher); err != nil {
		return fmt.Errorf("tools: register web_search: %w", err)
	}
	if err := aiassisted.Register(reg, deps.Provider, deps.Model); err != nil {
		return err
	}
	if err := proxy.Register(reg, deps.BackendClient, deps.ObjectStore); err != nil {
		return err
	}
	return nil
}
