package evaluator

// Policy configures the Evaluator's decision table (spec.md §4.7),
// generalizing the teacher's ApprovalPolicy
// (internal/agent/approval.go) from a single allow/deny/require list
// into the spec's richer auto-approve/high-risk/spending/ambiguous
// classification.
type Policy struct {
	// AutoApprove are read-only utility tools that never need input.
	AutoApprove []string
	// HighRisk tools always require confirmation.
	HighRisk []string
	// Spending tools require confirmation only when a "budget"
	// parameter exceeds SpendingThreshold.
	Spending          []string
	SpendingThreshold float64
	// Ambiguous parameter names that trigger a select prompt when their
	// value is short/generic.
	Ambiguous []string
	// ClarityThreshold is the minimum LLM-reported clarity score (0-1)
	// below which the unclear parameter is surfaced as a select prompt.
	ClarityThreshold float64
}

// DefaultPolicy matches spec.md §4.7 and §9's resolved Open Question
// (spending threshold default $50).
func DefaultPolicy() Policy {
	return Policy{
		AutoApprove:       []string{"datetime", "calculator", "web_search", "get_balance", "get_reports", "list_creatives"},
		HighRisk:          []string{"create_campaign", "update_campaign", "pause_campaign", "disconnect_account", "update_budget", "publish_landing_page"},
		Spending:          []string{"create_campaign", "update_campaign", "update_budget"},
		SpendingThreshold: 50,
		Ambiguous:         []string{"style", "template", "targeting", "objective", "placement"},
		ClarityThreshold:  0.9,
	}
}

func contains(set []string, name string) bool {
	for _, s := range set {
		if s == name {
			return true
		}
	}
	return false
}
