package assess

import "github.com/sells-group/leadscore/internal/model"

// FactorResult is the outcome of evaluating a single factor for a lead.
type FactorResult struct {
	Factor    string          `json:"factor"`
	Value     any             `json:"value,omitempty"`
	Rationale string          `json:"rationale,omitempty"`
	Estimated bool            `json:"estimated,omitempty"`
	Snippets  []model.Snippet `json:"snippets,omitempty"`

	// LeadScore is set when the model volunteered an overall score
	// alongside the factor value. Kept verbatim, no range check.
	LeadScore *float64 `json:"lead_score,omitempty"`
}
