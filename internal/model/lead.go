package model

import "time"

// LeadStatus represents the assessment state of a lead.
type LeadStatus string

const (
	LeadStatusNew      LeadStatus = "new"
	LeadStatusAssessed LeadStatus = "assessed"
)

// Lead is a prospective business customer discovered by the generation
// pipeline and scored by the assessment pipeline.
type Lead struct {
	ID          int64       `json:"id"`
	CompanyName string      `json:"company_name"`
	Industry    string      `json:"industry,omitempty"`
	Description string      `json:"description,omitempty"`
	WhyFit      string      `json:"why_fit,omitempty"`
	SourceURL   string      `json:"source_url,omitempty"`
	CompanySize string      `json:"company_size,omitempty"`
	SearchQuery string      `json:"search_query,omitempty"`
	LeadScore   float64     `json:"lead_score"`
	Status      LeadStatus  `json:"status"`
	Assessment  *Assessment `json:"assessment,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Snippet is a single web search result used as grounding evidence for
// one factor's estimation.
type Snippet struct {
	Query   string `json:"query,omitempty"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Link    string `json:"link"`
}

// Assessment is the aggregate output of one assessment run for a lead.
// Rationales and Snippets are always non-nil after a run, even when
// empty, so the stored record is auditable.
type Assessment struct {
	// Values maps factor name to the raw value the model returned,
	// after [0,1] clamping for score-type factors that coerced cleanly.
	Values map[string]any `json:"values"`

	// LeadScore is the overall 0-100 suitability summary. When the
	// model supplied one it is kept verbatim, including out-of-range
	// values; otherwise it is derived from the normalized score factors.
	LeadScore float64 `json:"lead_score"`

	Rationales map[string]string    `json:"rationales"`
	Snippets   map[string][]Snippet `json:"raw_search_snippets"`

	// Estimated marks factors whose value came from LLM inference
	// rather than cited evidence.
	Estimated map[string]bool `json:"estimated,omitempty"`

	// Error is set only when the pipeline failed as a whole; such an
	// assessment is never persisted.
	Error string `json:"error,omitempty"`
}

// NewAssessment returns an Assessment with all maps initialized.
func NewAssessment() *Assessment {
	return &Assessment{
		Values:     map[string]any{},
		Rationales: map[string]string{},
		Snippets:   map[string][]Snippet{},
	}
}

// SearchQueryRecord stores metadata about one generation search query.
type SearchQueryRecord struct {
	ID          string    `json:"id"`
	Query       string    `json:"query"`
	LeadsFound  int       `json:"leads_found"`
	RawResponse string    `json:"raw_response,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// AssessedLead pairs a lead with the assessment produced for it, as
// returned by the batch assessment operation.
type AssessedLead struct {
	LeadID      int64       `json:"lead_id"`
	CompanyName string      `json:"company_name"`
	Assessment  *Assessment `json:"assessment"`
}

// LeadStats summarizes the leads table for the stats endpoint.
type LeadStats struct {
	TotalLeads    int     `json:"total_leads"`
	NewLeads      int     `json:"new_leads"`
	AssessedLeads int     `json:"assessed_leads"`
	AverageScore  float64 `json:"average_lead_score"`
}
