package store

import (
	"context"
	"time"

	"github.com/sells-group/leadscore/internal/model"
)

// LeadFilter specifies criteria for listing leads. Limit zero applies
// a default page size; a negative Limit returns every matching lead.
type LeadFilter struct {
	Status   model.LeadStatus `json:"status,omitempty"`
	MinScore float64          `json:"min_score,omitempty"`
	Limit    int              `json:"limit,omitempty"`
	Offset   int              `json:"offset,omitempty"`
}

// Store defines the persistence interface for the lead pipeline.
type Store interface {
	// Leads
	CreateLead(ctx context.Context, lead *model.Lead) (*model.Lead, error)
	GetLead(ctx context.Context, id int64) (*model.Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
	CountLeads(ctx context.Context, status model.LeadStatus) (int, error)

	// ListUnassessed returns leads whose status is not assessed,
	// ordered by creation time ascending. A limit of zero or less
	// returns every unassessed lead.
	ListUnassessed(ctx context.Context, limit int) ([]model.Lead, error)

	// SaveAssessment atomically writes the assessment payload, the
	// overall lead score, and the assessed status for one lead. On
	// failure the lead is left in its pre-assessment state.
	SaveAssessment(ctx context.Context, leadID int64, a *model.Assessment) error

	Stats(ctx context.Context) (*model.LeadStats, error)

	// Search query audit trail
	SaveSearchQuery(ctx context.Context, rec model.SearchQueryRecord) error

	// Search cache
	GetCachedSearch(ctx context.Context, queryHash string) ([]byte, error)
	SetCachedSearch(ctx context.Context, queryHash string, data []byte, ttl time.Duration) error
	DeleteExpiredSearches(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
