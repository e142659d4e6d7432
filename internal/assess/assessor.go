package assess

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"go.uber.org/zap"

	"github.com/sells-group/leadscore/internal/model"
	"github.com/sells-group/leadscore/internal/registry"
	"github.com/sells-group/leadscore/internal/store"
)

// Assessor runs the full multi-factor assessment for leads and
// persists the results.
type Assessor struct {
	estimator *Estimator
	store     store.Store
	reg       *registry.Registry
}

// NewAssessor creates an Assessor.
func NewAssessor(estimator *Estimator, st store.Store, reg *registry.Registry) *Assessor {
	return &Assessor{estimator: estimator, store: st, reg: reg}
}

// AssessLead evaluates every factor for one lead and aggregates the
// results. Individual factor failures are logged and skipped; a failure
// of the run as a whole produces an Assessment carrying only an error
// message, which callers must not persist.
func (a *Assessor) AssessLead(ctx context.Context, lead *model.Lead) (assessment *model.Assessment) {
	assessment = model.NewAssessment()

	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("assess: panic during assessment",
				zap.String("company", lead.CompanyName),
				zap.Any("panic", r),
			)
			assessment = &model.Assessment{Error: fmt.Sprintf("assessment panic: %v", r)}
		}
	}()

	zap.L().Info("assess: assessing lead",
		zap.Int64("lead_id", lead.ID),
		zap.String("company", lead.CompanyName),
	)

	var modelScore *float64
	for _, factor := range a.reg.All() {
		res, err := a.estimator.Estimate(ctx, lead, factor.Name)
		if res != nil {
			assessment.Snippets[factor.Name] = res.Snippets
		}
		if err != nil {
			zap.L().Warn("assess: factor failed",
				zap.String("company", lead.CompanyName),
				zap.String("factor", factor.Name),
				zap.Error(err),
			)
			continue
		}

		if res.Value != nil {
			assessment.Values[factor.Name] = res.Value
		}
		if res.Rationale != "" {
			assessment.Rationales[factor.Name] = res.Rationale
		}
		if res.Estimated {
			if assessment.Estimated == nil {
				assessment.Estimated = map[string]bool{}
			}
			assessment.Estimated[factor.Name] = true
		}
		if modelScore == nil && res.LeadScore != nil {
			modelScore = res.LeadScore
		}
	}

	// Normalize the score-type factors. Values that coerce to a float
	// are clamped to [0,1] and feed the aggregate; values that do not
	// coerce stay as returned and are left out of the aggregate.
	var numeric []float64
	for _, name := range a.reg.ScoreFactors() {
		v, ok := assessment.Values[name]
		if !ok {
			continue
		}
		fv, ok := toFloat64(v)
		if !ok {
			continue
		}
		fv = math.Max(0, math.Min(1, fv))
		assessment.Values[name] = fv
		numeric = append(numeric, fv)
	}

	switch {
	case modelScore != nil:
		// Model-supplied overall score is kept verbatim, even when it
		// falls outside 0-100.
		assessment.LeadScore = *modelScore
	case len(numeric) > 0:
		sum := 0.0
		for _, v := range numeric {
			sum += v
		}
		assessment.LeadScore = math.Round(sum / float64(len(numeric)) * 100)
	default:
		assessment.LeadScore = 0
	}

	return assessment
}

// AssessAll assesses every unassessed lead, oldest first, persisting
// after each one. Leads whose assessment failed outright are returned
// with the error but left untouched in the store.
func (a *Assessor) AssessAll(ctx context.Context, limit int) ([]model.AssessedLead, error) {
	leads, err := a.store.ListUnassessed(ctx, limit)
	if err != nil {
		return nil, err
	}

	results := make([]model.AssessedLead, 0, len(leads))
	for i := range leads {
		lead := &leads[i]
		assessment := a.AssessLead(ctx, lead)

		if assessment.Error == "" {
			if err := a.store.SaveAssessment(ctx, lead.ID, assessment); err != nil {
				zap.L().Warn("assess: persist failed",
					zap.Int64("lead_id", lead.ID),
					zap.Error(err),
				)
			}
		}

		results = append(results, model.AssessedLead{
			LeadID:      lead.ID,
			CompanyName: lead.CompanyName,
			Assessment:  assessment,
		})
	}
	return results, nil
}

// toFloat64 coerces a JSON-decoded value to float64. Numeric strings
// coerce too, matching how loosely models format numbers.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
