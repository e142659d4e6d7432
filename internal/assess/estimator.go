package assess

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadscore/internal/jsonrepair"
	"github.com/sells-group/leadscore/internal/model"
	"github.com/sells-group/leadscore/internal/registry"
	"github.com/sells-group/leadscore/pkg/anthropic"
	"github.com/sells-group/leadscore/pkg/serper"
)

// EstimatePolicy controls when the estimator falls back to asking the
// model for a best-effort guess instead of evidence-backed extraction.
type EstimatePolicy string

const (
	// PolicyNever disables the estimate fallback entirely.
	PolicyNever EstimatePolicy = "never"
	// PolicyEmptySearch falls back when the web search returned no
	// usable snippets.
	PolicyEmptySearch EstimatePolicy = "empty_search"
	// PolicyParseFailure falls back when the extraction response could
	// not be parsed even after repair.
	PolicyParseFailure EstimatePolicy = "parse_failure"
)

// valueKeys is the candidate key order used to pull the factor value
// out of the model's response object. The factor's own name is always
// tried first.
var valueKeys = []string{"value", "score", "result"}

// EstimatorConfig tunes a single Estimator.
type EstimatorConfig struct {
	Model            string
	MaxTokens        int64
	ResultsPerFactor int
	Policy           EstimatePolicy
}

// Estimator evaluates one factor at a time: focused web search, then a
// JSON-only extraction prompt over the snippets.
type Estimator struct {
	search   serper.Client
	llm      anthropic.Client
	repairer *jsonrepair.Repairer
	reg      *registry.Registry
	cfg      EstimatorConfig
}

// NewEstimator creates an Estimator.
func NewEstimator(search serper.Client, llm anthropic.Client, repairer *jsonrepair.Repairer, reg *registry.Registry, cfg EstimatorConfig) *Estimator {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 800
	}
	if cfg.ResultsPerFactor <= 0 {
		cfg.ResultsPerFactor = 3
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyEmptySearch
	}
	return &Estimator{search: search, llm: llm, repairer: repairer, reg: reg, cfg: cfg}
}

// Estimate evaluates one factor for a lead. The returned FactorResult
// always carries the search snippets that were gathered, even when the
// extraction itself failed, so the caller can keep the audit trail.
func (e *Estimator) Estimate(ctx context.Context, lead *model.Lead, factor string) (*FactorResult, error) {
	query := BuildQuery(e.reg, lead.CompanyName, lead.Industry, lead.SourceURL, factor)

	results, err := e.search.Search(ctx, query, e.cfg.ResultsPerFactor)
	if err != nil {
		// A failed search is treated as empty evidence, not a fatal error.
		zap.L().Warn("assess: search failed",
			zap.String("company", lead.CompanyName),
			zap.String("factor", factor),
			zap.Error(err),
		)
		results = nil
	}

	snippets := make([]model.Snippet, 0, len(results))
	for _, r := range results {
		snippets = append(snippets, model.Snippet{
			Query:   query,
			Title:   r.Title,
			Snippet: r.Snippet,
			Link:    r.Link,
		})
	}

	out := &FactorResult{Factor: factor, Snippets: snippets}

	if len(snippets) == 0 && e.cfg.Policy == PolicyEmptySearch {
		return e.estimateFallback(ctx, lead, factor, snippets, out)
	}

	parsed, err := e.extract(ctx, lead, factor, snippets, e.factorPrompt(lead, factor, snippets))
	if err != nil {
		if eris.Is(err, jsonrepair.ErrUnparsable) && e.cfg.Policy == PolicyParseFailure {
			return e.estimateFallback(ctx, lead, factor, snippets, out)
		}
		return out, err
	}

	populate(out, parsed, factor)
	return out, nil
}

// estimateFallback asks the model for an explicit best-effort guess and
// tags the result as estimated.
func (e *Estimator) estimateFallback(ctx context.Context, lead *model.Lead, factor string, snippets []model.Snippet, out *FactorResult) (*FactorResult, error) {
	parsed, err := e.extract(ctx, lead, factor, snippets, e.estimatePrompt(lead, factor, snippets))
	if err != nil {
		return out, err
	}
	populate(out, parsed, factor)
	out.Estimated = true
	return out, nil
}

// extract sends one prompt and parses the JSON response, repairing it
// if needed.
func (e *Estimator) extract(ctx context.Context, lead *model.Lead, factor string, snippets []model.Snippet, prompt string) (map[string]any, error) {
	resp, err := e.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.cfg.Model,
		MaxTokens: e.cfg.MaxTokens,
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "assess: completion for factor %s", factor)
	}
	resp.Usage.LogCost(e.cfg.Model, "assess:"+factor)

	hint := fmt.Sprintf("a JSON object with keys %q and optional \"rationale\"", factor)
	parsed, err := e.repairer.Parse(ctx, resp.Text(), hint)
	if err != nil {
		return nil, eris.Wrapf(err, "assess: parse factor %s", factor)
	}

	// The model occasionally wraps the object in a one-element array.
	if list, ok := parsed.([]any); ok {
		if len(list) == 0 {
			return nil, eris.Wrapf(jsonrepair.ErrUnparsable, "assess: empty array for factor %s", factor)
		}
		parsed = list[0]
	}
	obj, ok := parsed.(map[string]any)
	if !ok {
		return nil, eris.Wrapf(jsonrepair.ErrUnparsable, "assess: non-object response for factor %s", factor)
	}
	return obj, nil
}

// populate fills a FactorResult from a parsed response object.
func populate(out *FactorResult, obj map[string]any, factor string) {
	value := obj[factor]
	if value == nil {
		for _, key := range valueKeys {
			if v := obj[key]; v != nil {
				value = v
				break
			}
		}
	}
	out.Value = value

	if r, ok := obj["rationale"].(string); ok && r != "" {
		out.Rationale = r
	}
	if est, ok := obj["estimated"].(bool); ok && est {
		out.Estimated = true
	}
	if ls, ok := toFloat64(obj["lead_score"]); ok {
		out.LeadScore = &ls
	}
}

func (e *Estimator) factorPrompt(lead *model.Lead, factor string, snippets []model.Snippet) string {
	prompt := "You are an assistant that inspects web search results and extracts one field for a company.\n" +
		fmt.Sprintf("Field: %s\n", factor) +
		fmt.Sprintf("Allowed output: Return a single JSON object with keys: %q and optional \"rationale\".\n", factor)
	prompt += e.kindInstructions(factor)
	prompt += "Return ONLY valid JSON (no markdown).\n\n"
	prompt += leadContext(lead, snippets)
	return prompt
}

func (e *Estimator) estimatePrompt(lead *model.Lead, factor string, snippets []model.Snippet) string {
	prompt := "You did not find explicit evidence in the provided snippets. Using the lead information and the snippets, " +
		fmt.Sprintf("provide a best-effort ESTIMATE for the field `%s` for the company.\n", factor) +
		fmt.Sprintf("Return a JSON object with keys: %q (value), optional \"rationale\" explaining why, and \"estimated\": true.\n", factor)
	prompt += e.kindInstructions(factor)
	prompt += "Return ONLY valid JSON (no markdown).\n\n"
	prompt += leadContext(lead, snippets)
	return prompt
}

// kindInstructions describes the expected value shape for the factor.
func (e *Estimator) kindInstructions(factor string) string {
	f, ok := e.reg.Get(factor)
	if !ok {
		return "If the field is a score, return a float between 0 and 1. If it is a categorical value, return one of the allowed categories.\n"
	}
	switch f.Kind {
	case registry.KindScore:
		return "The field is a score: return a float between 0 and 1.\n"
	case registry.KindInteger:
		return "The field is an integer: return a whole number.\n"
	case registry.KindCategory:
		return fmt.Sprintf("The field is categorical: return one of %s.\n", joinQuoted(f.Categories))
	default:
		return ""
	}
}

func joinQuoted(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += ", "
		}
		out += "'" + s + "'"
	}
	return out
}

// leadContext renders the lead and snippets as JSON blocks for a prompt.
func leadContext(lead *model.Lead, snippets []model.Snippet) string {
	info := map[string]string{
		"company_name": lead.CompanyName,
		"source_url":   lead.SourceURL,
		"industry":     lead.Industry,
	}
	infoJSON, _ := json.Marshal(info)
	snippetsJSON, _ := json.Marshal(snippets)
	return fmt.Sprintf("LEAD:\n%s\n\nSEARCH_SNIPPETS:\n%s\n", infoJSON, snippetsJSON)
}
