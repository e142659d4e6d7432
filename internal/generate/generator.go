// Package generate discovers new leads by searching the web, scraping
// the result pages, and asking an LLM to extract company mentions.
package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadscore/internal/jsonrepair"
	"github.com/sells-group/leadscore/internal/model"
	"github.com/sells-group/leadscore/internal/store"
	"github.com/sells-group/leadscore/pkg/anthropic"
	"github.com/sells-group/leadscore/pkg/serper"
)

// pageCharLimit caps how much page text is sent to the model.
const pageCharLimit = 12000

// Config tunes a Generator.
type Config struct {
	// Model is the Anthropic model used for lead extraction.
	Model     string
	MaxTokens int64

	// ResultsPerQuery is how many organic results to request per
	// search query.
	ResultsPerQuery int

	// MaxConcurrent bounds concurrent page fetches within one query.
	MaxConcurrent int

	// RequestsPerSecond paces all outbound search and page requests.
	RequestsPerSecond float64

	// Queries overrides the default search catalog.
	Queries []string
}

// Summary reports the outcome of one generation run.
type Summary struct {
	TotalQueries      int          `json:"total_queries"`
	SuccessfulQueries int          `json:"successful_queries"`
	TotalLeads        int          `json:"total_leads"`
	Leads             []model.Lead `json:"leads,omitempty"`
}

// Generator runs the lead generation pipeline: search, scrape, extract,
// dedup, persist.
type Generator struct {
	search   serper.Client
	llm      anthropic.Client
	repairer *jsonrepair.Repairer
	fetcher  *PageFetcher
	store    store.Store
	limiter  *rate.Limiter
	cfg      Config
}

// NewGenerator creates a Generator.
func NewGenerator(search serper.Client, llm anthropic.Client, repairer *jsonrepair.Repairer, fetcher *PageFetcher, st store.Store, cfg Config) *Generator {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2000
	}
	if cfg.ResultsPerQuery <= 0 {
		cfg.ResultsPerQuery = 10
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 5
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}
	if len(cfg.Queries) == 0 {
		cfg.Queries = DefaultQueries
	}
	return &Generator{
		search:   search,
		llm:      llm,
		repairer: repairer,
		fetcher:  fetcher,
		store:    st,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		cfg:      cfg,
	}
}

// Run processes up to maxQueries queries from the catalog. Each query
// is searched, its result pages scraped and mined for leads, and the
// deduplicated leads persisted. Per-query failures are logged and
// skipped; Run fails only on context cancellation.
func (g *Generator) Run(ctx context.Context, maxQueries int) (*Summary, error) {
	queries := g.cfg.Queries
	if maxQueries > 0 && maxQueries < len(queries) {
		queries = queries[:maxQueries]
	}

	summary := &Summary{TotalQueries: len(queries)}
	seen := map[string]bool{}
	fold := cases.Fold()

	for _, query := range queries {
		if err := g.limiter.Wait(ctx); err != nil {
			return summary, eris.Wrap(err, "generate: rate limit wait")
		}

		zap.L().Info("generate: processing query", zap.String("query", query))

		results, err := g.search.Search(ctx, query, g.cfg.ResultsPerQuery)
		if err != nil {
			zap.L().Warn("generate: search failed", zap.String("query", query), zap.Error(err))
			results = nil
		}

		candidates := g.minePages(ctx, query, results)

		var saved []model.Lead
		for i := range candidates {
			key := fold.String(strings.TrimSpace(candidates[i].CompanyName))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true

			lead, err := g.store.CreateLead(ctx, &candidates[i])
			if err != nil {
				zap.L().Warn("generate: save lead failed",
					zap.String("company", candidates[i].CompanyName),
					zap.Error(err),
				)
				continue
			}
			saved = append(saved, *lead)
		}

		g.recordQuery(ctx, query, len(saved), results)

		if len(saved) > 0 {
			summary.SuccessfulQueries++
			summary.TotalLeads += len(saved)
			summary.Leads = append(summary.Leads, saved...)
		}

		zap.L().Info("generate: query done",
			zap.String("query", query),
			zap.Int("candidates", len(candidates)),
			zap.Int("saved", len(saved)),
		)
	}

	return summary, nil
}

// minePages fetches each organic result page and extracts lead objects
// from it. Fetches run concurrently up to MaxConcurrent; failures on
// individual pages are logged and skipped.
func (g *Generator) minePages(ctx context.Context, query string, results []serper.Result) []model.Lead {
	urls := make([]string, 0, len(results))
	visited := map[string]bool{}
	for _, r := range results {
		u := NormalizeURL(r.Link)
		if u == "" || visited[u] {
			continue
		}
		visited[u] = true
		urls = append(urls, u)
	}

	var (
		mu    sync.Mutex
		leads []model.Lead
	)

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(g.cfg.MaxConcurrent)

	for _, u := range urls {
		grp.Go(func() error {
			if err := g.limiter.Wait(gctx); err != nil {
				return err
			}

			text, err := g.fetcher.Fetch(gctx, u)
			if err != nil {
				zap.L().Warn("generate: page fetch failed", zap.String("url", u), zap.Error(err))
				return nil
			}

			extracted, err := g.extractLeads(gctx, query, u, text)
			if err != nil {
				zap.L().Warn("generate: extraction failed", zap.String("url", u), zap.Error(err))
				return nil
			}

			mu.Lock()
			leads = append(leads, extracted...)
			mu.Unlock()
			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		zap.L().Warn("generate: page mining interrupted", zap.String("query", query), zap.Error(err))
	}
	return leads
}

// extractLeads asks the model to pull company leads out of page text.
func (g *Generator) extractLeads(ctx context.Context, query, pageURL, text string) ([]model.Lead, error) {
	if len(text) > pageCharLimit {
		text = text[:pageCharLimit]
	}

	resp, err := g.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     g.cfg.Model,
		MaxTokens: g.cfg.MaxTokens,
		Messages: []anthropic.Message{
			{Role: "user", Content: extractionPrompt(pageURL, text)},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "generate: completion")
	}
	resp.Usage.LogCost(g.cfg.Model, "generate")

	parsed, err := g.repairer.Parse(ctx, resp.Text(), "a JSON array of lead objects")
	if err != nil {
		return nil, eris.Wrap(err, "generate: parse leads")
	}

	items, ok := parsed.([]any)
	if !ok {
		// Tolerate a single bare object.
		if obj, isObj := parsed.(map[string]any); isObj {
			items = []any{obj}
		} else {
			return nil, eris.Wrap(jsonrepair.ErrUnparsable, "generate: non-array response")
		}
	}

	leads := make([]model.Lead, 0, len(items))
	for _, item := range items {
		obj, isObj := item.(map[string]any)
		if !isObj {
			continue
		}
		leads = append(leads, leadFromObject(obj, pageURL, query))
	}
	return leads, nil
}

// recordQuery persists the search query audit record. Best-effort.
func (g *Generator) recordQuery(ctx context.Context, query string, leadsFound int, results []serper.Result) {
	raw, err := json.Marshal(results)
	if err != nil {
		raw = nil
	}
	rec := model.SearchQueryRecord{
		ID:          uuid.New().String(),
		Query:       query,
		LeadsFound:  leadsFound,
		RawResponse: string(raw),
	}
	if err := g.store.SaveSearchQuery(ctx, rec); err != nil {
		zap.L().Warn("generate: save search query failed", zap.String("query", query), zap.Error(err))
	}
}

func extractionPrompt(pageURL, text string) string {
	return fmt.Sprintf(
		"You are a professional lead finder agent. Read the following page text from %s "+
			"and extract company leads mentioned or clearly described on the page. "+
			"Return ONLY a JSON array of objects with these keys: company_name, industry, description, "+
			"why_fit, source_url, company_size, lead_score (0-100). If no companies are present, "+
			"return an empty JSON array. Use the page content to infer fields; be concise."+
			"\n\nPAGE_TEXT:\n%s",
		pageURL, text,
	)
}

// leadFromObject builds a Lead from a raw extraction object, filling
// defaults for missing fields.
func leadFromObject(obj map[string]any, pageURL, query string) model.Lead {
	lead := model.Lead{
		CompanyName: stringField(obj, "company_name"),
		Industry:    stringField(obj, "industry"),
		Description: stringField(obj, "description"),
		WhyFit:      stringField(obj, "why_fit"),
		SourceURL:   stringField(obj, "source_url"),
		CompanySize: stringField(obj, "company_size"),
		SearchQuery: query,
		LeadScore:   scoreField(obj, "lead_score"),
		Status:      model.LeadStatusNew,
	}
	if lead.SourceURL == "" {
		lead.SourceURL = pageURL
	}
	return lead
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}

// scoreField coerces numbers, numeric strings, and bools; anything
// else scores zero.
func scoreField(obj map[string]any, key string) float64 {
	switch v := obj[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return f
	case bool:
		if v {
			return 1
		}
		return 0
	default:
		return 0
	}
}
