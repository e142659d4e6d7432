package assess

import (
	"net/url"
	"strings"

	"github.com/sells-group/leadscore/internal/registry"
)

// maxQueryKeywords caps the OR clause so queries stay within search
// engine operator limits.
const maxQueryKeywords = 6

// BuildQuery constructs a search-engine-friendly query for one factor:
// the quoted company name plus an OR clause of the factor's curated
// keywords, optionally narrowed by industry and a site: restriction
// derived from the lead's source URL. Unknown factors fall back to a
// generic keyword set. Never fails.
func BuildQuery(reg *registry.Registry, companyName, industry, sourceURL, factor string) string {
	keywords := []string{factor, "website", "reviews"}
	if f, ok := reg.Get(factor); ok {
		keywords = f.Keywords
	}
	if len(keywords) > maxQueryKeywords {
		keywords = keywords[:maxQueryKeywords]
	}

	terms := make([]string, len(keywords))
	for i, kw := range keywords {
		if strings.Contains(kw, " ") {
			terms[i] = `"` + kw + `"`
		} else {
			terms[i] = kw
		}
	}
	orClause := strings.Join(terms, " OR ")

	var parts []string
	if name := strings.TrimSpace(companyName); name != "" {
		parts = append(parts, `"`+name+`"`)
	}
	if orClause != "" {
		parts = append(parts, orClause)
	}
	q := "(" + strings.Join(parts, " ") + ")"

	if ind := strings.TrimSpace(industry); ind != "" {
		q += " " + ind
	}
	if domain := hostOf(sourceURL); domain != "" {
		q += " site:" + domain
	}
	return q
}

func hostOf(sourceURL string) string {
	if sourceURL == "" {
		return ""
	}
	u, err := url.Parse(sourceURL)
	if err != nil {
		return sourceURL
	}
	return u.Host
}
