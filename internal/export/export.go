// Package export renders leads to CSV, XLSX, and a plain-text report.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/leadscore/internal/model"
)

// header is the column order shared by CSV and XLSX output.
var header = []string{
	"Company Name", "Industry", "Description", "Why Fit",
	"Source URL", "Company Size", "Lead Score", "Status", "Created At",
}

func leadRow(l *model.Lead) []string {
	return []string{
		l.CompanyName,
		l.Industry,
		l.Description,
		l.WhyFit,
		l.SourceURL,
		l.CompanySize,
		strconv.FormatFloat(l.LeadScore, 'f', -1, 64),
		string(l.Status),
		l.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// WriteCSV writes leads as CSV with a header row.
func WriteCSV(w io.Writer, leads []model.Lead) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for i := range leads {
		if err := cw.Write(leadRow(&leads[i])); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// WriteXLSX writes leads as a single-sheet XLSX workbook.
func WriteXLSX(w io.Writer, leads []model.Lead) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Leads")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	row := sheet.AddRow()
	for _, h := range header {
		row.AddCell().Value = h
	}

	for i := range leads {
		row := sheet.AddRow()
		for _, v := range leadRow(&leads[i]) {
			row.AddCell().Value = v
		}
	}

	return eris.Wrap(f.Write(w), "export: write xlsx")
}

// ToFile writes leads to path, choosing the format from the extension:
// .xlsx gets a workbook, everything else CSV.
func ToFile(path string, leads []model.Lead) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create file")
	}
	defer func() { _ = f.Close() }()

	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return WriteXLSX(f, leads)
	}
	return WriteCSV(f, leads)
}

// reportTopLeads is how many high-score leads the report lists.
const reportTopLeads = 10

// Report renders a plain-text summary: database statistics, the top
// leads by score, and an industry breakdown.
func Report(stats *model.LeadStats, leads []model.Lead) string {
	var b strings.Builder
	rule := strings.Repeat("=", 70)

	fmt.Fprintf(&b, "%s\nLead Generation Report\n%s\n\n", rule, rule)
	fmt.Fprintf(&b, "Database Statistics:\n")
	fmt.Fprintf(&b, "- Total leads: %d\n", stats.TotalLeads)
	fmt.Fprintf(&b, "- New leads: %d\n", stats.NewLeads)
	fmt.Fprintf(&b, "- Assessed leads: %d\n", stats.AssessedLeads)
	fmt.Fprintf(&b, "- Average lead score: %.1f\n", stats.AverageScore)

	sorted := make([]model.Lead, len(leads))
	copy(sorted, leads)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LeadScore > sorted[j].LeadScore
	})
	if len(sorted) > reportTopLeads {
		sorted = sorted[:reportTopLeads]
	}

	fmt.Fprintf(&b, "\nTop %d High-Score Leads:\n", len(sorted))
	for i := range sorted {
		l := &sorted[i]
		fmt.Fprintf(&b, "\n%d. %s (Score: %g)\n", i+1, l.CompanyName, l.LeadScore)
		fmt.Fprintf(&b, "   Industry: %s\n", l.Industry)
		fmt.Fprintf(&b, "   Why Fit: %s\n", truncate(l.WhyFit, 80))
		fmt.Fprintf(&b, "   Source: %s\n", l.SourceURL)
	}

	fmt.Fprintf(&b, "\nLeads by Industry:\n")
	for _, ic := range industryCounts(leads) {
		fmt.Fprintf(&b, "   %s: %d leads\n", ic.industry, ic.count)
	}

	return b.String()
}

type industryCount struct {
	industry string
	count    int
}

// industryCounts groups leads by industry, most populous first. Ties
// break alphabetically so the output is stable.
func industryCounts(leads []model.Lead) []industryCount {
	counts := map[string]int{}
	for i := range leads {
		ind := leads[i].Industry
		if ind == "" {
			ind = "Unknown"
		}
		counts[ind]++
	}

	out := make([]industryCount, 0, len(counts))
	for ind, n := range counts {
		out = append(out, industryCount{industry: ind, count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].industry < out[j].industry
	})
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
