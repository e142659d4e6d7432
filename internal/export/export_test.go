package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/leadscore/internal/model"
)

func sampleLeads() []model.Lead {
	created := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	return []model.Lead{
		{
			CompanyName: "Acme Retail",
			Industry:    "E-commerce",
			Description: "Online store",
			WhyFit:      "Needs a checkout",
			SourceURL:   "https://acme.example",
			CompanySize: "SMB",
			LeadScore:   72,
			Status:      model.LeadStatusAssessed,
			CreatedAt:   created,
		},
		{
			CompanyName: "Beta Travel",
			Industry:    "Travel",
			LeadScore:   91.5,
			Status:      model.LeadStatusNew,
			CreatedAt:   created,
		},
		{
			CompanyName: "Gamma Shop",
			Industry:    "E-commerce",
			LeadScore:   40,
			Status:      model.LeadStatusNew,
			CreatedAt:   created,
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleLeads()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, header, rows[0])
	assert.Equal(t, "Acme Retail", rows[1][0])
	assert.Equal(t, "Needs a checkout", rows[1][3])
	assert.Equal(t, "72", rows[1][6])
	assert.Equal(t, "assessed", rows[1][7])
	assert.Equal(t, "2026-03-15 10:30:00", rows[1][8])
	assert.Equal(t, "91.5", rows[2][6])
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, header, rows[0])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleLeads()))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)

	sheet := f.Sheets[0]
	assert.Equal(t, "Leads", sheet.Name)
	require.Len(t, sheet.Rows, 4)

	assert.Equal(t, "Company Name", sheet.Rows[0].Cells[0].Value)
	assert.Equal(t, "Acme Retail", sheet.Rows[1].Cells[0].Value)
	assert.Equal(t, "E-commerce", sheet.Rows[1].Cells[1].Value)
	assert.Equal(t, "91.5", sheet.Rows[2].Cells[6].Value)
}

func TestToFilePicksFormat(t *testing.T) {
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "leads.csv")
	require.NoError(t, ToFile(csvPath, sampleLeads()))
	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Company Name,Industry")

	xlsxPath := filepath.Join(dir, "leads.xlsx")
	require.NoError(t, ToFile(xlsxPath, sampleLeads()))
	f, err := xlsx.OpenFile(xlsxPath)
	require.NoError(t, err)
	assert.Len(t, f.Sheets, 1)
}

func TestReport(t *testing.T) {
	stats := &model.LeadStats{
		TotalLeads:    3,
		NewLeads:      2,
		AssessedLeads: 1,
		AverageScore:  67.8,
	}
	report := Report(stats, sampleLeads())

	assert.Contains(t, report, "Total leads: 3")
	assert.Contains(t, report, "Average lead score: 67.8")

	// Highest score listed first.
	assert.Contains(t, report, "1. Beta Travel (Score: 91.5)")
	assert.Contains(t, report, "2. Acme Retail (Score: 72)")

	// Industry breakdown, most populous first.
	eIdx := strings.Index(report, "E-commerce: 2 leads")
	tIdx := strings.Index(report, "Travel: 1 leads")
	require.NotEqual(t, -1, eIdx)
	require.NotEqual(t, -1, tIdx)
	assert.Less(t, eIdx, tIdx)
}

func TestReportEmpty(t *testing.T) {
	report := Report(&model.LeadStats{}, nil)
	assert.Contains(t, report, "Total leads: 0")
	assert.Contains(t, report, "Top 0 High-Score Leads")
}

func TestReportTruncatesWhyFit(t *testing.T) {
	long := make([]byte, 120)
	for i := range long {
		long[i] = 'x'
	}
	leads := []model.Lead{{CompanyName: "Long Co", WhyFit: string(long)}}
	report := Report(&model.LeadStats{TotalLeads: 1}, leads)

	assert.Contains(t, report, string(long[:80])+"...")
	assert.NotContains(t, report, string(long))
}
