package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadscore/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testLead(name string) *model.Lead {
	return &model.Lead{
		CompanyName: name,
		Industry:    "e-commerce",
		Description: "online store",
		SourceURL:   "https://" + name + ".example.com",
		SearchQuery: "online stores in fintech",
	}
}

// --- Leads ---

func TestSQLite_CreateAndGetLead(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := st.CreateLead(ctx, testLead("acme"))
	require.NoError(t, err)
	assert.Greater(t, created.ID, int64(0))
	assert.Equal(t, model.LeadStatusNew, created.Status)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := st.GetLead(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme", got.CompanyName)
	assert.Equal(t, "e-commerce", got.Industry)
	assert.Equal(t, model.LeadStatusNew, got.Status)
	assert.Nil(t, got.Assessment)
}

func TestSQLite_GetLead_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetLead(context.Background(), 9999)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_ListLeads_StatusFilter(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateLead(ctx, testLead("acme"))
	require.NoError(t, err)
	_, err = st.CreateLead(ctx, testLead("globex"))
	require.NoError(t, err)

	require.NoError(t, st.SaveAssessment(ctx, a.ID, &model.Assessment{LeadScore: 75}))

	assessed, err := st.ListLeads(ctx, LeadFilter{Status: model.LeadStatusAssessed})
	require.NoError(t, err)
	require.Len(t, assessed, 1)
	assert.Equal(t, "acme", assessed[0].CompanyName)

	fresh, err := st.ListLeads(ctx, LeadFilter{Status: model.LeadStatusNew})
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, "globex", fresh[0].CompanyName)
}

func TestSQLite_ListLeads_MinScoreAndOrder(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	low, err := st.CreateLead(ctx, testLead("low"))
	require.NoError(t, err)
	high, err := st.CreateLead(ctx, testLead("high"))
	require.NoError(t, err)

	require.NoError(t, st.SaveAssessment(ctx, low.ID, &model.Assessment{LeadScore: 20}))
	require.NoError(t, st.SaveAssessment(ctx, high.ID, &model.Assessment{LeadScore: 90}))

	leads, err := st.ListLeads(ctx, LeadFilter{MinScore: 50})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "high", leads[0].CompanyName)

	all, err := st.ListLeads(ctx, LeadFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	// Highest score first.
	assert.Equal(t, "high", all[0].CompanyName)
}

func TestSQLite_ListLeads_LimitOffset(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		_, err := st.CreateLead(ctx, testLead(name))
		require.NoError(t, err)
	}

	page, err := st.ListLeads(ctx, LeadFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	rest, err := st.ListLeads(ctx, LeadFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, rest, 1)

	all, err := st.ListLeads(ctx, LeadFilter{Limit: -1})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSQLite_CountLeads(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateLead(ctx, testLead("acme"))
	require.NoError(t, err)
	_, err = st.CreateLead(ctx, testLead("globex"))
	require.NoError(t, err)
	require.NoError(t, st.SaveAssessment(ctx, a.ID, &model.Assessment{LeadScore: 50}))

	total, err := st.CountLeads(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	assessed, err := st.CountLeads(ctx, model.LeadStatusAssessed)
	require.NoError(t, err)
	assert.Equal(t, 1, assessed)
}

func TestSQLite_ListUnassessed_OldestFirst(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first, err := st.CreateLead(ctx, testLead("first"))
	require.NoError(t, err)
	_, err = st.CreateLead(ctx, testLead("second"))
	require.NoError(t, err)
	assessed, err := st.CreateLead(ctx, testLead("done"))
	require.NoError(t, err)
	require.NoError(t, st.SaveAssessment(ctx, assessed.ID, &model.Assessment{LeadScore: 10}))

	leads, err := st.ListUnassessed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.Equal(t, first.ID, leads[0].ID)
	assert.Equal(t, "first", leads[0].CompanyName)
}

func TestSQLite_ListUnassessed_ZeroLimitReturnsAll(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for i := 0; i < 120; i++ {
		_, err := st.CreateLead(ctx, testLead(fmt.Sprintf("lead-%03d", i)))
		require.NoError(t, err)
	}

	leads, err := st.ListUnassessed(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, leads, 120)
}

// --- Assessments ---

func TestSQLite_SaveAssessment_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	lead, err := st.CreateLead(ctx, testLead("acme"))
	require.NoError(t, err)

	a := model.NewAssessment()
	a.Values["tech_stack"] = "Shopify"
	a.Values["traffic_check"] = 0.6
	a.LeadScore = 72
	a.Rationales["tech_stack"] = "built on Shopify"
	a.Snippets["tech_stack"] = []model.Snippet{
		{Query: "q", Title: "t", Snippet: "s", Link: "https://x.example.com"},
	}

	require.NoError(t, st.SaveAssessment(ctx, lead.ID, a))

	got, err := st.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusAssessed, got.Status)
	assert.Equal(t, float64(72), got.LeadScore)
	require.NotNil(t, got.Assessment)
	assert.Equal(t, "Shopify", got.Assessment.Values["tech_stack"])
	assert.Equal(t, 0.6, got.Assessment.Values["traffic_check"])
	assert.Equal(t, "built on Shopify", got.Assessment.Rationales["tech_stack"])
	require.Len(t, got.Assessment.Snippets["tech_stack"], 1)
	assert.Equal(t, "https://x.example.com", got.Assessment.Snippets["tech_stack"][0].Link)
}

func TestSQLite_SaveAssessment_UnknownLead(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.SaveAssessment(context.Background(), 404, &model.Assessment{LeadScore: 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lead not found")
}

func TestSQLite_SaveAssessment_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	lead, err := st.CreateLead(ctx, testLead("acme"))
	require.NoError(t, err)

	require.NoError(t, st.SaveAssessment(ctx, lead.ID, &model.Assessment{LeadScore: 40}))
	require.NoError(t, st.SaveAssessment(ctx, lead.ID, &model.Assessment{LeadScore: 55}))

	got, err := st.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(55), got.LeadScore)
	assert.Equal(t, model.LeadStatusAssessed, got.Status)
}

// --- Stats ---

func TestSQLite_Stats(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateLead(ctx, testLead("a"))
	require.NoError(t, err)
	b, err := st.CreateLead(ctx, testLead("b"))
	require.NoError(t, err)
	_, err = st.CreateLead(ctx, testLead("c"))
	require.NoError(t, err)

	require.NoError(t, st.SaveAssessment(ctx, a.ID, &model.Assessment{LeadScore: 60}))
	require.NoError(t, st.SaveAssessment(ctx, b.ID, &model.Assessment{LeadScore: 80}))

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalLeads)
	assert.Equal(t, 1, stats.NewLeads)
	assert.Equal(t, 2, stats.AssessedLeads)
	assert.InDelta(t, 70, stats.AverageScore, 0.001)
}

func TestSQLite_Stats_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)

	stats, err := st.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalLeads)
	assert.Equal(t, float64(0), stats.AverageScore)
}

// --- Search queries ---

func TestSQLite_SaveSearchQuery(t *testing.T) {
	st := newTestSQLiteStore(t)

	rec := model.SearchQueryRecord{
		ID:         uuid.New().String(),
		Query:      "online stores in fintech",
		LeadsFound: 4,
	}
	require.NoError(t, st.SaveSearchQuery(context.Background(), rec))
}

// --- Search cache ---

func TestSQLite_SearchCache_SetAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetCachedSearch(ctx, "hash123", []byte(`[{"title":"t"}]`), time.Hour))

	data, err := st.GetCachedSearch(ctx, "hash123")
	require.NoError(t, err)
	assert.Equal(t, `[{"title":"t"}]`, string(data))
}

func TestSQLite_SearchCache_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	data, err := st.GetCachedSearch(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestSQLite_SearchCache_Expired(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetCachedSearch(ctx, "old", []byte("data"), -time.Hour))

	data, err := st.GetCachedSearch(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestSQLite_SearchCache_Upsert(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetCachedSearch(ctx, "h", []byte("v1"), time.Hour))
	require.NoError(t, st.SetCachedSearch(ctx, "h", []byte("v2"), time.Hour))

	data, err := st.GetCachedSearch(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestSQLite_DeleteExpiredSearches(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetCachedSearch(ctx, "fresh", []byte("a"), time.Hour))
	require.NoError(t, st.SetCachedSearch(ctx, "stale", []byte("b"), -time.Hour))

	n, err := st.DeleteExpiredSearches(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	data, err := st.GetCachedSearch(ctx, "fresh")
	require.NoError(t, err)
	assert.NotNil(t, data)
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
}
