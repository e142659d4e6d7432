package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadscore/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	company_name TEXT NOT NULL,
	industry     TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	why_fit      TEXT NOT NULL DEFAULT '',
	source_url   TEXT NOT NULL DEFAULT '',
	company_size TEXT NOT NULL DEFAULT '',
	search_query TEXT NOT NULL DEFAULT '',
	lead_score   REAL NOT NULL DEFAULT 0,
	status       TEXT NOT NULL DEFAULT 'new',
	assessment   TEXT,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS search_queries (
	id           TEXT PRIMARY KEY,
	query        TEXT NOT NULL,
	leads_found  INTEGER NOT NULL DEFAULT 0,
	raw_response TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS search_cache (
	query_hash TEXT PRIMARY KEY,
	results    TEXT NOT NULL,
	cached_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at);
CREATE INDEX IF NOT EXISTS idx_search_cache_expires_at ON search_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateLead(ctx context.Context, lead *model.Lead) (*model.Lead, error) {
	now := time.Now().UTC()
	status := lead.Status
	if status == "" {
		status = model.LeadStatusNew
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (company_name, industry, description, why_fit, source_url, company_size, search_query, lead_score, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.CompanyName, lead.Industry, lead.Description, lead.WhyFit, lead.SourceURL,
		lead.CompanySize, lead.SearchQuery, lead.LeadScore, string(status), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert lead")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: last insert id")
	}

	out := *lead
	out.ID = id
	out.Status = status
	out.CreatedAt = now
	out.UpdatedAt = now
	return &out, nil
}

const leadColumns = `id, company_name, industry, description, why_fit, source_url, company_size, search_query, lead_score, status, assessment, created_at, updated_at`

func (s *SQLiteStore) GetLead(ctx context.Context, id int64) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = ?`, id,
	)
	return scanLead(row)
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.MinScore > 0 {
		query += ` AND lead_score >= ?`
		args = append(args, filter.MinScore)
	}
	query += ` ORDER BY lead_score DESC, created_at DESC`

	if filter.Limit >= 0 {
		limit := filter.Limit
		if limit == 0 {
			limit = 100
		}
		query += ` LIMIT ?`
		args = append(args, limit)

		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	return collectLeads(rows)
}

func (s *SQLiteStore) CountLeads(ctx context.Context, status model.LeadStatus) (int, error) {
	query := `SELECT COUNT(*) FROM leads`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: count leads")
	}
	return n, nil
}

func (s *SQLiteStore) ListUnassessed(ctx context.Context, limit int) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE status != ? ORDER BY created_at ASC`
	args := []any{string(model.LeadStatusAssessed)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list unassessed")
	}
	defer rows.Close()

	return collectLeads(rows)
}

func (s *SQLiteStore) SaveAssessment(ctx context.Context, leadID int64, a *model.Assessment) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal assessment")
	}

	// Single UPDATE: score, payload, and status land together or not at all.
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET assessment = ?, lead_score = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(payload), a.LeadScore, string(model.LeadStatusAssessed), time.Now().UTC(), leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save assessment for lead %d", leadID)
	}
	return checkRowsAffected(res, leadID)
}

func (s *SQLiteStore) Stats(ctx context.Context) (*model.LeadStats, error) {
	var stats model.LeadStats
	var avg sql.NullFloat64

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'new' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'assessed' THEN 1 ELSE 0 END), 0),
		       AVG(CASE WHEN status = 'assessed' THEN lead_score END)
		FROM leads`,
	).Scan(&stats.TotalLeads, &stats.NewLeads, &stats.AssessedLeads, &avg)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats")
	}
	if avg.Valid {
		stats.AverageScore = avg.Float64
	}
	return &stats, nil
}

func (s *SQLiteStore) SaveSearchQuery(ctx context.Context, rec model.SearchQueryRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO search_queries (id, query, leads_found, raw_response, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Query, rec.LeadsFound, rec.RawResponse, createdAt,
	)
	return eris.Wrap(err, "sqlite: insert search query")
}

func (s *SQLiteStore) GetCachedSearch(ctx context.Context, queryHash string) ([]byte, error) {
	var results string
	err := s.db.QueryRowContext(ctx,
		`SELECT results FROM search_cache WHERE query_hash = ? AND expires_at > datetime('now')`,
		queryHash,
	).Scan(&results)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached search")
	}
	return []byte(results), nil
}

func (s *SQLiteStore) SetCachedSearch(ctx context.Context, queryHash string, data []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO search_cache (query_hash, results, cached_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(query_hash) DO UPDATE SET results = excluded.results, cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		queryHash, string(data), now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: set cached search")
}

func (s *SQLiteStore) DeleteExpiredSearches(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM search_cache WHERE expires_at <= datetime('now')`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired searches")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

func checkRowsAffected(res sql.Result, leadID int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("lead not found: %d", leadID)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanLead(row scannable) (*model.Lead, error) {
	var l model.Lead
	var status string
	var assessmentJSON sql.NullString

	err := row.Scan(&l.ID, &l.CompanyName, &l.Industry, &l.Description, &l.WhyFit,
		&l.SourceURL, &l.CompanySize, &l.SearchQuery, &l.LeadScore, &status,
		&assessmentJSON, &l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("lead not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan lead")
	}

	l.Status = model.LeadStatus(status)
	if assessmentJSON.Valid && assessmentJSON.String != "" {
		l.Assessment = &model.Assessment{}
		if err := json.Unmarshal([]byte(assessmentJSON.String), l.Assessment); err != nil {
			return nil, eris.Wrap(err, "unmarshal assessment")
		}
	}
	return &l, nil
}

func collectLeads(rows *sql.Rows) ([]model.Lead, error) {
	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "iterate leads")
}
