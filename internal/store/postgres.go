package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscore/internal/model"
)

// Pool is the subset of pgxpool.Pool used by the store. Tests substitute
// a pgxmock pool through this interface.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_lead":         `INSERT INTO leads (company_name, industry, description, why_fit, source_url, company_size, search_query, lead_score, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
	"get_lead":            `SELECT id, company_name, industry, description, why_fit, source_url, company_size, search_query, lead_score, status, assessment, created_at, updated_at FROM leads WHERE id = $1`,
	"save_assessment":     `UPDATE leads SET assessment = $1, lead_score = $2, status = $3, updated_at = $4 WHERE id = $5`,
	"insert_search_query": `INSERT INTO search_queries (id, query, leads_found, raw_response, created_at) VALUES ($1, $2, $3, $4, $5)`,
	"get_cached_search":   `SELECT results FROM search_cache WHERE query_hash = $1 AND expires_at > now()`,
	"set_cached_search":   `INSERT INTO search_cache (query_hash, results, cached_at, expires_at) VALUES ($1, $2, $3, $4) ON CONFLICT (query_hash) DO UPDATE SET results = EXCLUDED.results, cached_at = EXCLUDED.cached_at, expires_at = EXCLUDED.expires_at`,
	"delete_expired":      `DELETE FROM search_cache WHERE expires_at <= now()`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id           BIGSERIAL PRIMARY KEY,
	company_name TEXT NOT NULL,
	industry     TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	why_fit      TEXT NOT NULL DEFAULT '',
	source_url   TEXT NOT NULL DEFAULT '',
	company_size TEXT NOT NULL DEFAULT '',
	search_query TEXT NOT NULL DEFAULT '',
	lead_score   DOUBLE PRECISION NOT NULL DEFAULT 0,
	status       TEXT NOT NULL DEFAULT 'new',
	assessment   JSONB,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS search_queries (
	id           TEXT PRIMARY KEY,
	query        TEXT NOT NULL,
	leads_found  INTEGER NOT NULL DEFAULT 0,
	raw_response TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS search_cache (
	query_hash TEXT PRIMARY KEY,
	results    JSONB NOT NULL,
	cached_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at);
CREATE INDEX IF NOT EXISTS idx_search_cache_expires_at ON search_cache(expires_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) CreateLead(ctx context.Context, lead *model.Lead) (*model.Lead, error) {
	now := time.Now().UTC()
	status := lead.Status
	if status == "" {
		status = model.LeadStatusNew
	}

	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO leads (company_name, industry, description, why_fit, source_url, company_size, search_query, lead_score, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
		lead.CompanyName, lead.Industry, lead.Description, lead.WhyFit, lead.SourceURL,
		lead.CompanySize, lead.SearchQuery, lead.LeadScore, string(status), now, now,
	).Scan(&id)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert lead")
	}

	out := *lead
	out.ID = id
	out.Status = status
	out.CreatedAt = now
	out.UpdatedAt = now
	return &out, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, id int64) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, company_name, industry, description, why_fit, source_url, company_size, search_query, lead_score, status, assessment, created_at, updated_at FROM leads WHERE id = $1`,
		id,
	)
	return scanPgLead(row)
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT id, company_name, industry, description, why_fit, source_url, company_size, search_query, lead_score, status, assessment, created_at, updated_at FROM leads WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.MinScore > 0 {
		query += fmt.Sprintf(` AND lead_score >= $%d`, argIdx)
		args = append(args, filter.MinScore)
		argIdx++
	}
	query += ` ORDER BY lead_score DESC, created_at DESC`

	if filter.Limit >= 0 {
		limit := filter.Limit
		if limit == 0 {
			limit = 100
		}
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, limit)
		argIdx++

		if filter.Offset > 0 {
			query += fmt.Sprintf(` OFFSET $%d`, argIdx)
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	return collectPgLeads(rows)
}

func (s *PostgresStore) CountLeads(ctx context.Context, status model.LeadStatus) (int, error) {
	query := `SELECT COUNT(*) FROM leads`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}

	var n int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "postgres: count leads")
	}
	return n, nil
}

func (s *PostgresStore) ListUnassessed(ctx context.Context, limit int) ([]model.Lead, error) {
	query := `SELECT id, company_name, industry, description, why_fit, source_url, company_size, search_query, lead_score, status, assessment, created_at, updated_at FROM leads WHERE status != $1 ORDER BY created_at ASC`
	args := []any{string(model.LeadStatusAssessed)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list unassessed")
	}
	defer rows.Close()

	return collectPgLeads(rows)
}

func (s *PostgresStore) SaveAssessment(ctx context.Context, leadID int64, a *model.Assessment) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal assessment")
	}

	// Single UPDATE: score, payload, and status land together or not at all.
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET assessment = $1, lead_score = $2, status = $3, updated_at = $4 WHERE id = $5`,
		payload, a.LeadScore, string(model.LeadStatusAssessed), time.Now().UTC(), leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save assessment for lead %d", leadID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("lead not found: %d", leadID)
	}
	return nil
}

func (s *PostgresStore) Stats(ctx context.Context) (*model.LeadStats, error) {
	var stats model.LeadStats
	var avg *float64

	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'new' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'assessed' THEN 1 ELSE 0 END), 0),
		       AVG(CASE WHEN status = 'assessed' THEN lead_score END)
		FROM leads`,
	).Scan(&stats.TotalLeads, &stats.NewLeads, &stats.AssessedLeads, &avg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats")
	}
	if avg != nil {
		stats.AverageScore = *avg
	}
	return &stats, nil
}

func (s *PostgresStore) SaveSearchQuery(ctx context.Context, rec model.SearchQueryRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO search_queries (id, query, leads_found, raw_response, created_at) VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.Query, rec.LeadsFound, rec.RawResponse, createdAt,
	)
	return eris.Wrap(err, "postgres: insert search query")
}

func (s *PostgresStore) GetCachedSearch(ctx context.Context, queryHash string) ([]byte, error) {
	var results []byte
	err := s.pool.QueryRow(ctx,
		`SELECT results FROM search_cache WHERE query_hash = $1 AND expires_at > now()`,
		queryHash,
	).Scan(&results)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get cached search")
	}
	return results, nil
}

func (s *PostgresStore) SetCachedSearch(ctx context.Context, queryHash string, data []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO search_cache (query_hash, results, cached_at, expires_at) VALUES ($1, $2, $3, $4) ON CONFLICT (query_hash) DO UPDATE SET results = EXCLUDED.results, cached_at = EXCLUDED.cached_at, expires_at = EXCLUDED.expires_at`,
		queryHash, data, now, now.Add(ttl),
	)
	return eris.Wrap(err, "postgres: set cached search")
}

func (s *PostgresStore) DeleteExpiredSearches(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM search_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired searches")
	}
	return int(tag.RowsAffected()), nil
}

func scanPgLead(row pgx.Row) (*model.Lead, error) {
	var l model.Lead
	var status string
	var assessmentJSON []byte

	err := row.Scan(&l.ID, &l.CompanyName, &l.Industry, &l.Description, &l.WhyFit,
		&l.SourceURL, &l.CompanySize, &l.SearchQuery, &l.LeadScore, &status,
		&assessmentJSON, &l.CreatedAt, &l.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, eris.New("lead not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan lead")
	}

	l.Status = model.LeadStatus(status)
	if len(assessmentJSON) > 0 {
		l.Assessment = &model.Assessment{}
		if err := json.Unmarshal(assessmentJSON, l.Assessment); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal assessment")
		}
	}
	return &l, nil
}

func collectPgLeads(rows pgx.Rows) ([]model.Lead, error) {
	var leads []model.Lead
	for rows.Next() {
		l, err := scanPgLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: iterate leads")
}
