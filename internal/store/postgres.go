package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/buyer-group-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
	now     func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements are prepared on each new connection.
var preparedStatements = map[string]string{
	"insert_run":        `INSERT INTO runs (id, company_name, request, stage, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"update_run_stage":  `UPDATE runs SET stage = $1, updated_at = $2 WHERE id = $3`,
	"get_run":           `SELECT id, request, stage, error_code, error, result, created_at, updated_at FROM runs WHERE id = $1`,
	"insert_stage":      `INSERT INTO run_stages (id, run_id, stage, status, duration_ms, items, warnings, error, started_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
	"get_buyer_group":   `SELECT response FROM buyer_group_cache WHERE company_id = $1 AND profile_hash = $2 AND expires_at > now()`,
	"get_company":       `SELECT company FROM company_cache WHERE cache_key = $1 AND resolved_at > $2`,
	"delete_expired_bg": `DELETE FROM buyer_group_cache WHERE expires_at <= now()`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

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
	return &PostgresStore{pool: pool, closeFn: pool.Close, now: utcNow}, nil
}

func utcNow() time.Time { return time.Now().UTC() }

func (s *PostgresStore) clock() time.Time {
	if s.now == nil {
		return utcNow()
	}
	return s.now()
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	company_name TEXT NOT NULL,
	request      JSONB NOT NULL,
	stage        TEXT NOT NULL DEFAULT 'pending',
	error_code   TEXT NOT NULL DEFAULT '',
	error        TEXT NOT NULL DEFAULT '',
	result       JSONB,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_stages (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	stage       TEXT NOT NULL,
	status      TEXT NOT NULL,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	items       INTEGER NOT NULL DEFAULT 0,
	warnings    INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS company_cache (
	cache_key   TEXT PRIMARY KEY,
	company_id  TEXT NOT NULL,
	company     JSONB NOT NULL,
	resolved_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS buyer_group_cache (
	company_id   TEXT NOT NULL,
	profile_hash TEXT NOT NULL,
	response     JSONB NOT NULL,
	cached_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (company_id, profile_hash)
);

CREATE INDEX IF NOT EXISTS idx_runs_stage ON runs(stage);
CREATE INDEX IF NOT EXISTS idx_runs_company_name ON runs(company_name);
CREATE INDEX IF NOT EXISTS idx_run_stages_run_id ON run_stages(run_id);
CREATE INDEX IF NOT EXISTS idx_buyer_group_cache_expires_at ON buyer_group_cache(expires_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

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

func (s *PostgresStore) CreateRun(ctx context.Context, req model.Request) (*model.Run, error) {
	id := uuid.New().String()
	now := s.clock()

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal request")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, company_name, request, stage, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, req.CompanyName, reqJSON, string(model.StagePending), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Request:   req,
		Stage:     model.StagePending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStage(ctx context.Context, runID string, stage model.Stage) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET stage = $1, updated_at = $2 WHERE id = $3`,
		string(stage), s.clock(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run stage %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, code model.ErrorCode, msg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET stage = $1, error_code = $2, error = $3, updated_at = $4 WHERE id = $5`,
		string(model.StageFailed), string(code), msg, s.clock(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, result *model.Response) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET result = $1, stage = $2, error_code = $3, updated_at = $4 WHERE id = $5`,
		resultJSON, string(model.StageComplete), string(result.Code), s.clock(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	r, err := scanPgRun(s.pool.QueryRow(ctx,
		`SELECT id, request, stage, error_code, error, result, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, stage, status, duration_ms, items, warnings, error, started_at
		 FROM run_stages WHERE run_id = $1 ORDER BY started_at`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list stages")
	}
	defer rows.Close()

	for rows.Next() {
		var st model.StageRecord
		if err := rows.Scan(&st.ID, &st.RunID, &st.Stage, &st.Status, &st.DurationMs, &st.Items, &st.Warnings, &st.Error, &st.StartedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan stage")
		}
		r.Stages = append(r.Stages, st)
	}
	return r, eris.Wrap(rows.Err(), "postgres: list stages iterate")
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, request, stage, error_code, error, result, created_at, updated_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Stage != "" {
		query += fmt.Sprintf(` AND stage = $%d`, argIdx)
		args = append(args, string(filter.Stage))
		argIdx++
	}
	if filter.CompanyName != "" {
		query += fmt.Sprintf(` AND company_name ILIKE $%d`, argIdx)
		args = append(args, "%"+filter.CompanyName+"%")
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) RecordStage(ctx context.Context, rec model.StageRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = s.clock()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO run_stages (id, run_id, stage, status, duration_ms, items, warnings, error, started_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.RunID, string(rec.Stage), string(rec.Status), rec.DurationMs, rec.Items, rec.Warnings, rec.Error, rec.StartedAt,
	)
	return eris.Wrapf(err, "postgres: record stage %s for run %s", rec.Stage, rec.RunID)
}

func (s *PostgresStore) GetCompany(ctx context.Context, key string, maxAge time.Duration) (*model.Company, error) {
	// A zero maxAge accepts any age.
	since := time.Time{}
	if maxAge > 0 {
		since = s.clock().Add(-maxAge)
	}

	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT company FROM company_cache WHERE cache_key = $1 AND resolved_at > $2`,
		key, since,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get company")
	}

	var c model.Company
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal company")
	}
	return &c, nil
}

func (s *PostgresStore) SetCompany(ctx context.Context, key string, company model.Company) error {
	data, err := json.Marshal(company)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal company")
	}
	resolvedAt := company.ResolvedAt
	if resolvedAt.IsZero() {
		resolvedAt = s.clock()
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO company_cache (cache_key, company_id, company, resolved_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (cache_key) DO UPDATE SET company_id = EXCLUDED.company_id, company = EXCLUDED.company, resolved_at = EXCLUDED.resolved_at`,
		key, company.ID, data, resolvedAt,
	)
	return eris.Wrap(err, "postgres: set company")
}

func (s *PostgresStore) GetBuyerGroup(ctx context.Context, companyID, profileHash string) (*model.Response, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT response FROM buyer_group_cache WHERE company_id = $1 AND profile_hash = $2 AND expires_at > now()`,
		companyID, profileHash,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get buyer group")
	}

	var resp model.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal buyer group")
	}
	return &resp, nil
}

func (s *PostgresStore) SetBuyerGroup(ctx context.Context, companyID, profileHash string, resp *model.Response, ttl time.Duration) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal buyer group")
	}
	now := s.clock()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO buyer_group_cache (company_id, profile_hash, response, cached_at, expires_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (company_id, profile_hash) DO UPDATE SET response = EXCLUDED.response, cached_at = EXCLUDED.cached_at, expires_at = EXCLUDED.expires_at`,
		companyID, profileHash, data, now, now.Add(ttl),
	)
	return eris.Wrap(err, "postgres: set buyer group")
}

func (s *PostgresStore) InvalidateBuyerGroups(ctx context.Context, companyID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM buyer_group_cache WHERE company_id = $1`, companyID)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: invalidate buyer groups %s", companyID)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM buyer_group_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired")
	}
	return int(tag.RowsAffected()), nil
}

func scanPgRun(row scannable) (*model.Run, error) {
	var r model.Run
	var reqJSON []byte
	var resultNull *[]byte

	if err := row.Scan(&r.ID, &reqJSON, &r.Stage, &r.ErrorCode, &r.Error, &resultNull, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(reqJSON, &r.Request); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal request")
	}
	if resultNull != nil {
		r.Result = &model.Response{}
		if err := json.Unmarshal(*resultNull, r.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	return &r, nil
}
