package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/buyer-group-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
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
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	company_name TEXT NOT NULL,
	request      TEXT NOT NULL,
	stage        TEXT NOT NULL DEFAULT 'pending',
	error_code   TEXT NOT NULL DEFAULT '',
	error        TEXT NOT NULL DEFAULT '',
	result       TEXT,
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS run_stages (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	stage       TEXT NOT NULL,
	status      TEXT NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	items       INTEGER NOT NULL DEFAULT 0,
	warnings    INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT '',
	started_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS company_cache (
	cache_key   TEXT PRIMARY KEY,
	company_id  TEXT NOT NULL,
	company     TEXT NOT NULL,
	resolved_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS buyer_group_cache (
	company_id   TEXT NOT NULL,
	profile_hash TEXT NOT NULL,
	response     TEXT NOT NULL,
	cached_at    DATETIME NOT NULL,
	expires_at   DATETIME NOT NULL,
	PRIMARY KEY (company_id, profile_hash)
);

CREATE INDEX IF NOT EXISTS idx_runs_stage ON runs(stage);
CREATE INDEX IF NOT EXISTS idx_runs_company_name ON runs(company_name);
CREATE INDEX IF NOT EXISTS idx_run_stages_run_id ON run_stages(run_id);
CREATE INDEX IF NOT EXISTS idx_buyer_group_cache_expires_at ON buyer_group_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, req model.Request) (*model.Run, error) {
	id := uuid.New().String()
	now := s.now()

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal request")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, company_name, request, stage, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, req.CompanyName, string(reqJSON), string(model.StagePending), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Request:   req,
		Stage:     model.StagePending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStage(ctx context.Context, runID string, stage model.Stage) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET stage = ?, updated_at = ? WHERE id = ?`,
		string(stage), s.now(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run stage %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, code model.ErrorCode, msg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET stage = ?, error_code = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(model.StageFailed), string(code), msg, s.now(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, result *model.Response) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET result = ?, stage = ?, error_code = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), string(model.StageComplete), string(result.Code), s.now(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

const sqliteRunColumns = `id, request, stage, error_code, error, result, created_at, updated_at`

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteRunColumns+` FROM runs WHERE id = ?`, runID)
	r, err := scanRun(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, stage, status, duration_ms, items, warnings, error, started_at
		 FROM run_stages WHERE run_id = ? ORDER BY started_at, rowid`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list stages")
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var st model.StageRecord
		if err := rows.Scan(&st.ID, &st.RunID, &st.Stage, &st.Status, &st.DurationMs, &st.Items, &st.Warnings, &st.Error, &st.StartedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan stage")
		}
		r.Stages = append(r.Stages, st)
	}
	return r, eris.Wrap(rows.Err(), "sqlite: list stages iterate")
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + sqliteRunColumns + ` FROM runs WHERE 1=1`
	var args []any

	if filter.Stage != "" {
		query += ` AND stage = ?`
		args = append(args, string(filter.Stage))
	}
	if filter.CompanyName != "" {
		query += ` AND company_name LIKE ?`
		args = append(args, "%"+filter.CompanyName+"%")
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) RecordStage(ctx context.Context, rec model.StageRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_stages (id, run_id, stage, status, duration_ms, items, warnings, error, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RunID, string(rec.Stage), string(rec.Status), rec.DurationMs, rec.Items, rec.Warnings, rec.Error, rec.StartedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: record stage %s for run %s", rec.Stage, rec.RunID)
}

func (s *SQLiteStore) GetCompany(ctx context.Context, key string, maxAge time.Duration) (*model.Company, error) {
	query := `SELECT company FROM company_cache WHERE cache_key = ?`
	args := []any{key}
	if maxAge > 0 {
		query += ` AND resolved_at > ?`
		args = append(args, s.now().Add(-maxAge))
	}

	var data string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get company")
	}

	var c model.Company
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal company")
	}
	return &c, nil
}

func (s *SQLiteStore) SetCompany(ctx context.Context, key string, company model.Company) error {
	data, err := json.Marshal(company)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal company")
	}
	resolvedAt := company.ResolvedAt
	if resolvedAt.IsZero() {
		resolvedAt = s.now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO company_cache (cache_key, company_id, company, resolved_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET company_id = excluded.company_id, company = excluded.company, resolved_at = excluded.resolved_at`,
		key, company.ID, string(data), resolvedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: set company")
}

func (s *SQLiteStore) GetBuyerGroup(ctx context.Context, companyID, profileHash string) (*model.Response, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT response FROM buyer_group_cache WHERE company_id = ? AND profile_hash = ? AND expires_at > ?`,
		companyID, profileHash, s.now(),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get buyer group")
	}

	var resp model.Response
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal buyer group")
	}
	return &resp, nil
}

func (s *SQLiteStore) SetBuyerGroup(ctx context.Context, companyID, profileHash string, resp *model.Response, ttl time.Duration) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal buyer group")
	}
	now := s.now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO buyer_group_cache (company_id, profile_hash, response, cached_at, expires_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(company_id, profile_hash) DO UPDATE SET response = excluded.response, cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		companyID, profileHash, string(data), now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: set buyer group")
}

func (s *SQLiteStore) InvalidateBuyerGroups(ctx context.Context, companyID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM buyer_group_cache WHERE company_id = ?`, companyID)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: invalidate buyer groups %s", companyID)
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) DeleteExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM buyer_group_cache WHERE expires_at <= ?`, s.now())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var reqJSON string
	var resultJSON sql.NullString

	err := row.Scan(&r.ID, &reqJSON, &r.Stage, &r.ErrorCode, &r.Error, &resultJSON, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if err := json.Unmarshal([]byte(reqJSON), &r.Request); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal request")
	}
	if resultJSON.Valid {
		r.Result = &model.Response{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	return &r, nil
}
