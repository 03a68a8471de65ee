package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/geo-enrich/internal/model"
	"github.com/sells-group/geo-enrich/pkg/geocode"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One writer keeps the ledger upsert and run updates serialized.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
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
	id         TEXT PRIMARY KEY,
	dataset    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	summary    TEXT,
	error      TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS daily_usage (
	day      TEXT PRIMARY KEY,
	requests INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS geocode_cache (
	address_hash TEXT PRIMARY KEY,
	latitude     REAL NOT NULL,
	longitude    REAL NOT NULL,
	precision    TEXT NOT NULL DEFAULT '',
	label        TEXT NOT NULL DEFAULT '',
	cached_at    INTEGER NOT NULL,
	expires_at   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_geocode_cache_expires_at ON geocode_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, runID, dataset string) (*model.Run, error) {
	now := s.now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, dataset, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		runID, dataset, string(model.RunStatusRunning), now.UnixNano(), now.UnixNano(),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert run %s", runID)
	}
	return &model.Run{
		ID:        runID,
		Dataset:   dataset,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, summary *model.RunSummary, runErr error) error {
	var summaryJSON sql.NullString
	status := model.RunStatusFailed
	if summary != nil {
		b, err := json.Marshal(summary)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal summary")
		}
		summaryJSON = sql.NullString{String: string(b), Valid: true}
		status = model.StatusFor(summary.StopReason)
	}

	var errMsg sql.NullString
	if runErr != nil {
		errMsg = sql.NullString{String: runErr.Error(), Valid: true}
		if status == model.RunStatusCompleted {
			status = model.RunStatusFailed
		}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, summary = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), summaryJSON, errMsg, s.now().UnixNano(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, dataset, status, summary, error, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, dataset, status, summary, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

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

func (s *SQLiteStore) UsageOn(ctx context.Context, day string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT requests FROM daily_usage WHERE day = ?`, day).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: usage on %s", day)
	}
	return n, nil
}

func (s *SQLiteStore) AddUsage(ctx context.Context, day string, n int) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO daily_usage (day, requests) VALUES (?, ?)
		ON CONFLICT (day) DO UPDATE SET requests = requests + excluded.requests
		RETURNING requests`,
		day, n,
	).Scan(&total)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: add usage on %s", day)
	}
	return total, nil
}

func (s *SQLiteStore) ListUsage(ctx context.Context, limit int) ([]model.DailyUsage, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT day, requests FROM daily_usage ORDER BY day DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list usage")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.DailyUsage
	for rows.Next() {
		var u model.DailyUsage
		if err := rows.Scan(&u.Day, &u.Requests); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan usage")
		}
		out = append(out, u)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list usage iterate")
}

func (s *SQLiteStore) GetCachedCoordinates(ctx context.Context, key string) (*geocode.Result, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT latitude, longitude, precision, label FROM geocode_cache
		 WHERE address_hash = ? AND expires_at > ?`,
		key, s.now().UnixNano(),
	)

	r := &geocode.Result{Found: true}
	err := row.Scan(&r.Latitude, &r.Longitude, &r.Precision, &r.Label)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached coordinates")
	}
	return r, nil
}

func (s *SQLiteStore) SetCachedCoordinates(ctx context.Context, key string, r *geocode.Result, ttl time.Duration) error {
	now := s.now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO geocode_cache (address_hash, latitude, longitude, precision, label, cached_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (address_hash) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			precision = excluded.precision,
			label = excluded.label,
			cached_at = excluded.cached_at,
			expires_at = excluded.expires_at`,
		key, r.Latitude, r.Longitude, r.Precision, r.Label, now.UnixNano(), now.Add(ttl).UnixNano(),
	)
	return eris.Wrap(err, "sqlite: set cached coordinates")
}

func (s *SQLiteStore) DeleteExpiredCoordinates(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM geocode_cache WHERE expires_at <= ?`, s.now().UnixNano(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired coordinates")
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
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var summaryJSON, errMsg sql.NullString
	var created, updated int64

	err := row.Scan(&r.ID, &r.Dataset, &r.Status, &summaryJSON, &errMsg, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	r.CreatedAt = time.Unix(0, created).UTC()
	r.UpdatedAt = time.Unix(0, updated).UTC()
	r.Error = errMsg.String
	if summaryJSON.Valid {
		r.Summary = &model.RunSummary{}
		if err := json.Unmarshal([]byte(summaryJSON.String), r.Summary); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal summary")
		}
	}
	return &r, nil
}
