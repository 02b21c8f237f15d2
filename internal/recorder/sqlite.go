package recorder

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/comp-pricer/internal/model"
)

// SQLiteRecorder implements Recorder using modernc.org/sqlite, for local
// runs without a Postgres server.
type SQLiteRecorder struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteRecorder, error) {
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
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteRecorder{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS pricing_results (
	id                TEXT PRIMARY KEY,
	request_id        TEXT NOT NULL,
	title             TEXT NOT NULL,
	match_code        TEXT NOT NULL DEFAULT '',
	match_method      TEXT NOT NULL,
	p10               REAL NOT NULL,
	p25               REAL NOT NULL,
	p50               REAL NOT NULL,
	p75               REAL NOT NULL,
	p90               REAL NOT NULL,
	target            REAL NOT NULL,
	target_percentile REAL NOT NULL,
	range_low         REAL NOT NULL,
	range_high        REAL NOT NULL,
	currency          TEXT NOT NULL,
	period            TEXT NOT NULL,
	confidence        INTEGER NOT NULL CHECK (confidence BETWEEN 0 AND 100),
	level             TEXT NOT NULL,
	fallback          BOOLEAN NOT NULL DEFAULT 0,
	job_query         TEXT NOT NULL,
	job_match         TEXT NOT NULL,
	breakdown         TEXT NOT NULL,
	scenarios         TEXT NOT NULL,
	quality_flags     TEXT NOT NULL,
	explanation       TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS pricing_contributions (
	result_id      TEXT NOT NULL REFERENCES pricing_results(id) ON DELETE CASCADE,
	ordinal        INTEGER NOT NULL,
	source         TEXT NOT NULL,
	nominal_weight REAL NOT NULL,
	applied_weight REAL NOT NULL CHECK (applied_weight BETWEEN 0 AND 1),
	decay          REAL NOT NULL CHECK (decay BETWEEN 0 AND 1),
	p10            REAL NOT NULL,
	p25            REAL NOT NULL,
	p50            REAL NOT NULL,
	p75            REAL NOT NULL,
	p90            REAL NOT NULL,
	sample_size    INTEGER NOT NULL,
	as_of          DATETIME,
	quality        REAL NOT NULL,
	currency       TEXT NOT NULL,
	period         TEXT NOT NULL,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (result_id, source)
);

CREATE INDEX IF NOT EXISTS idx_pricing_results_request_id ON pricing_results(request_id, created_at);
CREATE INDEX IF NOT EXISTS idx_pricing_contributions_result ON pricing_contributions(result_id, ordinal);
`

var (
	sqliteInsertResult = `INSERT INTO pricing_results (` + strings.Join(resultColumns, ", ") +
		`) VALUES (` + placeholders(len(resultColumns), false) + `)`
	sqliteInsertContribution = `INSERT INTO pricing_contributions (` + strings.Join(contributionColumns, ", ") +
		`) VALUES (` + placeholders(len(contributionColumns), false) + `)`

	sqliteSelectResult = `SELECT ` + strings.Join(resultColumns, ", ") + ` FROM pricing_results`
)

func (s *SQLiteRecorder) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteRecorder) Close() error {
	return s.db.Close()
}

// Record writes the result and its contributions in one transaction.
func (s *SQLiteRecorder) Record(ctx context.Context, r *model.PricingResult) error {
	args, err := resultArgs(r)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, sqliteInsertResult, args...); err != nil {
		return storageErr("insert result", err)
	}

	rows := contributionRows(r)
	if len(rows) > 0 {
		stmt, err := tx.PrepareContext(ctx, sqliteInsertContribution)
		if err != nil {
			return storageErr("prepare contributions", err)
		}
		defer stmt.Close() //nolint:errcheck
		for _, row := range rows {
			if _, err := stmt.ExecContext(ctx, row...); err != nil {
				return storageErr("insert contributions", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit", err)
	}

	zap.L().Debug("sqlite: result recorded",
		zap.String("result_id", r.ID),
		zap.String("request_id", r.RequestID),
		zap.Int("contributions", len(rows)),
	)
	return nil
}

func (s *SQLiteRecorder) Get(ctx context.Context, id string) (*model.PricingResult, error) {
	var row resultRow
	err := s.db.QueryRowContext(ctx, sqliteSelectResult+` WHERE id = ?`, id).Scan(row.dest()...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "id %s", id)
		}
		return nil, storageErr("get result", err)
	}
	r, err := row.result()
	if err != nil {
		return nil, err
	}
	results := []model.PricingResult{r}
	if err := s.attachContributions(ctx, results); err != nil {
		return nil, err
	}
	return &results[0], nil
}

func (s *SQLiteRecorder) ListByRequest(ctx context.Context, requestID string) ([]model.PricingResult, error) {
	rows, err := s.db.QueryContext(ctx, sqliteSelectResult+` WHERE request_id = ? ORDER BY created_at, id`, requestID)
	if err != nil {
		return nil, storageErr("list results", err)
	}
	defer rows.Close() //nolint:errcheck

	var results []model.PricingResult
	for rows.Next() {
		var row resultRow
		if err := rows.Scan(row.dest()...); err != nil {
			return nil, storageErr("scan result", err)
		}
		r, err := row.result()
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list results", err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	if err := s.attachContributions(ctx, results); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *SQLiteRecorder) attachContributions(ctx context.Context, results []model.PricingResult) error {
	ids := make([]any, len(results))
	byID := make(map[string]int, len(results))
	for i, r := range results {
		ids[i] = r.ID
		byID[r.ID] = i
	}

	query := `SELECT ` + strings.Join(contributionColumns, ", ") +
		` FROM pricing_contributions WHERE result_id IN (` + placeholders(len(ids), false) +
		`) ORDER BY result_id, ordinal`
	rows, err := s.db.QueryContext(ctx, query, ids...)
	if err != nil {
		return storageErr("list contributions", err)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var row contributionRow
		if err := rows.Scan(row.dest()...); err != nil {
			return storageErr("scan contribution", err)
		}
		c, err := row.contribution()
		if err != nil {
			return err
		}
		if i, ok := byID[row.resultID]; ok {
			results[i].Contributions = append(results[i].Contributions, c)
		}
	}
	if err := rows.Err(); err != nil {
		return storageErr("list contributions", err)
	}
	return nil
}
