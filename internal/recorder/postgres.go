package recorder

import (
	"context"
	"embed"
	"errors"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/comp-pricer/internal/db"
	"github.com/sells-group/comp-pricer/internal/model"
)

//go:embed migrations/*.sql
var migrations embed.FS

var (
	pgInsertResult = `INSERT INTO pricing_results (` + strings.Join(resultColumns, ", ") +
		`) VALUES (` + placeholders(len(resultColumns), true) + `)`

	pgSelectResult = `SELECT ` + strings.Join(resultColumns, ", ") + ` FROM pricing_results`
	pgGetResult    = pgSelectResult + ` WHERE id = $1`
	pgListResults  = pgSelectResult + ` WHERE request_id = $1 ORDER BY created_at, id`

	pgSelectContributions = `SELECT ` + strings.Join(contributionColumns, ", ") +
		` FROM pricing_contributions WHERE result_id = ANY($1) ORDER BY result_id, ordinal`
)

// PostgresRecorder implements Recorder on pgx.
type PostgresRecorder struct {
	pool db.Pool
	dsn  string
}

// NewPostgres creates a PostgresRecorder. dsn is only used by Migrate.
func NewPostgres(pool db.Pool, dsn string) *PostgresRecorder {
	return &PostgresRecorder{pool: pool, dsn: dsn}
}

// Record writes the result row and its contribution rows in one
// transaction. Any failure rolls the whole write back.
func (p *PostgresRecorder) Record(ctx context.Context, r *model.PricingResult) error {
	args, err := resultArgs(r)
	if err != nil {
		return err
	}
	rows := contributionRows(r)

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return storageErr("begin transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, pgInsertResult, args...); err != nil {
		return storageErr("insert result", err)
	}
	if _, err := db.CopyFrom(ctx, tx, "pricing_contributions", contributionColumns, rows); err != nil {
		return storageErr("insert contributions", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return storageErr("commit", err)
	}

	zap.L().Debug("recorder: result recorded",
		zap.String("result_id", r.ID),
		zap.String("request_id", r.RequestID),
		zap.Int("contributions", len(rows)),
	)
	return nil
}

// Get loads one result with its contributions.
func (p *PostgresRecorder) Get(ctx context.Context, id string) (*model.PricingResult, error) {
	var row resultRow
	if err := p.pool.QueryRow(ctx, pgGetResult, id).Scan(row.dest()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "id %s", id)
		}
		return nil, storageErr("get result", err)
	}
	r, err := row.result()
	if err != nil {
		return nil, err
	}
	results := []model.PricingResult{r}
	if err := p.attachContributions(ctx, results); err != nil {
		return nil, err
	}
	return &results[0], nil
}

// ListByRequest returns every result recorded for requestID, oldest first.
func (p *PostgresRecorder) ListByRequest(ctx context.Context, requestID string) ([]model.PricingResult, error) {
	rows, err := p.pool.Query(ctx, pgListResults, requestID)
	if err != nil {
		return nil, storageErr("list results", err)
	}
	defer rows.Close()

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
	if err := p.attachContributions(ctx, results); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *PostgresRecorder) attachContributions(ctx context.Context, results []model.PricingResult) error {
	ids := make([]string, len(results))
	byID := make(map[string]int, len(results))
	for i, r := range results {
		ids[i] = r.ID
		byID[r.ID] = i
	}

	rows, err := p.pool.Query(ctx, pgSelectContributions, ids)
	if err != nil {
		return storageErr("list contributions", err)
	}
	defer rows.Close()

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

// Migrate applies the embedded schema migrations. An up-to-date schema is
// not an error.
func (p *PostgresRecorder) Migrate(ctx context.Context) error {
	if p.dsn == "" {
		return eris.New("recorder: migrate requires a database url")
	}
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return eris.Wrap(err, "recorder: open migrations")
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, p.dsn)
	if err != nil {
		return storageErr("open migrator", err)
	}
	defer func() { _, _ = m.Close() }()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-done:
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return storageErr("migrate up", err)
	}

	v, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return storageErr("migration version", err)
	}
	zap.L().Info("recorder: schema migrated", zap.Uint("version", v), zap.Bool("dirty", dirty))
	return nil
}

// Close releases the connection pool.
func (p *PostgresRecorder) Close() error {
	p.pool.Close()
	return nil
}
