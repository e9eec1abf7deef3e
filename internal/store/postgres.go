package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-finder/internal/model"
)

// Pool is the subset of *pgxpool.Pool the sink uses.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// PostgresSink stores results in Postgres. Each Record runs in its own
// transaction.
type PostgresSink struct {
	pool  Pool
	runID string
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresSink with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresSink, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
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

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresSink{pool: pool, runID: uuid.NewString()}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS discovery_results (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id       TEXT NOT NULL,
	organization TEXT NOT NULL,
	website      TEXT NOT NULL DEFAULT '',
	email        TEXT NOT NULL DEFAULT '',
	method       TEXT NOT NULL,
	recorded_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (organization, email)
);

CREATE INDEX IF NOT EXISTS idx_discovery_results_run_id ON discovery_results(run_id);
CREATE INDEX IF NOT EXISTS idx_discovery_results_email ON discovery_results(email);
`

// Migrate creates the results table.
func (s *PostgresSink) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// RunID identifies the rows written through this sink.
func (s *PostgresSink) RunID() string {
	return s.runID
}

const insertResult = `INSERT INTO discovery_results (id, run_id, organization, website, email, method)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (organization, email) DO NOTHING`

// Record implements Sink.
func (s *PostgresSink) Record(ctx context.Context, org model.Organization, emails []string, method model.Method) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, r := range rowsFor(org, emails, method) {
		if _, err := tx.Exec(ctx, insertResult,
			uuid.NewString(), s.runID, r.Organization, r.Website, r.Email, string(r.Method),
		); err != nil {
			return eris.Wrapf(err, "postgres: insert result for %s", org.Name)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit")
}

// Recorded implements Sink.
func (s *PostgresSink) Recorded(ctx context.Context) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT organization FROM discovery_results`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: recorded")
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan organization")
		}
		done[name] = true
	}
	return done, eris.Wrap(rows.Err(), "postgres: recorded rows")
}

// Rows implements Reader.
func (s *PostgresSink) Rows(ctx context.Context) ([]Row, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT organization, website, email, method FROM discovery_results ORDER BY organization, email`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: rows")
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var method string
		if err := rows.Scan(&r.Organization, &r.Website, &r.Email, &method); err != nil {
			return nil, eris.Wrap(err, "postgres: scan row")
		}
		r.Method = model.Method(method)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: rows")
}

// Close implements Sink.
func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}
