package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/contact-finder/internal/model"
)

// SQLiteSink stores results in a SQLite database. Each Record runs in its
// own transaction.
type SQLiteSink struct {
	db    *sql.DB
	runID string
}

// NewSQLite opens a SQLite database at dsn and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=FULL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteSink{db: db, runID: uuid.NewString()}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS discovery_results (
	id           TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL,
	organization TEXT NOT NULL,
	website      TEXT NOT NULL DEFAULT '',
	email        TEXT NOT NULL DEFAULT '',
	method       TEXT NOT NULL,
	recorded_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (organization, email)
);

CREATE INDEX IF NOT EXISTS idx_discovery_results_run_id ON discovery_results(run_id);
CREATE INDEX IF NOT EXISTS idx_discovery_results_email ON discovery_results(email);
`

// Migrate creates the results table.
func (s *SQLiteSink) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// RunID identifies the rows written through this sink.
func (s *SQLiteSink) RunID() string {
	return s.runID
}

// Record implements Sink. Rows already present for (organization, email)
// are left untouched.
func (s *SQLiteSink) Record(ctx context.Context, org model.Organization, emails []string, method model.Method) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, r := range rowsFor(org, emails, method) {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO discovery_results (id, run_id, organization, website, email, method)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), s.runID, r.Organization, r.Website, r.Email, string(r.Method),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert result for %s", org.Name)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

// Recorded implements Sink.
func (s *SQLiteSink) Recorded(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT organization FROM discovery_results`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: recorded")
	}
	defer rows.Close() //nolint:errcheck

	done := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan organization")
		}
		done[name] = true
	}
	return done, eris.Wrap(rows.Err(), "sqlite: recorded rows")
}

// Rows implements Reader.
func (s *SQLiteSink) Rows(ctx context.Context) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT organization, website, email, method FROM discovery_results ORDER BY organization, email`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: rows")
	}
	defer rows.Close() //nolint:errcheck

	var out []Row
	for rows.Next() {
		var r Row
		var method string
		if err := rows.Scan(&r.Organization, &r.Website, &r.Email, &method); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan row")
		}
		r.Method = model.Method(method)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: rows")
}

// Close implements Sink.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
