package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/alexisbeaulieu97/flowcheck/internal/domain/result"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id           TEXT PRIMARY KEY,
	command          TEXT NOT NULL,
	mode             TEXT,
	dataset          TEXT,
	dataset_revision TEXT,
	seed             INTEGER NOT NULL,
	started_at       TEXT NOT NULL,
	finished_at      TEXT
);

CREATE TABLE IF NOT EXISTS results (
	kind        TEXT NOT NULL,
	identity    TEXT NOT NULL,
	run_id      TEXT NOT NULL,
	columns     TEXT NOT NULL,
	row_values  TEXT NOT NULL,
	updated_at  TEXT NOT NULL,
	PRIMARY KEY (kind, identity),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`

// Run describes one invocation recorded alongside its rows.
type Run struct {
	ID              string
	Command         string
	Mode            string
	Dataset         string
	DatasetRevision string
	Seed            uint64
	StartedAt       time.Time
}

// StoredRow is a row read back from the store.
type StoredRow struct {
	Kind     result.Kind
	Identity string
	RunID    string
	Columns  []string
	Values   []string
}

// Store keeps rows of every kind in SQLite, upserted by (kind, identity).
type Store struct {
	db  *sql.DB
	run Run
	now func() time.Time
}

// OpenStore opens a SQLite database and runs migrations.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	for _, stmt := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON", schema} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate %s: %w", path, err)
		}
	}
	return &Store{db: db, now: time.Now}, nil
}

// Begin records run and attributes every later write to it. A run without
// an ID gets a fresh one.
func (s *Store) Begin(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, command, mode, dataset, dataset_revision, seed, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Command, run.Mode, run.Dataset, run.DatasetRevision, int64(run.Seed),
		run.StartedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	s.run = run
	return run, nil
}

// Write implements ports.ResultSink.
func (s *Store) Write(ctx context.Context, row result.Row) error {
	if s.run.ID == "" {
		return fmt.Errorf("write %s: no run started", row.Identity())
	}
	columns, err := json.Marshal(row.Columns())
	if err != nil {
		return fmt.Errorf("marshal columns: %w", err)
	}
	values, err := json.Marshal(row.Values())
	if err != nil {
		return fmt.Errorf("marshal values: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO results (kind, identity, run_id, columns, row_values, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(kind, identity) DO UPDATE SET
			run_id = excluded.run_id,
			columns = excluded.columns,
			row_values = excluded.row_values,
			updated_at = excluded.updated_at`,
		string(row.Kind()), row.Identity(), s.run.ID, string(columns), string(values),
		s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", row.Identity(), err)
	}
	return nil
}

// Rows returns the stored rows of kind ordered by identity.
func (s *Store) Rows(ctx context.Context, kind result.Kind) ([]StoredRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT identity, run_id, columns, row_values FROM results WHERE kind = ? ORDER BY identity`,
		string(kind),
	)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []StoredRow
	for rows.Next() {
		r := StoredRow{Kind: kind}
		var columns, values string
		if err := rows.Scan(&r.Identity, &r.RunID, &columns, &values); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if err := json.Unmarshal([]byte(columns), &r.Columns); err != nil {
			return nil, fmt.Errorf("decode columns of %s: %w", r.Identity, err)
		}
		if err := json.Unmarshal([]byte(values), &r.Values); err != nil {
			return nil, fmt.Errorf("decode values of %s: %w", r.Identity, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Runs returns the number of recorded runs.
func (s *Store) Runs(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return n, nil
}

// Close marks the current run finished and closes the database.
func (s *Store) Close() error {
	if s.run.ID != "" {
		_, err := s.db.Exec(`UPDATE runs SET finished_at = ? WHERE run_id = ?`,
			s.now().UTC().Format(time.RFC3339Nano), s.run.ID)
		if err != nil {
			s.db.Close()
			return fmt.Errorf("finish run: %w", err)
		}
	}
	return s.db.Close()
}
