// Package runlog persists pipeline state transitions to SQLite so failed runs
// can be inspected after the fact, raw rewriter response included.
//
//	store, _ := runlog.Open("runs.db")
//	defer store.Close()
//	pipe, _ := resumefit.New(cfg, rw, resumefit.WithRecorder(store))
package runlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/benjaminschreck/go-resumefit/pkg/resumefit"
)

// Schema for the run_transitions table. Applied by Open.
const Schema = `
CREATE TABLE IF NOT EXISTS run_transitions (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	mode TEXT NOT NULL,
	from_state TEXT NOT NULL,
	to_state TEXT NOT NULL,
	at INTEGER NOT NULL,
	stage TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	raw TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_run_transitions_run ON run_transitions(run_id, at);
CREATE INDEX IF NOT EXISTS idx_run_transitions_failed ON run_transitions(at) WHERE to_state = 'failed';
`

// ErrNoRecord is returned when a query matches nothing.
var ErrNoRecord = errors.New("runlog: no record")

// Record is one stored transition.
type Record struct {
	ID    string
	RunID string
	Mode  string
	From  string
	To    string
	At    time.Time
	Stage string
	Error string
	Raw   string
}

// Run summarises the latest known state of a run.
type Run struct {
	RunID   string
	Mode    string
	State   string
	Started time.Time
	Updated time.Time
}

// Store records transitions synchronously. It implements resumefit.Recorder.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// ":memory:" gives a private in-memory store.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}
	// a single connection keeps ":memory:" databases shared across calls
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply run log schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores one transition.
func (s *Store) Record(ctx context.Context, t resumefit.Transition) error {
	var errText string
	if t.Err != nil {
		errText = t.Err.Error()
	}
	at := t.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_transitions (id, run_id, mode, from_state, to_state, at, stage, error, raw)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), t.RunID, string(t.Mode), t.From.String(), t.To.String(),
		at.UnixMicro(), string(resumefit.StageOf(t.Err)), errText, t.Raw,
	)
	if err != nil {
		return fmt.Errorf("record transition: %w", err)
	}
	return nil
}

// Transitions returns every transition of a run in order.
func (s *Store) Transitions(ctx context.Context, runID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, mode, from_state, to_state, at, stage, error, raw
		FROM run_transitions WHERE run_id = ? ORDER BY at, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNoRecord)
	}
	return out, nil
}

// LastFailure returns the most recent transition into the failed state.
func (s *Store) LastFailure(ctx context.Context) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, run_id, mode, from_state, to_state, at, stage, error, raw
		FROM run_transitions WHERE to_state = ? ORDER BY at DESC, rowid DESC LIMIT 1`,
		resumefit.StateFailed.String())
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNoRecord
	}
	return rec, err
}

// Runs lists the most recently updated runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.run_id, t.mode, t.to_state, g.started, g.updated
		FROM run_transitions t
		JOIN (
			SELECT run_id, MIN(at) AS started, MAX(at) AS updated, MAX(rowid) AS last
			FROM run_transitions GROUP BY run_id
		) g ON t.rowid = g.last
		ORDER BY g.updated DESC, g.last DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started, updated int64
		if err := rows.Scan(&r.RunID, &r.Mode, &r.State, &started, &updated); err != nil {
			return nil, err
		}
		r.Started = time.UnixMicro(started).UTC()
		r.Updated = time.UnixMicro(updated).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var rec Record
	var at int64
	if err := sc.Scan(&rec.ID, &rec.RunID, &rec.Mode, &rec.From, &rec.To, &at, &rec.Stage, &rec.Error, &rec.Raw); err != nil {
		return Record{}, err
	}
	rec.At = time.UnixMicro(at).UTC()
	return rec, nil
}
