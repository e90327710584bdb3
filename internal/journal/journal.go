// Package journal records builtin calls into a sqlite database so that runs
// of the CLI and the remote host can be inspected afterwards.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/funvibe/glitteral/internal/builtins"
	"github.com/funvibe/glitteral/internal/literal"
)

const schema = `
CREATE TABLE IF NOT EXISTS calls (
	id          TEXT PRIMARY KEY,
	session     TEXT NOT NULL,
	name        TEXT NOT NULL,
	args        TEXT NOT NULL,
	result      TEXT NOT NULL,
	error_kind  TEXT NOT NULL,
	error       TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	duration_ns INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS calls_started ON calls (started_at);
`

// Entry is one recorded call.
type Entry struct {
	ID        string
	Session   string
	Name      string
	Args      string // literal form, e.g. [1, 2.0, "x"]
	Result    string // literal form, empty on failure
	ErrorKind string // empty on success
	Error     string
	Started   time.Time
	Duration  time.Duration
}

// Failed reports whether the call returned an error.
func (e Entry) Failed() bool { return e.ErrorKind != "" }

// NewEntry captures a finished call. args are rendered after the call, so
// in-place mutation is visible.
func NewEntry(session, name string, args []builtins.Value, result builtins.Value, callErr error, started time.Time, d time.Duration) Entry {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = literal.Format(a)
	}
	e := Entry{
		ID:       uuid.NewString(),
		Session:  session,
		Name:     name,
		Args:     "[" + strings.Join(parts, ", ") + "]",
		Started:  started,
		Duration: d,
	}
	if callErr != nil {
		e.ErrorKind = builtins.KindOf(callErr).String()
		e.Error = callErr.Error()
	} else {
		e.Result = literal.Format(result)
	}
	return e
}

// Stat aggregates the calls of one builtin.
type Stat struct {
	Name     string
	Calls    int64
	Failures int64
	Total    time.Duration
}

type Journal struct {
	db *sql.DB
}

// Open opens (creating if needed) the journal at path. ":memory:" works for
// throwaway journals.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", path, err)
	}
	// A :memory: database lives and dies with its connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating journal schema in %s: %w", path, err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Record inserts one entry.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO calls (id, session, name, args, result, error_kind, error, started_at, duration_ns)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Session, e.Name, e.Args, e.Result, e.ErrorKind, e.Error,
		e.Started.UnixNano(), int64(e.Duration))
	if err != nil {
		return fmt.Errorf("recording %s: %w", e.Name, err)
	}
	return nil
}

// Recent returns the last n entries, newest first.
func (j *Journal) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, errors.New("recent: n must be positive")
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, session, name, args, result, error_kind, error, started_at, duration_ns
		 FROM calls ORDER BY started_at DESC, rowid DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("querying recent calls: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var started, dur int64
		if err := rows.Scan(&e.ID, &e.Session, &e.Name, &e.Args, &e.Result, &e.ErrorKind, &e.Error, &started, &dur); err != nil {
			return nil, fmt.Errorf("scanning call: %w", err)
		}
		e.Started = time.Unix(0, started)
		e.Duration = time.Duration(dur)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats returns per-builtin totals ordered by name.
func (j *Journal) Stats(ctx context.Context) ([]Stat, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT name, COUNT(*), SUM(CASE WHEN error_kind != '' THEN 1 ELSE 0 END), SUM(duration_ns)
		 FROM calls GROUP BY name ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying call stats: %w", err)
	}
	defer rows.Close()

	var stats []Stat
	for rows.Next() {
		var s Stat
		var total int64
		if err := rows.Scan(&s.Name, &s.Calls, &s.Failures, &total); err != nil {
			return nil, fmt.Errorf("scanning stats: %w", err)
		}
		s.Total = time.Duration(total)
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
