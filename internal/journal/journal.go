// Package journal provides a SQLite-backed append-only trace of runtime
// lifecycle events: contextualizations, decontextualizations, behavior
// instantiations, teardowns, and delivered change notifications.
//
// The journal records runtime *events*, never context *state*. Every
// event carries a monotonic logical seq (never wall time) and the wave
// token of the update pass that produced it, so reads ordered by seq
// are deterministic across identical runs.
//
// # Database configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Kind classifies a journal event.
type Kind string

const (
	// KindContextualized records a context joining its type bucket.
	KindContextualized Kind = "contextualized"
	// KindDecontextualized records a context leaving its type bucket.
	KindDecontextualized Kind = "decontextualized"
	// KindInstantiated records a behavior instance being assembled.
	KindInstantiated Kind = "instantiated"
	// KindTornDown records a behavior instance being destroyed.
	KindTornDown Kind = "torn_down"
	// KindChange records a change notification being delivered.
	KindChange Kind = "change"
)

// Event is one journal record.
type Event struct {
	// Seq is the logical clock stamp; unique and strictly increasing.
	Seq int64

	// Wave is the update-pass token, or "external" for events produced
	// outside an update (direct contextualize/decontextualize calls).
	Wave string

	// Kind classifies the event.
	Kind Kind

	// ContextType and ContextID identify the affected context, when any.
	ContextType string
	ContextID   int64

	// Field names the changed state field for change events.
	Field string

	// Behavior names the behavior type for instantiation and teardown
	// events.
	Behavior string
}

const schema = `
CREATE TABLE IF NOT EXISTS events (
    seq          INTEGER PRIMARY KEY,
    wave         TEXT NOT NULL,
    kind         TEXT NOT NULL,
    context_type TEXT NOT NULL DEFAULT '',
    context_id   INTEGER NOT NULL DEFAULT 0,
    field        TEXT NOT NULL DEFAULT '',
    behavior     TEXT NOT NULL DEFAULT ''
);
`

// Journal is an append-only SQLite event log.
type Journal struct {
	db *sql.DB
}

// Open opens (creating if needed) a journal at path. Use ":memory:"
// for an ephemeral journal.
func Open(path string) (*Journal, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	// The runtime is single-writer; one connection keeps :memory:
	// journals from silently splitting into separate databases.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Append writes one event. Appends are idempotent per seq: replaying
// an already-journaled seq is ignored.
func (j *Journal) Append(ev Event) error {
	_, err := j.db.Exec(
		`INSERT INTO events (seq, wave, kind, context_type, context_id, field, behavior)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(seq) DO NOTHING`,
		ev.Seq, ev.Wave, string(ev.Kind), ev.ContextType, ev.ContextID, ev.Field, ev.Behavior,
	)
	if err != nil {
		return fmt.Errorf("append event seq=%d: %w", ev.Seq, err)
	}
	return nil
}

// ReadAll returns every event ordered by seq ascending.
// Deterministic: identical runs read identical traces.
func (j *Journal) ReadAll() ([]Event, error) {
	rows, err := j.db.Query(
		`SELECT seq, wave, kind, context_type, context_id, field, behavior
		 FROM events ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ReadWave returns the events of one wave ordered by seq ascending.
func (j *Journal) ReadWave(wave string) ([]Event, error) {
	rows, err := j.db.Query(
		`SELECT seq, wave, kind, context_type, context_id, field, behavior
		 FROM events WHERE wave = ? ORDER BY seq ASC`, wave)
	if err != nil {
		return nil, fmt.Errorf("read wave %s: %w", wave, err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// Len returns the number of journaled events.
func (j *Journal) Len() (int, error) {
	var n int
	if err := j.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// Close releases the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var ev Event
		var kind string
		if err := rows.Scan(&ev.Seq, &ev.Wave, &kind, &ev.ContextType, &ev.ContextID, &ev.Field, &ev.Behavior); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind = Kind(kind)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
