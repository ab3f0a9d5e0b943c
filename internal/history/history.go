// Package history provides the SQLite-backed append-only edit log.
//
// Entries are keyed by record identifier and kept in insertion order, which
// is chronological order. Entries are never updated or pruned. The log is
// independent persisted state: no referential integrity with the ledger file
// is enforced beyond the identifier convention.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ashwell/tally/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS edits (
	seq       INTEGER PRIMARY KEY AUTOINCREMENT,
	record_id TEXT NOT NULL,
	at        DATETIME NOT NULL,
	original  TEXT NOT NULL,
	updated   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_edits_record ON edits(record_id);
`

// Entry is one recorded edit: the pre-edit snapshot of the record and the
// partial field set that was applied.
type Entry struct {
	Identifier string        `json:"id"`
	At         time.Time     `json:"timestamp"`
	Original   models.Record `json:"original"`
	Updated    models.Update `json:"updated"`
}

// Log wraps a sql.DB with edit-log operations.
type Log struct {
	conn *sql.DB
}

// Open opens (or creates) the history database and applies the schema.
func Open(dsn string) (*Log, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("history: apply schema: %w", err)
	}
	return &Log{conn: conn}, nil
}

// Close closes the underlying database connection.
func (l *Log) Close() error {
	return l.conn.Close()
}

// Append records one edit. Appends happen only after the edit durably
// applied to the ledger; the log must never record an edit that did not.
func (l *Log) Append(e Entry) error {
	original, err := json.Marshal(e.Original)
	if err != nil {
		return fmt.Errorf("history: marshal original: %w", err)
	}
	updated, err := json.Marshal(e.Updated)
	if err != nil {
		return fmt.Errorf("history: marshal update: %w", err)
	}
	_, err = l.conn.Exec(`
		INSERT INTO edits (record_id, at, original, updated)
		VALUES (?, ?, ?, ?)
	`, e.Identifier, e.At.UTC(), string(original), string(updated))
	if err != nil {
		return fmt.Errorf("history: append: %w", err)
	}
	return nil
}

// List returns every entry recorded for identifier, oldest first. An
// identifier with no history yields an empty list, not an error.
func (l *Log) List(identifier string) ([]Entry, error) {
	rows, err := l.conn.Query(`
		SELECT at, original, updated FROM edits
		WHERE record_id = ?
		ORDER BY seq
	`, identifier)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		e := Entry{Identifier: identifier}
		var original, updated string
		if err := rows.Scan(&e.At, &original, &updated); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(original), &e.Original); err != nil {
			return nil, fmt.Errorf("history: decode original: %w", err)
		}
		if err := json.Unmarshal([]byte(updated), &e.Updated); err != nil {
			return nil, fmt.Errorf("history: decode update: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
