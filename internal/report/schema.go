// Package report stores build diagnostics in SQLite: one row per build and
// one row per rewritten wiki-link, so unresolved references can be listed
// after the fact. It is never consulted to skip work in later builds.
package report

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS builds (
	id                TEXT PRIMARY KEY,
	root              TEXT NOT NULL,
	started_at        DATETIME NOT NULL,
	finished_at       DATETIME NOT NULL,
	documents         INTEGER NOT NULL DEFAULT 0,
	indexed_documents INTEGER NOT NULL DEFAULT 0,
	indexed_assets    INTEGER NOT NULL DEFAULT 0,
	unresolved        INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS refs (
	build_id TEXT NOT NULL REFERENCES builds(id) ON DELETE CASCADE,
	source   TEXT NOT NULL,
	position INTEGER NOT NULL,
	kind     TEXT NOT NULL,
	target   TEXT NOT NULL,
	display  TEXT NOT NULL,
	outcome  TEXT NOT NULL,
	dir      TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_refs_build ON refs(build_id, outcome);
CREATE INDEX IF NOT EXISTS idx_builds_started ON builds(started_at);
`

// DB wraps a sql.DB with report-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("report: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("report: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("report: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
