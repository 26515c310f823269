package report

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/wikipress/internal/apperr"
	"github.com/starford/wikipress/internal/wikilink"
)

// Build summarises one pipeline run.
type Build struct {
	ID               string    `json:"id"`
	Root             string    `json:"root"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	Documents        int       `json:"documents"`
	IndexedDocuments int       `json:"indexed_documents"`
	IndexedAssets    int       `json:"indexed_assets"`
	Unresolved       int       `json:"unresolved"`
}

// SourceRef is a reference together with the document it appeared in.
type SourceRef struct {
	Source string `json:"source"`
	wikilink.Reference
}

// Filter narrows a References query.
type Filter struct {
	// UnresolvedOnly keeps document_unresolved and asset_unresolved rows.
	UnresolvedOnly bool
	Outcome        string
	Source         string
	Limit          int
}

// RecordBuild stores b and its references within a transaction.
func (db *DB) RecordBuild(b Build, refs []SourceRef) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("report: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO builds (id, root, started_at, finished_at, documents, indexed_documents, indexed_assets, unresolved)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.Root, b.StartedAt.UTC(), b.FinishedAt.UTC(), b.Documents, b.IndexedDocuments, b.IndexedAssets, b.Unresolved)
	if err != nil {
		return fmt.Errorf("report: insert build: %w", err)
	}

	if len(refs) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO refs (build_id, source, position, kind, target, display, outcome, dir)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("report: prepare ref insert: %w", err)
		}
		defer stmt.Close()
		for i, r := range refs {
			if _, err := stmt.Exec(b.ID, r.Source, i, r.Kind.String(), r.Target, r.Display, r.Outcome.String(), r.Dir); err != nil {
				return fmt.Errorf("report: insert ref: %w", err)
			}
		}
	}

	return tx.Commit()
}

// LatestBuild returns the most recently started build, or apperr.ErrNotFound.
func (db *DB) LatestBuild() (*Build, error) {
	row := db.conn.QueryRow(`
		SELECT id, root, started_at, finished_at, documents, indexed_documents, indexed_assets, unresolved
		FROM builds
		ORDER BY started_at DESC
		LIMIT 1
	`)
	var b Build
	err := row.Scan(&b.ID, &b.Root, &b.StartedAt, &b.FinishedAt, &b.Documents, &b.IndexedDocuments, &b.IndexedAssets, &b.Unresolved)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("report: latest build: %w", err)
	}
	return &b, nil
}

// References lists the references recorded for buildID in recording order.
func (db *DB) References(buildID string, f Filter) ([]SourceRef, error) {
	var (
		where = []string{"build_id = ?"}
		args  = []any{buildID}
	)
	if f.UnresolvedOnly {
		where = append(where, "outcome IN (?, ?)")
		args = append(args, wikilink.DocumentUnresolved.String(), wikilink.AssetUnresolved.String())
	}
	if f.Outcome != "" {
		where = append(where, "outcome = ?")
		args = append(args, f.Outcome)
	}
	if f.Source != "" {
		where = append(where, "source = ?")
		args = append(args, f.Source)
	}
	query := `SELECT source, kind, target, display, outcome, dir FROM refs WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY position`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("report: references: %w", err)
	}
	defer rows.Close()

	var out []SourceRef
	for rows.Next() {
		var (
			r             SourceRef
			kind, outcome string
		)
		if err := rows.Scan(&r.Source, &kind, &r.Target, &r.Display, &outcome, &r.Dir); err != nil {
			return nil, err
		}
		r.Kind, _ = wikilink.ParseKind(kind)
		r.Outcome, _ = wikilink.ParseOutcome(outcome)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Prune deletes all but the keep most recent builds. keep <= 0 keeps everything.
func (db *DB) Prune(keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := db.conn.Exec(`
		DELETE FROM builds WHERE id NOT IN (
			SELECT id FROM builds ORDER BY started_at DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("report: prune: %w", err)
	}
	return res.RowsAffected()
}
