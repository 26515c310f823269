// Package testutil provides shared test helpers for content trees and report databases.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/wikipress/internal/report"
)

// ContentTree writes files (slash-separated relative path → content) under a
// fresh temporary directory and returns its path.
func ContentTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

// ReportDB creates a temporary SQLite report database that is automatically cleaned up.
func ReportDB(t *testing.T) *report.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "wikipress-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := report.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
