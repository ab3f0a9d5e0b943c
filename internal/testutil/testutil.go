// Package testutil provides shared test helpers for setting up ledgers and
// history databases.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ashwell/tally/internal/history"
	"github.com/ashwell/tally/internal/storage"
)

// TestLedger creates a ledger backed by a file inside a temporary directory.
// The backing file does not exist until the first write.
func TestLedger(t *testing.T) *storage.Ledger {
	t.Helper()
	l, err := storage.NewLedger(filepath.Join(t.TempDir(), "transactions.csv"))
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	return l
}

// TestHistory creates a temporary SQLite history log that is automatically
// cleaned up.
func TestHistory(t *testing.T) *history.Log {
	t.Helper()
	dbFile, err := os.CreateTemp("", "tally-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	log, err := history.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { log.Close() })
	return log
}
