// Package storage owns the ledger's backing file. No other component reads
// or writes it directly.
package storage

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ashwell/tally/internal/apperr"
	"github.com/ashwell/tally/internal/checksum"
	"github.com/ashwell/tally/internal/models"
)

// Snapshot is one consistent view of the ledger.
//
// Revision identifies the exact file contents the snapshot was read from and
// must be presented back on ReplaceAll. Identifiers resolved against a
// snapshot are invalid once the store mutates.
type Snapshot struct {
	Records  []models.Record
	Revision string
	Exists   bool
}

// Ledger is a flat append-only record store over a single CSV file.
//
// Every mutation is a full load, mutate, rewrite cycle. The store provides
// two safeguards: an in-process mutex serializing Update and Append, and an
// optimistic revision check on ReplaceAll that refuses writes based on a
// stale snapshot. Reads never take the mutation lock.
type Ledger struct {
	path string
	mu   sync.Mutex
}

// NewLedger creates a ledger over the file at path. The file itself may not
// exist yet; its directory is created.
func NewLedger(path string) (*Ledger, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("storage: create data dir: %w", err)
	}
	return &Ledger{path: abs}, nil
}

// Path returns the absolute path of the backing file.
func (l *Ledger) Path() string { return l.path }

// LoadAll reads the full record sequence. An absent file is a valid empty
// store: the snapshot has no records, an empty revision, and Exists false.
func (l *Ledger) LoadAll() (Snapshot, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("storage: read ledger: %w", err)
	}
	records, err := decodeRows(data)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Records:  records,
		Revision: checksum.Sum(data),
		Exists:   true,
	}, nil
}

// ReplaceAll rewrites the entire record sequence atomically: tmp file →
// fsync → rename. The write is refused with ErrConcurrentModification when
// the file no longer matches the revision the caller's snapshot was read
// from. A failed write leaves the previous contents intact.
func (l *Ledger) ReplaceAll(records []models.Record, revision string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.replaceLocked(records, revision)
}

// Update runs one load+mutate+write cycle as an atomic unit. fn receives a
// fresh snapshot and returns the full sequence to persist. Returning an
// error from fn abandons the cycle without touching the file.
func (l *Ledger) Update(fn func(Snapshot) ([]models.Record, error)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap, err := l.LoadAll()
	if err != nil {
		return err
	}
	records, err := fn(snap)
	if err != nil {
		return err
	}
	return l.replaceLocked(records, snap.Revision)
}

// Append adds a single record to the end of the store. The file is created
// on first append.
func (l *Ledger) Append(rec models.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap, err := l.LoadAll()
	if err != nil {
		return err
	}
	return l.replaceLocked(append(snap.Records, rec), snap.Revision)
}

func (l *Ledger) replaceLocked(records []models.Record, revision string) error {
	current, err := os.ReadFile(l.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if revision != "" {
			return fmt.Errorf("storage: ledger file vanished: %w", apperr.ErrConcurrentModification)
		}
	case err != nil:
		return fmt.Errorf("storage: re-read ledger: %w", err)
	default:
		if checksum.Sum(current) != revision {
			return fmt.Errorf("storage: snapshot is stale: %w", apperr.ErrConcurrentModification)
		}
	}

	data, err := encodeRows(records)
	if err != nil {
		return err
	}

	dir := filepath.Dir(l.path)
	tmp, err := os.CreateTemp(dir, ".tally-tmp-*")
	if err != nil {
		return writeFailed("create temp", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return writeFailed("write temp", err)
	}
	if err := tmp.Sync(); err != nil {
		return writeFailed("fsync", err)
	}
	if err := tmp.Close(); err != nil {
		return writeFailed("close temp", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		return writeFailed("rename", err)
	}
	success = true
	return nil
}

func writeFailed(op string, err error) error {
	return fmt.Errorf("storage: %s: %v: %w", op, err, apperr.ErrStoreWriteFailed)
}

func decodeRows(data []byte) ([]models.Record, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1 // rows carry three or four fields
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("storage: parse ledger: %w", err)
	}
	records := make([]models.Record, len(rows))
	for i, row := range rows {
		records[i] = models.FromRow(row)
	}
	return records, nil
}

func encodeRows(records []models.Record) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, rec := range records {
		if err := w.Write(rec.Row()); err != nil {
			return nil, writeFailed("encode row", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, writeFailed("encode", err)
	}
	return buf.Bytes(), nil
}
