/*
Package file provides the JSON-file snapshot store.

PURPOSE:
  The canonical persistence for the customer ledger: one JSON document
  mapping customer id to record, rewritten after every durable mutation.
  Writes go to a temp file in the same directory followed by an atomic
  rename, so a crash mid-write can never leave a truncated snapshot.

TOLERANCE:
  A missing file loads as an empty snapshot. A corrupt file returns an
  error; the ledger starts empty and the caller logs a warning instead of
  failing startup.

SEE ALSO:
  - sale/store.go: The contract this implements
  - store/sqlite: The SQLite-backed alternative
*/
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vendbot/sale-engine/sale"
)

// Store persists snapshots to a single JSON file.
type Store struct {
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

// Load reads the last snapshot. A missing file is an empty ledger.
func (s *Store) Load(_ context.Context) (sale.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return sale.Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", s.path, err)
	}

	var snap sale.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", s.path, err)
	}
	if snap == nil {
		snap = sale.Snapshot{}
	}
	return snap, nil
}

// Save writes the snapshot via temp file + rename.
func (s *Store) Save(_ context.Context, snap sale.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace snapshot %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) Close() error { return nil }
