/*
Package sqlite provides a SQLite-backed implementation of the snapshot store.

PURPOSE:
  Same contract as store/file, different medium: every Save replaces the
  customers table inside one transaction, so a reader never observes a
  half-written snapshot. Useful when the operator surface runs SQL tooling
  against the ledger or when the JSON file grows unwieldy.

KEY TABLE:
  customers: one row per customer, message log as a JSON column

WAL MODE:
  Opened with WAL for better crash recovery and so operator-side readers
  don't block the writer.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool with versioned migrations.

SEE ALSO:
  - sale/store.go: Interface definition
  - store/file: The JSON-file implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vendbot/sale-engine/sale"
)

// Store implements sale.Store using SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; also keeps :memory: databases on one connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		messages_json TEXT NOT NULL,
		stage TEXT NOT NULL,
		pending_code_digest TEXT NOT NULL DEFAULT '',
		support_access INTEGER NOT NULL DEFAULT 0,
		support_contacted INTEGER NOT NULL DEFAULT 0,
		last_prompt_message_id INTEGER NOT NULL DEFAULT 0
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load rebuilds the snapshot from the customers table.
func (s *Store) Load(ctx context.Context) (sale.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, messages_json, stage, pending_code_digest,
		       support_access, support_contacted, last_prompt_message_id
		FROM customers`)
	if err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	defer rows.Close()

	snap := sale.Snapshot{}
	for rows.Next() {
		var (
			id, messagesJSON string
			rec              sale.CustomerRecord
			stage            string
		)
		if err := rows.Scan(&id, &rec.Name, &messagesJSON, &stage,
			&rec.PendingCodeDigest, &rec.SupportAccess, &rec.SupportContacted,
			&rec.LastPromptMessageID); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		rec.Stage = sale.Stage(stage)
		if err := json.Unmarshal([]byte(messagesJSON), &rec.Messages); err != nil {
			return nil, fmt.Errorf("decode messages for customer %s: %w", id, err)
		}
		snap[id] = &rec
	}
	return snap, rows.Err()
}

// Save replaces the whole table in one transaction.
func (s *Store) Save(ctx context.Context, snap sale.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM customers`); err != nil {
		return fmt.Errorf("clear customers: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO customers
			(id, name, messages_json, stage, pending_code_digest,
			 support_access, support_contacted, last_prompt_message_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for id, rec := range snap {
		messagesJSON, err := json.Marshal(rec.Messages)
		if err != nil {
			return fmt.Errorf("encode messages for customer %s: %w", id, err)
		}
		if _, err := stmt.ExecContext(ctx, id, rec.Name, string(messagesJSON),
			string(rec.Stage), rec.PendingCodeDigest, rec.SupportAccess,
			rec.SupportContacted, rec.LastPromptMessageID); err != nil {
			return fmt.Errorf("insert customer %s: %w", id, err)
		}
	}
	return tx.Commit()
}
