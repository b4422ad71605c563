/*
store.go - Persistence interface for the customer ledger

PURPOSE:
  Defines the boundary between the ledger and durable storage. Persistence
  is a whole-ledger snapshot: every durable mutation rewrites the snapshot.
  There is no write-ahead log; a crash between mutation and persist loses
  that mutation. That trade-off is deliberate for this domain's write
  volume and is documented here rather than silently assumed.

IMPLEMENTATIONS:
  - store/file:   JSON snapshot file, temp-write + atomic rename
  - store/sqlite: SQLite-backed snapshot (same contract)

SEE ALSO:
  - ledger.go: Calls Save under its critical section
*/
package sale

import "context"

// Store persists whole-ledger snapshots.
type Store interface {
	// Load returns the last snapshot. A missing snapshot is not an error:
	// implementations return an empty Snapshot. A corrupt snapshot returns
	// an error; the caller decides whether to start empty.
	Load(ctx context.Context) (Snapshot, error)

	// Save atomically replaces the previous snapshot.
	Save(ctx context.Context, snap Snapshot) error

	Close() error
}
