/*
ledger.go - The shared customer ledger

PURPOSE:
  The ledger is the single source of truth for all customer records and the
  only process-wide mutable state. Two scheduling domains touch it: the
  messaging loop and the operator surface. Every mutation is a critical
  section: acquire the lock, apply the change, persist the snapshot,
  release. Reads hand out copies, never interior pointers.

MUTATION DISCIPLINE:
  Upsert/Update are the only sanctioned read-modify-write paths. The
  mutator runs under the lock and reports whether it changed the record;
  only changes are persisted and announced. Persistence happens before the
  lock is released, because the snapshot covers the whole ledger and a
  concurrent mutator would otherwise race the serialization.

DEGRADED DURABILITY:
  A failed snapshot write never corrupts or rolls back the in-memory
  state. The mutation stands, callers receive ErrSnapshotFailed, and the
  next successful persist repairs durability.

SEE ALSO:
  - store.go: The snapshot contract
  - machine.go: Runs its transitions inside Upsert/Update mutators
*/
package sale

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Ledger is the concurrently-shared mapping of customer id to record.
type Ledger struct {
	store Store

	mu      sync.Mutex
	records map[CustomerID]*CustomerRecord
	changed chan struct{}
}

// NewLedger creates an empty ledger backed by store. Call Load to restore
// the last snapshot.
func NewLedger(store Store) *Ledger {
	return &Ledger{
		store:   store,
		records: make(map[CustomerID]*CustomerRecord),
		changed: make(chan struct{}),
	}
}

// Load restores the last snapshot. On a corrupt snapshot the ledger stays
// empty and the error is returned so the caller can log a warning; startup
// must not fail over a bad snapshot file.
func (l *Ledger) Load(ctx context.Context) error {
	snap, err := l.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, rec := range snap {
		id, err := ParseCustomerID(key)
		if err != nil {
			return fmt.Errorf("load snapshot: bad customer key %q: %w", key, err)
		}
		l.records[id] = rec
	}
	return nil
}

// Get returns a copy of the record, if any.
func (l *Ledger) Get(id CustomerID) (CustomerRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[id]
	if !ok {
		return CustomerRecord{}, false
	}
	return rec.Clone(), true
}

// List returns operator-facing summaries of every customer, ordered by id.
func (l *Ledger) List() []Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Summary, 0, len(l.records))
	for id, rec := range l.records {
		out = append(out, Summary{
			ID:            id,
			Name:          rec.Name,
			Stage:         rec.Stage,
			SupportAccess: rec.SupportAccess,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IDs returns every known customer id, ordered. Used for broadcasts.
func (l *Ledger) IDs() []CustomerID {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]CustomerID, 0, len(l.records))
	for id := range l.records {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Upsert runs mutate on the customer's record, creating it first if the
// customer is new. If mutate reports a change (or the record was just
// created) the snapshot is persisted before the lock is released.
func (l *Ledger) Upsert(ctx context.Context, id CustomerID, mutate func(*CustomerRecord) bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[id]
	if !ok {
		rec = &CustomerRecord{Stage: StageStart}
		l.records[id] = rec
	}
	dirty := mutate(rec)
	if !dirty && ok {
		return nil
	}
	return l.persistLocked(ctx)
}

// Update is Upsert for customers that must already exist (operator paths).
// Returns ErrCustomerNotFound otherwise.
func (l *Ledger) Update(ctx context.Context, id CustomerID, mutate func(*CustomerRecord) bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[id]
	if !ok {
		return fmt.Errorf("customer %s: %w", id, ErrCustomerNotFound)
	}
	if !mutate(rec) {
		return nil
	}
	return l.persistLocked(ctx)
}

// Changed returns a channel that is closed on the next durable mutation.
// The operator surface uses it as its refresh signal; callers re-arm by
// calling Changed again after the close.
func (l *Ledger) Changed() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.changed
}

// persistLocked serializes the ledger and announces the change. Called with
// l.mu held. A store failure leaves memory intact and degrades durability.
func (l *Ledger) persistLocked(ctx context.Context) error {
	snap := make(Snapshot, len(l.records))
	for id, rec := range l.records {
		snap[id.String()] = rec
	}

	// Announce even if the write fails: the in-memory state the operator
	// surface renders has moved either way.
	close(l.changed)
	l.changed = make(chan struct{})

	if err := l.store.Save(ctx, snap); err != nil {
		return fmt.Errorf("%w: %v", ErrSnapshotFailed, err)
	}
	return nil
}
