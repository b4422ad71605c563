/*
errors.go - Centralized error types for the sale engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers classify with errors.Is / the helpers at the bottom.

ERROR CATEGORIES:
  1. Verification errors - Payment code mismatches (expected, not fatal)
  2. Guard errors - Rejected dialogue actions (user-visible no-ops)
  3. Persistence errors - Snapshot write failures (degraded durability)

SEE ALSO:
  - machine.go: Returns guard and verification errors
  - ledger.go: Wraps persistence failures with ErrSnapshotFailed
*/
package sale

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrCustomerNotFound is returned when an operator action references a
	// customer the ledger has never seen.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrCodeMismatch is returned when a candidate payment code does not
	// match the outstanding digest (or no code is outstanding). Expected
	// during normal operation; never mutates state.
	ErrCodeMismatch = errors.New("payment code mismatch")

	// ErrCodeOutstanding is returned when "buy" is pressed while a payment
	// code is already outstanding. A guarded no-op, not a failure.
	ErrCodeOutstanding = errors.New("payment code already outstanding")

	// ErrSnapshotFailed is returned when the ledger mutated in memory but
	// the snapshot could not be written. The in-memory state is intact;
	// durability is degraded until the next successful persist.
	ErrSnapshotFailed = errors.New("snapshot write failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// VerificationError reports a failed payment confirmation attempt.
type VerificationError struct {
	CustomerID CustomerID
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("payment code verification failed for customer %s", e.CustomerID)
}

func (e *VerificationError) Unwrap() error { return ErrCodeMismatch }

// SnapshotError reports which store failed and why.
type SnapshotError struct {
	Path string
	Err  error
}

func (e *SnapshotError) Error() string {
	return fmt.Sprintf("snapshot write to %s failed: %v", e.Path, e.Err)
}

func (e *SnapshotError) Unwrap() error { return ErrSnapshotFailed }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is an expected consequence of
// customer or operator input rather than an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrCodeMismatch) ||
		errors.Is(err, ErrCodeOutstanding)
}

// IsNotFound returns true if the error indicates a missing customer.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound)
}
