/*
Package sale provides the core purchase engine: per-customer purchase state,
one-time payment codes, and the shared customer ledger.

KEY CONCEPTS IN THIS FILE (types.go):
  - CustomerID: Type-safe customer identity (the chat platform's numeric id)
  - Stage: The customer's current position in the fixed sales dialogue
  - Intent: An enumerated inbound action, parsed from exact-match button text
  - CustomerRecord: Everything known about one customer's purchase
  - Snapshot: The persisted form of the whole ledger

DESIGN PRINCIPLES:
  1. Explicit state: Every dialogue edge is a (stage, intent) fact, not
     implicit control flow buried in message handlers
  2. Type safety: Strong typing for ids and stages prevents mixups
  3. Digest-only codes: Plaintext payment codes are never retained; only
     their SHA-256 digest is stored

SEE ALSO:
  - machine.go: Transition rules over these types
  - ledger.go: Concurrent access and persistence
  - code.go: Payment code issuance and verification
*/
package sale

import "strconv"

// =============================================================================
// IDENTITY
// =============================================================================

// CustomerID is the chat platform's numeric user id.
type CustomerID int64

func (id CustomerID) String() string { return strconv.FormatInt(int64(id), 10) }

// ParseCustomerID parses the snapshot's string key form.
func ParseCustomerID(s string) (CustomerID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	return CustomerID(n), err
}

// =============================================================================
// STAGE - Position in the purchase dialogue
// =============================================================================

// Stage is the customer's current position in the sales dialogue.
// It advances along the edges in machine.go; the only backward edge is
// "choose another payment method".
type Stage string

const (
	StageStart            Stage = "start"
	StageChoseToBuy       Stage = "chose_to_buy"
	StageSelectedDomestic Stage = "selected_domestic"
	StageSelectedCIS      Stage = "selected_cis"
	StageSelectedAbroad   Stage = "selected_abroad"
	StageSelectedCrypto   Stage = "selected_crypto"
	StageFileSent         Stage = "file_sent"
	StageSupportRequested Stage = "support_requested"
)

// IsValid returns true if s is a known stage.
func (s Stage) IsValid() bool {
	switch s {
	case StageStart, StageChoseToBuy,
		StageSelectedDomestic, StageSelectedCIS, StageSelectedAbroad, StageSelectedCrypto,
		StageFileSent, StageSupportRequested:
		return true
	default:
		return false
	}
}

// =============================================================================
// INTENT - Enumerated inbound actions
// =============================================================================

// Intent is a recognized inbound action. Anything the vocabulary doesn't
// match exactly is IntentUnknown and is inert to the state machine.
type Intent string

const (
	IntentUnknown       Intent = ""
	IntentStart         Intent = "start"
	IntentBuy           Intent = "buy"
	IntentSupport       Intent = "support"
	IntentDomestic      Intent = "method_domestic"
	IntentForeign       Intent = "method_foreign"
	IntentCrypto        Intent = "method_crypto"
	IntentCIS           Intent = "method_cis"
	IntentAbroad        Intent = "method_abroad"
	IntentAnotherMethod Intent = "method_another"
)

// =============================================================================
// CUSTOMER RECORD
// =============================================================================

// CustomerRecord is the per-customer purchase state.
//
// INVARIANTS:
//   - One record per customer; created lazily on first contact, never deleted.
//   - Name is set at first contact and immutable thereafter.
//   - Messages is append-only.
//   - PendingCodeDigest is set only when a fresh code is issued and cleared
//     exactly once, by the successful verification that grants SupportAccess.
//   - SupportAccess never reverts to false.
//   - SupportContacted latches true once.
type CustomerRecord struct {
	Name                string   `json:"name"`
	Messages            []string `json:"messages"`
	Stage               Stage    `json:"stage"`
	PendingCodeDigest   string   `json:"pendingCodeDigest,omitempty"`
	SupportAccess       bool     `json:"supportAccess"`
	SupportContacted    bool     `json:"supportContacted"`
	LastPromptMessageID int64    `json:"lastPromptMessageId,omitempty"`
}

// Clone returns a deep copy, so callers outside the ledger's lock can hold
// a record without racing mutators.
func (r *CustomerRecord) Clone() CustomerRecord {
	c := *r
	c.Messages = append([]string(nil), r.Messages...)
	return c
}

// Summary is the operator-facing view of one customer.
type Summary struct {
	ID            CustomerID
	Name          string
	Stage         Stage
	SupportAccess bool
}

// =============================================================================
// SNAPSHOT - Persisted form of the ledger
// =============================================================================

// Snapshot maps the customer id (string form) to its record. This is the
// exact shape written to durable storage; it must round-trip losslessly.
type Snapshot map[string]*CustomerRecord
