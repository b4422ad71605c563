/*
machine.go - The purchase state machine

PURPOSE:
  Every dialogue edge is an entry in an explicit transition table keyed by
  intent, with guards that inspect the customer record. The machine never
  talks to the transport: transitions return an Outcome describing what the
  messaging loop must do (reply, keyboard, message to retract, prompt to
  track), and mutate the record inside the ledger's critical section.

TRANSITION GRAPH:
  start -> chose_to_buy -> selected_{domestic,cis,abroad,crypto} -> file_sent
  The only backward edge is "choose another payment method", which returns
  to the method menu and reissues the code. support_requested is reachable
  only after file_sent grants support access.

GUARDS:
  - buy while a code is outstanding: user-visible rejection, no mutation
  - support without access, or after the one-time latch: inert
  - unrecognized text: inert, not even a record creation

CODE ISSUANCE:
  Every payment-method press (including the foreign sub-menu and the
  backtrack) issues a fresh code and overwrites the outstanding digest.
  Only instruction-bearing leaves display the plaintext.

PAYMENT CONFIRMATION:
  Operator-only, never reachable from customer input. On a digest match it
  clears the code, grants support access, advances to file_sent and tells
  the caller to deliver the protected file. On mismatch nothing changes.

SEE ALSO:
  - ledger.go: Mutual exclusion and persistence around these mutations
  - messages.go: The payloads transitions reference
*/
package sale

import "context"

// =============================================================================
// OUTCOME - What the messaging loop must do after a transition
// =============================================================================

// Outcome is the transition result handed to the messaging loop.
type Outcome struct {
	// Reply is the outbound text; empty means stay silent.
	Reply    string
	Keyboard Keyboard
	// RemoveKeyboard clears the customer's reply keyboard.
	RemoveKeyboard bool
	// IssuedCode is the plaintext payment code embedded in Reply, exposed
	// for logging and tests. Never persisted.
	IssuedCode string
	// RetractMessageID, when non-zero, is a superseded instruction message
	// to delete best-effort before replying.
	RetractMessageID int64
	// TrackPrompt asks the loop to record the sent reply's message id as
	// the customer's last instruction prompt.
	TrackPrompt bool
	// Changed reports whether the record was mutated (and persisted).
	Changed bool
}

// ConfirmResult is returned by a successful payment confirmation. The
// caller must deliver the protected file and then send Notice.
type ConfirmResult struct {
	Notice string
}

// =============================================================================
// MACHINE
// =============================================================================

// Machine applies dialogue intents and operator confirmations to the ledger.
type Machine struct {
	ledger  *Ledger
	issuer  CodeIssuer
	catalog *Catalog
}

func NewMachine(ledger *Ledger, catalog *Catalog) *Machine {
	return &Machine{ledger: ledger, catalog: catalog}
}

type inbound struct {
	name string
	text string
}

// transitions enumerates every edge of the dialogue. Adding an edge means
// adding a row here; there is no other dispatch.
var transitions = map[Intent]func(*Machine, *CustomerRecord, inbound) (Outcome, error){
	IntentStart:         (*Machine).applyStart,
	IntentBuy:           (*Machine).applyBuy,
	IntentSupport:       (*Machine).applySupport,
	IntentDomestic:      methodLeaf(StageSelectedDomestic),
	IntentCrypto:        methodLeaf(StageSelectedCrypto),
	IntentCIS:           methodLeaf(StageSelectedCIS),
	IntentAbroad:        methodLeaf(StageSelectedAbroad),
	IntentForeign:       (*Machine).applyForeignMenu,
	IntentAnotherMethod: (*Machine).applyAnotherMethod,
}

// Handle parses inbound text and applies the matching transition under the
// ledger's lock. Unrecognized text is inert: no reply, no record creation.
//
// A returned ErrSnapshotFailed means the transition applied in memory but
// durability is degraded; the outcome is still valid and should be acted on.
func (m *Machine) Handle(ctx context.Context, id CustomerID, name, text string) (Outcome, error) {
	intent := ParseIntent(text)
	apply, ok := transitions[intent]
	if !ok {
		return Outcome{}, nil
	}

	var out Outcome
	var applyErr error
	err := m.ledger.Upsert(ctx, id, func(rec *CustomerRecord) bool {
		out, applyErr = apply(m, rec, inbound{name: name, text: text})
		return out.Changed
	})
	if applyErr != nil {
		return Outcome{}, applyErr
	}
	return out, err
}

// ConfirmPayment verifies a candidate code for a customer. On success the
// digest is consumed, support access is granted, the stage advances to
// file_sent and the caller must deliver the protected file. On mismatch
// nothing is mutated and a VerificationError is returned.
//
// There is no attempt ceiling; the operator mediates every call.
func (m *Machine) ConfirmPayment(ctx context.Context, id CustomerID, candidate string) (ConfirmResult, error) {
	var verifyErr error
	err := m.ledger.Update(ctx, id, func(rec *CustomerRecord) bool {
		if !Verify(candidate, rec.PendingCodeDigest) {
			verifyErr = &VerificationError{CustomerID: id}
			return false
		}
		rec.PendingCodeDigest = ""
		rec.SupportAccess = true
		rec.Stage = StageFileSent
		return true
	})
	if err != nil && IsNotFound(err) {
		return ConfirmResult{}, err
	}
	if verifyErr != nil {
		return ConfirmResult{}, verifyErr
	}
	// err may still be a degraded-durability snapshot failure; the grant
	// holds in memory, so report the result alongside it.
	return ConfirmResult{Notice: m.catalog.FileSentNotice()}, err
}

// =============================================================================
// TRANSITIONS
// =============================================================================

func (m *Machine) applyStart(rec *CustomerRecord, in inbound) (Outcome, error) {
	if rec.Name == "" {
		rec.Name = in.name
	}
	rec.Messages = append(rec.Messages, "User: "+in.text)
	// Re-entrant: repeated starts re-record the stage but reset nothing.
	rec.Stage = StageStart
	text, kb := m.catalog.Welcome(rec.SupportAccess)
	return Outcome{Reply: text, Keyboard: kb, Changed: true}, nil
}

func (m *Machine) applyBuy(rec *CustomerRecord, in inbound) (Outcome, error) {
	if rec.PendingCodeDigest != "" {
		// Guarded no-op: reply, but leave the record untouched.
		return Outcome{Reply: m.catalog.AlreadyRequested()}, nil
	}
	rec.Messages = append(rec.Messages, "User: "+in.text)
	rec.Stage = StageChoseToBuy
	text, kb := m.catalog.MethodMenu()
	return Outcome{Reply: text, Keyboard: kb, Changed: true}, nil
}

func (m *Machine) applySupport(rec *CustomerRecord, in inbound) (Outcome, error) {
	if !rec.SupportAccess || rec.SupportContacted {
		return Outcome{}, nil
	}
	rec.Messages = append(rec.Messages, "User: "+in.text)
	rec.SupportContacted = true
	rec.Stage = StageSupportRequested
	return Outcome{Reply: m.catalog.SupportReply(), Changed: true}, nil
}

// methodLeaf builds the transition for an instruction-bearing payment
// method: issue a fresh code, advance to the leaf, show the instructions.
func methodLeaf(stage Stage) func(*Machine, *CustomerRecord, inbound) (Outcome, error) {
	return func(m *Machine, rec *CustomerRecord, in inbound) (Outcome, error) {
		plain, digest, err := m.issuer.Issue()
		if err != nil {
			return Outcome{}, err
		}
		retract := rec.LastPromptMessageID
		rec.Messages = append(rec.Messages, "User: "+in.text)
		rec.PendingCodeDigest = digest
		rec.Stage = stage
		return Outcome{
			Reply:            m.catalog.Instructions(stage, plain),
			IssuedCode:       plain,
			RetractMessageID: retract,
			TrackPrompt:      true,
			Changed:          true,
		}, nil
	}
}

// applyForeignMenu shows the non-domestic sub-chooser. A code is issued
// here too (and overwritten again at the leaf), matching the dialogue's
// one-code-per-method-press behavior; it is not displayed yet.
func (m *Machine) applyForeignMenu(rec *CustomerRecord, in inbound) (Outcome, error) {
	_, digest, err := m.issuer.Issue()
	if err != nil {
		return Outcome{}, err
	}
	retract := rec.LastPromptMessageID
	rec.Messages = append(rec.Messages, "User: "+in.text)
	rec.PendingCodeDigest = digest
	text, kb := m.catalog.ForeignMenu()
	return Outcome{Reply: text, Keyboard: kb, RetractMessageID: retract, Changed: true}, nil
}

// applyAnotherMethod is the explicit backtrack edge: reissue the code and
// return to the method menu. Support-related fields are untouched.
func (m *Machine) applyAnotherMethod(rec *CustomerRecord, in inbound) (Outcome, error) {
	_, digest, err := m.issuer.Issue()
	if err != nil {
		return Outcome{}, err
	}
	retract := rec.LastPromptMessageID
	rec.Messages = append(rec.Messages, "User: "+in.text)
	rec.PendingCodeDigest = digest
	rec.Stage = StageChoseToBuy
	text, kb := m.catalog.MethodMenu()
	return Outcome{Reply: text, Keyboard: kb, RetractMessageID: retract, Changed: true}, nil
}
