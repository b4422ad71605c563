package sale_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vendbot/sale-engine/sale"
	"github.com/vendbot/sale-engine/store/file"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func testCatalog() *sale.Catalog {
	return &sale.Catalog{
		Price:           decimal.NewFromInt(800),
		SberbankAccount: "4000 1234 5678 9010",
		YMoneyAccount:   "4100118000000000",
		PayeerAccount:   "P1000000",
		CryptoAccount:   "bc1qtestaddress",
		SupportHandle:   "@support",
	}
}

func newTestMachine(t *testing.T) (*sale.Machine, *sale.Ledger) {
	st := file.New(filepath.Join(t.TempDir(), "snapshot.json"))
	ledger := sale.NewLedger(st)
	return sale.NewMachine(ledger, testCatalog()), ledger
}

// =============================================================================
// PURCHASE FLOW (scenario: new customer through file delivery)
// =============================================================================

func TestMachine_FullPurchaseFlow(t *testing.T) {
	// GIVEN: A new customer
	// WHEN: start -> buy -> domestic method -> operator confirms the shown code
	// THEN: Stage and code fields advance exactly as specified

	m, ledger := newTestMachine(t)
	ctx := context.Background()
	const id = sale.CustomerID(42)

	out, err := m.Handle(ctx, id, "Alice", "/start")
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.Contains(t, out.Reply, "Добро пожаловать")
	assert.Equal(t, sale.Keyboard{{sale.LabelBuy}}, out.Keyboard)

	rec, ok := ledger.Get(id)
	require.True(t, ok, "record created on first contact")
	assert.Equal(t, sale.StageStart, rec.Stage)
	assert.Equal(t, "Alice", rec.Name)
	assert.Empty(t, rec.PendingCodeDigest)

	out, err = m.Handle(ctx, id, "Alice", sale.LabelBuy)
	require.NoError(t, err)
	assert.Equal(t, sale.Keyboard{{sale.LabelDomestic, sale.LabelForeign}, {sale.LabelCrypto}}, out.Keyboard)

	rec, _ = ledger.Get(id)
	assert.Equal(t, sale.StageChoseToBuy, rec.Stage)
	assert.Empty(t, rec.PendingCodeDigest, "buy presents the menu but issues no code yet")

	out, err = m.Handle(ctx, id, "Alice", sale.LabelDomestic)
	require.NoError(t, err)
	require.Len(t, out.IssuedCode, 6, "a 6-character code is shown")
	assert.Contains(t, out.Reply, out.IssuedCode)
	assert.True(t, out.TrackPrompt)

	rec, _ = ledger.Get(id)
	assert.Equal(t, sale.StageSelectedDomestic, rec.Stage)
	assert.Equal(t, sale.Digest(out.IssuedCode), rec.PendingCodeDigest)

	// Operator confirms with the plaintext code.
	res, err := m.ConfirmPayment(ctx, id, out.IssuedCode)
	require.NoError(t, err)
	assert.Contains(t, res.Notice, "Файл отправлен")

	rec, _ = ledger.Get(id)
	assert.Equal(t, sale.StageFileSent, rec.Stage)
	assert.True(t, rec.SupportAccess)
	assert.Empty(t, rec.PendingCodeDigest, "successful verification consumes the code")
}

func TestMachine_ConfirmPayment_Mismatch_NoMutation(t *testing.T) {
	// GIVEN: A customer awaiting confirmation
	m, ledger := newTestMachine(t)
	ctx := context.Background()
	const id = sale.CustomerID(42)

	_, err := m.Handle(ctx, id, "Alice", "/start")
	require.NoError(t, err)
	_, err = m.Handle(ctx, id, "Alice", sale.LabelBuy)
	require.NoError(t, err)
	out, err := m.Handle(ctx, id, "Alice", sale.LabelCrypto)
	require.NoError(t, err)

	before, _ := ledger.Get(id)

	// WHEN: The operator submits a wrong candidate
	_, err = m.ConfirmPayment(ctx, id, "WRONG1")

	// THEN: Verification fails and nothing changed
	require.Error(t, err)
	assert.ErrorIs(t, err, sale.ErrCodeMismatch)
	var verr *sale.VerificationError
	assert.ErrorAs(t, err, &verr)

	after, _ := ledger.Get(id)
	assert.Equal(t, before, after)

	// The real code still works afterwards.
	_, err = m.ConfirmPayment(ctx, id, out.IssuedCode)
	assert.NoError(t, err)
}

func TestMachine_ConfirmPayment_ConsumedCodeFails(t *testing.T) {
	// GIVEN: A confirmed, delivered sale
	m, ledger := newTestMachine(t)
	ctx := context.Background()
	const id = sale.CustomerID(7)

	_, err := m.Handle(ctx, id, "Bob", "/start")
	require.NoError(t, err)
	_, err = m.Handle(ctx, id, "Bob", sale.LabelBuy)
	require.NoError(t, err)
	out, err := m.Handle(ctx, id, "Bob", sale.LabelDomestic)
	require.NoError(t, err)
	_, err = m.ConfirmPayment(ctx, id, out.IssuedCode)
	require.NoError(t, err)

	// WHEN: The same (now stale) candidate is submitted again
	_, err = m.ConfirmPayment(ctx, id, out.IssuedCode)

	// THEN: It fails and support access stays granted exactly once
	assert.ErrorIs(t, err, sale.ErrCodeMismatch)
	rec, _ := ledger.Get(id)
	assert.True(t, rec.SupportAccess)
}

func TestMachine_ConfirmPayment_UnknownCustomer(t *testing.T) {
	m, _ := newTestMachine(t)

	_, err := m.ConfirmPayment(context.Background(), 999, "ABC123")
	assert.ErrorIs(t, err, sale.ErrCustomerNotFound)
}

// =============================================================================
// GUARDS
// =============================================================================

func TestMachine_BuyWhileCodeOutstanding_Rejected(t *testing.T) {
	// GIVEN: A customer with an outstanding payment code
	m, ledger := newTestMachine(t)
	ctx := context.Background()
	const id = sale.CustomerID(42)

	_, err := m.Handle(ctx, id, "Alice", "/start")
	require.NoError(t, err)
	_, err = m.Handle(ctx, id, "Alice", sale.LabelBuy)
	require.NoError(t, err)
	_, err = m.Handle(ctx, id, "Alice", sale.LabelDomestic)
	require.NoError(t, err)

	before, _ := ledger.Get(id)

	// WHEN: Buy is pressed again
	out, err := m.Handle(ctx, id, "Alice", sale.LabelBuy)
	require.NoError(t, err)

	// THEN: A user-visible rejection, no state change, no new code
	assert.False(t, out.Changed)
	assert.Contains(t, out.Reply, "уже запросили")
	assert.Empty(t, out.IssuedCode)

	after, _ := ledger.Get(id)
	assert.Equal(t, before, after)
}

func TestMachine_BuyTwice_NoCodeIssued(t *testing.T) {
	// Pressing buy twice without a method selection never issues a code.
	m, ledger := newTestMachine(t)
	ctx := context.Background()
	const id = sale.CustomerID(42)

	_, err := m.Handle(ctx, id, "Alice", sale.LabelBuy)
	require.NoError(t, err)
	_, err = m.Handle(ctx, id, "Alice", sale.LabelBuy)
	require.NoError(t, err)

	rec, _ := ledger.Get(id)
	assert.Empty(t, rec.PendingCodeDigest)
}

func TestMachine_StartIsIdempotent(t *testing.T) {
	// GIVEN: A customer mid-purchase
	m, ledger := newTestMachine(t)
	ctx := context.Background()
	const id = sale.CustomerID(42)

	_, err := m.Handle(ctx, id, "Alice", "/start")
	require.NoError(t, err)
	_, err = m.Handle(ctx, id, "Alice", sale.LabelBuy)
	require.NoError(t, err)
	out, err := m.Handle(ctx, id, "Alice", sale.LabelDomestic)
	require.NoError(t, err)

	// WHEN: They press start again (name differs: names are immutable)
	_, err = m.Handle(ctx, id, "Alice Renamed", "/start")
	require.NoError(t, err)

	// THEN: The stage is re-recorded but progress is not reset
	rec, _ := ledger.Get(id)
	assert.Equal(t, sale.StageStart, rec.Stage)
	assert.Equal(t, "Alice", rec.Name)
	assert.Equal(t, sale.Digest(out.IssuedCode), rec.PendingCodeDigest,
		"outstanding code survives a repeated start")
}

func TestMachine_UnrecognizedText_Inert(t *testing.T) {
	m, ledger := newTestMachine(t)
	ctx := context.Background()

	out, err := m.Handle(ctx, 42, "Alice", "hello there")
	require.NoError(t, err)
	assert.Equal(t, sale.Outcome{}, out, "no reply, no mutation")

	_, ok := ledger.Get(42)
	assert.False(t, ok, "unrecognized text does not even create a record")
}

// =============================================================================
// METHOD SELECTION AND BACKTRACKING
// =============================================================================

func TestMachine_ForeignMenu_IssuesCodeWithoutShowingIt(t *testing.T) {
	m, ledger := newTestMachine(t)
	ctx := context.Background()
	const id = sale.CustomerID(42)

	_, err := m.Handle(ctx, id, "Alice", sale.LabelBuy)
	require.NoError(t, err)

	out, err := m.Handle(ctx, id, "Alice", sale.LabelForeign)
	require.NoError(t, err)
	assert.Equal(t, sale.Keyboard{{sale.LabelCIS, sale.LabelAbroad}, {sale.LabelAnother}}, out.Keyboard)
	assert.Empty(t, out.IssuedCode, "sub-menu does not display the code")

	rec, _ := ledger.Get(id)
	assert.NotEmpty(t, rec.PendingCodeDigest, "a code is outstanding nonetheless")

	// Choosing the leaf overwrites the digest with the displayed code's.
	leaf, err := m.Handle(ctx, id, "Alice", sale.LabelCIS)
	require.NoError(t, err)
	rec, _ = ledger.Get(id)
	assert.Equal(t, sale.Digest(leaf.IssuedCode), rec.PendingCodeDigest)
	assert.Equal(t, sale.StageSelectedCIS, rec.Stage)
}

func TestMachine_Backtrack_ReissuesAndReturnsToMenu(t *testing.T) {
	// GIVEN: Instructions already shown for a leaf
	m, ledger := newTestMachine(t)
	ctx := context.Background()
	const id = sale.CustomerID(42)

	_, err := m.Handle(ctx, id, "Alice", sale.LabelBuy)
	require.NoError(t, err)
	first, err := m.Handle(ctx, id, "Alice", sale.LabelAbroad)
	require.NoError(t, err)

	// WHEN: The customer backtracks
	out, err := m.Handle(ctx, id, "Alice", sale.LabelAnother)
	require.NoError(t, err)

	// THEN: Back at the method menu with a fresh code outstanding
	assert.Equal(t, sale.Keyboard{{sale.LabelDomestic, sale.LabelForeign}, {sale.LabelCrypto}}, out.Keyboard)
	rec, _ := ledger.Get(id)
	assert.Equal(t, sale.StageChoseToBuy, rec.Stage)
	assert.NotEqual(t, sale.Digest(first.IssuedCode), rec.PendingCodeDigest,
		"backtracking overwrites the old code's digest")
}

func TestMachine_RetractsSupersededPrompt(t *testing.T) {
	m, ledger := newTestMachine(t)
	ctx := context.Background()
	const id = sale.CustomerID(42)

	_, err := m.Handle(ctx, id, "Alice", sale.LabelBuy)
	require.NoError(t, err)
	_, err = m.Handle(ctx, id, "Alice", sale.LabelDomestic)
	require.NoError(t, err)

	// The messaging loop records the instruction prompt's message id.
	require.NoError(t, ledger.Update(ctx, id, func(rec *sale.CustomerRecord) bool {
		rec.LastPromptMessageID = 1001
		return true
	}))

	out, err := m.Handle(ctx, id, "Alice", sale.LabelAnother)
	require.NoError(t, err)
	assert.EqualValues(t, 1001, out.RetractMessageID,
		"the superseded instruction message is handed back for retraction")
}

// =============================================================================
// SUPPORT ACCESS (one-time latch)
// =============================================================================

func TestMachine_Support_LatchesOnce(t *testing.T) {
	// GIVEN: A customer with support access
	m, ledger := newTestMachine(t)
	ctx := context.Background()
	const id = sale.CustomerID(42)

	_, err := m.Handle(ctx, id, "Alice", "/start")
	require.NoError(t, err)
	_, err = m.Handle(ctx, id, "Alice", sale.LabelBuy)
	require.NoError(t, err)
	out, err := m.Handle(ctx, id, "Alice", sale.LabelDomestic)
	require.NoError(t, err)
	_, err = m.ConfirmPayment(ctx, id, out.IssuedCode)
	require.NoError(t, err)

	// WHEN: Support is pressed
	out, err = m.Handle(ctx, id, "Alice", sale.LabelSupport)
	require.NoError(t, err)

	// THEN: The contact reply goes out once and the latch sets
	assert.Contains(t, out.Reply, "техподдержкой")
	rec, _ := ledger.Get(id)
	assert.True(t, rec.SupportContacted)
	assert.Equal(t, sale.StageSupportRequested, rec.Stage)

	// A second press is inert: no reply, no mutation.
	out, err = m.Handle(ctx, id, "Alice", sale.LabelSupport)
	require.NoError(t, err)
	assert.Equal(t, sale.Outcome{}, out)
}

func TestMachine_Support_WithoutAccess_Inert(t *testing.T) {
	m, ledger := newTestMachine(t)
	ctx := context.Background()

	_, err := m.Handle(ctx, 42, "Alice", "/start")
	require.NoError(t, err)

	out, err := m.Handle(ctx, 42, "Alice", sale.LabelSupport)
	require.NoError(t, err)
	assert.Equal(t, sale.Outcome{}, out)

	rec, _ := ledger.Get(42)
	assert.False(t, rec.SupportContacted)
}
