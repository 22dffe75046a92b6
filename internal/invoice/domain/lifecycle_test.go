package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/faktur/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBillingConfig() config.BillingConfig {
	return config.BillingConfig{
		VATRate:          decimal.RequireFromString("0.17"),
		Currency:         "ILS",
		MinorUnits:       2,
		InvoicePrefix:    "INV",
		CreditNotePrefix: "CRN",
		PaymentTermsDays: 30,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCanTransition_Table(t *testing.T) {
	allowed := map[InvoiceStatus][]InvoiceStatus{
		StatusDraft:         {StatusIssued, StatusCancelled},
		StatusIssued:        {StatusSent, StatusCancelled},
		StatusSent:          {StatusPartiallyPaid, StatusPaid},
		StatusPartiallyPaid: {StatusPaid},
		StatusPaid:          {},
		StatusCancelled:     {},
	}
	all := []InvoiceStatus{StatusDraft, StatusIssued, StatusSent, StatusPartiallyPaid, StatusPaid, StatusCancelled}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCanTransition_SameStateInvalid(t *testing.T) {
	for _, s := range []InvoiceStatus{StatusDraft, StatusIssued, StatusSent, StatusPartiallyPaid, StatusPaid, StatusCancelled} {
		assert.False(t, CanTransition(s, s), "%s -> %s must be invalid", s, s)
	}
}

func TestValidateTransition_DraftNeedsItems(t *testing.T) {
	invoice := &Invoice{Status: StatusDraft}
	assert.ErrorIs(t, invoice.ValidateTransition(StatusIssued), ErrNoLineItems)

	// Cancelling an empty draft is fine.
	assert.NoError(t, invoice.ValidateTransition(StatusCancelled))

	invoice.Items = []LineItem{{Description: "x", Quantity: dec("1"), UnitPrice: dec("1")}}
	assert.NoError(t, invoice.ValidateTransition(StatusIssued))
}

func TestValidateTransition_OverdueNotStorable(t *testing.T) {
	invoice := &Invoice{Status: StatusSent}
	assert.ErrorIs(t, invoice.ValidateTransition(StatusOverdue), ErrInvalidTransition)
}

func TestRecompute_VATRoundsHalfUp(t *testing.T) {
	cfg := testBillingConfig()
	invoice := &Invoice{Type: TypeTaxInvoice, Status: StatusDraft}

	require.NoError(t, invoice.AddItem(LineItem{Description: "widget", Quantity: dec("2"), UnitPrice: dec("10.00")}, cfg))
	require.NoError(t, invoice.AddItem(LineItem{Description: "gadget", Quantity: dec("1"), UnitPrice: dec("5.00")}, cfg))

	assert.True(t, invoice.Subtotal.Equal(dec("25.00")), "subtotal %s", invoice.Subtotal)
	assert.True(t, invoice.TaxAmount.Equal(dec("4.25")), "tax %s", invoice.TaxAmount)
	assert.True(t, invoice.Total.Equal(dec("29.25")), "total %s", invoice.Total)
}

func TestRecompute_HalfwayRoundsUp(t *testing.T) {
	cfg := testBillingConfig()
	invoice := &Invoice{Type: TypeTaxInvoice, Status: StatusDraft}

	// 0.50 * 0.17 = 0.085, exactly halfway at two minor units.
	require.NoError(t, invoice.AddItem(LineItem{Description: "sliver", Quantity: dec("1"), UnitPrice: dec("0.50")}, cfg))

	assert.True(t, invoice.TaxAmount.Equal(dec("0.09")), "tax %s", invoice.TaxAmount)
}

func TestRecompute_NoVATForStandardAndCreditNote(t *testing.T) {
	cfg := testBillingConfig()
	for _, typ := range []InvoiceType{TypeStandard, TypeCreditNote} {
		invoice := &Invoice{Type: typ, Status: StatusDraft}
		require.NoError(t, invoice.AddItem(LineItem{Description: "thing", Quantity: dec("3"), UnitPrice: dec("7.50")}, cfg))

		assert.True(t, invoice.Subtotal.Equal(dec("22.50")))
		assert.True(t, invoice.TaxAmount.IsZero(), "type %s must carry no VAT", typ)
		assert.True(t, invoice.Total.Equal(dec("22.50")))
	}
}

func TestAddItem_Validation(t *testing.T) {
	cfg := testBillingConfig()
	invoice := &Invoice{Type: TypeStandard, Status: StatusDraft}

	assert.ErrorIs(t, invoice.AddItem(LineItem{Description: "  ", Quantity: dec("1"), UnitPrice: dec("1")}, cfg), ErrInvalidDescription)
	assert.ErrorIs(t, invoice.AddItem(LineItem{Description: "x", Quantity: dec("0"), UnitPrice: dec("1")}, cfg), ErrInvalidQuantity)
	assert.ErrorIs(t, invoice.AddItem(LineItem{Description: "x", Quantity: dec("-1"), UnitPrice: dec("1")}, cfg), ErrInvalidQuantity)
	assert.ErrorIs(t, invoice.AddItem(LineItem{Description: "x", Quantity: dec("1"), UnitPrice: dec("-0.01")}, cfg), ErrInvalidUnitPrice)

	// Zero price is a legal freebie line.
	assert.NoError(t, invoice.AddItem(LineItem{Description: "sample", Quantity: dec("1"), UnitPrice: dec("0")}, cfg))
}

func TestAddItem_OnlyOnDraft(t *testing.T) {
	cfg := testBillingConfig()
	for _, status := range []InvoiceStatus{StatusIssued, StatusSent, StatusPartiallyPaid, StatusPaid, StatusCancelled} {
		invoice := &Invoice{Type: TypeStandard, Status: status}
		err := invoice.AddItem(LineItem{Description: "x", Quantity: dec("1"), UnitPrice: dec("1")}, cfg)
		assert.ErrorIs(t, err, ErrInvalidTransition, "status %s", status)
	}
}

func TestRemoveItem_ReindexesAndRecomputes(t *testing.T) {
	cfg := testBillingConfig()
	invoice := &Invoice{ID: 1, Type: TypeStandard, Status: StatusDraft}

	require.NoError(t, invoice.AddItem(LineItem{ID: 11, Description: "a", Quantity: dec("1"), UnitPrice: dec("10")}, cfg))
	require.NoError(t, invoice.AddItem(LineItem{ID: 12, Description: "b", Quantity: dec("1"), UnitPrice: dec("20")}, cfg))
	require.NoError(t, invoice.AddItem(LineItem{ID: 13, Description: "c", Quantity: dec("1"), UnitPrice: dec("30")}, cfg))

	require.NoError(t, invoice.RemoveItem("12", cfg))

	require.Len(t, invoice.Items, 2)
	assert.Equal(t, 0, invoice.Items[0].Position)
	assert.Equal(t, 1, invoice.Items[1].Position)
	assert.Equal(t, "c", invoice.Items[1].Description)
	assert.True(t, invoice.Total.Equal(dec("40")))

	assert.ErrorIs(t, invoice.RemoveItem("99", cfg), ErrItemNotFound)
}

func TestApplyPayment_PartialThenFull(t *testing.T) {
	now := time.Now().UTC()
	invoice := &Invoice{
		Status:     StatusSent,
		Total:      dec("100.00"),
		AmountPaid: decimal.Zero,
	}

	require.NoError(t, invoice.ApplyPayment(dec("40.00"), now))
	assert.Equal(t, StatusPartiallyPaid, invoice.Status)
	assert.True(t, invoice.Balance().Equal(dec("60.00")))

	require.NoError(t, invoice.ApplyPayment(dec("60.00"), now))
	assert.Equal(t, StatusPaid, invoice.Status)
	assert.True(t, invoice.Balance().IsZero())

	// A paid invoice accepts no further payments.
	assert.ErrorIs(t, invoice.ApplyPayment(dec("0.01"), now), ErrInvalidTransition)
}

func TestApplyPayment_Overpayment(t *testing.T) {
	now := time.Now().UTC()
	invoice := &Invoice{Status: StatusIssued, Total: dec("100.00"), AmountPaid: dec("60.00")}

	err := invoice.ApplyPayment(dec("60.00"), now)
	assert.ErrorIs(t, err, ErrOverpayment)
	// The failed payment leaves the invoice untouched.
	assert.True(t, invoice.AmountPaid.Equal(dec("60.00")))
	assert.Equal(t, StatusIssued, invoice.Status)
}

func TestApplyPayment_Validation(t *testing.T) {
	now := time.Now().UTC()
	invoice := &Invoice{Status: StatusIssued, Total: dec("100.00")}

	assert.ErrorIs(t, invoice.ApplyPayment(decimal.Zero, now), ErrInvalidAmount)
	assert.ErrorIs(t, invoice.ApplyPayment(dec("-5"), now), ErrInvalidAmount)

	draft := &Invoice{Status: StatusDraft, Total: dec("100.00")}
	assert.ErrorIs(t, draft.ApplyPayment(dec("10"), now), ErrInvalidTransition)

	cancelled := &Invoice{Status: StatusCancelled, Total: dec("100.00")}
	assert.ErrorIs(t, cancelled.ApplyPayment(dec("10"), now), ErrInvalidTransition)
}

func TestEffectiveStatus_OverdueDerived(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	overdue := &Invoice{Status: StatusSent, DueAt: &past}
	assert.Equal(t, StatusOverdue, overdue.EffectiveStatus(now))
	// The stored status never changes.
	assert.Equal(t, StatusSent, overdue.Status)

	notYet := &Invoice{Status: StatusSent, DueAt: &future}
	assert.Equal(t, StatusSent, notYet.EffectiveStatus(now))

	paid := &Invoice{Status: StatusPaid, DueAt: &past}
	assert.Equal(t, StatusPaid, paid.EffectiveStatus(now))

	draft := &Invoice{Status: StatusDraft, DueAt: &past}
	assert.Equal(t, StatusDraft, draft.EffectiveStatus(now))

	noDue := &Invoice{Status: StatusSent}
	assert.Equal(t, StatusSent, noDue.EffectiveStatus(now))
}
