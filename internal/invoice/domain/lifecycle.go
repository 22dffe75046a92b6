package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/faktur/internal/config"
)

// transitions is the single source of truth for legal status changes.
// Same-state transitions are not listed and are therefore invalid.
var transitions = map[InvoiceStatus][]InvoiceStatus{
	StatusDraft:         {StatusIssued, StatusCancelled},
	StatusIssued:        {StatusSent, StatusCancelled},
	StatusSent:          {StatusPartiallyPaid, StatusPaid},
	StatusPartiallyPaid: {StatusPaid},
	StatusPaid:          {},
	StatusCancelled:     {},
}

// CanTransition consults the transition table only; it does not check
// side conditions such as the draft invoice having line items.
func CanTransition(from, to InvoiceStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidateTransition checks the table plus the side conditions a status
// change carries: leaving draft requires at least one line item.
func (i *Invoice) ValidateTransition(to InvoiceStatus) error {
	if !to.Storable() {
		return ErrInvalidTransition
	}
	if !CanTransition(i.Status, to) {
		return ErrInvalidTransition
	}
	if i.Status == StatusDraft && to == StatusIssued && len(i.Items) == 0 {
		return ErrNoLineItems
	}
	return nil
}

// Recompute recalculates subtotal, tax and total from the line items using
// the billing snapshot passed in. VAT rounds half-up to the currency's
// minor unit.
func (i *Invoice) Recompute(cfg config.BillingConfig) {
	subtotal := decimal.Zero
	for _, item := range i.Items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	i.Subtotal = subtotal

	if i.Type.AppliesVAT() {
		// decimal.Round rounds half away from zero, which is half-up
		// for the non-negative amounts handled here.
		i.TaxAmount = subtotal.Mul(cfg.VATRate).Round(cfg.MinorUnits)
	} else {
		i.TaxAmount = decimal.Zero
	}
	i.Total = i.Subtotal.Add(i.TaxAmount)
}

// AddItem validates and appends a line item, then recomputes totals.
// Items may only be added while the invoice is a draft.
func (i *Invoice) AddItem(item LineItem, cfg config.BillingConfig) error {
	if i.Status != StatusDraft {
		return ErrInvalidTransition
	}
	if strings.TrimSpace(item.Description) == "" {
		return ErrInvalidDescription
	}
	if item.Quantity.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidQuantity
	}
	if item.UnitPrice.IsNegative() {
		return ErrInvalidUnitPrice
	}

	item.InvoiceID = i.ID
	item.Position = len(i.Items)
	i.Items = append(i.Items, item)
	i.Recompute(cfg)
	return nil
}

// RemoveItem drops a line item from a draft invoice and recomputes totals.
func (i *Invoice) RemoveItem(itemID string, cfg config.BillingConfig) error {
	if i.Status != StatusDraft {
		return ErrInvalidTransition
	}
	for idx, item := range i.Items {
		if item.ID.String() == itemID {
			i.Items = append(i.Items[:idx], i.Items[idx+1:]...)
			for pos := range i.Items {
				i.Items[pos].Position = pos
			}
			i.Recompute(cfg)
			return nil
		}
	}
	return ErrItemNotFound
}

// ApplyPayment validates a payment against the outstanding balance and
// advances the status to partially_paid or paid in the same step. The
// caller persists the invoice and payment row together under the lease.
func (i *Invoice) ApplyPayment(amount decimal.Decimal, paidAt time.Time) error {
	switch i.Status {
	case StatusIssued, StatusSent, StatusPartiallyPaid:
	default:
		return ErrInvalidTransition
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	if i.AmountPaid.Add(amount).GreaterThan(i.Total) {
		return ErrOverpayment
	}

	i.AmountPaid = i.AmountPaid.Add(amount)
	if i.AmountPaid.Equal(i.Total) {
		i.Status = StatusPaid
	} else {
		i.Status = StatusPartiallyPaid
	}
	i.UpdatedAt = paidAt
	return nil
}
