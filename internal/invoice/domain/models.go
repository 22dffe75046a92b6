// Package domain contains the invoice records and the lifecycle rules
// that every mutation is validated against before persistence.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// InvoiceType tags an invoice; the type decides whether VAT applies.
type InvoiceType string

const (
	TypeStandard   InvoiceType = "standard"
	TypeTaxInvoice InvoiceType = "tax_invoice"
	TypeCreditNote InvoiceType = "credit_note"
)

func (t InvoiceType) Valid() bool {
	switch t {
	case TypeStandard, TypeTaxInvoice, TypeCreditNote:
		return true
	}
	return false
}

// AppliesVAT reports whether totals for this invoice type include VAT.
func (t InvoiceType) AppliesVAT() bool { return t == TypeTaxInvoice }

// InvoiceStatus represents invoice lifecycle states. StatusOverdue is a
// derived view, never stored; see Invoice.EffectiveStatus.
type InvoiceStatus string

const (
	StatusDraft         InvoiceStatus = "draft"
	StatusIssued        InvoiceStatus = "issued"
	StatusSent          InvoiceStatus = "sent"
	StatusPartiallyPaid InvoiceStatus = "partially_paid"
	StatusPaid          InvoiceStatus = "paid"
	StatusCancelled     InvoiceStatus = "cancelled"
	StatusOverdue       InvoiceStatus = "overdue"
)

func (s InvoiceStatus) Storable() bool {
	switch s {
	case StatusDraft, StatusIssued, StatusSent, StatusPartiallyPaid, StatusPaid, StatusCancelled:
		return true
	}
	return false
}

// Invoice is the central business record. Monetary columns are stored as
// fixed-point decimals; Subtotal, TaxAmount and Total are recomputed from
// the line items on every item mutation.
type Invoice struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	Number     string            `gorm:"column:invoice_number;uniqueIndex;not null" json:"invoice_number"`
	CustomerID snowflake.ID      `gorm:"not null;index" json:"customer_id"`
	Type       InvoiceType       `gorm:"type:text;not null;default:'standard'" json:"invoice_type"`
	Status     InvoiceStatus     `gorm:"type:text;not null;default:'draft'" json:"status"`
	Notes      string            `gorm:"type:text" json:"notes,omitempty"`
	IssueDate  time.Time         `gorm:"not null" json:"issue_date"`
	DueAt      *time.Time        `gorm:"index" json:"due_at,omitempty"`
	Subtotal   decimal.Decimal   `gorm:"type:numeric(20,6);not null" json:"subtotal"`
	TaxAmount  decimal.Decimal   `gorm:"type:numeric(20,6);not null" json:"tax_amount"`
	Total      decimal.Decimal   `gorm:"type:numeric(20,6);not null" json:"total"`
	AmountPaid decimal.Decimal   `gorm:"type:numeric(20,6);not null" json:"amount_paid"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Items    []LineItem `gorm:"foreignKey:InvoiceID;references:ID" json:"items"`
	Payments []Payment  `gorm:"foreignKey:InvoiceID;references:ID" json:"payments,omitempty"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// Balance returns the outstanding amount.
func (i *Invoice) Balance() decimal.Decimal {
	return i.Total.Sub(i.AmountPaid)
}

// EffectiveStatus derives the read-time status: an unpaid, non-terminal
// invoice past its due date reads as overdue without being stored as such.
func (i *Invoice) EffectiveStatus(now time.Time) InvoiceStatus {
	switch i.Status {
	case StatusIssued, StatusSent, StatusPartiallyPaid:
		if i.DueAt != nil && i.DueAt.Before(now) {
			return StatusOverdue
		}
	}
	return i.Status
}

// LineItem is one billable row. Items are append-only: correcting a line
// means removing and re-adding it while the invoice is still a draft.
type LineItem struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	InvoiceID   snowflake.ID    `gorm:"not null;index" json:"invoice_id"`
	Description string          `gorm:"type:text;not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:numeric(20,6);not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(20,6);not null" json:"unit_price"`
	Position    int             `gorm:"not null" json:"position"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (LineItem) TableName() string { return "invoice_items" }

// LineTotal is quantity times unit price, before VAT.
func (li LineItem) LineTotal() decimal.Decimal {
	return li.Quantity.Mul(li.UnitPrice)
}

// Payment is an append-only record; an invoice's AmountPaid is the sum of
// its payments and changes through no other path.
type Payment struct {
	ID        snowflake.ID    `gorm:"primaryKey" json:"id"`
	InvoiceID snowflake.ID    `gorm:"not null;index" json:"invoice_id"`
	Amount    decimal.Decimal `gorm:"type:numeric(20,6);not null" json:"amount"`
	Method    string          `gorm:"type:text" json:"method,omitempty"`
	PaidAt    time.Time       `gorm:"not null" json:"paid_at"`
	CreatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }
