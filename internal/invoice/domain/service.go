package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/faktur/pkg/db/pagination"
)

type CreateInvoiceRequest struct {
	CustomerID string
	Type       InvoiceType
	DueAt      *time.Time
	Notes      string
}

type AddItemRequest struct {
	InvoiceID   string
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

type RemoveItemRequest struct {
	InvoiceID string
	ItemID    string
}

type UpdateStatusRequest struct {
	InvoiceID string
	Status    InvoiceStatus
}

type RecordPaymentRequest struct {
	InvoiceID string
	Amount    decimal.Decimal
	Method    string
}

type SendInvoiceRequest struct {
	InvoiceID string
}

type GetInvoiceRequest struct {
	ID string
}

type ListInvoiceRequest struct {
	PageToken  string
	PageSize   int
	Status     *InvoiceStatus
	CustomerID string
	DueBefore  *time.Time
	DueAfter   *time.Time
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

type Service interface {
	Create(context.Context, CreateInvoiceRequest) (Invoice, error)
	AddItem(context.Context, AddItemRequest) (Invoice, error)
	RemoveItem(context.Context, RemoveItemRequest) (Invoice, error)
	UpdateStatus(context.Context, UpdateStatusRequest) (Invoice, error)
	RecordPayment(context.Context, RecordPaymentRequest) (Invoice, error)
	Send(context.Context, SendInvoiceRequest) (Invoice, error)
	GetByID(context.Context, GetInvoiceRequest) (Invoice, error)
	List(context.Context, ListInvoiceRequest) (ListInvoiceResponse, error)
	Recent(ctx context.Context, limit int) ([]Invoice, error)
	Overdue(ctx context.Context) ([]Invoice, error)
}

var (
	ErrNotFound           = errors.New("invoice_not_found")
	ErrCustomerNotFound   = errors.New("customer_not_found")
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidType        = errors.New("invalid_invoice_type")
	ErrInvalidTransition  = errors.New("invalid_state_transition")
	ErrInvalidDescription = errors.New("invalid_description")
	ErrInvalidQuantity    = errors.New("invalid_quantity")
	ErrInvalidUnitPrice   = errors.New("invalid_unit_price")
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrOverpayment        = errors.New("overpayment")
	ErrNoLineItems        = errors.New("no_line_items")
	ErrItemNotFound       = errors.New("line_item_not_found")
)
