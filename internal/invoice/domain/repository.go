package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListInvoiceFilter struct {
	Status     *InvoiceStatus
	CustomerID snowflake.ID
	DueBefore  *time.Time
	DueAfter   *time.Time
	// NotStatuses excludes invoices in any of the given states.
	NotStatuses []InvoiceStatus
	// OrderBy defaults to "created_at asc".
	OrderBy string
	Limit   int
	Offset  int
}

type Repository interface {
	// Insert writes the invoice and its items in one transaction.
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	// Save rewrites the invoice row and replaces its items atomically so
	// concurrent readers never observe a half-written record.
	Save(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	// SaveWithPayment persists the updated invoice and appends the
	// payment row in the same transaction.
	SaveWithPayment(ctx context.Context, db *gorm.DB, invoice *Invoice, payment *Payment) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	List(ctx context.Context, db *gorm.DB, filter ListInvoiceFilter) ([]*Invoice, error)
	// CountActiveByCustomer counts non-cancelled invoices owned by the
	// customer; customer deletion is blocked while it is non-zero.
	CountActiveByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) (int64, error)
}
