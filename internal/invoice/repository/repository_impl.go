package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/faktur/internal/invoice/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Items", "Payments").Create(invoice).Error; err != nil {
			return err
		}
		if len(invoice.Items) > 0 {
			if err := tx.Create(invoice.Items).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *repo) Save(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return saveInvoice(tx, invoice)
	})
}

func (r *repo) SaveWithPayment(ctx context.Context, db *gorm.DB, invoice *domain.Invoice, payment *domain.Payment) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveInvoice(tx, invoice); err != nil {
			return err
		}
		return tx.Create(payment).Error
	})
}

// saveInvoice rewrites the invoice row and replaces its line items. Items
// are deleted and re-inserted as a set, the same way the whole record is
// treated as one atomic value.
func saveInvoice(tx *gorm.DB, invoice *domain.Invoice) error {
	if err := tx.Omit("Items", "Payments").Save(invoice).Error; err != nil {
		return err
	}
	if err := tx.Where("invoice_id = ?", invoice.ID).Delete(&domain.LineItem{}).Error; err != nil {
		return err
	}
	if len(invoice.Items) > 0 {
		if err := tx.Create(invoice.Items).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position asc")
		}).
		Preload("Payments", func(db *gorm.DB) *gorm.DB {
			return db.Order("paid_at asc")
		}).
		Where("id = ?", id).
		First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invoice_id = ?", id).Delete(&domain.LineItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("invoice_id = ?", id).Delete(&domain.Payment{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&domain.Invoice{}).Error
	})
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListInvoiceFilter) ([]*domain.Invoice, error) {
	var invoices []*domain.Invoice
	stmt := db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position asc")
		})
	if filter.Status != nil {
		stmt = stmt.Where("status = ?", *filter.Status)
	}
	if filter.CustomerID != 0 {
		stmt = stmt.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.DueBefore != nil {
		stmt = stmt.Where("due_at IS NOT NULL AND due_at < ?", *filter.DueBefore)
	}
	if filter.DueAfter != nil {
		stmt = stmt.Where("due_at IS NOT NULL AND due_at >= ?", *filter.DueAfter)
	}
	if len(filter.NotStatuses) > 0 {
		stmt = stmt.Where("status NOT IN ?", filter.NotStatuses)
	}

	orderBy := filter.OrderBy
	if orderBy == "" {
		orderBy = "created_at asc"
	}
	switch orderBy {
	case "created_at asc", "created_at desc", "due_at asc", "due_at desc":
	default:
		return nil, fmt.Errorf("unsupported order %q", orderBy)
	}
	stmt = stmt.Order(orderBy + ", id asc")

	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		stmt = stmt.Offset(filter.Offset)
	}
	if err := stmt.Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) CountActiveByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("customer_id = ? AND status <> ?", customerID, domain.StatusCancelled).
		Count(&count).Error
	return count, err
}
