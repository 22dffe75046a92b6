// Package reporting builds read-side views over invoice records. It adds
// no invariants of its own: everything here is derived from list queries.
package reporting

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/faktur/internal/invoice/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// InvoiceStats summarizes the invoice book at read time.
type InvoiceStats struct {
	TotalCount        int                                 `json:"total_count"`
	CountByStatus     map[invoicedomain.InvoiceStatus]int `json:"count_by_status"`
	AmountInvoiced    decimal.Decimal                     `json:"amount_invoiced"`
	AmountPaid        decimal.Decimal                     `json:"amount_paid"`
	AmountOutstanding decimal.Decimal                     `json:"amount_outstanding"`
	OverdueCount      int                                 `json:"overdue_count"`
}

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo invoicedomain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo invoicedomain.Repository
}

func New(p Params) *Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("reporting"),
		repo: p.Repo,
	}
}

// Stats aggregates counts and amounts over all invoices. Cancelled
// invoices are excluded from monetary totals but counted by status.
func (s *Service) Stats(ctx context.Context) (InvoiceStats, error) {
	invoices, err := s.repo.List(ctx, s.db, invoicedomain.ListInvoiceFilter{})
	if err != nil {
		return InvoiceStats{}, err
	}

	now := time.Now().UTC()
	stats := InvoiceStats{
		CountByStatus:     make(map[invoicedomain.InvoiceStatus]int),
		AmountInvoiced:    decimal.Zero,
		AmountPaid:        decimal.Zero,
		AmountOutstanding: decimal.Zero,
	}
	for _, invoice := range invoices {
		stats.TotalCount++
		stats.CountByStatus[invoice.Status]++
		if invoice.Status == invoicedomain.StatusCancelled {
			continue
		}
		stats.AmountInvoiced = stats.AmountInvoiced.Add(invoice.Total)
		stats.AmountPaid = stats.AmountPaid.Add(invoice.AmountPaid)
		stats.AmountOutstanding = stats.AmountOutstanding.Add(invoice.Balance())
		if invoice.EffectiveStatus(now) == invoicedomain.StatusOverdue {
			stats.OverdueCount++
		}
	}
	return stats, nil
}

var Module = fx.Module("reporting",
	fx.Provide(New),
)
