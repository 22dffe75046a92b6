package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/faktur/internal/config"
	customerdomain "github.com/smallbiznis/faktur/internal/customer/domain"
	"github.com/smallbiznis/faktur/internal/entitylock"
	"github.com/smallbiznis/faktur/internal/invoice/domain"
	"github.com/smallbiznis/faktur/internal/providers/email"
	"github.com/smallbiznis/faktur/internal/sequence"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Locks     *entitylock.Manager
	Repo      domain.Repository
	Customers customerdomain.Repository
	Sequences *sequence.Service
	Billing   *config.BillingConfigHolder
	Mailer    email.Provider
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	locks     *entitylock.Manager
	repo      domain.Repository
	customers customerdomain.Repository
	sequences *sequence.Service
	billing   *config.BillingConfigHolder
	mailer    email.Provider
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("invoice.service"),
		genID:     p.GenID,
		locks:     p.Locks,
		repo:      p.Repo,
		customers: p.Customers,
		sequences: p.Sequences,
		billing:   p.Billing,
		mailer:    p.Mailer,
	}
}

// Create opens a draft invoice for the customer. The customer lease is
// taken before the invoice lease, following the global lock ordering.
func (s *Service) Create(ctx context.Context, req domain.CreateInvoiceRequest) (domain.Invoice, error) {
	customerID, err := s.parseID(req.CustomerID)
	if err != nil {
		return domain.Invoice{}, err
	}

	invoiceType := req.Type
	if invoiceType == "" {
		invoiceType = domain.TypeStandard
	}
	if !invoiceType.Valid() {
		return domain.Invoice{}, domain.ErrInvalidType
	}

	invoiceID := s.genID.Generate()
	leases, err := s.locks.AcquireMany(ctx,
		entitylock.Ref{Kind: entitylock.KindCustomer, ID: customerID.String()},
		entitylock.Ref{Kind: entitylock.KindInvoice, ID: invoiceID.String()},
	)
	if err != nil {
		return domain.Invoice{}, err
	}
	defer entitylock.ReleaseAll(leases)

	customer, err := s.customers.FindByID(ctx, s.db, customerID)
	if err != nil {
		return domain.Invoice{}, err
	}
	if customer == nil {
		return domain.Invoice{}, domain.ErrCustomerNotFound
	}

	cfg := s.billing.Get()
	number, err := s.sequences.Next(ctx, serialPrefix(invoiceType, cfg))
	if err != nil {
		return domain.Invoice{}, err
	}

	now := time.Now().UTC()
	dueAt := req.DueAt
	if dueAt == nil && cfg.PaymentTermsDays > 0 {
		due := now.AddDate(0, 0, cfg.PaymentTermsDays)
		dueAt = &due
	}

	invoice := domain.Invoice{
		ID:         invoiceID,
		Number:     number,
		CustomerID: customerID,
		Type:       invoiceType,
		Status:     domain.StatusDraft,
		Notes:      strings.TrimSpace(req.Notes),
		IssueDate:  now,
		DueAt:      dueAt,
		Metadata:   datatypes.JSONMap{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	invoice.Recompute(cfg)

	if err := s.repo.Insert(ctx, s.db, &invoice); err != nil {
		return domain.Invoice{}, err
	}

	s.log.Info("invoice created",
		zap.String("invoice_id", invoiceID.String()),
		zap.String("invoice_number", number),
		zap.String("customer_id", customerID.String()),
	)
	return invoice, nil
}

func (s *Service) AddItem(ctx context.Context, req domain.AddItemRequest) (domain.Invoice, error) {
	return s.mutate(ctx, req.InvoiceID, func(invoice *domain.Invoice, cfg config.BillingConfig) error {
		return invoice.AddItem(domain.LineItem{
			ID:          s.genID.Generate(),
			Description: strings.TrimSpace(req.Description),
			Quantity:    req.Quantity,
			UnitPrice:   req.UnitPrice,
			CreatedAt:   time.Now().UTC(),
		}, cfg)
	})
}

func (s *Service) RemoveItem(ctx context.Context, req domain.RemoveItemRequest) (domain.Invoice, error) {
	return s.mutate(ctx, req.InvoiceID, func(invoice *domain.Invoice, cfg config.BillingConfig) error {
		return invoice.RemoveItem(req.ItemID, cfg)
	})
}

func (s *Service) UpdateStatus(ctx context.Context, req domain.UpdateStatusRequest) (domain.Invoice, error) {
	return s.mutate(ctx, req.InvoiceID, func(invoice *domain.Invoice, _ config.BillingConfig) error {
		if err := invoice.ValidateTransition(req.Status); err != nil {
			return err
		}
		invoice.Status = req.Status
		return nil
	})
}

// RecordPayment appends a payment row and advances the status in one
// lock-protected, transactional step.
func (s *Service) RecordPayment(ctx context.Context, req domain.RecordPaymentRequest) (domain.Invoice, error) {
	id, err := s.parseID(req.InvoiceID)
	if err != nil {
		return domain.Invoice{}, err
	}

	lease, err := s.locks.Acquire(ctx, entitylock.KindInvoice, id.String())
	if err != nil {
		return domain.Invoice{}, err
	}
	defer lease.Release()

	invoice, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	if invoice == nil {
		return domain.Invoice{}, domain.ErrNotFound
	}

	now := time.Now().UTC()
	if err := invoice.ApplyPayment(req.Amount, now); err != nil {
		return domain.Invoice{}, err
	}

	payment := domain.Payment{
		ID:        s.genID.Generate(),
		InvoiceID: invoice.ID,
		Amount:    req.Amount,
		Method:    strings.TrimSpace(req.Method),
		PaidAt:    now,
		CreatedAt: now,
	}
	if err := s.repo.SaveWithPayment(ctx, s.db, invoice, &payment); err != nil {
		return domain.Invoice{}, err
	}

	s.log.Info("payment recorded",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("amount", req.Amount.String()),
		zap.String("status", string(invoice.Status)),
	)
	invoice.Payments = append(invoice.Payments, payment)
	return *invoice, nil
}

// Send commits the transition to sent, then dispatches the notification
// best-effort. A draft passes through issued on the way. Dispatch failure
// is logged and never unwinds the committed transition.
func (s *Service) Send(ctx context.Context, req domain.SendInvoiceRequest) (domain.Invoice, error) {
	invoice, err := s.mutate(ctx, req.InvoiceID, func(invoice *domain.Invoice, _ config.BillingConfig) error {
		if invoice.Status == domain.StatusDraft {
			if err := invoice.ValidateTransition(domain.StatusIssued); err != nil {
				return err
			}
			invoice.Status = domain.StatusIssued
		}
		if err := invoice.ValidateTransition(domain.StatusSent); err != nil {
			return err
		}
		invoice.Status = domain.StatusSent
		return nil
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.dispatch(ctx, invoice)
	return invoice, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetInvoiceRequest) (domain.Invoice, error) {
	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Invoice{}, err
	}
	invoice, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	if invoice == nil {
		return domain.Invoice{}, domain.ErrNotFound
	}
	return *invoice, nil
}

func (s *Service) List(ctx context.Context, req domain.ListInvoiceRequest) (domain.ListInvoiceResponse, error) {
	filter := domain.ListInvoiceFilter{
		Status:    req.Status,
		DueBefore: req.DueBefore,
		DueAfter:  req.DueAfter,
	}
	if req.CustomerID != "" {
		customerID, err := s.parseID(req.CustomerID)
		if err != nil {
			return domain.ListInvoiceResponse{}, err
		}
		filter.CustomerID = customerID
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	filter.Limit = pageSize + 1

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListInvoiceResponse{}, err
	}

	hasMore := len(items) > pageSize
	if hasMore {
		items = items[:pageSize]
	}

	invoices := make([]domain.Invoice, 0, len(items))
	for _, item := range items {
		invoices = append(invoices, *item)
	}
	resp := domain.ListInvoiceResponse{Invoices: invoices}
	resp.HasMore = hasMore
	return resp, nil
}

// Recent returns the newest invoices, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]domain.Invoice, error) {
	if limit <= 0 {
		limit = 5
	}
	items, err := s.repo.List(ctx, s.db, domain.ListInvoiceFilter{
		OrderBy: "created_at desc",
		Limit:   limit,
	})
	if err != nil {
		return nil, err
	}
	invoices := make([]domain.Invoice, 0, len(items))
	for _, item := range items {
		invoices = append(invoices, *item)
	}
	return invoices, nil
}

// Overdue lists unpaid invoices past their due date, most overdue first.
func (s *Service) Overdue(ctx context.Context) ([]domain.Invoice, error) {
	now := time.Now().UTC()
	items, err := s.repo.List(ctx, s.db, domain.ListInvoiceFilter{
		DueBefore:   &now,
		NotStatuses: []domain.InvoiceStatus{domain.StatusDraft, domain.StatusPaid, domain.StatusCancelled},
		OrderBy:     "due_at asc",
	})
	if err != nil {
		return nil, err
	}
	invoices := make([]domain.Invoice, 0, len(items))
	for _, item := range items {
		invoices = append(invoices, *item)
	}
	return invoices, nil
}

// mutate runs the lock-load-validate-persist cycle shared by every
// single-invoice mutation. The lease is released on every exit path.
func (s *Service) mutate(ctx context.Context, invoiceID string, apply func(*domain.Invoice, config.BillingConfig) error) (domain.Invoice, error) {
	id, err := s.parseID(invoiceID)
	if err != nil {
		return domain.Invoice{}, err
	}

	lease, err := s.locks.Acquire(ctx, entitylock.KindInvoice, id.String())
	if err != nil {
		return domain.Invoice{}, err
	}
	defer lease.Release()

	invoice, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	if invoice == nil {
		return domain.Invoice{}, domain.ErrNotFound
	}

	if err := apply(invoice, s.billing.Get()); err != nil {
		return domain.Invoice{}, err
	}
	invoice.UpdatedAt = time.Now().UTC()

	if err := s.repo.Save(ctx, s.db, invoice); err != nil {
		return domain.Invoice{}, err
	}
	return *invoice, nil
}

func (s *Service) dispatch(ctx context.Context, invoice domain.Invoice) {
	customer, err := s.customers.FindByID(ctx, s.db, invoice.CustomerID)
	if err != nil || customer == nil || customer.Email == "" {
		s.log.Warn("invoice dispatch skipped: no recipient",
			zap.String("invoice_id", invoice.ID.String()),
			zap.Error(err),
		)
		return
	}

	cfg := s.billing.Get()
	subject := fmt.Sprintf("Invoice %s", invoice.Number)
	body := fmt.Sprintf("<p>Invoice %s for %s %s is ready.</p>",
		invoice.Number, invoice.Total.StringFixed(cfg.MinorUnits), cfg.Currency)

	if err := s.mailer.Send(ctx, []string{customer.Email}, subject, body); err != nil {
		s.log.Warn("invoice dispatch failed",
			zap.String("invoice_id", invoice.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func serialPrefix(t domain.InvoiceType, cfg config.BillingConfig) string {
	if t == domain.TypeCreditNote {
		return cfg.CreditNotePrefix
	}
	return cfg.InvoicePrefix
}
