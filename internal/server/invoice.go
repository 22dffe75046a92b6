package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	customerdomain "github.com/smallbiznis/faktur/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/faktur/internal/invoice/domain"
	"github.com/smallbiznis/faktur/internal/providers/pdf"
	"github.com/smallbiznis/faktur/pkg/db/pagination"
)

type createInvoiceRequest struct {
	CustomerID string     `json:"customer_id"`
	Type       string     `json:"invoice_type"`
	DueAt      *time.Time `json:"due_at"`
	Notes      string     `json:"notes"`
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	invoiceType := invoicedomain.InvoiceType(strings.TrimSpace(req.Type))
	if invoiceType == "" {
		invoiceType = invoicedomain.TypeStandard
	}

	resp, err := s.invoiceSvc.Create(c.Request.Context(), invoicedomain.CreateInvoiceRequest{
		CustomerID: strings.TrimSpace(req.CustomerID),
		Type:       invoiceType,
		DueAt:      req.DueAt,
		Notes:      strings.TrimSpace(req.Notes),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type addItemRequest struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

func (s *Server) AddInvoiceItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.AddItem(c.Request.Context(), invoicedomain.AddItemRequest{
		InvoiceID:   strings.TrimSpace(c.Param("id")),
		Description: strings.TrimSpace(req.Description),
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RemoveInvoiceItem(c *gin.Context) {
	resp, err := s.invoiceSvc.RemoveItem(c.Request.Context(), invoicedomain.RemoveItemRequest{
		InvoiceID: strings.TrimSpace(c.Param("id")),
		ItemID:    strings.TrimSpace(c.Param("itemId")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) UpdateInvoiceStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.UpdateStatus(c.Request.Context(), invoicedomain.UpdateStatusRequest{
		InvoiceID: strings.TrimSpace(c.Param("id")),
		Status:    invoicedomain.InvoiceStatus(strings.TrimSpace(req.Status)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type recordPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method"`
}

func (s *Server) RecordInvoicePayment(c *gin.Context) {
	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.RecordPayment(c.Request.Context(), invoicedomain.RecordPaymentRequest{
		InvoiceID: strings.TrimSpace(c.Param("id")),
		Amount:    req.Amount,
		Method:    strings.TrimSpace(req.Method),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SendInvoice(c *gin.Context) {
	resp, err := s.invoiceSvc.Send(c.Request.Context(), invoicedomain.SendInvoiceRequest{
		InvoiceID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	resp, err := s.invoiceSvc.GetByID(c.Request.Context(), invoicedomain.GetInvoiceRequest{
		ID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListInvoices(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Status     string `form:"status"`
		CustomerID string `form:"customer_id"`
		DueBefore  string `form:"due_before"`
		DueAfter   string `form:"due_after"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req := invoicedomain.ListInvoiceRequest{
		PageToken:  query.PageToken,
		PageSize:   query.PageSize,
		CustomerID: strings.TrimSpace(query.CustomerID),
	}

	if raw := strings.TrimSpace(query.Status); raw != "" {
		status := invoicedomain.InvoiceStatus(raw)
		if !status.Storable() {
			AbortWithError(c, newValidationError("status", "invalid_status", "invalid status"))
			return
		}
		req.Status = &status
	}

	dueBefore, err := parseOptionalTime(query.DueBefore)
	if err != nil {
		AbortWithError(c, newValidationError("due_before", "invalid_due_before", "invalid due_before"))
		return
	}
	req.DueBefore = dueBefore

	dueAfter, err := parseOptionalTime(query.DueAfter)
	if err != nil {
		AbortWithError(c, newValidationError("due_after", "invalid_due_after", "invalid due_after"))
		return
	}
	req.DueAfter = dueAfter

	resp, err := s.invoiceSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RenderInvoicePDF(c *gin.Context) {
	ctx := c.Request.Context()

	invoice, err := s.invoiceSvc.GetByID(ctx, invoicedomain.GetInvoiceRequest{
		ID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	customer, err := s.customerSvc.GetByID(ctx, customerdomain.GetCustomerRequest{
		ID: invoice.CustomerID.String(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	billing := s.billing.Get()
	now := time.Now().UTC()

	data := pdf.InvoiceData{
		Title:         invoiceTitle(invoice.Type),
		InvoiceNumber: invoice.Number,
		Status:        string(invoice.EffectiveStatus(now)),
		IssueDate:     invoice.IssueDate.Format("January 2, 2006"),
		BillToName:    customer.Name,
		BillToAddress: customer.Address,
		BillToEmail:   customer.Email,
		Currency:      billing.Currency,
		Subtotal:      invoice.Subtotal.StringFixed(billing.MinorUnits),
		Tax:           invoice.TaxAmount.StringFixed(billing.MinorUnits),
		Total:         invoice.Total.StringFixed(billing.MinorUnits),
		AmountDue:     invoice.Balance().StringFixed(billing.MinorUnits),
		Notes:         invoice.Notes,
	}
	if invoice.DueAt != nil {
		data.DueDate = invoice.DueAt.Format("January 2, 2006")
	}
	for _, item := range invoice.Items {
		data.Items = append(data.Items, pdf.InvoiceItem{
			Description: item.Description,
			Qty:         item.Quantity.String(),
			UnitPrice:   item.UnitPrice.StringFixed(billing.MinorUnits),
			Amount:      item.LineTotal().StringFixed(billing.MinorUnits),
		})
	}

	doc, err := s.pdfProvider.GenerateInvoice(ctx, data)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	raw, err := io.ReadAll(doc)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", invoice.Number+".pdf"))
	c.Data(http.StatusOK, "application/pdf", raw)
}

func invoiceTitle(t invoicedomain.InvoiceType) string {
	switch t {
	case invoicedomain.TypeCreditNote:
		return "Credit Note"
	case invoicedomain.TypeTaxInvoice:
		return "Tax Invoice"
	default:
		return "Invoice"
	}
}

func parseOptionalTime(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
