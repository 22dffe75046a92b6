package reporting

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/faktur/internal/invoice/domain"
	"github.com/smallbiznis/faktur/internal/invoice/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func seedInvoice(t *testing.T, db *gorm.DB, node *snowflake.Node, status invoicedomain.InvoiceStatus, total, paid string, dueAt *time.Time) {
	t.Helper()
	now := time.Now().UTC()
	invoice := invoicedomain.Invoice{
		ID:         node.Generate(),
		Number:     fmt.Sprintf("INV-2026-%06d", node.Generate()%1000000),
		CustomerID: node.Generate(),
		Type:       invoicedomain.TypeStandard,
		Status:     status,
		IssueDate:  now,
		DueAt:      dueAt,
		Subtotal:   decimal.RequireFromString(total),
		TaxAmount:  decimal.Zero,
		Total:      decimal.RequireFromString(total),
		AmountPaid: decimal.RequireFromString(paid),
		Metadata:   datatypes.JSONMap{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, db.Create(&invoice).Error)
}

func TestStats_Aggregation(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&invoicedomain.Invoice{}, &invoicedomain.LineItem{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	past := time.Now().UTC().Add(-24 * time.Hour)
	future := time.Now().UTC().Add(24 * time.Hour)

	seedInvoice(t, db, node, invoicedomain.StatusDraft, "10.00", "0", nil)
	seedInvoice(t, db, node, invoicedomain.StatusSent, "100.00", "0", &past)            // overdue
	seedInvoice(t, db, node, invoicedomain.StatusPartiallyPaid, "50.00", "20.00", &future)
	seedInvoice(t, db, node, invoicedomain.StatusPaid, "30.00", "30.00", &past)
	seedInvoice(t, db, node, invoicedomain.StatusCancelled, "999.00", "0", nil)

	svc := New(Params{DB: db, Log: zap.NewNop(), Repo: repository.Provide()})

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, stats.TotalCount)
	assert.Equal(t, 1, stats.CountByStatus[invoicedomain.StatusDraft])
	assert.Equal(t, 1, stats.CountByStatus[invoicedomain.StatusCancelled])

	// Cancelled is excluded from every monetary aggregate.
	assert.True(t, stats.AmountInvoiced.Equal(decimal.RequireFromString("190.00")), "invoiced %s", stats.AmountInvoiced)
	assert.True(t, stats.AmountPaid.Equal(decimal.RequireFromString("50.00")), "paid %s", stats.AmountPaid)
	assert.True(t, stats.AmountOutstanding.Equal(decimal.RequireFromString("140.00")), "outstanding %s", stats.AmountOutstanding)

	// Only the unpaid invoice past its due date reads as overdue; the paid
	// one does not, whatever its due date.
	assert.Equal(t, 1, stats.OverdueCount)
}
