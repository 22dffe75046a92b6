package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/faktur/internal/customer/domain"
	"github.com/smallbiznis/faktur/internal/customer/repository"
	"github.com/smallbiznis/faktur/internal/entitylock"
	invoicedomain "github.com/smallbiznis/faktur/internal/invoice/domain"
	invoicerepository "github.com/smallbiznis/faktur/internal/invoice/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type testEnv struct {
	db   *gorm.DB
	node *snowflake.Node
	svc  domain.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&domain.Customer{},
		&invoicedomain.Invoice{},
		&invoicedomain.LineItem{},
		&invoicedomain.Payment{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	logger := zap.NewNop()
	svc := New(Params{
		DB:       db,
		Log:      logger,
		GenID:    node,
		Locks:    entitylock.NewManager(5*time.Second, logger),
		Repo:     repository.Provide(),
		Invoices: invoicerepository.Provide(),
	})

	return &testEnv{db: db, node: node, svc: svc}
}

func TestCreateCustomer_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Create(ctx, domain.CreateCustomerRequest{Name: "  ", Email: "a@b.test"})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = env.svc.Create(ctx, domain.CreateCustomerRequest{Name: "Acme", Email: "not-an-email"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	_, err = env.svc.Create(ctx, domain.CreateCustomerRequest{Name: "Acme", Email: "a@b.test", Phone: "call-me"})
	assert.ErrorIs(t, err, domain.ErrInvalidPhone)

	customer, err := env.svc.Create(ctx, domain.CreateCustomerRequest{
		Name:  "Acme Ltd",
		Email: "billing@acme.test",
		Phone: "+972 54-123-4567",
	})
	require.NoError(t, err)
	assert.NotZero(t, customer.ID)
	assert.Equal(t, "Acme Ltd", customer.Name)
}

func TestCreateCustomer_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Create(ctx, domain.CreateCustomerRequest{Name: "Acme", Email: "billing@acme.test"})
	require.NoError(t, err)

	_, err = env.svc.Create(ctx, domain.CreateCustomerRequest{Name: "Other", Email: "billing@acme.test"})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)

	// The email check is case-insensitive.
	_, err = env.svc.Create(ctx, domain.CreateCustomerRequest{Name: "Other", Email: "Billing@Acme.test"})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestUpdateCustomer_PartialFields(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	customer, err := env.svc.Create(ctx, domain.CreateCustomerRequest{Name: "Acme", Email: "billing@acme.test"})
	require.NoError(t, err)

	name := "Acme Holdings"
	updated, err := env.svc.Update(ctx, domain.UpdateCustomerRequest{
		ID:   customer.ID.String(),
		Name: &name,
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme Holdings", updated.Name)
	// Untouched fields survive.
	assert.Equal(t, "billing@acme.test", updated.Email)

	// Re-submitting the customer's own email is not a conflict.
	same := "billing@acme.test"
	_, err = env.svc.Update(ctx, domain.UpdateCustomerRequest{ID: customer.ID.String(), Email: &same})
	assert.NoError(t, err)

	other, err := env.svc.Create(ctx, domain.CreateCustomerRequest{Name: "Other", Email: "other@acme.test"})
	require.NoError(t, err)
	taken := "billing@acme.test"
	_, err = env.svc.Update(ctx, domain.UpdateCustomerRequest{ID: other.ID.String(), Email: &taken})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestUpdateCustomer_NotFound(t *testing.T) {
	env := newTestEnv(t)

	name := "x"
	_, err := env.svc.Update(context.Background(), domain.UpdateCustomerRequest{
		ID:   env.node.Generate().String(),
		Name: &name,
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = env.svc.Update(context.Background(), domain.UpdateCustomerRequest{ID: "garbage"})
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestDeleteCustomer_BlockedByActiveInvoice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	customer, err := env.svc.Create(ctx, domain.CreateCustomerRequest{Name: "Acme", Email: "billing@acme.test"})
	require.NoError(t, err)

	now := time.Now().UTC()
	invoice := invoicedomain.Invoice{
		ID:         env.node.Generate(),
		Number:     "INV-2026-000001",
		CustomerID: customer.ID,
		Type:       invoicedomain.TypeStandard,
		Status:     invoicedomain.StatusIssued,
		IssueDate:  now,
		Subtotal:   decimal.NewFromInt(10),
		TaxAmount:  decimal.Zero,
		Total:      decimal.NewFromInt(10),
		AmountPaid: decimal.Zero,
		Metadata:   datatypes.JSONMap{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, env.db.Create(&invoice).Error)

	err = env.svc.Delete(ctx, domain.DeleteCustomerRequest{ID: customer.ID.String()})
	assert.ErrorIs(t, err, domain.ErrHasActiveInvoices)

	// Once every invoice is cancelled the delete goes through.
	require.NoError(t, env.db.Model(&invoicedomain.Invoice{}).
		Where("id = ?", invoice.ID).
		Update("status", invoicedomain.StatusCancelled).Error)

	require.NoError(t, env.svc.Delete(ctx, domain.DeleteCustomerRequest{ID: customer.ID.String()}))

	_, err = env.svc.GetByID(ctx, domain.GetCustomerRequest{ID: customer.ID.String()})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListCustomers_CursorPagination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := env.svc.Create(ctx, domain.CreateCustomerRequest{
			Name:  fmt.Sprintf("Customer %d", i),
			Email: fmt.Sprintf("c%d@acme.test", i),
		})
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond) // distinct created_at for cursor ordering
	}

	first, err := env.svc.List(ctx, domain.ListCustomerRequest{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first.Customers, 2)
	require.True(t, first.HasMore)
	require.NotEmpty(t, first.NextPageToken)

	second, err := env.svc.List(ctx, domain.ListCustomerRequest{PageSize: 2, PageToken: first.NextPageToken})
	require.NoError(t, err)
	require.Len(t, second.Customers, 2)

	// No overlap between pages.
	seen := map[string]bool{}
	for _, c := range append(first.Customers, second.Customers...) {
		assert.False(t, seen[c.ID.String()], "duplicate %s across pages", c.ID)
		seen[c.ID.String()] = true
	}
}

func TestSearchCustomers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Create(ctx, domain.CreateCustomerRequest{Name: "Blue Ocean Ltd", Email: "hello@blueocean.test"})
	require.NoError(t, err)
	_, err = env.svc.Create(ctx, domain.CreateCustomerRequest{Name: "Red Desert Inc", Email: "hi@reddesert.test"})
	require.NoError(t, err)

	matches, err := env.svc.Search(ctx, domain.SearchCustomerRequest{Query: "ocean", Limit: 10})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Blue Ocean Ltd", matches[0].Name)

	byEmail, err := env.svc.Search(ctx, domain.SearchCustomerRequest{Query: "reddesert", Limit: 10})
	require.NoError(t, err)
	require.Len(t, byEmail, 1)
	assert.Equal(t, "Red Desert Inc", byEmail[0].Name)
}
