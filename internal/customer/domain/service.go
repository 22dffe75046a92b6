package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/faktur/pkg/db/pagination"
)

type CreateCustomerRequest struct {
	Name    string
	Email   string
	Phone   string
	Address string
	TaxID   string
}

// UpdateCustomerRequest carries partial updates; nil fields are untouched.
type UpdateCustomerRequest struct {
	ID      string
	Name    *string
	Email   *string
	Phone   *string
	Address *string
	TaxID   *string
}

type GetCustomerRequest struct {
	ID string
}

type DeleteCustomerRequest struct {
	ID string
}

type ListCustomerRequest struct {
	PageToken string
	PageSize  int
	Name      string
	Email     string
}

type SearchCustomerRequest struct {
	Query string
	Limit int
}

type ListCustomerResponse struct {
	pagination.PageInfo
	Customers []Customer `json:"customers"`
}

type Service interface {
	Create(context.Context, CreateCustomerRequest) (Customer, error)
	Update(context.Context, UpdateCustomerRequest) (Customer, error)
	Delete(context.Context, DeleteCustomerRequest) error
	GetByID(context.Context, GetCustomerRequest) (Customer, error)
	List(context.Context, ListCustomerRequest) (ListCustomerResponse, error)
	Search(context.Context, SearchCustomerRequest) ([]Customer, error)
}

var (
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidEmail      = errors.New("invalid_email")
	ErrInvalidPhone      = errors.New("invalid_phone")
	ErrInvalidID         = errors.New("invalid_id")
	ErrEmailTaken        = errors.New("email_taken")
	ErrNotFound          = errors.New("not_found")
	ErrHasActiveInvoices = errors.New("has_active_invoices")
)
