package repository

import (
	"context"

	"github.com/billforge/invoicing-api/internal/domain/entity"
)

// CustomerRepository read access to customers for the draft flow. Full
// customer CRUD lives in another service; the draft engine only ever
// looks a customer up to merge billing/shipping data into a draft.
type CustomerRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Customer, error)
}
