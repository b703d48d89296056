package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/billforge/invoicing-api/internal/domain/entity"
	"github.com/billforge/invoicing-api/internal/domain/repository"
)

var _ repository.CustomerRepository = (*CustomerRepo)(nil)

// CustomerRepo CustomerRepository implementation (usable with pool or tx).
type CustomerRepo struct {
	q Querier
}

// NewCustomerRepository builds the adapter. Pass pool or tx (Querier).
func NewCustomerRepository(q Querier) *CustomerRepo {
	return &CustomerRepo{q: q}
}

// GetByID fetches a customer. Returns (nil, nil) when not found.
func (r *CustomerRepo) GetByID(ctx context.Context, id string) (*entity.Customer, error) {
	query := `
		SELECT id, owner_id, name, email, phone, billing_address, shipping_address, state, gstin, created_at, updated_at
		FROM customers
		WHERE id = $1`
	var c entity.Customer
	err := r.q.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.OwnerID, &c.Name, &c.Email, &c.Phone,
		&c.BillingAddress, &c.ShippingAddress, &c.State, &c.GSTIN,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select customer: %w", err)
	}
	return &c, nil
}
