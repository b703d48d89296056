package repository

import (
	"context"

	"github.com/billforge/invoicing-api/internal/domain/entity"
)

// UserRepository persistence for account owners (session auth).
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	GetByID(ctx context.Context, id string) (*entity.User, error)
}
