package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/billforge/invoicing-api/internal/domain/entity"
	"github.com/billforge/invoicing-api/internal/domain/repository"
)

var _ repository.UserRepository = (*UserRepo)(nil)

// UserRepo UserRepository implementation (usable with pool or tx).
type UserRepo struct {
	q Querier
}

// NewUserRepository builds the adapter. Pass pool or tx (Querier).
func NewUserRepository(q Querier) *UserRepo {
	return &UserRepo{q: q}
}

// Create persists a new user.
func (r *UserRepo) Create(ctx context.Context, user *entity.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.q.Exec(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.Name, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("email already exists: %w", err)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByEmail fetches a user by email. Returns (nil, nil) when not found.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.get(ctx, `SELECT id, email, password_hash, name, created_at, updated_at FROM users WHERE email = $1`, email)
}

// GetByID fetches a user by id. Returns (nil, nil) when not found.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return r.get(ctx, `SELECT id, email, password_hash, name, created_at, updated_at FROM users WHERE id = $1`, id)
}

func (r *UserRepo) get(ctx context.Context, query string, arg any) (*entity.User, error) {
	var u entity.User
	err := r.q.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &u, nil
}
