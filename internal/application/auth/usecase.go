package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/billforge/invoicing-api/internal/application/dto"
	"github.com/billforge/invoicing-api/internal/domain"
	"github.com/billforge/invoicing-api/internal/domain/entity"
	"github.com/billforge/invoicing-api/internal/domain/repository"
	"github.com/billforge/invoicing-api/pkg/jwt"
)

// JWTConfig token generation settings.
type JWTConfig struct {
	Secret     string
	ExpMinutes int
	Issuer     string
}

// AuthUseCase session auth: register and login. Drafts are scoped to the
// user id carried in the issued token.
type AuthUseCase struct {
	userRepo repository.UserRepository
	jwtCfg   JWTConfig
}

// NewAuthUseCase builds the auth use case.
func NewAuthUseCase(userRepo repository.UserRepository, jwtCfg JWTConfig) *AuthUseCase {
	return &AuthUseCase{userRepo: userRepo, jwtCfg: jwtCfg}
}

// Register creates a user: hashes the password with bcrypt and persists.
// Returns ErrEmailAlreadyExists when the email is taken.
func (uc *AuthUseCase) Register(ctx context.Context, in dto.RegisterRequest) (*dto.AuthResponse, error) {
	if in.Email == "" || in.Password == "" {
		return nil, domain.ErrInvalidInput
	}
	existing, _ := uc.userRepo.GetByEmail(ctx, in.Email)
	if existing != nil {
		return nil, domain.ErrEmailAlreadyExists
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	name := in.Name
	if name == "" {
		name = in.Email
	}
	user := &entity.User{
		ID:           uuid.New().String(),
		Email:        in.Email,
		PasswordHash: string(hash),
		Name:         name,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := uc.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return uc.issue(user)
}

// Login verifies email/password and issues a session token.
func (uc *AuthUseCase) Login(ctx context.Context, in dto.LoginRequest) (*dto.AuthResponse, error) {
	user, err := uc.userRepo.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, domain.ErrUnauthorized
	}
	return uc.issue(user)
}

func (uc *AuthUseCase) issue(user *entity.User) (*dto.AuthResponse, error) {
	token, err := jwt.Generate(uc.jwtCfg.Secret, user.ID, uc.jwtCfg.Issuer, uc.jwtCfg.ExpMinutes)
	if err != nil {
		return nil, err
	}
	return &dto.AuthResponse{
		Token: token,
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
	}, nil
}
