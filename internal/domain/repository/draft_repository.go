package repository

import (
	"context"

	"github.com/billforge/invoicing-api/internal/domain/entity"
)

// DraftRepository persists draft envelopes in the remote document store.
// Submitted drafts stay in storage for invoicing views but are no longer
// reachable through the draft read path.
type DraftRepository interface {
	Create(ctx context.Context, env *entity.DraftEnvelope) error
	Update(ctx context.Context, env *entity.DraftEnvelope) error
	// GetByID returns only drafts still in draft status.
	GetByID(ctx context.Context, id string) (*entity.DraftEnvelope, error)
	Delete(ctx context.Context, id string) error
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*entity.DraftEnvelope, int, error)
	// MarkSubmitted flips the status and records the final invoice number.
	// Returns the stored envelope after the transition.
	MarkSubmitted(ctx context.Context, id, invoiceNumber string) (*entity.DraftEnvelope, error)
}
