package billing

import (
	"context"

	"github.com/billforge/invoicing-api/internal/domain/entity"
)

// EventPublisher notifies collaborators (dashboards, draft tables) about
// draft lifecycle changes. Implementations must not block the request
// path on delivery problems; a lost notification is never fatal.
type EventPublisher interface {
	DraftSaved(ctx context.Context, env *entity.DraftEnvelope)
	DraftDiscarded(ctx context.Context, draftID string)
}
