package session

import (
	"context"
	"time"

	"github.com/billforge/invoicing-api/internal/application/dto"
	"github.com/billforge/invoicing-api/internal/client/draftapi"
	"github.com/billforge/invoicing-api/internal/domain/entity"
)

var (
	_ RemoteStore       = (*draftapi.Client)(nil)
	_ CustomerDirectory = (*draftapi.Client)(nil)
)

// RemoteStore is the typed boundary to the remote draft endpoints, as
// implemented by draftapi.Client. The controller treats the remote as
// source of truth once a draft identifier exists.
type RemoteStore interface {
	CreateDraft(ctx context.Context, draft *entity.InvoiceDraft) (*entity.DraftEnvelope, error)
	UpdateDraft(ctx context.Context, id string, draft *entity.InvoiceDraft) (*entity.DraftEnvelope, error)
	GetDraft(ctx context.Context, id string) (*entity.DraftEnvelope, error)
	DeleteDraft(ctx context.Context, id string) error
	SubmitDraft(ctx context.Context, id string) (*dto.SubmitDraftResponse, error)
	CalculateTax(ctx context.Context, in dto.CalculateTaxRequest) (*dto.CalculateTaxResponse, error)
}

// CustomerDirectory external collaborator resolving customers for the
// load-customer merge. Its internals (service, cache) are not this
// package's concern.
type CustomerDirectory interface {
	GetCustomer(ctx context.Context, id string) (*dto.CustomerResponse, error)
}

// BackupRecord the stored local backup: draft plus write time.
type BackupRecord struct {
	Draft   entity.InvoiceDraft `json:"draft"`
	SavedAt time.Time           `json:"saved_at"`
}

// BackupStore durable local mirror of the draft being edited. Write must
// be synchronous relative to the caller; the store holds exactly one
// slot per edit session.
type BackupStore interface {
	Write(draft *entity.InvoiceDraft) error
	Read() (*BackupRecord, error)
	Clear() error
}

// Notifier receives draft lifecycle notifications for derived views
// (dashboards, draft tables). Implementations must be non-blocking.
type Notifier interface {
	DraftSaved(env *entity.DraftEnvelope)
	DraftDiscarded(draftID string)
}

// NoopNotifier ignores all notifications.
type NoopNotifier struct{}

func (NoopNotifier) DraftSaved(*entity.DraftEnvelope) {}
func (NoopNotifier) DraftDiscarded(string)            {}
