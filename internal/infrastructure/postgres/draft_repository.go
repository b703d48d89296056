package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/billforge/invoicing-api/internal/domain/entity"
	"github.com/billforge/invoicing-api/internal/domain/repository"
)

var _ repository.DraftRepository = (*DraftRepo)(nil)

// DraftRepo DraftRepository implementation over a drafts table used as a
// document store: the working draft lives in a JSONB payload, with money
// columns mirrored out for indexed listing.
type DraftRepo struct {
	q Querier
}

// NewDraftRepository builds the adapter. Pass pool or tx (Querier).
func NewDraftRepository(q Querier) *DraftRepo {
	return &DraftRepo{q: q}
}

// Create persists a new draft envelope.
func (r *DraftRepo) Create(ctx context.Context, env *entity.DraftEnvelope) error {
	payload, err := json.Marshal(env.Draft)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	query := `
		INSERT INTO drafts (id, owner_id, status, invoice_number, payload, subtotal, total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`
	_, err = r.q.Exec(ctx, query,
		env.ID, env.OwnerID, entity.StatusDraft, env.Draft.InvoiceNumber,
		payload, env.Draft.Totals.Subtotal, env.Draft.Totals.Total, env.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("draft id already exists: %w", err)
		}
		return fmt.Errorf("insert draft: %w", err)
	}
	return nil
}

// Update replaces the payload of a draft still in draft status.
func (r *DraftRepo) Update(ctx context.Context, env *entity.DraftEnvelope) error {
	payload, err := json.Marshal(env.Draft)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	query := `
		UPDATE drafts
		SET invoice_number = $2,
		    payload        = $3,
		    subtotal       = $4,
		    total          = $5,
		    updated_at     = $6
		WHERE id = $1 AND status = 'draft'`
	tag, err := r.q.Exec(ctx, query,
		env.ID, env.Draft.InvoiceNumber, payload,
		env.Draft.Totals.Subtotal, env.Draft.Totals.Total, env.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update draft: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update draft %s: no draft row", env.ID)
	}
	return nil
}

// GetByID fetches an envelope still in draft status. Submitted drafts are
// invisible here: after the one-way transition the id is not loadable as
// a draft anymore. Returns (nil, nil) when not found.
func (r *DraftRepo) GetByID(ctx context.Context, id string) (*entity.DraftEnvelope, error) {
	query := `
		SELECT id, owner_id, payload, updated_at
		FROM drafts
		WHERE id = $1 AND status = 'draft'`
	return r.scanEnvelope(r.q.QueryRow(ctx, query, id))
}

// Delete discards a draft.
func (r *DraftRepo) Delete(ctx context.Context, id string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM drafts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// ListByOwner pages through an owner's drafts, most recently updated
// first. Returns the page plus the total count for pagination metadata.
func (r *DraftRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*entity.DraftEnvelope, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM drafts WHERE owner_id = $1 AND status = 'draft'`
	if err := r.q.QueryRow(ctx, countQuery, ownerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count drafts: %w", err)
	}

	query := `
		SELECT id, owner_id, payload, updated_at
		FROM drafts
		WHERE owner_id = $1 AND status = 'draft'
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list drafts: %w", err)
	}
	defer rows.Close()

	var out []*entity.DraftEnvelope
	for rows.Next() {
		env, err := r.scanEnvelope(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, env)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate drafts: %w", err)
	}
	return out, total, nil
}

// MarkSubmitted performs the one-way draft -> submitted transition and
// stamps the final invoice number into both the row and the payload.
func (r *DraftRepo) MarkSubmitted(ctx context.Context, id, invoiceNumber string) (*entity.DraftEnvelope, error) {
	now := time.Now().UTC()
	query := `
		UPDATE drafts
		SET status         = 'submitted',
		    invoice_number = $2,
		    payload        = jsonb_set(jsonb_set(payload, '{status}', '"submitted"'), '{invoice_number}', to_jsonb($2::text)),
		    updated_at     = $3
		WHERE id = $1 AND status = 'draft'
		RETURNING id, owner_id, payload, updated_at`
	env, err := r.scanEnvelope(r.q.QueryRow(ctx, query, id, invoiceNumber, now))
	if err != nil {
		return nil, err
	}
	if env == nil {
		return nil, fmt.Errorf("submit draft %s: no draft row", id)
	}
	return env, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *DraftRepo) scanEnvelope(row rowScanner) (*entity.DraftEnvelope, error) {
	var env entity.DraftEnvelope
	var payload []byte
	err := row.Scan(&env.ID, &env.OwnerID, &payload, &env.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan draft: %w", err)
	}
	if err := json.Unmarshal(payload, &env.Draft); err != nil {
		return nil, fmt.Errorf("unmarshal draft payload: %w", err)
	}
	return &env, nil
}
