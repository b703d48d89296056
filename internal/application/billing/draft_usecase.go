package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/billforge/invoicing-api/internal/application/dto"
	"github.com/billforge/invoicing-api/internal/domain"
	"github.com/billforge/invoicing-api/internal/domain/entity"
	"github.com/billforge/invoicing-api/internal/domain/gst"
	"github.com/billforge/invoicing-api/internal/domain/repository"
)

// DraftUseCase owns the server side of the draft lifecycle: CRUD over the
// document store, authoritative tax computation and the one-way submit
// transition.
type DraftUseCase struct {
	draftRepo    repository.DraftRepository
	customerRepo repository.CustomerRepository
	events       EventPublisher
}

// NewDraftUseCase builds the use case.
func NewDraftUseCase(draftRepo repository.DraftRepository, customerRepo repository.CustomerRepository, events EventPublisher) *DraftUseCase {
	return &DraftUseCase{draftRepo: draftRepo, customerRepo: customerRepo, events: events}
}

// applyAuthoritativeTotals recomputes the breakdown server-side. Invalid
// line items reject the save; a draft without both jurisdictions is still
// storable, its client-sent totals are kept as pending values.
func applyAuthoritativeTotals(draft *entity.InvoiceDraft) error {
	bd, items, err := gst.Compute(gst.Input{
		Items:       draft.Items,
		SellerState: draft.Seller.State,
		BuyerState:  draft.Buyer.State,
		Shipping:    draft.Shipping,
		Discount:    draft.Discount,
	})
	if err != nil {
		if errors.Is(err, domain.ErrMissingJurisdiction) {
			return nil
		}
		return err
	}
	draft.Totals = bd
	if items != nil {
		draft.Items = items
	}
	return nil
}

// CreateDraft stores a new draft and assigns its stable identifier.
func (uc *DraftUseCase) CreateDraft(ctx context.Context, ownerID string, in dto.SaveDraftRequest) (*dto.DraftEnvelopeResponse, error) {
	if ownerID == "" {
		return nil, domain.ErrUnauthorized
	}
	draft := in.Draft
	draft.Status = entity.StatusDraft
	if err := applyAuthoritativeTotals(&draft); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	env := &entity.DraftEnvelope{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Draft:     draft,
		UpdatedAt: now,
	}
	env.Draft.ID = env.ID
	if err := uc.draftRepo.Create(ctx, env); err != nil {
		return nil, err
	}
	uc.events.DraftSaved(ctx, env)
	resp := dto.EnvelopeResponse(env)
	return &resp, nil
}

// UpdateDraft merges a partial update into the stored payload: the body
// is decoded over the stored draft, so fields absent from the request
// keep their stored values. Submitted drafts are not reachable here: the
// repository read path excludes them, so updating one reports not found.
func (uc *DraftUseCase) UpdateDraft(ctx context.Context, ownerID, id string, in dto.PatchDraftRequest) (*dto.DraftEnvelopeResponse, error) {
	env, err := uc.getOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if len(in.Draft) == 0 {
		return nil, domain.ErrInvalidInput
	}

	draft := *env.Draft.Clone()
	if err := json.Unmarshal(in.Draft, &draft); err != nil {
		return nil, domain.ErrInvalidInput
	}
	// id and status are server-owned, a patch cannot move them
	draft.ID = env.ID
	draft.Status = entity.StatusDraft
	if err := applyAuthoritativeTotals(&draft); err != nil {
		return nil, err
	}

	env.Draft = draft
	env.UpdatedAt = time.Now().UTC()
	if err := uc.draftRepo.Update(ctx, env); err != nil {
		return nil, err
	}
	uc.events.DraftSaved(ctx, env)
	resp := dto.EnvelopeResponse(env)
	return &resp, nil
}

// GetDraft fetches a draft envelope for the session owner.
func (uc *DraftUseCase) GetDraft(ctx context.Context, ownerID, id string) (*dto.DraftEnvelopeResponse, error) {
	env, err := uc.getOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	resp := dto.EnvelopeResponse(env)
	return &resp, nil
}

// DeleteDraft discards a draft.
func (uc *DraftUseCase) DeleteDraft(ctx context.Context, ownerID, id string) error {
	env, err := uc.getOwned(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := uc.draftRepo.Delete(ctx, env.ID); err != nil {
		return err
	}
	uc.events.DraftDiscarded(ctx, env.ID)
	return nil
}

// ListDrafts pages through the session owner's drafts.
func (uc *DraftUseCase) ListDrafts(ctx context.Context, ownerID string, page dto.PageRequest) (*dto.DraftListResponse, error) {
	if ownerID == "" {
		return nil, domain.ErrUnauthorized
	}
	page.DefaultPage()
	envs, total, err := uc.draftRepo.ListByOwner(ctx, ownerID, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	out := &dto.DraftListResponse{
		Items: make([]dto.DraftEnvelopeResponse, 0, len(envs)),
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset, Total: total},
	}
	for _, env := range envs {
		out.Items = append(out.Items, dto.EnvelopeResponse(env))
	}
	return out, nil
}

// SubmitDraft finalizes a draft into an invoice. Irreversible: the id is
// no longer loadable as a draft afterwards. The final invoice number
// replaces the client placeholder at this point and only at this point.
func (uc *DraftUseCase) SubmitDraft(ctx context.Context, ownerID, id string) (*dto.SubmitDraftResponse, error) {
	env, err := uc.getOwned(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// A second submit of the same id lands here: the draft read
			// path no longer sees it.
			return nil, domain.ErrDraftSubmitted
		}
		return nil, err
	}

	// Refuse to finalize something the tax engine cannot stand behind.
	if err := gst.ValidateItems(env.Draft.Items); err != nil {
		return nil, err
	}
	if len(env.Draft.Items) == 0 {
		return nil, domain.ErrInvalidInput
	}
	if gst.NormalizeState(env.Draft.Seller.State) == "" || gst.NormalizeState(env.Draft.Buyer.State) == "" {
		return nil, domain.ErrMissingJurisdiction
	}

	number := fmt.Sprintf("INV-%d", time.Now().Unix())
	final, err := uc.draftRepo.MarkSubmitted(ctx, env.ID, number)
	if err != nil {
		return nil, err
	}
	uc.events.DraftDiscarded(ctx, final.ID)
	return &dto.SubmitDraftResponse{
		ID:            final.ID,
		InvoiceNumber: final.Draft.InvoiceNumber,
		SubmittedAt:   final.UpdatedAt,
	}, nil
}

// CalculateTax stateless authoritative computation. Shares the exact
// engine (and rounding) the client fallback uses.
func (uc *DraftUseCase) CalculateTax(_ context.Context, in dto.CalculateTaxRequest) (*dto.CalculateTaxResponse, error) {
	bd, items, err := gst.Compute(gst.Input{
		Items:       in.Items,
		SellerState: in.SellerState,
		BuyerState:  in.BuyerState,
		Shipping:    in.Shipping,
		Discount:    in.Discount,
	})
	if err != nil {
		return nil, err
	}
	return &dto.CalculateTaxResponse{Breakdown: bd, Items: items}, nil
}

// GetCustomer read-only customer lookup for the draft flow.
func (uc *DraftUseCase) GetCustomer(ctx context.Context, ownerID, id string) (*dto.CustomerResponse, error) {
	if ownerID == "" {
		return nil, domain.ErrUnauthorized
	}
	customer, err := uc.customerRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, domain.ErrNotFound
	}
	if customer.OwnerID != ownerID {
		return nil, domain.ErrForbidden
	}
	return &dto.CustomerResponse{
		ID:              customer.ID,
		Name:            customer.Name,
		Email:           customer.Email,
		Phone:           customer.Phone,
		BillingAddress:  customer.BillingAddress,
		ShippingAddress: customer.ShippingAddress,
		State:           customer.State,
		GSTIN:           customer.GSTIN,
	}, nil
}

func (uc *DraftUseCase) getOwned(ctx context.Context, ownerID, id string) (*entity.DraftEnvelope, error) {
	if ownerID == "" {
		return nil, domain.ErrUnauthorized
	}
	if id == "" {
		return nil, domain.ErrInvalidInput
	}
	env, err := uc.draftRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if env == nil {
		return nil, domain.ErrNotFound
	}
	if env.OwnerID != ownerID {
		return nil, domain.ErrForbidden
	}
	return env, nil
}
