package dto

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/billforge/invoicing-api/internal/domain/entity"
)

// SaveDraftRequest body of POST /drafts. The client sends the full
// working draft; the server owns id, owner and timestamp.
type SaveDraftRequest struct {
	Draft entity.InvoiceDraft `json:"draft"`
}

// PatchDraftRequest body of PATCH /drafts/:id. The draft is kept raw so
// the update can be merged into the stored payload: a field absent from
// the body keeps its stored value instead of being zeroed.
type PatchDraftRequest struct {
	Draft json.RawMessage `json:"draft"`
}

// DraftEnvelopeResponse remote representation of a stored draft.
type DraftEnvelopeResponse struct {
	ID        string              `json:"id"`
	OwnerID   string              `json:"owner_id"`
	Draft     entity.InvoiceDraft `json:"draft"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// DraftListResponse page of draft envelopes for the session owner.
type DraftListResponse struct {
	Items []DraftEnvelopeResponse `json:"items"`
	Page  PageResponse            `json:"page"`
}

// CalculateTaxRequest body of POST /invoices/calculate-tax. Stateless:
// nothing is read from or written to the draft store.
type CalculateTaxRequest struct {
	Items       []entity.InvoiceItem `json:"items"`
	SellerState string               `json:"seller_state"`
	BuyerState  string               `json:"buyer_state"`
	Shipping    decimal.Decimal      `json:"shipping"`
	Discount    decimal.Decimal      `json:"discount"`
}

// CalculateTaxResponse authoritative breakdown plus the derived lines.
type CalculateTaxResponse struct {
	Breakdown entity.TaxBreakdown  `json:"breakdown"`
	Items     []entity.InvoiceItem `json:"items"`
}

// SubmitDraftResponse result of finalizing a draft. InvoiceNumber is the
// server-assigned final number, replacing the client placeholder.
type SubmitDraftResponse struct {
	ID            string    `json:"id"`
	InvoiceNumber string    `json:"invoice_number"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// CustomerResponse read model used by the draft flow's customer lookup.
type CustomerResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	BillingAddress  string `json:"billing_address"`
	ShippingAddress string `json:"shipping_address"`
	State           string `json:"state"`
	GSTIN           string `json:"gstin"`
}

func EnvelopeResponse(env *entity.DraftEnvelope) DraftEnvelopeResponse {
	return DraftEnvelopeResponse{
		ID:        env.ID,
		OwnerID:   env.OwnerID,
		Draft:     env.Draft,
		UpdatedAt: env.UpdatedAt,
	}
}
