package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Draft statuses.
const (
	StatusDraft     = "draft"     // Mutable, autosaved, not yet a fiscal document
	StatusSubmitted = "submitted" // Finalized; no longer loadable as a draft
)

// Party is one side of an invoice (seller or buyer). State is the GST
// jurisdiction used to decide the CGST/SGST vs IGST split.
type Party struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	State   string `json:"state"`
	GSTIN   string `json:"gstin"`
}

// InvoiceItem is one line of a draft. TaxableAmount and TaxAmount are
// derived by the tax engine and must never be set by hand.
type InvoiceItem struct {
	Description    string          `json:"description"`
	HSNCode        string          `json:"hsn_code"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	TaxRatePercent decimal.Decimal `json:"tax_rate_percent"`
	Discount       decimal.Decimal `json:"discount"`
	TaxableAmount  decimal.Decimal `json:"taxable_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
}

// TaxBreakdown is the aggregate GST computation for a draft.
// Invariant: Total = Subtotal + CGST + SGST + IGST + Shipping - Discount,
// rounded to 2 decimals. Intra-state: IGST = 0 and CGST = SGST = tax/2.
// Inter-state: CGST = SGST = 0 and IGST = full tax.
type TaxBreakdown struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	CGST     decimal.Decimal `json:"cgst"`
	SGST     decimal.Decimal `json:"sgst"`
	IGST     decimal.Decimal `json:"igst"`
	Shipping decimal.Decimal `json:"shipping"`
	Discount decimal.Decimal `json:"discount"`
	RoundOff decimal.Decimal `json:"round_off"`
	Total    decimal.Decimal `json:"total"`
}

// ZeroBreakdown returns a breakdown with every amount at 0.00.
func ZeroBreakdown() TaxBreakdown {
	z := decimal.Zero
	return TaxBreakdown{Subtotal: z, CGST: z, SGST: z, IGST: z, Shipping: z, Discount: z, RoundOff: z, Total: z}
}

// InvoiceDraft is the working invoice of an edit session. ID is empty
// until the first successful remote save; InvoiceNumber is a
// client-generated placeholder until submission assigns the final one.
type InvoiceDraft struct {
	ID            string        `json:"id,omitempty"`
	InvoiceNumber string        `json:"invoice_number"`
	IssueDate     time.Time     `json:"issue_date"`
	DueDate       time.Time     `json:"due_date"`
	Seller        Party         `json:"seller"`
	Buyer         Party         `json:"buyer"`
	Items         []InvoiceItem `json:"items"`
	Notes         string        `json:"notes"`
	Terms         string        `json:"terms"`
	Currency      string        `json:"currency"`
	Status        string        `json:"status"`

	// Invoice-level adjustments, applied after the per-item tax split.
	Shipping decimal.Decimal `json:"shipping"`
	Discount decimal.Decimal `json:"discount"`

	Totals TaxBreakdown `json:"totals"`
}

// Clone returns a deep copy of the draft. Items share no backing array
// with the receiver, so a snapshot survives later edits.
func (d *InvoiceDraft) Clone() *InvoiceDraft {
	cp := *d
	if d.Items != nil {
		cp.Items = make([]InvoiceItem, len(d.Items))
		copy(cp.Items, d.Items)
	}
	return &cp
}

// DraftEnvelope is the remote-store wrapper around a draft. The remote
// store owns ID and UpdatedAt; ID is assigned on the first save and is
// stable for the life of the draft.
type DraftEnvelope struct {
	ID        string       `json:"id"`
	OwnerID   string       `json:"owner_id"`
	Draft     InvoiceDraft `json:"draft"`
	UpdatedAt time.Time    `json:"updated_at"`
}
