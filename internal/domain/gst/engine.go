package gst

import (
	"github.com/shopspring/decimal"

	"github.com/billforge/invoicing-api/internal/domain"
	"github.com/billforge/invoicing-api/internal/domain/entity"
)

var two = decimal.NewFromInt(2)
var hundred = decimal.NewFromInt(100)

// Round2 rounds a monetary amount to 2 decimals, half up. Every total in
// the system (client fallback and server authoritative path) must go
// through this same routine so the two paths never drift.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Input is everything the tax computation needs. It is a value type; the
// engine never mutates the caller's items.
type Input struct {
	Items       []entity.InvoiceItem
	SellerState string
	BuyerState  string
	Shipping    decimal.Decimal
	Discount    decimal.Decimal // invoice-level discount
}

// Compute derives per-line taxable/tax amounts and the aggregate GST
// breakdown. Intra-state supplies split the tax into equal CGST/SGST
// halves; inter-state supplies carry the full tax as IGST.
//
// Per-line values are rounded to 2 decimals before aggregation so a
// recomputation elsewhere (server side) cannot accumulate drift
// differently. Pure: no I/O, no clock, no mutation of in.Items.
func Compute(in Input) (entity.TaxBreakdown, []entity.InvoiceItem, error) {
	if err := ValidateItems(in.Items); err != nil {
		return entity.TaxBreakdown{}, nil, err
	}
	if in.Shipping.IsNegative() || in.Discount.IsNegative() {
		return entity.TaxBreakdown{}, nil, domain.ErrInvalidInput
	}

	// An empty draft is computable without jurisdictions: all totals zero.
	if len(in.Items) == 0 {
		bd := entity.ZeroBreakdown()
		bd.Shipping = Round2(in.Shipping)
		bd.Discount = Round2(in.Discount)
		bd.Total = Round2(in.Shipping.Sub(in.Discount))
		return bd, nil, nil
	}

	seller := NormalizeState(in.SellerState)
	buyer := NormalizeState(in.BuyerState)
	if seller == "" || buyer == "" {
		// Refused, not zeroed: the caller must present totals as pending.
		return entity.TaxBreakdown{}, nil, domain.ErrMissingJurisdiction
	}

	out := make([]entity.InvoiceItem, len(in.Items))
	subtotal := decimal.Zero
	totalTax := decimal.Zero
	for i, item := range in.Items {
		base := item.Quantity.Mul(item.UnitPrice)
		taxable := Round2(base.Sub(item.Discount))
		lineTax := Round2(taxable.Mul(item.TaxRatePercent).Div(hundred))

		item.TaxableAmount = taxable
		item.TaxAmount = lineTax
		out[i] = item

		subtotal = subtotal.Add(taxable)
		totalTax = totalTax.Add(lineTax)
	}

	bd := entity.TaxBreakdown{
		Subtotal: Round2(subtotal),
		Shipping: Round2(in.Shipping),
		Discount: Round2(in.Discount),
	}
	if seller == buyer {
		half := Round2(totalTax.Div(two))
		bd.CGST = half
		bd.SGST = half
		bd.IGST = decimal.Zero
	} else {
		bd.CGST = decimal.Zero
		bd.SGST = decimal.Zero
		bd.IGST = Round2(totalTax)
	}

	raw := bd.Subtotal.Add(bd.CGST).Add(bd.SGST).Add(bd.IGST).Add(bd.Shipping).Sub(bd.Discount)
	bd.Total = Round2(raw)
	bd.RoundOff = bd.Total.Sub(raw)
	return bd, out, nil
}

// ValidateItems rejects line items the engine must never compute over:
// negative quantity, price, rate or discount, or a discount larger than
// the line base. Inputs are never silently clamped.
func ValidateItems(items []entity.InvoiceItem) error {
	for _, item := range items {
		if item.Quantity.IsNegative() || item.UnitPrice.IsNegative() {
			return domain.ErrInvalidLineItem
		}
		if item.TaxRatePercent.IsNegative() || item.Discount.IsNegative() {
			return domain.ErrInvalidLineItem
		}
		if item.Discount.GreaterThan(item.Quantity.Mul(item.UnitPrice)) {
			return domain.ErrInvalidLineItem
		}
	}
	return nil
}
