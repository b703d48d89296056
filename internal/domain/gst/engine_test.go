package gst_test

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billforge/invoicing-api/internal/domain"
	"github.com/billforge/invoicing-api/internal/domain/entity"
	"github.com/billforge/invoicing-api/internal/domain/gst"
)

func item(qty, price, rate, discount float64) entity.InvoiceItem {
	return entity.InvoiceItem{
		Description:    "test item",
		HSNCode:        "998313",
		Quantity:       decimal.NewFromFloat(qty),
		UnitPrice:      decimal.NewFromFloat(price),
		TaxRatePercent: decimal.NewFromFloat(rate),
		Discount:       decimal.NewFromFloat(discount),
	}
}

func assertAmount(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.True(t, got.Equal(decimal.RequireFromString(want)),
		"%s: want %s, got %s", field, want, got.String())
}

// The two worked vectors every GST implementation must reproduce exactly:
// 2 × 100.00 at 18% from Delhi. Intra-state splits tax into CGST+SGST,
// inter-state carries it all as IGST; the grand total is identical.
func TestCompute_IntraStateVector(t *testing.T) {
	bd, items, err := gst.Compute(gst.Input{
		Items:       []entity.InvoiceItem{item(2, 100, 18, 0)},
		SellerState: "Delhi",
		BuyerState:  "Delhi",
	})
	require.NoError(t, err)

	assertAmount(t, "200", bd.Subtotal, "subtotal")
	assertAmount(t, "18", bd.CGST, "cgst")
	assertAmount(t, "18", bd.SGST, "sgst")
	assertAmount(t, "0", bd.IGST, "igst")
	assertAmount(t, "236", bd.Total, "total")

	require.Len(t, items, 1)
	assertAmount(t, "200", items[0].TaxableAmount, "taxable")
	assertAmount(t, "36", items[0].TaxAmount, "line tax")
}

func TestCompute_InterStateVector(t *testing.T) {
	bd, _, err := gst.Compute(gst.Input{
		Items:       []entity.InvoiceItem{item(2, 100, 18, 0)},
		SellerState: "Delhi",
		BuyerState:  "Maharashtra",
	})
	require.NoError(t, err)

	assertAmount(t, "0", bd.CGST, "cgst")
	assertAmount(t, "0", bd.SGST, "sgst")
	assertAmount(t, "36", bd.IGST, "igst")
	assertAmount(t, "236", bd.Total, "total")
}

func TestCompute_JurisdictionComparisonIsNormalized(t *testing.T) {
	bd, _, err := gst.Compute(gst.Input{
		Items:       []entity.InvoiceItem{item(1, 100, 18, 0)},
		SellerState: "  delhi ",
		BuyerState:  "DELHI",
	})
	require.NoError(t, err)
	assert.True(t, bd.IGST.IsZero(), "normalized equal states must be intra-state")
	assertAmount(t, "9", bd.CGST, "cgst")
	assertAmount(t, "9", bd.SGST, "sgst")
}

func TestCompute_SplitInvariant(t *testing.T) {
	cases := []struct {
		name   string
		seller string
		buyer  string
	}{
		{"intra", "Karnataka", "Karnataka"},
		{"inter", "Karnataka", "Tamil Nadu"},
	}
	items := []entity.InvoiceItem{
		item(3, 149.99, 18, 10),
		item(1, 2499, 28, 0),
		item(12, 35.5, 5, 2.5),
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bd, _, err := gst.Compute(gst.Input{
				Items:       items,
				SellerState: tc.seller,
				BuyerState:  tc.buyer,
				Shipping:    decimal.NewFromInt(50),
				Discount:    decimal.NewFromInt(25),
			})
			require.NoError(t, err)

			if tc.seller == tc.buyer {
				assert.True(t, bd.IGST.IsZero())
				assert.True(t, bd.CGST.Equal(bd.SGST), "CGST and SGST must be equal halves")
			} else {
				assert.True(t, bd.CGST.IsZero())
				assert.True(t, bd.SGST.IsZero())
				assert.False(t, bd.IGST.IsZero())
			}

			// Total = Subtotal + CGST + SGST + IGST + Shipping - Discount at 2dp.
			want := gst.Round2(bd.Subtotal.Add(bd.CGST).Add(bd.SGST).Add(bd.IGST).Add(bd.Shipping).Sub(bd.Discount))
			assert.True(t, bd.Total.Equal(want), "total invariant: want %s, got %s", want, bd.Total)
		})
	}
}

func TestCompute_IsIdempotent(t *testing.T) {
	in := gst.Input{
		Items:       []entity.InvoiceItem{item(7, 99.95, 12, 5), item(2, 1250, 18, 0)},
		SellerState: "Gujarat",
		BuyerState:  "Gujarat",
		Shipping:    decimal.NewFromFloat(120.50),
	}
	first, firstItems, err := gst.Compute(in)
	require.NoError(t, err)

	// Feed the derived items back in: recomputing over already-computed
	// lines must not change a single amount.
	in.Items = firstItems
	second, _, err := gst.Compute(in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCompute_ZeroItems(t *testing.T) {
	bd, items, err := gst.Compute(gst.Input{})
	require.NoError(t, err)
	assert.Nil(t, items)
	assert.True(t, bd.Subtotal.IsZero())
	assert.True(t, bd.Total.IsZero())
}

func TestCompute_MissingJurisdictionIsRefused(t *testing.T) {
	for _, states := range [][2]string{{"", "Delhi"}, {"Delhi", ""}, {"  ", "Delhi"}} {
		_, _, err := gst.Compute(gst.Input{
			Items:       []entity.InvoiceItem{item(1, 10, 18, 0)},
			SellerState: states[0],
			BuyerState:  states[1],
		})
		assert.ErrorIs(t, err, domain.ErrMissingJurisdiction)
	}
}

func TestValidateItems_RejectsNegativesAndOversizedDiscount(t *testing.T) {
	cases := []struct {
		name string
		item entity.InvoiceItem
	}{
		{"negative quantity", item(-1, 10, 18, 0)},
		{"negative price", item(1, -10, 18, 0)},
		{"negative rate", item(1, 10, -18, 0)},
		{"negative discount", item(1, 10, 18, -1)},
		{"discount over line base", item(2, 10, 18, 21)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := gst.Compute(gst.Input{
				Items:       []entity.InvoiceItem{tc.item},
				SellerState: "Delhi",
				BuyerState:  "Delhi",
			})
			assert.ErrorIs(t, err, domain.ErrInvalidLineItem)
		})
	}
}

func TestCompute_PerLineRoundingBeforeAggregation(t *testing.T) {
	// 3 × 33.335 = 100.005 → taxable rounds to 100.01 per line before
	// summing; tax at 18% of 100.01 = 18.0018 → 18.00.
	bd, items, err := gst.Compute(gst.Input{
		Items:       []entity.InvoiceItem{item(3, 33.335, 18, 0)},
		SellerState: "Delhi",
		BuyerState:  "Maharashtra",
	})
	require.NoError(t, err)
	assertAmount(t, "100.01", items[0].TaxableAmount, "taxable")
	assertAmount(t, "18", items[0].TaxAmount, "line tax")
	assertAmount(t, "100.01", bd.Subtotal, "subtotal")
	assertAmount(t, "18", bd.IGST, "igst")
}

func TestSameState(t *testing.T) {
	assert.True(t, gst.SameState("Delhi", " delhi "))
	assert.True(t, gst.SameState("TAMIL NADU", "tamil nadu"))
	assert.False(t, gst.SameState("Delhi", "Maharashtra"))
}

func TestNormalizeState_SafeForConcurrentUse(t *testing.T) {
	// Normalization runs from concurrent request handlers.
	inputs := []string{"Delhi", " DELHI", "Tamil Nadu", "maharashtra ", "KARNATAKA"}
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 2000; i++ {
				s := inputs[i%len(inputs)]
				got := gst.NormalizeState(s)
				if got != gst.NormalizeState(s) {
					t.Errorf("unstable normalization for %q", s)
					return
				}
			}
		}()
	}
	wg.Wait()
}
