package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/GoStans-Co/gostans-backend/pkg/types"
)

// Currency is the only currency the storefront prices in.
const Currency = "USD"

// FamilyMaxOccupancy caps combined occupancy on the family-package line.
const FamilyMaxOccupancy = 5

var (
	// TaxRate is a fixed 10%, not configurable.
	TaxRate = decimal.NewFromFloat(0.10)

	// childRate prices children at half the adult unit price.
	childRate = decimal.NewFromFloat(0.5)
)

// LineInput is one cart line as the pricing engine sees it.
type LineInput struct {
	UnitPrice decimal.Decimal
	Quantity  int
	Counts    types.GuestCounts
	// FamilyApplies is true only for the cart's first line while package
	// mode is on.
	FamilyApplies bool
}

// Totals is the cart-level pricing breakdown.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// LinePrice computes the per-unit price of a line from its occupancy.
// Adults pay the unit price, children half, infants travel free. The family
// package is a flat override: the line prices at exactly the unit price
// regardless of the guest split.
func LinePrice(unitPrice decimal.Decimal, counts types.GuestCounts, familyApplies bool) decimal.Decimal {
	if familyApplies {
		return unitPrice
	}
	if counts.IsZero() {
		counts = types.DefaultGuestCounts()
	}
	adults := unitPrice.Mul(decimal.NewFromInt(int64(counts.Adults)))
	children := unitPrice.Mul(childRate).Mul(decimal.NewFromInt(int64(counts.Children)))
	return adults.Add(children)
}

// CartTotals folds all lines into subtotal, tax, and total. Quantity scales
// the line price; tax is applied once on the subtotal.
func CartTotals(lines []LineInput) Totals {
	subtotal := decimal.Zero
	for _, line := range lines {
		qty := line.Quantity
		if qty < 1 {
			qty = 1
		}
		price := LinePrice(line.UnitPrice, line.Counts, line.FamilyApplies)
		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt(int64(qty))))
	}
	subtotal = subtotal.Round(2)
	tax := subtotal.Mul(TaxRate).Round(2)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}
