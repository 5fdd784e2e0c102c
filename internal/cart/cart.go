package cart

import (
	"sort"
	"time"

	"github.com/GoStans-Co/gostans-backend/pkg/pricing"
	"github.com/GoStans-Co/gostans-backend/pkg/types"
)

// Line is one tour selection in a cart. The snapshot is captured at add time
// and never refreshed from the catalog.
type Line struct {
	TourID       string             `json:"tour_id"`
	Snapshot     types.TourSnapshot `json:"snapshot"`
	Quantity     int                `json:"quantity"`
	SelectedDate *time.Time         `json:"selected_date,omitempty"`
	Guests       types.GuestCounts  `json:"guests"`
	AddedAt      time.Time          `json:"added_at"`
}

// Cart is the storage-agnostic cart value both backends load and save.
// Lines are kept ordered by AddedAt ascending; the family package, when on,
// applies only to the first line.
type Cart struct {
	FamilyPackage bool   `json:"family_package"`
	Lines         []Line `json:"lines"`
}

// Normalize sorts lines by AddedAt and collapses duplicate tour ids.
// The first occurrence wins; later duplicates are discarded outright, not
// merged. Runs after any bulk replace so two equal-tourID lines never coexist.
func (c *Cart) Normalize() {
	sort.SliceStable(c.Lines, func(i, j int) bool {
		return c.Lines[i].AddedAt.Before(c.Lines[j].AddedAt)
	})

	seen := make(map[string]struct{}, len(c.Lines))
	kept := c.Lines[:0]
	for _, line := range c.Lines {
		if _, dup := seen[line.TourID]; dup {
			continue
		}
		seen[line.TourID] = struct{}{}
		kept = append(kept, line)
	}
	c.Lines = kept
}

// Find returns a pointer into the cart's line slice, or nil.
func (c *Cart) Find(tourID string) *Line {
	for i := range c.Lines {
		if c.Lines[i].TourID == tourID {
			return &c.Lines[i]
		}
	}
	return nil
}

// IsEmpty reports whether the cart holds no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// FirstLineTourID returns the tour id the family package would apply to.
func (c *Cart) FirstLineTourID() string {
	if len(c.Lines) == 0 {
		return ""
	}
	return c.Lines[0].TourID
}

// FamilyAppliesTo reports whether the family override prices the given line.
func (c *Cart) FamilyAppliesTo(tourID string) bool {
	return c.FamilyPackage && c.FirstLineTourID() == tourID
}

// TotalGuests sums occupancy across all lines, assuming the default single
// adult for lines with no recorded split.
func (c *Cart) TotalGuests() int {
	total := 0
	for _, line := range c.Lines {
		counts := line.Guests
		if counts.IsZero() {
			counts = types.DefaultGuestCounts()
		}
		total += counts.Total()
	}
	return total
}

// PricingInputs maps the cart onto the pricing engine's line inputs.
func (c *Cart) PricingInputs() []pricing.LineInput {
	inputs := make([]pricing.LineInput, 0, len(c.Lines))
	for _, line := range c.Lines {
		inputs = append(inputs, pricing.LineInput{
			UnitPrice:     line.Snapshot.UnitPrice,
			Quantity:      line.Quantity,
			Counts:        line.Guests,
			FamilyApplies: c.FamilyAppliesTo(line.TourID),
		})
	}
	return inputs
}

// Totals prices the whole cart.
func (c *Cart) Totals() pricing.Totals {
	return pricing.CartTotals(c.PricingInputs())
}
