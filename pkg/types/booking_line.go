package types

import "github.com/shopspring/decimal"

// BookingLine is one cart line frozen into a booking snapshot at
// payment-initiation time. The live cart is cleared before the confirmation
// view renders, so the snapshot is the only record of what was bought.
type BookingLine struct {
	TourID       string          `json:"tour_id"`
	Title        string          `json:"title"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int             `json:"quantity"`
	SelectedDate string          `json:"selected_date,omitempty"`
	Guests       GuestCounts     `json:"guests"`
	LineTotal    decimal.Decimal `json:"line_total"`
}

// BookingLines is the jsonb-serialized snapshot collection.
type BookingLines []BookingLine
