package types

import "github.com/shopspring/decimal"

// TourSnapshot is the denormalized tour data captured when a line is added to
// the cart. Pricing and display read from the snapshot, not the live catalog.
type TourSnapshot struct {
	Title        string          `json:"title"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Currency     string          `json:"currency"`
	ImageURL     string          `json:"image_url,omitempty"`
	DurationDays int             `json:"duration_days,omitempty"`
}

// Participant is one traveller recorded on the booking form.
type Participant struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Email       string `json:"email,omitempty"`
}
