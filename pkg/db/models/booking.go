package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/GoStans-Co/gostans-backend/pkg/enums"
	"github.com/GoStans-Co/gostans-backend/pkg/types"
)

// Booking is the durable record written when a payment finalizes. It carries
// the cart snapshot taken at initialization time, not the live cart.
type Booking struct {
	ID            uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Reference     string                `gorm:"column:reference;not null;uniqueIndex"`
	UserID        *uuid.UUID            `gorm:"column:user_id;type:uuid;index"`
	SessionID     string                `gorm:"column:session_id;not null;index"`
	Status        enums.BookingStatus   `gorm:"column:status;not null;default:'confirmed'"`
	Provider      enums.PaymentProvider `gorm:"column:provider;not null"`
	PaymentStatus enums.PaymentStatus   `gorm:"column:payment_status;not null"`
	ProviderTxID  string                `gorm:"column:provider_tx_id"`
	Amount        decimal.Decimal       `gorm:"column:amount;type:numeric(10,2);not null"`
	Currency      string                `gorm:"column:currency;not null;default:'USD'"`
	TotalGuests   int                   `gorm:"column:total_guests;not null;default:0"`
	Participants  []types.Participant   `gorm:"column:participants;type:jsonb;serializer:json"`
	CartSnapshot  types.BookingLines    `gorm:"column:cart_snapshot;type:jsonb;serializer:json"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
