package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/GoStans-Co/gostans-backend/pkg/types"
)

// CartItem persists one tour selection tied to a CartRecord. Display and
// pricing fields are snapshots captured at add time.
type CartItem struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID       uuid.UUID         `gorm:"column:cart_id;type:uuid;not null;index"`
	TourID       string            `gorm:"column:tour_id;not null"`
	Title        string            `gorm:"column:title;not null"`
	UnitPrice    decimal.Decimal   `gorm:"column:unit_price;type:numeric(10,2);not null"`
	Currency     string            `gorm:"column:currency;not null;default:'USD'"`
	ImageURL     string            `gorm:"column:image_url"`
	DurationDays int               `gorm:"column:duration_days"`
	Quantity     int               `gorm:"column:quantity;not null;default:1"`
	SelectedDate *time.Time        `gorm:"column:selected_date;type:date"`
	Guests       types.GuestCounts `gorm:"column:guests;type:jsonb;serializer:json"`
	AddedAt      time.Time         `gorm:"column:added_at;not null"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
