package models

import (
	"time"

	"github.com/google/uuid"
)

// CartRecord is the authenticated user's persisted cart. Package mode lives
// at the cart level and applies only to the oldest line.
type CartRecord struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID  `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	FamilyPackage bool       `gorm:"column:family_package;not null;default:false"`
	Items         []CartItem `gorm:"foreignKey:CartID;references:ID"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (CartRecord) TableName() string {
	return "carts"
}
