package booking

import (
	"context"

	"gorm.io/gorm"

	"github.com/GoStans-Co/gostans-backend/pkg/db/models"
	"github.com/GoStans-Co/gostans-backend/pkg/enums"
)

// BookingRepository defines the persistence surface required by the service.
type BookingRepository interface {
	Create(ctx context.Context, record *models.Booking) (*models.Booking, error)
	FindByReference(ctx context.Context, reference string) (*models.Booking, error)
	FindCompletedBySession(ctx context.Context, sessionID string) (*models.Booking, error)
}

// Repository persists bookings through GORM.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a booking repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new booking row.
func (r *Repository) Create(ctx context.Context, record *models.Booking) (*models.Booking, error) {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// FindByReference loads a booking by its public reference.
func (r *Repository) FindByReference(ctx context.Context, reference string) (*models.Booking, error) {
	var record models.Booking
	err := r.db.WithContext(ctx).
		Where("reference = ?", reference).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindCompletedBySession loads the completed booking for a checkout session,
// if one exists.
func (r *Repository) FindCompletedBySession(ctx context.Context, sessionID string) (*models.Booking, error) {
	var record models.Booking
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND payment_status = ?", sessionID, enums.PaymentStatusCompleted).
		Order("created_at DESC").
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}
