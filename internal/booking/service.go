package booking

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/GoStans-Co/gostans-backend/pkg/db/models"
	"github.com/GoStans-Co/gostans-backend/pkg/enums"
	pkgerrors "github.com/GoStans-Co/gostans-backend/pkg/errors"
	"github.com/GoStans-Co/gostans-backend/pkg/types"
)

const referencePrefix = "GS-"

// postgres unique_violation
const pgUniqueViolation = "23505"

// maxReferenceAttempts bounds regeneration when a reference collides.
const maxReferenceAttempts = 5

// CreateInput carries everything a finalized payment contributes to the
// durable booking row.
type CreateInput struct {
	UserID        *uuid.UUID
	SessionID     string
	Provider      enums.PaymentProvider
	PaymentStatus enums.PaymentStatus
	ProviderTxID  string
	Amount        decimal.Decimal
	Currency      string
	TotalGuests   int
	Participants  []types.Participant
	CartSnapshot  types.BookingLines
}

// Service exposes booking persistence and confirmation lookups.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Booking, error)
	GetByReference(ctx context.Context, reference string) (*models.Booking, error)
	CompletedForSession(ctx context.Context, sessionID string) (*models.Booking, error)
}

type service struct {
	repo     BookingRepository
	refBytes int
}

// NewService builds the booking service. refBytes controls the entropy of
// the generated public reference.
func NewService(repo BookingRepository, refBytes int) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("booking repository required")
	}
	if refBytes < 2 {
		refBytes = 4
	}
	return &service{repo: repo, refBytes: refBytes}, nil
}

// Create persists a booking with a freshly generated reference.
func (s *service) Create(ctx context.Context, input CreateInput) (*models.Booking, error) {
	if input.SessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if !input.Provider.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment provider")
	}
	if len(input.CartSnapshot) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart snapshot is required")
	}
	if input.Amount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount cannot be negative")
	}

	record := &models.Booking{
		UserID:        input.UserID,
		SessionID:     input.SessionID,
		Status:        enums.BookingStatusConfirmed,
		Provider:      input.Provider,
		PaymentStatus: input.PaymentStatus,
		ProviderTxID:  input.ProviderTxID,
		Amount:        input.Amount,
		Currency:      input.Currency,
		TotalGuests:   input.TotalGuests,
		Participants:  input.Participants,
		CartSnapshot:  input.CartSnapshot,
	}

	// a colliding reference gets regenerated; any other persist failure
	// surfaces immediately
	for attempt := 0; attempt < maxReferenceAttempts; attempt++ {
		reference, err := s.generateReference()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate booking reference")
		}
		record.Reference = reference

		saved, err := s.repo.Create(ctx, record)
		if err == nil {
			return saved, nil
		}
		if !isUniqueViolation(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist booking")
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "booking reference collisions exhausted retries")
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// GetByReference loads the booking the confirmation view renders.
func (s *service) GetByReference(ctx context.Context, reference string) (*models.Booking, error) {
	reference = strings.ToUpper(strings.TrimSpace(reference))
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking reference is required")
	}

	record, err := s.repo.FindByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking")
	}
	return record, nil
}

// CompletedForSession returns the completed booking for a checkout session.
// Used to verify a provider "success" return instead of trusting the flag.
func (s *service) CompletedForSession(ctx context.Context, sessionID string) (*models.Booking, error) {
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}

	record, err := s.repo.FindCompletedBySession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no completed booking for session")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking for session")
	}
	return record, nil
}

func (s *service) generateReference() (string, error) {
	buf := make([]byte, s.refBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return referencePrefix + strings.ToUpper(hex.EncodeToString(buf)), nil
}
