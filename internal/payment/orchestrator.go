package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/GoStans-Co/gostans-backend/internal/booking"
	"github.com/GoStans-Co/gostans-backend/internal/cart"
	"github.com/GoStans-Co/gostans-backend/pkg/checkout"
	"github.com/GoStans-Co/gostans-backend/pkg/db/models"
	"github.com/GoStans-Co/gostans-backend/pkg/enums"
	pkgerrors "github.com/GoStans-Co/gostans-backend/pkg/errors"
	"github.com/GoStans-Co/gostans-backend/pkg/logger"
	"github.com/GoStans-Co/gostans-backend/pkg/metrics"
	"github.com/GoStans-Co/gostans-backend/pkg/pricing"
	"github.com/GoStans-Co/gostans-backend/pkg/types"
)

const latchScope = "payment-init"

// ErrInitializeInFlight is returned when a second initialize lands while the
// first still holds the session latch. The caller drops it; nothing retries.
var ErrInitializeInFlight = pkgerrors.New(pkgerrors.CodeConflict, "payment initialization already in progress")

// Details is the provider-confirmed outcome of a finalized payment.
type Details struct {
	Provider      enums.PaymentProvider `json:"provider"`
	Status        enums.PaymentStatus   `json:"status"`
	TransactionID string                `json:"transaction_id"`
	Amount        decimal.Decimal       `json:"amount"`
	Currency      string                `json:"currency"`
}

// FinalizeInput carries the provider correlation data needed to complete a
// payment. PayerID is only meaningful for the redirect strategy.
type FinalizeInput struct {
	CorrelationID string
	PayerID       string
}

// Strategy is the provider contract: initialize fills the session's provider
// fields, finalize completes the payment server-side.
type Strategy interface {
	Provider() enums.PaymentProvider
	Initialize(ctx context.Context, session *Session) error
	Finalize(ctx context.Context, session *Session, input FinalizeInput) (*Details, error)
}

// cartAccess is the slice of the cart service the orchestrator uses.
type cartAccess interface {
	View(ctx context.Context, owner cart.Owner) (*cart.View, error)
	Clear(ctx context.Context, owner cart.Owner) error
}

// latchStore guards at-most-once initialization per session.
type latchStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Orchestrator coordinates payment strategies, the session store, and the
// post-payment booking/cart bookkeeping.
type Orchestrator struct {
	sessions   *SessionStore
	latch      latchStore
	strategies map[enums.PaymentProvider]Strategy
	carts      cartAccess
	bookings   booking.Service
	payMetrics *metrics.PaymentMetrics
	logg       *logger.Logger
}

// NewOrchestrator wires the orchestrator. Metrics and logger may be nil.
func NewOrchestrator(
	sessions *SessionStore,
	latch latchStore,
	carts cartAccess,
	bookings booking.Service,
	payMetrics *metrics.PaymentMetrics,
	logg *logger.Logger,
	strategies ...Strategy,
) (*Orchestrator, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session store required")
	}
	if latch == nil {
		return nil, fmt.Errorf("latch store required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart access required")
	}
	if bookings == nil {
		return nil, fmt.Errorf("booking service required")
	}
	if len(strategies) == 0 {
		return nil, fmt.Errorf("at least one payment strategy required")
	}

	byProvider := make(map[enums.PaymentProvider]Strategy, len(strategies))
	for _, strategy := range strategies {
		if strategy == nil {
			return nil, fmt.Errorf("nil payment strategy")
		}
		if _, dup := byProvider[strategy.Provider()]; dup {
			return nil, fmt.Errorf("duplicate strategy for provider %s", strategy.Provider())
		}
		byProvider[strategy.Provider()] = strategy
	}

	return &Orchestrator{
		sessions:   sessions,
		latch:      latch,
		strategies: byProvider,
		carts:      carts,
		bookings:   bookings,
		payMetrics: payMetrics,
		logg:       logg,
	}, nil
}

// InitializeInput identifies the checkout attempt being paid for.
type InitializeInput struct {
	SessionID    string
	Provider     enums.PaymentProvider
	Owner        cart.Owner
	Participants []types.Participant
}

// Initialize creates the provider-side payment for a checkout session,
// snapshotting the cart into the session first. At most one initialize runs
// per session: the latch is taken before the provider call and only released
// on failure or on teardown. A session already initialized for the same
// provider is returned as-is without touching the provider again.
func (o *Orchestrator) Initialize(ctx context.Context, input InitializeInput) (*Session, error) {
	if input.SessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	strategy, ok := o.strategies[input.Provider]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment provider")
	}

	ctx = o.logCtx(ctx, input.SessionID, input.Provider)

	existing, err := o.sessions.Load(ctx, input.SessionID)
	if err != nil && pkgerrors.As(err).Code() != pkgerrors.CodeSessionGone {
		return nil, err
	}
	if existing != nil && existing.Initialized {
		if existing.Provider == input.Provider {
			// client secret / approval url reuse: providers rate-limit
			// per intent creation, so no second create happens here
			return existing, nil
		}
		// switching providers is an explicit restart
		if err := o.Teardown(ctx, input.SessionID); err != nil {
			return nil, err
		}
	}

	view, err := o.carts.View(ctx, input.Owner)
	if err != nil {
		return nil, err
	}
	if err := o.ensureReady(view); err != nil {
		return nil, err
	}

	latchKey := o.latch.IdempotencyKey(latchScope, input.SessionID)
	acquired, err := o.latch.SetNX(ctx, latchKey, "1", o.sessions.TTL())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire payment latch")
	}
	if !acquired {
		o.countInit(input.Provider, "dropped")
		return nil, ErrInitializeInFlight
	}

	session := o.buildSession(input, view)

	start := time.Now()
	err = strategy.Initialize(ctx, session)
	o.observe(input.Provider, "initialize", time.Since(start))
	if err != nil {
		// release the latch so a user-initiated retry is possible
		if delErr := o.latch.Del(ctx, latchKey); delErr != nil {
			o.warn(ctx, "releasing payment latch after failed initialize")
		}
		o.countInit(input.Provider, "failure")
		return nil, err
	}

	session.Initialized = true
	session.Status = enums.PaymentStatusCreated
	if err := o.sessions.Save(ctx, session); err != nil {
		if delErr := o.latch.Del(ctx, latchKey); delErr != nil {
			o.warn(ctx, "releasing payment latch after failed session save")
		}
		o.countInit(input.Provider, "failure")
		return nil, err
	}

	o.countInit(input.Provider, "success")
	return session, nil
}

// FinalizeRequest identifies the payment being completed.
type FinalizeRequest struct {
	SessionID     string
	CorrelationID string
	PayerID       string
}

// Result is a finalized payment: the provider outcome plus the booking it
// produced.
type Result struct {
	Details Details         `json:"details"`
	Booking *models.Booking `json:"booking"`
}

// Finalize completes the payment server-side. On success the booking row is
// written from the session's cart snapshot, the live cart is cleared, and
// the session is destroyed. On provider failure nothing is cleared so the
// user can retry.
func (o *Orchestrator) Finalize(ctx context.Context, req FinalizeRequest) (*Result, error) {
	session, err := o.sessions.Load(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	ctx = o.logCtx(ctx, session.ID, session.Provider)

	if !session.Initialized {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment has not been initialized")
	}
	strategy, ok := o.strategies[session.Provider]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "no strategy for session provider")
	}

	start := time.Now()
	details, err := strategy.Finalize(ctx, session, FinalizeInput{
		CorrelationID: req.CorrelationID,
		PayerID:       req.PayerID,
	})
	o.observe(session.Provider, "finalize", time.Since(start))
	if err != nil {
		o.countFinalize(session.Provider, "failure")
		return nil, err
	}

	record, err := o.bookings.Create(ctx, booking.CreateInput{
		UserID:        session.UserID,
		SessionID:     session.ID,
		Provider:      session.Provider,
		PaymentStatus: details.Status,
		ProviderTxID:  details.TransactionID,
		Amount:        details.Amount,
		Currency:      details.Currency,
		TotalGuests:   session.TotalGuests,
		Participants:  session.Participants,
		CartSnapshot:  session.CartSnapshot,
	})
	if err != nil {
		// the charge went through; surface loudly instead of retrying
		o.countFinalize(session.Provider, "failure")
		if o.logg != nil {
			o.logg.Error(ctx, "payment captured but booking persist failed", err)
		}
		return nil, err
	}

	if err := o.carts.Clear(ctx, ownerFromSession(session)); err != nil {
		o.warn(ctx, "clearing cart after successful payment failed")
	}
	if err := o.Teardown(ctx, session.ID); err != nil {
		o.warn(ctx, "tearing down payment session after finalize failed")
	}

	o.countFinalize(session.Provider, "success")
	return &Result{Details: *details, Booking: record}, nil
}

// Session returns the stored payment session for a checkout attempt.
func (o *Orchestrator) Session(ctx context.Context, sessionID string) (*Session, error) {
	return o.sessions.Load(ctx, sessionID)
}

// Teardown destroys the payment session and resets its idempotency latch.
// Invoked on back navigation out of the payment step; the next attempt gets
// a brand-new session.
func (o *Orchestrator) Teardown(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if err := o.sessions.Delete(ctx, sessionID); err != nil {
		return err
	}
	latchKey := o.latch.IdempotencyKey(latchScope, sessionID)
	if err := o.latch.Del(ctx, latchKey); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release payment latch")
	}
	return nil
}

func (o *Orchestrator) ensureReady(view *cart.View) error {
	inputs := make([]checkout.LineValidationInput, 0, len(view.Lines))
	for _, line := range view.Lines {
		adults := line.Guests.Adults
		if line.Guests.IsZero() {
			adults = types.DefaultGuestCounts().Adults
		}
		inputs = append(inputs, checkout.LineValidationInput{
			TourID:          line.TourID,
			TourTitle:       line.Snapshot.Title,
			HasSelectedDate: line.SelectedDate != nil && !line.SelectedDate.IsZero(),
			Adults:          adults,
		})
	}
	return checkout.EnsureCanProceed(inputs)
}

func (o *Orchestrator) buildSession(input InitializeInput, view *cart.View) *Session {
	snapshot := make(types.BookingLines, 0, len(view.Lines))
	for _, line := range view.Lines {
		counts := line.Guests
		if counts.IsZero() {
			counts = types.DefaultGuestCounts()
		}
		familyApplies := view.FamilyPackage && len(view.Lines) > 0 && view.Lines[0].TourID == line.TourID
		linePrice := pricing.LinePrice(line.Snapshot.UnitPrice, counts, familyApplies)

		selectedDate := ""
		if line.SelectedDate != nil {
			selectedDate = line.SelectedDate.Format("2006-01-02")
		}
		snapshot = append(snapshot, types.BookingLine{
			TourID:       line.TourID,
			Title:        line.Snapshot.Title,
			UnitPrice:    line.Snapshot.UnitPrice,
			Quantity:     line.Quantity,
			SelectedDate: selectedDate,
			Guests:       counts,
			LineTotal:    linePrice.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2),
		})
	}

	return &Session{
		ID:           input.SessionID,
		Provider:     input.Provider,
		Status:       enums.PaymentStatusCreated,
		Amount:       view.Totals.Total,
		Currency:     pricing.Currency,
		TotalGuests:  view.TotalGuests,
		Participants: input.Participants,
		CartSnapshot: snapshot,
		UserID:       input.Owner.UserID,
		GuestSession: input.Owner.GuestSessionID,
		CreatedAt:    time.Now().UTC(),
	}
}

func ownerFromSession(session *Session) cart.Owner {
	return cart.Owner{UserID: session.UserID, GuestSessionID: session.GuestSession}
}

func (o *Orchestrator) logCtx(ctx context.Context, sessionID string, provider enums.PaymentProvider) context.Context {
	if o.logg == nil {
		return ctx
	}
	ctx = o.logg.WithCheckoutSession(ctx, sessionID)
	return o.logg.WithProvider(ctx, provider.String())
}

func (o *Orchestrator) warn(ctx context.Context, msg string) {
	if o.logg != nil {
		o.logg.Warn(ctx, msg)
	}
}

func (o *Orchestrator) countInit(provider enums.PaymentProvider, outcome string) {
	o.payMetrics.IncInitialized(provider.String(), outcome)
}

func (o *Orchestrator) countFinalize(provider enums.PaymentProvider, outcome string) {
	o.payMetrics.IncFinalized(provider.String(), outcome)
}

func (o *Orchestrator) observe(provider enums.PaymentProvider, op string, d time.Duration) {
	o.payMetrics.ObserveProviderCall(provider.String(), op, d)
}
