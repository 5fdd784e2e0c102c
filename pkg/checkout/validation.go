package checkout

import (
	"fmt"

	pkgerrors "github.com/GoStans-Co/gostans-backend/pkg/errors"
)

// LineValidationInput describes the data required to validate one cart line
// before the flow may leave the cart step.
type LineValidationInput struct {
	TourID          string
	TourTitle       string
	HasSelectedDate bool
	Adults          int
}

// LineViolationDetail exposes the data returned to callers when validation fails.
type LineViolationDetail struct {
	TourID      string `json:"tour_id"`
	TourTitle   string `json:"tour_title,omitempty"`
	MissingDate bool   `json:"missing_date,omitempty"`
	NoAdults    bool   `json:"no_adults,omitempty"`
}

// ValidateLines flags each line by tour id; true means the line has an error.
// A line fails when it has no selected date or fewer than one adult.
func ValidateLines(items []LineValidationInput) map[string]bool {
	errs := make(map[string]bool, len(items))
	for _, item := range items {
		errs[item.TourID] = lineHasError(item)
	}
	return errs
}

// RevalidateLine updates the flag for a single edited line without
// recomputing the whole cart.
func RevalidateLine(errs map[string]bool, item LineValidationInput) map[string]bool {
	if errs == nil {
		errs = map[string]bool{}
	}
	errs[item.TourID] = lineHasError(item)
	return errs
}

// CanProceed is the aggregate gate for the cart-to-checkout transition:
// no line has an error and the cart is non-empty.
func CanProceed(errs map[string]bool, lineCount int) bool {
	if lineCount == 0 {
		return false
	}
	for _, hasErr := range errs {
		if hasErr {
			return false
		}
	}
	return true
}

// EnsureCanProceed returns a coded error carrying per-line violations when
// the cart cannot move to checkout.
func EnsureCanProceed(items []LineValidationInput) error {
	if len(items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	var violations []LineViolationDetail
	for _, item := range items {
		if !lineHasError(item) {
			continue
		}
		violations = append(violations, LineViolationDetail{
			TourID:      item.TourID,
			TourTitle:   item.TourTitle,
			MissingDate: !item.HasSelectedDate,
			NoAdults:    item.Adults < 1,
		})
	}
	if len(violations) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%d cart line(s) are not ready for checkout", len(violations))).WithDetails(map[string]any{
		"violations": violations,
	})
}

func lineHasError(item LineValidationInput) bool {
	return !item.HasSelectedDate || item.Adults < 1
}
