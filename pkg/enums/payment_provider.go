package enums

import "fmt"

// PaymentProvider distinguishes the two provider strategies.
type PaymentProvider string

const (
	// ProviderRedirect approves the payment on an external page and returns
	// with correlation identifiers.
	ProviderRedirect PaymentProvider = "redirect"
	// ProviderIntent creates a payment intent confirmed client-side with a
	// provider-issued secret.
	ProviderIntent PaymentProvider = "intent"
)

var validPaymentProviders = []PaymentProvider{
	ProviderRedirect,
	ProviderIntent,
}

// String implements fmt.Stringer.
func (p PaymentProvider) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentProvider.
func (p PaymentProvider) IsValid() bool {
	for _, candidate := range validPaymentProviders {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentProvider converts raw input into a PaymentProvider.
func ParsePaymentProvider(value string) (PaymentProvider, error) {
	for _, candidate := range validPaymentProviders {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment provider %q", value)
}
