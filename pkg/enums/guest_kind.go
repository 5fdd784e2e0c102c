package enums

import "fmt"

// GuestKind names the occupancy buckets tracked per cart line.
type GuestKind string

const (
	GuestAdult  GuestKind = "adults"
	GuestChild  GuestKind = "children"
	GuestInfant GuestKind = "infants"
)

var validGuestKinds = []GuestKind{
	GuestAdult,
	GuestChild,
	GuestInfant,
}

// String implements fmt.Stringer.
func (g GuestKind) String() string {
	return string(g)
}

// IsValid reports whether the value is a known GuestKind.
func (g GuestKind) IsValid() bool {
	for _, candidate := range validGuestKinds {
		if candidate == g {
			return true
		}
	}
	return false
}

// ParseGuestKind converts raw input into a GuestKind.
func ParseGuestKind(value string) (GuestKind, error) {
	for _, candidate := range validGuestKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid guest kind %q", value)
}
