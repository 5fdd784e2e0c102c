package types

// GuestCounts is the per-line occupancy split. Stored as jsonb on cart lines
// and echoed into booking snapshots.
type GuestCounts struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
	Infants  int `json:"infants"`
}

// DefaultGuestCounts is the occupancy assumed when a line has no explicit split.
func DefaultGuestCounts() GuestCounts {
	return GuestCounts{Adults: 1}
}

// Total returns the combined occupancy across all buckets.
func (g GuestCounts) Total() int {
	return g.Adults + g.Children + g.Infants
}

// IsZero reports whether no occupancy has been recorded at all.
func (g GuestCounts) IsZero() bool {
	return g.Adults == 0 && g.Children == 0 && g.Infants == 0
}
