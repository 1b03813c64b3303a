package types

import (
	"fmt"
	"sort"
)

// SizeQuantities maps a garment size tier to the quantity ordered at that
// size. Persisted as jsonb on design orders.
type SizeQuantities map[string]int

// Total sums every entry.
func (s SizeQuantities) Total() int {
	total := 0
	for _, qty := range s {
		total += qty
	}
	return total
}

// Validate enforces at least one entry and strictly positive quantities.
func (s SizeQuantities) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("at least one size entry is required")
	}
	for size, qty := range s {
		if qty <= 0 {
			return fmt.Errorf("quantity for size %q must be positive, got %d", size, qty)
		}
	}
	return nil
}

// Sizes returns the size keys in stable order.
func (s SizeQuantities) Sizes() []string {
	sizes := make([]string, 0, len(s))
	for size := range s {
		sizes = append(sizes, size)
	}
	sort.Strings(sizes)
	return sizes
}
