package dataset

import (
	"slices"
	"time"

	"olist-dashboard/internal/models"
)

// Snapshot is an immutable, fully parsed copy of the source tables.
// Nothing mutates a Snapshot after Load returns it.
type Snapshot struct {
	Orders    []models.Order
	Customers map[string]models.Customer
	Payments  []models.Payment
	Reviews   []models.Review
	Source    Files
	LoadedAt  time.Time
}

// Years returns the distinct purchase years in ascending order.
func (s *Snapshot) Years() []int {
	seen := make(map[int]struct{})
	years := make([]int, 0)
	for _, o := range s.Orders {
		if _, ok := seen[o.Year]; ok {
			continue
		}
		seen[o.Year] = struct{}{}
		years = append(years, o.Year)
	}
	slices.Sort(years)
	return years
}

// DateBounds returns the earliest and latest purchase timestamps. ok is
// false when there are no orders.
func (s *Snapshot) DateBounds() (first, last time.Time, ok bool) {
	for i, o := range s.Orders {
		if i == 0 || o.PurchaseTimestamp.Before(first) {
			first = o.PurchaseTimestamp
		}
		if i == 0 || o.PurchaseTimestamp.After(last) {
			last = o.PurchaseTimestamp
		}
	}
	return first, last, len(s.Orders) > 0
}

func (s *Snapshot) RecordCounts() map[string]int {
	return map[string]int{
		"orders":    len(s.Orders),
		"customers": len(s.Customers),
		"payments":  len(s.Payments),
		"reviews":   len(s.Reviews),
	}
}
