package services

import (
	"cmp"
	"slices"

	"olist-dashboard/internal/errors"
	"olist-dashboard/internal/models"
)

type CityReport struct {
	ByOrderCount   []models.CityBucket `json:"by_order_count"`
	ByPaymentValue []models.CityBucket `json:"by_payment_value"`
	Empty          bool                `json:"empty"`
}

// TopCitiesByOrderCount counts orders per customer city and returns the n
// largest, ties ordered by city name. Orders whose customer is unknown
// have no city and are skipped.
func TopCitiesByOrderCount(orders []models.Order, customers map[string]models.Customer, n int) ([]models.CityBucket, error) {
	if n <= 0 {
		return nil, errors.Validation("n must be positive")
	}

	counts := make(map[string]int)
	for _, o := range orders {
		c, ok := customers[o.CustomerID]
		if !ok {
			continue
		}
		counts[c.City]++
	}

	result := make([]models.CityBucket, 0, len(counts))
	for city, count := range counts {
		result = append(result, models.CityBucket{City: city, OrderCount: count})
	}
	slices.SortFunc(result, func(a, b models.CityBucket) int {
		if c := cmp.Compare(b.OrderCount, a.OrderCount); c != 0 {
			return c
		}
		return cmp.Compare(a.City, b.City)
	})

	return limit(result, n), nil
}

// TopCitiesByPaymentValue sums payment rows per customer city. Every
// payment row of an order counts, so an order paid in three installments
// contributes three values. Cities whose orders have no payments are kept
// with a zero total.
func TopCitiesByPaymentValue(orders []models.Order, customers map[string]models.Customer, payments []models.Payment, n int) ([]models.CityBucket, error) {
	if n <= 0 {
		return nil, errors.Validation("n must be positive")
	}

	paid := make(map[string][]float64)
	for _, p := range payments {
		paid[p.OrderID] = append(paid[p.OrderID], p.Value)
	}

	totals := make(map[string]float64)
	for _, o := range orders {
		c, ok := customers[o.CustomerID]
		if !ok {
			continue
		}
		total := totals[c.City]
		for _, v := range paid[o.OrderID] {
			total += v
		}
		totals[c.City] = total
	}

	result := make([]models.CityBucket, 0, len(totals))
	for city, total := range totals {
		result = append(result, models.CityBucket{City: city, PaymentTotal: total})
	}
	slices.SortFunc(result, func(a, b models.CityBucket) int {
		if c := cmp.Compare(b.PaymentTotal, a.PaymentTotal); c != 0 {
			return c
		}
		return cmp.Compare(a.City, b.City)
	})

	return limit(result, n), nil
}

// Cities runs both rankings over a scoped dataset.
func Cities(s Scoped, customers map[string]models.Customer, n int) (CityReport, error) {
	byCount, err := TopCitiesByOrderCount(s.Orders, customers, n)
	if err != nil {
		return CityReport{}, err
	}
	byValue, err := TopCitiesByPaymentValue(s.Orders, customers, s.Payments, n)
	if err != nil {
		return CityReport{}, err
	}
	return CityReport{
		ByOrderCount:   byCount,
		ByPaymentValue: byValue,
		Empty:          s.Empty(),
	}, nil
}

func limit[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
