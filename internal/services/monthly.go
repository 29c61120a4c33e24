package services

import "olist-dashboard/internal/models"

const monthsPerYear = 12

// MonthlyReport is always dense: Buckets holds months 1..12 in order.
type MonthlyReport struct {
	Buckets        []models.MonthlyBucket `json:"buckets"`
	Orders         int                    `json:"orders"`
	Payments       int                    `json:"payments"`
	Reviews        int                    `json:"reviews"`
	OrphanPayments int                    `json:"orphan_payments"`
	Empty          bool                   `json:"empty"`
}

type monthAccumulator struct {
	sum   [monthsPerYear]float64
	count [monthsPerYear]int
}

func (a *monthAccumulator) add(month int, value float64) bool {
	if month < 1 || month > monthsPerYear {
		return false
	}
	a.sum[month-1] += value
	a.count[month-1]++
	return true
}

// means is zero for months without rows, never NaN.
func (a *monthAccumulator) means() [monthsPerYear]float64 {
	var out [monthsPerYear]float64
	for i := range out {
		if a.count[i] > 0 {
			out[i] = a.sum[i] / float64(a.count[i])
		}
	}
	return out
}

// OrderMonthIndex maps order id to the derived purchase month.
func OrderMonthIndex(orders []models.Order) map[string]int {
	idx := make(map[string]int, len(orders))
	for _, o := range orders {
		idx[o.OrderID] = o.Month
	}
	return idx
}

// AggregatePayments averages payment values per purchase month of the
// parent order. Payments whose order is missing from orderMonth are not
// bucketed; they are returned as the orphan count.
func AggregatePayments(payments []models.Payment, orderMonth map[string]int) (avg [monthsPerYear]float64, orphans int) {
	var acc monthAccumulator
	for _, p := range payments {
		month, ok := orderMonth[p.OrderID]
		if !ok || !acc.add(month, p.Value) {
			orphans++
		}
	}
	return acc.means(), orphans
}

// AggregateReviews averages review scores per review creation month.
func AggregateReviews(reviews []models.Review) [monthsPerYear]float64 {
	var acc monthAccumulator
	for _, r := range reviews {
		acc.add(r.Month, float64(r.Score))
	}
	return acc.means()
}

// Monthly builds the twelve month buckets for a scoped dataset.
func Monthly(s Scoped) MonthlyReport {
	avgPayment, orphans := AggregatePayments(s.Payments, OrderMonthIndex(s.Orders))
	avgScore := AggregateReviews(s.Reviews)

	buckets := make([]models.MonthlyBucket, monthsPerYear)
	for i := range buckets {
		buckets[i] = models.MonthlyBucket{
			Month:      i + 1,
			AvgPayment: avgPayment[i],
			AvgScore:   avgScore[i],
		}
	}

	return MonthlyReport{
		Buckets:        buckets,
		Orders:         len(s.Orders),
		Payments:       len(s.Payments),
		Reviews:        len(s.Reviews),
		OrphanPayments: orphans,
		Empty:          s.Empty(),
	}
}
