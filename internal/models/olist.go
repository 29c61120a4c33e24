package models

import "time"

type Order struct {
	OrderID           string
	CustomerID        string
	PurchaseTimestamp time.Time
	Year              int
	Month             int
}

type Customer struct {
	CustomerID string
	City       string
	State      string
}

// Payment rows are not unique per order; installments and vouchers
// produce several rows for the same OrderID.
type Payment struct {
	OrderID string
	Value   float64
}

type Review struct {
	OrderID           string
	Score             int
	CreationTimestamp time.Time
	Year              int
	Month             int
}

type MonthlyBucket struct {
	Month      int     `json:"month"`
	AvgPayment float64 `json:"avg_payment"`
	AvgScore   float64 `json:"avg_score"`
}

type CityBucket struct {
	City         string  `json:"city"`
	OrderCount   int     `json:"order_count"`
	PaymentTotal float64 `json:"payment_total"`
}
