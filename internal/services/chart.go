package services

import (
	"fmt"
	"time"

	"olist-dashboard/internal/models"
)

func label(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func monthName(m int) string {
	return time.Month(m).String()[:3]
}

func PaymentSeries(r MonthlyReport) models.ChartSeries {
	points := make([]models.ChartPoint, 0, len(r.Buckets))
	for _, b := range r.Buckets {
		points = append(points, models.ChartPoint{X: monthName(b.Month), Y: b.AvgPayment, Label: label(b.AvgPayment)})
	}
	return models.ChartSeries{
		ID:     "avg-payment",
		Title:  "Average Payment Value per Month",
		XLabel: "Month",
		YLabel: "Average Payment",
		Points: points,
	}
}

func ScoreSeries(r MonthlyReport) models.ChartSeries {
	points := make([]models.ChartPoint, 0, len(r.Buckets))
	for _, b := range r.Buckets {
		points = append(points, models.ChartPoint{X: monthName(b.Month), Y: b.AvgScore, Label: label(b.AvgScore)})
	}
	return models.ChartSeries{
		ID:     "avg-score",
		Title:  "Average Review Score per Month",
		XLabel: "Month",
		YLabel: "Average Score",
		Points: points,
	}
}

func OrderCountSeries(r CityReport) models.ChartSeries {
	points := make([]models.ChartPoint, 0, len(r.ByOrderCount))
	for _, b := range r.ByOrderCount {
		points = append(points, models.ChartPoint{X: b.City, Y: float64(b.OrderCount), Label: fmt.Sprintf("%d", b.OrderCount)})
	}
	return models.ChartSeries{
		ID:     "city-orders",
		Title:  fmt.Sprintf("Top %d Cities by Order Count", len(points)),
		XLabel: "Customer City",
		YLabel: "Order Count",
		Points: points,
	}
}

func PaymentValueSeries(r CityReport) models.ChartSeries {
	points := make([]models.ChartPoint, 0, len(r.ByPaymentValue))
	for _, b := range r.ByPaymentValue {
		points = append(points, models.ChartPoint{X: b.City, Y: b.PaymentTotal, Label: label(b.PaymentTotal)})
	}
	return models.ChartSeries{
		ID:     "city-payments",
		Title:  fmt.Sprintf("Top %d Cities by Payment Value", len(points)),
		XLabel: "Customer City",
		YLabel: "Payment Value",
		Points: points,
	}
}
