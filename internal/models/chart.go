package models

// ChartPoint is one bar: X is the category, Y the metric and Label the
// metric rendered for tooltips.
type ChartPoint struct {
	X     string  `json:"x"`
	Y     float64 `json:"y"`
	Label string  `json:"label"`
}

type ChartSeries struct {
	ID     string       `json:"id"`
	Title  string       `json:"title"`
	XLabel string       `json:"x_label"`
	YLabel string       `json:"y_label"`
	Points []ChartPoint `json:"points"`
}
