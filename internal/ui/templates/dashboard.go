package templates

import (
	"strconv"

	"github.com/a-h/templ"
)

// DashboardProps seeds the selector controls.
type DashboardProps struct {
	Years        []int
	FirstDate    string
	LastDate     string
	DefaultState string
	TopN         int
}

// initialSignals starts on the most recent year, or on all time when no
// data is loaded.
func (p DashboardProps) initialSignals() (string, error) {
	mode, year := "all", ""
	if len(p.Years) > 0 {
		mode, year = "year", strconv.Itoa(p.Years[len(p.Years)-1])
	}

	return templ.JSONString(map[string]any{
		"mode":              mode,
		"year":              year,
		"start":             p.FirstDate,
		"end":               p.LastDate,
		"state":             p.DefaultState,
		"n":                 strconv.Itoa(p.TopN),
		"paymentChart":      map[string]any{},
		"scoreChart":        map[string]any{},
		"cityOrdersChart":   map[string]any{},
		"cityPaymentsChart": map[string]any{},
		"monthlyEmpty":      false,
		"citiesEmpty":       false,
	})
}

func styleTag() string {
	return "<style>" + pageStyle + "</style>"
}

func chartTag() string {
	return "<script>" + chartCode + "</script>"
}

const pageStyle = `
body{font-family:system-ui,sans-serif;margin:0;background:#f5f6fa;color:#222}
header{background:#1f2d3d;color:#fff;padding:1rem 2rem}
.controls{display:flex;flex-wrap:wrap;gap:1rem;padding:1rem 2rem;align-items:end}
.panel{background:#fff;margin:1rem 2rem;padding:1rem;border-radius:8px}
.charts{display:grid;grid-template-columns:repeat(auto-fit,minmax(320px,1fr));gap:1rem}
.status{color:#555;margin:.5rem 0}
.status.error{color:#b00020;font-weight:600}
.modern-table{width:100%;border-collapse:collapse;margin-top:1rem}
.modern-table th,.modern-table td{padding:.4rem .6rem;border-bottom:1px solid #e3e6ee;text-align:left}
`

// chartCode draws every series as a bar chart, one bar per month or city.
const chartCode = `
const charts = {};
function draw(id, series) {
  if (!series || !series.points) return;
  const labels = series.points.map(p => p.x);
  const values = series.points.map(p => p.y);
  if (charts[id]) {
    charts[id].data.labels = labels;
    charts[id].data.datasets[0].data = values;
    charts[id].data.datasets[0].label = series.title;
    charts[id].update();
    return;
  }
  charts[id] = new Chart(document.getElementById(id), {
    type: 'bar',
    data: {labels: labels, datasets: [{label: series.title, data: values}]},
    options: {scales: {x: {title: {display: true, text: series.x_label}}, y: {beginAtZero: true, title: {display: true, text: series.y_label}}}}
  });
}
window.drawCharts = function(payment, score, cityOrders, cityPayments) {
  draw('payment-chart', payment);
  draw('score-chart', score);
  draw('city-orders-chart', cityOrders);
  draw('city-payments-chart', cityPayments);
};
`
