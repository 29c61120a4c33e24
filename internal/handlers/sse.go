package handlers

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"olist-dashboard/internal/config"
	"olist-dashboard/internal/errors"
	"olist-dashboard/internal/models"
	"olist-dashboard/internal/observability"
	"olist-dashboard/internal/services"
)

const (
	monthlyStatusID = "monthly-status"
	cityTableID     = "city-table"
)

var statusTemplate = template.Must(template.New("status").Parse(
	`<div id="{{.ID}}" class="status{{if .Error}} error{{end}}">{{.Text}}</div>`))

var cityTableTemplate = template.Must(template.New("cityTable").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(`
<div id="{{.ID}}">
<table class="modern-table">
<thead><tr><th>#</th><th>City (orders)</th><th>Orders</th><th>City (payments)</th><th>Payment value</th></tr></thead>
<tbody>
{{range $i, $row := .Rows}}<tr>
<td>{{inc $i}}</td>
<td>{{with $row.ByCount}}{{.City}}{{end}}</td>
<td>{{with $row.ByCount}}{{.OrderCount}}{{end}}</td>
<td>{{with $row.ByValue}}{{.City}}{{end}}</td>
<td>{{with $row.ByValue}}<strong>R${{printf "%.2f" .PaymentTotal}}</strong>{{end}}</td>
</tr>{{else}}<tr><td colspan="5">No data for this selection</td></tr>{{end}}
</tbody>
</table>
</div>`))

type SSEHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
	dashboard config.DashboardConfig
}

func NewSSEHandlers(analytics *services.Analytics, logger *slog.Logger, dashboard config.DashboardConfig) *SSEHandlers {
	return &SSEHandlers{
		analytics: analytics,
		logger:    logger,
		dashboard: dashboard,
	}
}

type statusData struct {
	ID    string
	Text  string
	Error bool
}

type cityRow struct {
	ByCount *models.CityBucket
	ByValue *models.CityBucket
}

func renderStatus(id, text string, isError bool) (string, error) {
	var buf strings.Builder
	err := statusTemplate.Execute(&buf, statusData{ID: id, Text: text, Error: isError})
	return buf.String(), err
}

// renderCityTable lays the two rankings side by side. The rankings can
// differ in length when some cities have orders but no payments.
func renderCityTable(report services.CityReport) (string, error) {
	n := max(len(report.ByOrderCount), len(report.ByPaymentValue))
	rows := make([]cityRow, n)
	for i := range rows {
		if i < len(report.ByOrderCount) {
			rows[i].ByCount = &report.ByOrderCount[i]
		}
		if i < len(report.ByPaymentValue) {
			rows[i].ByValue = &report.ByPaymentValue[i]
		}
	}

	var buf strings.Builder
	err := cityTableTemplate.Execute(&buf, struct {
		ID   string
		Rows []cityRow
	}{cityTableID, rows})
	return buf.String(), err
}

func monthlySummary(r services.MonthlyReport) string {
	if r.Empty {
		return "No data for this selection"
	}
	return fmt.Sprintf("%s, %s and %s",
		plural(r.Orders, "order"), plural(r.Payments, "payment"), plural(r.Reviews, "review"))
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func (h *SSEHandlers) readParams(r *http.Request) (selectionParams, error) {
	var params selectionParams
	if err := datastar.ReadSignals(r, &params); err != nil {
		return selectionParams{}, errors.BadRequestWrap(err, "invalid signals")
	}
	return params, nil
}

// patchError replaces the status element with the error message. No
// chart signals are sent so the page keeps its previous charts.
func (h *SSEHandlers) patchError(sse *datastar.ServerSentEventGenerator, r *http.Request, id string, err error) {
	logger := observability.RequestLogger(r.Context(), h.logger)
	logger.Warn("dashboard update failed", "target", id, "code", errors.CodeOf(err), "error", err)

	html, renderErr := renderStatus(id, errors.MessageOf(err), true)
	if renderErr != nil {
		logger.Error("render status", "error", renderErr)
		return
	}
	sse.PatchElements(html)
}

func (h *SSEHandlers) monthlySignals(r *http.Request, params selectionParams) (map[string]any, string, error) {
	sel, err := params.selection(h.dashboard.DefaultState)
	if err != nil {
		return nil, "", err
	}
	report, err := h.analytics.Monthly(r.Context(), sel)
	if err != nil {
		return nil, "", err
	}

	signals := map[string]any{
		"paymentChart": services.PaymentSeries(report),
		"scoreChart":   services.ScoreSeries(report),
		"monthlyEmpty": report.Empty,
	}
	html, err := renderStatus(monthlyStatusID, monthlySummary(report), false)
	return signals, html, err
}

func (h *SSEHandlers) citySignals(r *http.Request, params selectionParams) (map[string]any, string, error) {
	sel, err := params.selection("")
	if err != nil {
		return nil, "", err
	}
	n, err := params.topN(h.dashboard.TopN)
	if err != nil {
		return nil, "", err
	}
	report, err := h.analytics.Cities(r.Context(), sel, n)
	if err != nil {
		return nil, "", err
	}

	signals := map[string]any{
		"cityOrdersChart":   services.OrderCountSeries(report),
		"cityPaymentsChart": services.PaymentValueSeries(report),
		"citiesEmpty":       report.Empty,
	}
	html, err := renderCityTable(report)
	return signals, html, err
}

func (h *SSEHandlers) patch(sse *datastar.ServerSentEventGenerator, signals map[string]any, html string) error {
	jsonData, err := json.Marshal(signals)
	if err != nil {
		return errors.InternalWrap(err, "marshal chart signals")
	}
	sse.PatchSignals(jsonData)
	sse.PatchElements(html)
	return nil
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func (h *SSEHandlers) HandleMonthly(w http.ResponseWriter, r *http.Request) {
	params, err := h.readParams(r)
	sse := datastar.NewSSE(w, r)
	defer flush(w)

	if err != nil {
		h.patchError(sse, r, monthlyStatusID, err)
		return
	}

	signals, html, err := h.monthlySignals(r, params)
	if err == nil {
		err = h.patch(sse, signals, html)
	}
	if err != nil {
		h.patchError(sse, r, monthlyStatusID, err)
	}
}

func (h *SSEHandlers) HandleCities(w http.ResponseWriter, r *http.Request) {
	params, err := h.readParams(r)
	sse := datastar.NewSSE(w, r)
	defer flush(w)

	if err != nil {
		h.patchError(sse, r, cityTableID, err)
		return
	}

	signals, html, err := h.citySignals(r, params)
	if err == nil {
		err = h.patch(sse, signals, html)
	}
	if err != nil {
		h.patchError(sse, r, cityTableID, err)
	}
}

// HandleRefreshAll updates both views for the same selection. A failure
// in one view does not stop the other.
func (h *SSEHandlers) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	params, err := h.readParams(r)
	sse := datastar.NewSSE(w, r)
	defer flush(w)

	if err != nil {
		h.patchError(sse, r, monthlyStatusID, err)
		h.patchError(sse, r, cityTableID, err)
		return
	}

	signals, html, err := h.monthlySignals(r, params)
	if err == nil {
		err = h.patch(sse, signals, html)
	}
	if err != nil {
		h.patchError(sse, r, monthlyStatusID, err)
	}

	signals, html, err = h.citySignals(r, params)
	if err == nil {
		err = h.patch(sse, signals, html)
	}
	if err != nil {
		h.patchError(sse, r, cityTableID, err)
	}
}
