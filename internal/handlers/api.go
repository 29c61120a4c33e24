package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"olist-dashboard/internal/config"
	"olist-dashboard/internal/errors"
	"olist-dashboard/internal/models"
	"olist-dashboard/internal/observability"
	"olist-dashboard/internal/services"
)

const cacheControl = "public, max-age=300"

type APIHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
	dashboard config.DashboardConfig
}

func NewAPIHandlers(analytics *services.Analytics, logger *slog.Logger, dashboard config.DashboardConfig) *APIHandlers {
	return &APIHandlers{
		analytics: analytics,
		logger:    logger,
		dashboard: dashboard,
	}
}

type MonthlyResponse struct {
	Selection string                 `json:"selection"`
	Report    services.MonthlyReport `json:"report"`
	Charts    []models.ChartSeries   `json:"charts"`
}

type CitiesResponse struct {
	Selection string               `json:"selection"`
	Report    services.CityReport  `json:"report"`
	Charts    []models.ChartSeries `json:"charts"`
}

type SelectionOptions struct {
	Years        []int  `json:"years"`
	FirstDate    string `json:"first_date,omitempty"`
	LastDate     string `json:"last_date,omitempty"`
	DefaultState string `json:"default_state"`
}

func (h *APIHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
}

func (h *APIHandlers) HandleMonthly(w http.ResponseWriter, r *http.Request) {
	sel, err := paramsFromQuery(r).selection(h.dashboard.DefaultState)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	report, err := h.analytics.Monthly(r.Context(), sel)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	errors.WriteSuccessWithHeaders(w, MonthlyResponse{
		Selection: sel.Key(),
		Report:    report,
		Charts:    []models.ChartSeries{services.PaymentSeries(report), services.ScoreSeries(report)},
	}, map[string]string{"Cache-Control": cacheControl})
}

// HandleCities ranks cities across all states unless a state is given.
func (h *APIHandlers) HandleCities(w http.ResponseWriter, r *http.Request) {
	params := paramsFromQuery(r)

	sel, err := params.selection("")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	n, err := params.topN(h.dashboard.TopN)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	report, err := h.analytics.Cities(r.Context(), sel, n)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	errors.WriteSuccessWithHeaders(w, CitiesResponse{
		Selection: sel.Key(),
		Report:    report,
		Charts:    []models.ChartSeries{services.OrderCountSeries(report), services.PaymentValueSeries(report)},
	}, map[string]string{"Cache-Control": cacheControl})
}

func (h *APIHandlers) HandleSelection(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.selectionOptions())
}

func (h *APIHandlers) selectionOptions() SelectionOptions {
	opts := SelectionOptions{
		Years:        h.analytics.Years(),
		DefaultState: h.dashboard.DefaultState,
	}
	if first, last, ok := h.analytics.DateBounds(); ok {
		opts.FirstDate = first.Format(time.DateOnly)
		opts.LastDate = last.Format(time.DateOnly)
	}
	return opts
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	dataset := "loaded"
	if !h.analytics.Loaded() {
		dataset = "unavailable"
	}

	healthData := map[string]string{
		"status":    "healthy",
		"dataset":   dataset,
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.analytics.Stats())
}

// HandleReload re-reads the source files. A failed reload keeps serving
// the previous snapshot.
func (h *APIHandlers) HandleReload(w http.ResponseWriter, r *http.Request) {
	if err := h.analytics.Reload(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}

	observability.RequestLogger(r.Context(), h.logger).Info("dataset reloaded")
	errors.WriteSuccess(w, h.analytics.Stats())
}
