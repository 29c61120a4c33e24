package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"olist-dashboard/internal/errors"
	"olist-dashboard/internal/services"
)

const (
	modeAll   = "all"
	modeYear  = "year"
	modeRange = "range"

	// allStates selects every customer regardless of the default state.
	allStates = "ALL"
)

// selectionParams is what the page sends, either as query parameters or
// as Datastar signals.
type selectionParams struct {
	Mode  string `json:"mode"`
	State string `json:"state"`
	Year  string `json:"year"`
	Start string `json:"start"`
	End   string `json:"end"`
	N     string `json:"n"`
}

func paramsFromQuery(r *http.Request) selectionParams {
	q := r.URL.Query()
	return selectionParams{
		Mode:  q.Get("mode"),
		State: q.Get("state"),
		Year:  q.Get("year"),
		Start: q.Get("start"),
		End:   q.Get("end"),
		N:     q.Get("n"),
	}
}

func (p selectionParams) mode() string {
	if p.Mode != "" {
		return strings.ToLower(p.Mode)
	}
	switch {
	case p.Start != "" || p.End != "":
		return modeRange
	case p.Year != "":
		return modeYear
	default:
		return modeAll
	}
}

func (p selectionParams) region(defaultState string) services.Region {
	state := strings.ToUpper(strings.TrimSpace(p.State))
	switch state {
	case "":
		return services.Region{State: defaultState}
	case allStates, "*":
		return services.Region{}
	default:
		return services.Region{State: state}
	}
}

func (p selectionParams) selection(defaultState string) (services.Selection, error) {
	sel := services.Selection{Region: p.region(defaultState)}

	switch p.mode() {
	case modeAll:
		sel.Window = services.AllTime{}
	case modeYear:
		year, err := strconv.Atoi(strings.TrimSpace(p.Year))
		if err != nil {
			return services.Selection{}, errors.BadRequestWrap(err, "year must be an integer")
		}
		sel.Window = services.ExactYear{Year: year}
	case modeRange:
		if p.Start == "" || p.End == "" {
			return services.Selection{}, errors.BadRequest("start and end dates are both required")
		}
		window, err := services.ParseDateRange(p.Start, p.End)
		if err != nil {
			return services.Selection{}, err
		}
		sel.Window = window
	default:
		return services.Selection{}, errors.BadRequest("mode must be one of all, year, range")
	}

	return sel, nil
}

func (p selectionParams) topN(defaultN int) (int, error) {
	if p.N == "" {
		return defaultN, nil
	}
	n, err := strconv.Atoi(p.N)
	if err != nil || n <= 0 {
		return 0, errors.BadRequest("n must be a positive integer")
	}
	return n, nil
}
