package services

import (
	"fmt"
	"strings"
	"time"

	"olist-dashboard/internal/dataset"
	"olist-dashboard/internal/errors"
	"olist-dashboard/internal/models"
)

const dateLayout = "2006-01-02"

// Window is the time predicate of a selection. The set of implementations
// is closed: AllTime, ExactYear and DateRange.
type Window interface {
	// Key identifies the window in cache keys and logs.
	Key() string
	validate() error
	matches(ts time.Time, year int) bool
}

// AllTime matches every row.
type AllTime struct{}

func (AllTime) Key() string                 { return "all" }
func (AllTime) validate() error             { return nil }
func (AllTime) matches(time.Time, int) bool { return true }

// ExactYear matches rows whose derived year equals Year.
type ExactYear struct {
	Year int
}

func (w ExactYear) Key() string { return fmt.Sprintf("year:%d", w.Year) }

func (w ExactYear) validate() error {
	if w.Year < 1 || w.Year > 9999 {
		return errors.InvalidWindow(fmt.Sprintf("year %d is out of range", w.Year))
	}
	return nil
}

func (w ExactYear) matches(_ time.Time, year int) bool { return year == w.Year }

// DateRange matches timestamps from the start of the Start day through the
// end of the End day. Only the calendar dates of Start and End are used.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func (w DateRange) Key() string {
	return fmt.Sprintf("range:%s..%s", w.lower().Format(dateLayout), w.End.Format(dateLayout))
}

func (w DateRange) validate() error {
	if w.lower().After(truncateDay(w.End)) {
		return errors.InvalidWindow("start date is after end date").
			WithDetails(fmt.Sprintf("%s > %s", w.Start.Format(dateLayout), w.End.Format(dateLayout)))
	}
	return nil
}

func (w DateRange) matches(ts time.Time, _ int) bool {
	return !ts.Before(w.lower()) && ts.Before(w.upper())
}

func (w DateRange) lower() time.Time { return truncateDay(w.Start) }

// upper is exclusive: midnight after the End day.
func (w DateRange) upper() time.Time { return truncateDay(w.End).AddDate(0, 0, 1) }

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDateRange builds a DateRange from two YYYY-MM-DD strings.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(dateLayout, start)
	if err != nil {
		return DateRange{}, errors.BadRequestWrap(err, "start date must be YYYY-MM-DD")
	}
	e, err := time.Parse(dateLayout, end)
	if err != nil {
		return DateRange{}, errors.BadRequestWrap(err, "end date must be YYYY-MM-DD")
	}
	return DateRange{Start: s, End: e}, nil
}

// Region restricts customers by state code. The zero Region matches all
// customers.
type Region struct {
	State string
}

func (r Region) Matches(c models.Customer) bool {
	return r.State == "" || strings.EqualFold(c.State, r.State)
}

func (r Region) Key() string {
	if r.State == "" {
		return "*"
	}
	return strings.ToUpper(r.State)
}

type Selection struct {
	Region Region
	Window Window
}

func (s Selection) window() Window {
	if s.Window == nil {
		return AllTime{}
	}
	return s.Window
}

func (s Selection) Key() string {
	return s.Region.Key() + "|" + s.window().Key()
}

// Scoped is the narrowed view of a snapshot. Every payment and review in
// it references an order in Orders.
type Scoped struct {
	Orders   []models.Order
	Payments []models.Payment
	Reviews  []models.Review
}

func (s Scoped) Empty() bool {
	return len(s.Orders) == 0
}

// Scope narrows the snapshot to the selection: orders by customer region
// and purchase time, then payments and reviews by surviving order id.
// Reviews are additionally matched against the window on their own
// creation date, so a review written after the window closes is dropped
// even when its order is inside it.
func Scope(snap *dataset.Snapshot, sel Selection) (Scoped, error) {
	w := sel.window()
	if err := w.validate(); err != nil {
		return Scoped{}, err
	}

	out := Scoped{
		Orders:   make([]models.Order, 0),
		Payments: make([]models.Payment, 0),
		Reviews:  make([]models.Review, 0),
	}

	regionCustomers := make(map[string]struct{})
	for id, c := range snap.Customers {
		if sel.Region.Matches(c) {
			regionCustomers[id] = struct{}{}
		}
	}

	orderIDs := make(map[string]struct{})
	for _, o := range snap.Orders {
		if _, ok := regionCustomers[o.CustomerID]; !ok {
			continue
		}
		if !w.matches(o.PurchaseTimestamp, o.Year) {
			continue
		}
		out.Orders = append(out.Orders, o)
		orderIDs[o.OrderID] = struct{}{}
	}

	for _, p := range snap.Payments {
		if _, ok := orderIDs[p.OrderID]; ok {
			out.Payments = append(out.Payments, p)
		}
	}

	for _, r := range snap.Reviews {
		if _, ok := orderIDs[r.OrderID]; !ok {
			continue
		}
		if !w.matches(r.CreationTimestamp, r.Year) {
			continue
		}
		out.Reviews = append(out.Reviews, r)
	}

	return out, nil
}
