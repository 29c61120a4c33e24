package services

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"olist-dashboard/internal/dataset"
	"olist-dashboard/internal/errors"
	"olist-dashboard/internal/models"
)

func mustTS(t testing.TB, raw string) time.Time {
	t.Helper()
	ts, err := dataset.ParseTimestamp(raw)
	if err != nil {
		t.Fatalf("ParseTimestamp(%q): %v", raw, err)
	}
	return ts
}

func newOrder(t testing.TB, id, customer, purchased string) models.Order {
	ts := mustTS(t, purchased)
	return models.Order{OrderID: id, CustomerID: customer, PurchaseTimestamp: ts, Year: ts.Year(), Month: int(ts.Month())}
}

func newReview(t testing.TB, orderID string, score int, created string) models.Review {
	ts := mustTS(t, created)
	return models.Review{OrderID: orderID, Score: score, CreationTimestamp: ts, Year: ts.Year(), Month: int(ts.Month())}
}

func newSnapshot(orders []models.Order, customers []models.Customer, payments []models.Payment, reviews []models.Review) *dataset.Snapshot {
	idx := make(map[string]models.Customer, len(customers))
	for _, c := range customers {
		idx[c.CustomerID] = c
	}
	return &dataset.Snapshot{
		Orders:    orders,
		Customers: idx,
		Payments:  payments,
		Reviews:   reviews,
		LoadedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// sampleSnapshot spans two states, two years and several cities.
func sampleSnapshot(t testing.TB) *dataset.Snapshot {
	return newSnapshot(
		[]models.Order{
			newOrder(t, "o1", "c1", "2017-03-05 10:00:00"),
			newOrder(t, "o2", "c1", "2017-03-20 12:30:00"),
			newOrder(t, "o3", "c2", "2018-01-31 23:59:00"),
			newOrder(t, "o4", "c3", "2018-02-01 00:00:00"),
			newOrder(t, "o5", "c4", "2018-07-14 08:15:00"),
			newOrder(t, "o6", "c5", "2018-07-15 09:00:00"),
			newOrder(t, "o7", "ghost", "2018-07-16 09:00:00"),
		},
		[]models.Customer{
			{CustomerID: "c1", City: "sao paulo", State: "SP"},
			{CustomerID: "c2", City: "sao paulo", State: "SP"},
			{CustomerID: "c3", City: "campinas", State: "SP"},
			{CustomerID: "c4", City: "rio de janeiro", State: "RJ"},
			{CustomerID: "c5", City: "niteroi", State: "RJ"},
		},
		[]models.Payment{
			{OrderID: "o1", Value: 100},
			{OrderID: "o2", Value: 50},
			{OrderID: "o3", Value: 30},
			{OrderID: "o3", Value: 10},
			{OrderID: "o4", Value: 200},
			{OrderID: "o5", Value: 75.5},
			{OrderID: "o7", Value: 999},
			{OrderID: "missing", Value: 1},
		},
		[]models.Review{
			newReview(t, "o1", 5, "2017-03-10 00:00:00"),
			newReview(t, "o2", 3, "2017-04-02 00:00:00"),
			newReview(t, "o3", 4, "2018-02-03 00:00:00"),
			newReview(t, "o4", 1, "2018-02-10 00:00:00"),
			newReview(t, "o5", 2, "2018-07-20 00:00:00"),
		},
	)
}

func orderIDs(orders []models.Order) []string {
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.OrderID)
	}
	return ids
}

func sameIDs(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestScope_Windows(t *testing.T) {
	snap := sampleSnapshot(t)
	jan := DateRange{Start: mustTS(t, "2018-01-01"), End: mustTS(t, "2018-01-31")}

	tests := []struct {
		name string
		sel  Selection
		want []string
	}{
		{"all regions all time", Selection{}, []string{"o1", "o2", "o3", "o4", "o5", "o6"}},
		{"SP all time", Selection{Region: Region{State: "SP"}}, []string{"o1", "o2", "o3", "o4"}},
		{"lowercase state", Selection{Region: Region{State: "rj"}}, []string{"o5", "o6"}},
		{"SP 2017", Selection{Region: Region{State: "SP"}, Window: ExactYear{Year: 2017}}, []string{"o1", "o2"}},
		{"SP 2018", Selection{Region: Region{State: "SP"}, Window: ExactYear{Year: 2018}}, []string{"o3", "o4"}},
		{"january range", Selection{Window: jan}, []string{"o3"}},
		{"single day", Selection{Window: DateRange{Start: mustTS(t, "2018-02-01"), End: mustTS(t, "2018-02-01")}}, []string{"o4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scoped, err := Scope(snap, tt.sel)
			if err != nil {
				t.Fatalf("Scope() error = %v", err)
			}
			if got := orderIDs(scoped.Orders); !sameIDs(got, tt.want) {
				t.Errorf("orders = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScope_DateRangeIncludesWholeEndDay(t *testing.T) {
	snap := newSnapshot(
		[]models.Order{
			newOrder(t, "in", "c1", "2018-01-31 23:59:00"),
			newOrder(t, "out", "c1", "2018-02-01 00:00:00"),
			newOrder(t, "first", "c1", "2018-01-01 00:00:00"),
			newOrder(t, "before", "c1", "2017-12-31 23:59:59"),
		},
		[]models.Customer{{CustomerID: "c1", City: "x", State: "SP"}},
		nil, nil,
	)

	// Time-of-day on the bounds is ignored.
	window := DateRange{
		Start: time.Date(2018, 1, 1, 15, 0, 0, 0, time.UTC),
		End:   time.Date(2018, 1, 31, 0, 0, 0, 0, time.UTC),
	}
	scoped, err := Scope(snap, Selection{Window: window})
	if err != nil {
		t.Fatalf("Scope() error = %v", err)
	}
	if got := orderIDs(scoped.Orders); !sameIDs(got, []string{"in", "first"}) {
		t.Errorf("orders = %v, want [in first]", got)
	}
}

func TestScope_InvalidWindow(t *testing.T) {
	snap := sampleSnapshot(t)

	tests := []struct {
		name   string
		window Window
	}{
		{"start after end", DateRange{Start: mustTS(t, "2018-02-01"), End: mustTS(t, "2018-01-01")}},
		{"year zero", ExactYear{Year: 0}},
		{"year too large", ExactYear{Year: 10000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scoped, err := Scope(snap, Selection{Window: tt.window})
			if !errors.Is(err, errors.CodeInvalidWindow) {
				t.Fatalf("Scope() error = %v, want %s", err, errors.CodeInvalidWindow)
			}
			if len(scoped.Orders) != 0 {
				t.Error("invalid window must not return partial results")
			}
		})
	}
}

func TestScope_NoMatchIsEmptyNotError(t *testing.T) {
	snap := sampleSnapshot(t)

	scoped, err := Scope(snap, Selection{Region: Region{State: "AM"}, Window: ExactYear{Year: 2016}})
	if err != nil {
		t.Fatalf("Scope() error = %v", err)
	}
	if !scoped.Empty() {
		t.Error("expected empty scope")
	}
	if scoped.Orders == nil || scoped.Payments == nil || scoped.Reviews == nil {
		t.Error("empty scope should hold empty, non-nil collections")
	}

	report := Monthly(scoped)
	if !report.Empty || len(report.Buckets) != 12 {
		t.Errorf("Monthly(empty) = %+v, want 12 buckets flagged empty", report)
	}
}

func TestScope_IsNarrowing(t *testing.T) {
	snap := sampleSnapshot(t)
	selections := []Selection{
		{},
		{Region: Region{State: "SP"}},
		{Region: Region{State: "RJ"}, Window: ExactYear{Year: 2018}},
		{Window: DateRange{Start: mustTS(t, "2017-01-01"), End: mustTS(t, "2018-01-31")}},
	}

	for _, sel := range selections {
		t.Run(sel.Key(), func(t *testing.T) {
			scoped, err := Scope(snap, sel)
			if err != nil {
				t.Fatal(err)
			}

			inScope := make(map[string]bool)
			for _, o := range scoped.Orders {
				inScope[o.OrderID] = true
			}

			if len(scoped.Orders) > len(snap.Orders) || len(scoped.Payments) > len(snap.Payments) || len(scoped.Reviews) > len(snap.Reviews) {
				t.Error("scope grew a table")
			}
			for _, p := range scoped.Payments {
				if !inScope[p.OrderID] {
					t.Errorf("payment for %s references an order outside the scope", p.OrderID)
				}
			}
			for _, r := range scoped.Reviews {
				if !inScope[r.OrderID] {
					t.Errorf("review for %s references an order outside the scope", r.OrderID)
				}
			}
		})
	}
}

// Reviews are filtered twice: by their parent order and by their own
// creation date. A January order reviewed in February disappears from a
// January range even though the order itself is inside it.
func TestScope_ReviewDoubleFilterQuirk(t *testing.T) {
	snap := sampleSnapshot(t)
	jan := DateRange{Start: mustTS(t, "2018-01-01"), End: mustTS(t, "2018-01-31")}

	scoped, err := Scope(snap, Selection{Window: jan})
	if err != nil {
		t.Fatal(err)
	}
	if got := orderIDs(scoped.Orders); !sameIDs(got, []string{"o3"}) {
		t.Fatalf("orders = %v, want [o3]", got)
	}
	if len(scoped.Payments) != 2 {
		t.Errorf("payments = %d, want 2 (both o3 rows)", len(scoped.Payments))
	}
	if len(scoped.Reviews) != 0 {
		t.Errorf("reviews = %d, want 0: o3 was reviewed in February", len(scoped.Reviews))
	}

	// Without a window the same review survives.
	all, err := Scope(snap, Selection{Region: Region{State: "SP"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(all.Reviews) != 4 {
		t.Errorf("reviews without window = %d, want 4", len(all.Reviews))
	}
}

func TestMonthly_ConcreteScenario(t *testing.T) {
	snap := newSnapshot(
		[]models.Order{
			newOrder(t, "1", "A", "2018-03-01 10:00:00"),
			newOrder(t, "2", "A", "2018-03-15 10:00:00"),
		},
		[]models.Customer{{CustomerID: "A", City: "sao paulo", State: "SP"}},
		[]models.Payment{{OrderID: "1", Value: 100}, {OrderID: "2", Value: 50}},
		nil,
	)

	scoped, err := Scope(snap, Selection{Region: Region{State: "SP"}})
	if err != nil {
		t.Fatal(err)
	}
	report := Monthly(scoped)

	if len(report.Buckets) != 12 {
		t.Fatalf("buckets = %d, want 12", len(report.Buckets))
	}
	for i, b := range report.Buckets {
		if b.Month != i+1 {
			t.Errorf("bucket %d has month %d", i, b.Month)
		}
		want := 0.0
		if b.Month == 3 {
			want = 75.0
		}
		if b.AvgPayment != want {
			t.Errorf("month %d avg_payment = %v, want %v", b.Month, b.AvgPayment, want)
		}
		if b.AvgScore != 0 {
			t.Errorf("month %d avg_score = %v, want 0", b.Month, b.AvgScore)
		}
	}
	if report.Empty {
		t.Error("report should not be empty")
	}
}

func TestMonthly_DenseAndAveraged(t *testing.T) {
	snap := sampleSnapshot(t)

	for _, sel := range []Selection{
		{},
		{Region: Region{State: "SP"}, Window: ExactYear{Year: 2018}},
		{Region: Region{State: "AC"}},
	} {
		scoped, err := Scope(snap, sel)
		if err != nil {
			t.Fatal(err)
		}
		report := Monthly(scoped)

		if len(report.Buckets) != 12 {
			t.Fatalf("%s: buckets = %d, want 12", sel.Key(), len(report.Buckets))
		}
		seen := make(map[int]bool)
		for i, b := range report.Buckets {
			if b.Month != i+1 || seen[b.Month] {
				t.Errorf("%s: bad month ordering at %d: %d", sel.Key(), i, b.Month)
			}
			seen[b.Month] = true
		}
	}

	scoped, _ := Scope(snap, Selection{Region: Region{State: "SP"}})
	report := Monthly(scoped)

	// March 2017: o1=100, o2=50. January 2018: o3 = 30 + 10 over two rows.
	// February 2018: o4=200.
	checks := map[int]float64{1: 20, 2: 200, 3: 75}
	for month, want := range checks {
		if got := report.Buckets[month-1].AvgPayment; got != want {
			t.Errorf("month %d avg_payment = %v, want %v", month, got, want)
		}
	}

	// Reviews bucket by their own month: March 5, April 3, February (4+1)/2.
	scores := map[int]float64{2: 2.5, 3: 5, 4: 3}
	for month, want := range scores {
		if got := report.Buckets[month-1].AvgScore; got != want {
			t.Errorf("month %d avg_score = %v, want %v", month, got, want)
		}
	}
	if report.Payments != 5 || report.Reviews != 4 || report.Orders != 4 {
		t.Errorf("counts = %d/%d/%d", report.Orders, report.Payments, report.Reviews)
	}
}

func TestAggregatePayments_Orphans(t *testing.T) {
	index := map[string]int{"o1": 1, "bad": 13}
	payments := []models.Payment{
		{OrderID: "o1", Value: 10},
		{OrderID: "o1", Value: 20},
		{OrderID: "nowhere", Value: 1000},
		{OrderID: "bad", Value: 5},
	}

	avg, orphans := AggregatePayments(payments, index)
	if orphans != 2 {
		t.Errorf("orphans = %d, want 2", orphans)
	}
	if avg[0] != 15 {
		t.Errorf("january = %v, want 15", avg[0])
	}
	for i := 1; i < 12; i++ {
		if avg[i] != 0 {
			t.Errorf("month %d = %v, want 0", i+1, avg[i])
		}
	}
}

func TestTopCitiesByOrderCount(t *testing.T) {
	snap := sampleSnapshot(t)

	got, err := TopCitiesByOrderCount(snap.Orders, snap.Customers, 3)
	if err != nil {
		t.Fatal(err)
	}

	want := []models.CityBucket{
		{City: "sao paulo", OrderCount: 3},
		{City: "campinas", OrderCount: 1},
		{City: "niteroi", OrderCount: 1},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d cities, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("rank %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	total := 0
	for _, b := range got {
		total += b.OrderCount
	}
	if total > len(snap.Orders) {
		t.Errorf("counted %d orders out of %d", total, len(snap.Orders))
	}
}

func TestTopCitiesByOrderCount_FewerThanN(t *testing.T) {
	snap := sampleSnapshot(t)

	got, err := TopCitiesByOrderCount(snap.Orders, snap.Customers, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 4 {
		t.Errorf("got %d cities, want all 4", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].OrderCount < got[i].OrderCount {
			t.Error("cities should be sorted by count descending")
		}
	}
}

func TestTopCitiesByPaymentValue(t *testing.T) {
	snap := sampleSnapshot(t)

	got, err := TopCitiesByPaymentValue(snap.Orders, snap.Customers, snap.Payments, 5)
	if err != nil {
		t.Fatal(err)
	}

	// sao paulo: 100 + 50 + 30 + 10. niteroi has an order but no payments.
	// The ghost customer's 999 has no city and is dropped.
	want := []models.CityBucket{
		{City: "campinas", PaymentTotal: 200},
		{City: "sao paulo", PaymentTotal: 190},
		{City: "rio de janeiro", PaymentTotal: 75.5},
		{City: "niteroi", PaymentTotal: 0},
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("rank %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestTopCities_InvalidN(t *testing.T) {
	snap := sampleSnapshot(t)

	if _, err := TopCitiesByOrderCount(snap.Orders, snap.Customers, 0); !errors.Is(err, errors.CodeValidation) {
		t.Errorf("n=0 error = %v, want validation error", err)
	}
	if _, err := TopCitiesByPaymentValue(snap.Orders, snap.Customers, snap.Payments, -1); !errors.Is(err, errors.CodeValidation) {
		t.Errorf("n=-1 error = %v, want validation error", err)
	}
}

func TestPipeline_Idempotent(t *testing.T) {
	snap := sampleSnapshot(t)
	sel := Selection{Region: Region{State: "SP"}, Window: DateRange{Start: mustTS(t, "2017-01-01"), End: mustTS(t, "2018-12-31")}}

	run := func() []byte {
		scoped, err := Scope(snap, sel)
		if err != nil {
			t.Fatal(err)
		}
		cities, err := Cities(scoped, snap.Customers, 5)
		if err != nil {
			t.Fatal(err)
		}
		out, err := json.Marshal(map[string]any{"monthly": Monthly(scoped), "cities": cities})
		if err != nil {
			t.Fatal(err)
		}
		return out
	}

	first, second := run(), run()
	if !bytes.Equal(first, second) {
		t.Errorf("pipeline output differs between runs:\n%s\n%s", first, second)
	}
}

func TestChartSeries_Labels(t *testing.T) {
	snap := sampleSnapshot(t)
	scoped, _ := Scope(snap, Selection{Region: Region{State: "SP"}})

	payments := PaymentSeries(Monthly(scoped))
	if len(payments.Points) != 12 {
		t.Fatalf("points = %d, want 12", len(payments.Points))
	}
	if p := payments.Points[2]; p.X != "Mar" || p.Label != "75.00" {
		t.Errorf("march point = %+v", p)
	}
	if p := payments.Points[11]; p.X != "Dec" || p.Y != 0 || p.Label != "0.00" {
		t.Errorf("december point = %+v", p)
	}

	cities, err := Cities(scoped, snap.Customers, 5)
	if err != nil {
		t.Fatal(err)
	}
	values := PaymentValueSeries(cities)
	if values.Points[0].X != "campinas" || values.Points[0].Label != "200.00" {
		t.Errorf("first city point = %+v", values.Points[0])
	}
	if counts := OrderCountSeries(cities); counts.Points[0].Label != "3" {
		t.Errorf("order count label = %q, want 3", counts.Points[0].Label)
	}
}

func BenchmarkScopeAndMonthly(b *testing.B) {
	orders := make([]models.Order, 0, 10000)
	payments := make([]models.Payment, 0, 10000)
	for i := 0; i < 10000; i++ {
		id := string(rune('a'+i%26)) + time.Duration(i).String()
		ts := time.Date(2017+i%2, time.Month(1+i%12), 1+i%28, 0, 0, 0, 0, time.UTC)
		orders = append(orders, models.Order{OrderID: id, CustomerID: "c1", PurchaseTimestamp: ts, Year: ts.Year(), Month: int(ts.Month())})
		payments = append(payments, models.Payment{OrderID: id, Value: float64(i % 300)})
	}
	snap := newSnapshot(orders, []models.Customer{{CustomerID: "c1", City: "sao paulo", State: "SP"}}, payments, nil)
	sel := Selection{Region: Region{State: "SP"}, Window: ExactYear{Year: 2018}}

	b.ResetTimer()
	for b.Loop() {
		scoped, _ := Scope(snap, sel)
		_ = Monthly(scoped)
	}
}
