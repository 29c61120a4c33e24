package templates

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestDashboard_Render(t *testing.T) {
	props := DashboardProps{
		Years:        []int{2016, 2017, 2018},
		FirstDate:    "2016-09-04",
		LastDate:     "2018-10-17",
		DefaultState: "SP",
		TopN:         5,
	}

	var buf strings.Builder
	if err := Dashboard(props).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	html := buf.String()

	expected := []string{
		"<!doctype html>",
		`<option value="2017">2017</option>`,
		`min="2016-09-04"`,
		`max="2018-10-17"`,
		`data-init="@get('/sse/refresh-all')"`,
		`id="monthly-status"`,
		`id="city-table"`,
		`id="payment-chart"`,
		"&#34;year&#34;:&#34;2018&#34;",
		"&#34;state&#34;:&#34;SP&#34;",
	}
	for _, want := range expected {
		if !strings.Contains(html, want) {
			t.Errorf("expected page to contain %q", want)
		}
	}
}

func TestDashboard_NoData(t *testing.T) {
	var buf strings.Builder
	if err := Dashboard(DashboardProps{DefaultState: "SP", TopN: 5}).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	if !strings.Contains(buf.String(), "&#34;mode&#34;:&#34;all&#34;") {
		t.Error("page without years should start on all time")
	}
	if strings.Contains(buf.String(), "<option value=\"20") {
		t.Error("no year options expected")
	}
}

func TestDashboard_BarCharts(t *testing.T) {
	var buf strings.Builder
	if err := Dashboard(DashboardProps{Years: []int{2017}, TopN: 5}).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	html := buf.String()

	if !strings.Contains(html, "type: 'bar'") {
		t.Error("monthly and city charts should be bar charts")
	}
	if strings.Contains(html, "'line'") {
		t.Error("no chart should be drawn as a line")
	}
	for _, id := range []string{"payment-chart", "score-chart", "city-orders-chart", "city-payments-chart"} {
		if !strings.Contains(html, "draw('"+id+"', ") {
			t.Errorf("chart %s is never drawn", id)
		}
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("closed")
}

func TestDashboard_WriteError(t *testing.T) {
	err := Dashboard(DashboardProps{}).Render(context.Background(), failingWriter{})
	if err == nil {
		t.Fatal("Render() should report write errors")
	}
}
