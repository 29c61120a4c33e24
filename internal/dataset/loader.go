package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"olist-dashboard/internal/config"
	"olist-dashboard/internal/errors"
	"olist-dashboard/internal/models"
)

const (
	colOrderID        = "order_id"
	colCustomerID     = "customer_id"
	colPurchaseTS     = "order_purchase_timestamp"
	colCustomerCity   = "customer_city"
	colCustomerState  = "customer_state"
	colPaymentValue   = "payment_value"
	colReviewScore    = "review_score"
	colReviewCreation = "review_creation_date"
)

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Files holds the paths of the four source tables.
type Files struct {
	Orders    string
	Customers string
	Payments  string
	Reviews   string
}

func FilesFromConfig(cfg config.DataConfig) Files {
	return Files{
		Orders:    cfg.Path(cfg.OrdersFile),
		Customers: cfg.Path(cfg.CustomersFile),
		Payments:  cfg.Path(cfg.PaymentsFile),
		Reviews:   cfg.Path(cfg.ReviewsFile),
	}
}

// Load reads all four tables concurrently. A missing or unreadable file
// fails with DATA_UNAVAILABLE; a missing column or unparsable value fails
// with DATA_MALFORMED.
func Load(ctx context.Context, files Files) (*Snapshot, error) {
	snap := &Snapshot{Source: files}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		orders, err := loadOrders(gctx, files.Orders)
		snap.Orders = orders
		return err
	})
	g.Go(func() error {
		customers, err := loadCustomers(gctx, files.Customers)
		snap.Customers = customers
		return err
	})
	g.Go(func() error {
		payments, err := loadPayments(gctx, files.Payments)
		snap.Payments = payments
		return err
	})
	g.Go(func() error {
		reviews, err := loadReviews(gctx, files.Reviews)
		snap.Reviews = reviews
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap.LoadedAt = time.Now()
	return snap, nil
}

func loadOrders(ctx context.Context, path string) ([]models.Order, error) {
	var orders []models.Order
	err := readTable(ctx, path, []string{colOrderID, colCustomerID, colPurchaseTS}, func(r row) error {
		ts, err := r.timestamp(colPurchaseTS)
		if err != nil {
			return err
		}
		orders = append(orders, models.Order{
			OrderID:           r.get(colOrderID),
			CustomerID:        r.get(colCustomerID),
			PurchaseTimestamp: ts,
			Year:              ts.Year(),
			Month:             int(ts.Month()),
		})
		return nil
	})
	return orders, err
}

func loadCustomers(ctx context.Context, path string) (map[string]models.Customer, error) {
	customers := make(map[string]models.Customer)
	err := readTable(ctx, path, []string{colCustomerID, colCustomerCity, colCustomerState}, func(r row) error {
		id := r.get(colCustomerID)
		if _, seen := customers[id]; seen {
			return nil
		}
		customers[id] = models.Customer{
			CustomerID: id,
			City:       r.get(colCustomerCity),
			State:      strings.ToUpper(r.get(colCustomerState)),
		}
		return nil
	})
	return customers, err
}

func loadPayments(ctx context.Context, path string) ([]models.Payment, error) {
	var payments []models.Payment
	err := readTable(ctx, path, []string{colOrderID, colPaymentValue}, func(r row) error {
		value, err := strconv.ParseFloat(r.get(colPaymentValue), 64)
		if err != nil {
			return r.malformed(colPaymentValue, err)
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return r.malformed(colPaymentValue, fmt.Errorf("non-finite payment value %q", r.get(colPaymentValue)))
		}
		if value < 0 {
			return r.malformed(colPaymentValue, fmt.Errorf("negative payment value %v", value))
		}
		payments = append(payments, models.Payment{
			OrderID: r.get(colOrderID),
			Value:   value,
		})
		return nil
	})
	return payments, err
}

func loadReviews(ctx context.Context, path string) ([]models.Review, error) {
	var reviews []models.Review
	err := readTable(ctx, path, []string{colOrderID, colReviewScore, colReviewCreation}, func(r row) error {
		score, err := strconv.Atoi(r.get(colReviewScore))
		if err != nil {
			return r.malformed(colReviewScore, err)
		}
		if score < 1 || score > 5 {
			return r.malformed(colReviewScore, fmt.Errorf("score %d outside 1..5", score))
		}
		ts, err := r.timestamp(colReviewCreation)
		if err != nil {
			return err
		}
		reviews = append(reviews, models.Review{
			OrderID:           r.get(colOrderID),
			Score:             score,
			CreationTimestamp: ts,
			Year:              ts.Year(),
			Month:             int(ts.Month()),
		})
		return nil
	})
	return reviews, err
}

// row is one CSV record addressed by normalised header name.
type row struct {
	path   string
	line   int
	cols   map[string]int
	fields []string
}

func (r row) get(name string) string {
	return strings.TrimSpace(r.fields[r.cols[name]])
}

func (r row) timestamp(name string) (time.Time, error) {
	raw := r.get(name)
	if raw == "" {
		return time.Time{}, r.malformed(name, fmt.Errorf("empty timestamp"))
	}
	ts, err := ParseTimestamp(raw)
	if err != nil {
		return time.Time{}, r.malformed(name, err)
	}
	return ts, nil
}

func (r row) malformed(column string, cause error) error {
	return errors.DataMalformed(cause, "malformed value in source table").
		WithDetails(fmt.Sprintf("%s line %d column %s", r.path, r.line, column))
}

// ParseTimestamp accepts the date-time layouts used by the Olist exports
// and returns the instant in UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", raw)
}

func readTable(ctx context.Context, path string, required []string, fn func(row) error) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.DataUnavailable(err, "source table unavailable").WithDetails(path)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err == io.EOF {
		return errors.DataMalformed(err, "source table has no header").WithDetails(path)
	}
	if err != nil {
		return errors.DataUnavailable(err, "source table unreadable").WithDetails(path)
	}

	cols := make(map[string]int, len(headers))
	for i, h := range headers {
		cols[normaliseHeader(h)] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return errors.DataMalformed(fmt.Errorf("missing column %q", name), "source table missing column").
				WithDetails(fmt.Sprintf("%s: %s", path, name))
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.DataMalformed(err, "source table has an invalid record").WithDetails(path)
		}

		line, _ := reader.FieldPos(0)
		if err := fn(row{path: path, line: line, cols: cols, fields: record}); err != nil {
			return err
		}
	}
}

func normaliseHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ReplaceAll(h, `"`, "")
	return strings.ToLower(strings.TrimSpace(h))
}
