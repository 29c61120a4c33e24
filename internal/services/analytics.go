package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"olist-dashboard/internal/cache"
	"olist-dashboard/internal/dataset"
	"olist-dashboard/internal/errors"
	"olist-dashboard/internal/observability"
)

const (
	defaultCacheSize = 128
	defaultCacheTTL  = 5 * time.Minute
)

// Analytics owns the loaded snapshot and answers dashboard queries from
// it. Reports are cached per snapshot generation and selection.
type Analytics struct {
	mu         sync.RWMutex
	snapshot   *dataset.Snapshot
	files      dataset.Files
	generation atomic.Uint64
	loads      atomic.Int64

	monthly *cache.LRU[MonthlyReport]
	cities  *cache.LRU[CityReport]
	logger  *slog.Logger
}

type Option func(*Analytics)

func WithCache(size int, ttl time.Duration) Option {
	return func(a *Analytics) {
		a.monthly = cache.NewLRU[MonthlyReport](size, ttl)
		a.cities = cache.NewLRU[CityReport](size, ttl)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Analytics) {
		a.logger = logger
	}
}

func NewAnalytics(opts ...Option) *Analytics {
	a := &Analytics{
		monthly: cache.NewLRU[MonthlyReport](defaultCacheSize, defaultCacheTTL),
		cities:  cache.NewLRU[CityReport](defaultCacheSize, defaultCacheTTL),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetSnapshot installs an already loaded snapshot.
func (a *Analytics) SetSnapshot(snap *dataset.Snapshot) {
	a.mu.Lock()
	a.snapshot = snap
	a.generation.Add(1)
	a.mu.Unlock()

	a.monthly.Purge()
	a.cities.Purge()
}

// LoadFromDir reads the four source tables and replaces the current
// snapshot. On failure the previous snapshot stays in place.
func (a *Analytics) LoadFromDir(ctx context.Context, files dataset.Files) error {
	start := time.Now()
	a.logger.Info("loading dataset",
		"orders", files.Orders,
		"customers", files.Customers,
		"payments", files.Payments,
		"reviews", files.Reviews,
	)

	snap, err := dataset.Load(ctx, files)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}

	a.mu.Lock()
	a.files = files
	a.mu.Unlock()
	a.SetSnapshot(snap)
	a.loads.Add(1)

	counts := snap.RecordCounts()
	a.logger.Info("dataset loaded",
		"orders", counts["orders"],
		"customers", counts["customers"],
		"payments", counts["payments"],
		"reviews", counts["reviews"],
		"duration", time.Since(start),
	)
	return nil
}

// Reload re-reads the files of the last successful load.
func (a *Analytics) Reload(ctx context.Context) error {
	a.mu.RLock()
	files := a.files
	a.mu.RUnlock()

	if files == (dataset.Files{}) {
		return errors.ServiceUnavailable("no dataset location to reload from")
	}
	return a.LoadFromDir(ctx, files)
}

func (a *Analytics) current() (*dataset.Snapshot, uint64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.snapshot == nil {
		return nil, 0, errors.ServiceUnavailable("dataset not loaded")
	}
	return a.snapshot, a.generation.Load(), nil
}

// Monthly returns the twelve month buckets for the selection.
func (a *Analytics) Monthly(ctx context.Context, sel Selection) (MonthlyReport, error) {
	_, span := observability.StartSpan(ctx, "analytics.monthly")
	defer span.End(a.logger)
	span.SetTag("selection", sel.Key())

	snap, gen, err := a.current()
	if err != nil {
		span.SetError(err)
		return MonthlyReport{}, err
	}

	key := fmt.Sprintf("%d|%s", gen, sel.Key())
	if report, ok := a.monthly.Get(key); ok {
		span.SetTag("cache", "hit")
		return report, nil
	}

	scoped, err := Scope(snap, sel)
	if err != nil {
		span.SetError(err)
		return MonthlyReport{}, err
	}

	report := Monthly(scoped)
	if report.OrphanPayments > 0 {
		a.logger.Debug("payments without a scoped order",
			"selection", sel.Key(),
			"orphans", report.OrphanPayments,
		)
	}

	a.monthly.Set(key, report)
	return report, nil
}

// Cities returns the top n cities by order count and by payment value.
func (a *Analytics) Cities(ctx context.Context, sel Selection, n int) (CityReport, error) {
	_, span := observability.StartSpan(ctx, "analytics.cities")
	defer span.End(a.logger)
	span.SetTag("selection", sel.Key())

	snap, gen, err := a.current()
	if err != nil {
		span.SetError(err)
		return CityReport{}, err
	}

	key := fmt.Sprintf("%d|%s|%d", gen, sel.Key(), n)
	if report, ok := a.cities.Get(key); ok {
		span.SetTag("cache", "hit")
		return report, nil
	}

	scoped, err := Scope(snap, sel)
	if err != nil {
		span.SetError(err)
		return CityReport{}, err
	}

	report, err := Cities(scoped, snap.Customers, n)
	if err != nil {
		span.SetError(err)
		return CityReport{}, err
	}

	a.cities.Set(key, report)
	return report, nil
}

func (a *Analytics) Loaded() bool {
	_, _, err := a.current()
	return err == nil
}

// Years lists the purchase years available for the year selector.
func (a *Analytics) Years() []int {
	snap, _, err := a.current()
	if err != nil {
		return []int{}
	}
	return snap.Years()
}

// DateBounds returns the first and last purchase days for the range
// selector.
func (a *Analytics) DateBounds() (first, last time.Time, ok bool) {
	snap, _, err := a.current()
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return snap.DateBounds()
}

func (a *Analytics) CleanCache() int {
	return a.monthly.CleanExpired() + a.cities.CleanExpired()
}

// Utility method for monitoring
func (a *Analytics) Stats() map[string]any {
	stats := map[string]any{
		"loaded":        false,
		"loads":         a.loads.Load(),
		"monthly_cache": a.monthly.Stats(),
		"cities_cache":  a.cities.Stats(),
	}

	snap, _, err := a.current()
	if err != nil {
		return stats
	}

	stats["loaded"] = true
	stats["loaded_at"] = snap.LoadedAt
	stats["records"] = snap.RecordCounts()
	stats["years"] = snap.Years()
	return stats
}
