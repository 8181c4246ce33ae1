package services

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"sales-dashboard/internal/classify"
	"sales-dashboard/internal/ingest"
	"sales-dashboard/internal/models"
)

const (
	maxWorkers   = 10
	cacheVersion = "v1"
	cacheDir     = ".cache"
)

var (
	// ErrEmptyResultSet means parsing and filtering left no records to
	// aggregate over.
	ErrEmptyResultSet = errors.New("no records after parsing and filtering")

	// ErrMissingDefaultSource means no file was uploaded and the fallback
	// seed file does not exist. Fatal to the session.
	ErrMissingDefaultSource = errors.New("no upload and no default seed file")
)

// UploadFile is one uploaded source, already read into memory.
type UploadFile struct {
	Name   string
	Format string
	Data   []byte
}

// Filter narrows every analysis to a month range and a category subset.
// Zero values mean unbounded / all categories.
type Filter struct {
	FromMonth  string
	ToMonth    string
	Categories []models.Category
}

type seedCache struct {
	Records      []models.SalesRecord
	LastModified time.Time
}

// Analytics owns the session's working record table: concatenated parse
// results from every ingested source, customer-exclusion filtered, with
// categories re-derived whenever the set of distinct product names changes.
type Analytics struct {
	mu         sync.RWMutex
	records    []models.SalesRecord
	mapping    map[string]models.Category
	classifier *classify.Classifier
	excluded   map[string]struct{}
	sources    []string
	modified   time.Time

	recordsIngested atomic.Int64
	droppedExcluded atomic.Int64
	logger          *slog.Logger
}

// NewAnalytics builds an empty table. Excluded customer names are matched
// case-insensitively and exactly against record customers.
func NewAnalytics(classifier *classify.Classifier, excludedCustomers []string, logger *slog.Logger) *Analytics {
	if logger == nil {
		logger = slog.Default()
	}
	excluded := make(map[string]struct{}, len(excludedCustomers))
	for _, name := range excludedCustomers {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			excluded[name] = struct{}{}
		}
	}
	return &Analytics{
		mapping:    map[string]models.Category{},
		classifier: classifier,
		excluded:   excluded,
		logger:     logger,
	}
}

// LoadSeed boots the table from the on-disk seed CSV. A missing seed is
// ErrMissingDefaultSource; the caller decides whether that is fatal (it is
// when nothing has been uploaded).
func (a *Analytics) LoadSeed(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", path, ErrMissingDefaultSource)
		}
		return fmt.Errorf("stat seed: %w", err)
	}

	if cached, err := a.loadFromCache(path); err == nil && info.ModTime().Before(cached.LastModified) {
		a.add(cached.Records)
		a.logger.Info("seed loaded from cache", "path", path, "records", len(cached.Records))
		return nil
	}

	start := time.Now()
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	grid, err := ingest.ReadCSVGrid(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("seed %s: %w", path, err)
	}
	records, err := ingest.Parse(grid, ingest.CleanCSV, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	a.add(records)

	if err := a.saveToCache(path, records); err != nil {
		a.logger.Warn("failed to save seed cache", "error", err)
	}

	a.logger.Info("seed loaded",
		"path", path,
		"records", len(records),
		"duration", time.Since(start))
	return nil
}

// IngestFiles parses uploaded sources in parallel and appends the results
// to the table. Sources that fail structurally (no header row, unreadable
// workbook) contribute zero records and a warning; they never fail the
// batch. The only returned error is context cancellation.
func (a *Analytics) IngestFiles(ctx context.Context, files []UploadFile) (int, []string, error) {
	parsed := make([][]models.SalesRecord, len(files))
	warnings := make([]string, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	for i, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			records, err := parseUpload(file)
			if err != nil {
				warnings[i] = err.Error()
				a.logger.Warn("source skipped", "file", file.Name, "error", err)
				return nil
			}
			parsed[i] = records
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, nil, err
	}

	var records []models.SalesRecord
	for _, batch := range parsed {
		records = append(records, batch...)
	}
	added := a.add(records)

	var kept []string
	for _, w := range warnings {
		if w != "" {
			kept = append(kept, w)
		}
	}

	a.logger.Info("upload ingested",
		"files", len(files),
		"records", added,
		"warnings", len(kept))
	return added, kept, nil
}

func parseUpload(file UploadFile) ([]models.SalesRecord, error) {
	format, ok := ingest.FormatByName(file.Format)
	if !ok {
		// Default by extension: xlsx is the POS invoice export, anything
		// else is treated as the clean CSV layout.
		if strings.EqualFold(filepath.Ext(file.Name), ".xlsx") {
			format = ingest.InvoiceExport
		} else {
			format = ingest.CleanCSV
		}
	}

	var (
		grid ingest.Grid
		err  error
	)
	if strings.EqualFold(filepath.Ext(file.Name), ".xlsx") {
		grid, err = ingest.ReadXLSXGrid(bytes.NewReader(file.Data))
	} else {
		grid, err = ingest.ReadCSVGrid(bytes.NewReader(file.Data))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file.Name, err)
	}

	return ingest.Parse(grid, format, file.Name)
}

// add appends records (minus excluded customers) and re-runs the classifier
// over the table's distinct product names. Returns how many records were
// kept.
func (a *Analytics) add(records []models.SalesRecord) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	added := 0
	for _, rec := range records {
		if _, drop := a.excluded[strings.ToLower(rec.Customer)]; drop {
			a.droppedExcluded.Add(1)
			continue
		}
		a.records = append(a.records, rec)
		if rec.Source != "" && !slices.Contains(a.sources, rec.Source) {
			a.sources = append(a.sources, rec.Source)
		}
		added++
	}

	names := make([]string, 0, len(a.mapping))
	seen := make(map[string]struct{}, len(a.mapping))
	for _, rec := range a.records {
		if _, ok := seen[rec.ProductName]; !ok {
			seen[rec.ProductName] = struct{}{}
			names = append(names, rec.ProductName)
		}
	}
	a.mapping = a.classifier.Classify(names)
	classify.Apply(a.records, a.mapping)

	a.modified = time.Now()
	a.recordsIngested.Add(int64(added))
	return added
}

// filtered returns the records passing the filter. Callers hold at least a
// read lock.
func (a *Analytics) filtered(f Filter) []models.SalesRecord {
	var categories map[models.Category]struct{}
	if len(f.Categories) > 0 {
		categories = make(map[models.Category]struct{}, len(f.Categories))
		for _, c := range f.Categories {
			categories[c] = struct{}{}
		}
	}

	var out []models.SalesRecord
	for _, rec := range a.records {
		if f.FromMonth != "" && rec.Month < f.FromMonth {
			continue
		}
		if f.ToMonth != "" && rec.Month > f.ToMonth {
			continue
		}
		if categories != nil {
			if _, ok := categories[rec.Category]; !ok {
				continue
			}
		}
		out = append(out, rec)
	}
	return out
}

// productKey groups by (category, product).
type productKey struct {
	category models.Category
	product  string
}

// TopProducts returns the N best (or worst, when ascending) sellers per
// category by summed quantity. Ties keep first-seen row order.
func (a *Analytics) TopProducts(f Filter, n int, ascending bool) ([]models.ProductSales, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	records := a.filtered(f)
	if len(records) == 0 {
		return nil, ErrEmptyResultSet
	}

	sums := make(map[productKey]int)
	var order []productKey
	for _, rec := range records {
		key := productKey{rec.Category, rec.ProductName}
		if _, ok := sums[key]; !ok {
			order = append(order, key)
		}
		sums[key] += rec.Quantity
	}

	slices.SortStableFunc(order, func(x, y productKey) int {
		if x.category != y.category {
			if x.category < y.category {
				return -1
			}
			return 1
		}
		if ascending {
			return sums[x] - sums[y]
		}
		return sums[y] - sums[x]
	})

	var out []models.ProductSales
	perCategory := make(map[models.Category]int)
	for _, key := range order {
		if perCategory[key.category] >= n {
			continue
		}
		perCategory[key.category]++
		out = append(out, models.ProductSales{
			Category:    key.category,
			ProductName: key.product,
			Quantity:    sums[key],
		})
	}
	return out, nil
}

// Deadstock lists products whose summed quantity is at or below the
// threshold.
func (a *Analytics) Deadstock(f Filter, threshold int) ([]models.ProductSales, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	records := a.filtered(f)
	if len(records) == 0 {
		return nil, ErrEmptyResultSet
	}

	sums := make(map[string]int)
	category := make(map[string]models.Category)
	var order []string
	for _, rec := range records {
		if _, ok := sums[rec.ProductName]; !ok {
			order = append(order, rec.ProductName)
			category[rec.ProductName] = rec.Category
		}
		sums[rec.ProductName] += rec.Quantity
	}

	sort.Strings(order)

	var out []models.ProductSales
	for _, product := range order {
		if sums[product] > threshold {
			continue
		}
		out = append(out, models.ProductSales{
			Category:    category[product],
			ProductName: product,
			Quantity:    sums[product],
		})
	}
	return out, nil
}

// CityPivot pivots summed quantity by product and city.
func (a *Analytics) CityPivot(f Filter) (models.CityPivot, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	records := a.filtered(f)
	if len(records) == 0 {
		return models.CityPivot{}, ErrEmptyResultSet
	}

	citySet := make(map[string]struct{})
	rows := make(map[string]map[string]int)
	for _, rec := range records {
		citySet[rec.City] = struct{}{}
		if rows[rec.ProductName] == nil {
			rows[rec.ProductName] = make(map[string]int)
		}
		rows[rec.ProductName][rec.City] += rec.Quantity
	}

	cities := make([]string, 0, len(citySet))
	for city := range citySet {
		cities = append(cities, city)
	}
	sort.Strings(cities)

	products := make([]string, 0, len(rows))
	for product := range rows {
		products = append(products, product)
	}
	sort.Strings(products)

	pivot := models.CityPivot{Cities: cities}
	for _, product := range products {
		row := models.CityPivotRow{
			ProductName: product,
			Quantities:  rows[product],
		}
		for _, qty := range rows[product] {
			row.Total += qty
		}
		pivot.Rows = append(pivot.Rows, row)
	}
	return pivot, nil
}

// MonthlyTrend sums revenue per month, chronologically.
func (a *Analytics) MonthlyTrend(f Filter) ([]models.MonthlySales, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	records := a.filtered(f)
	if len(records) == 0 {
		return nil, ErrEmptyResultSet
	}

	sums := make(map[string]int64)
	for _, rec := range records {
		sums[rec.Month] += rec.TotalPrice
	}

	months := make([]string, 0, len(sums))
	for month := range sums {
		months = append(months, month)
	}
	sort.Strings(months)

	out := make([]models.MonthlySales, 0, len(months))
	for _, month := range months {
		out = append(out, models.MonthlySales{Month: month, Revenue: sums[month]})
	}
	return out, nil
}

// ABC ranks products by revenue and classifies them by cumulative share of
// the grand total: A up to 80%, B up to 95%, C the rest.
func (a *Analytics) ABC(f Filter) (models.ABCReport, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	records := a.filtered(f)
	if len(records) == 0 {
		return models.ABCReport{}, ErrEmptyResultSet
	}

	sums := make(map[string]int64)
	var order []string
	var grandTotal int64
	for _, rec := range records {
		if _, ok := sums[rec.ProductName]; !ok {
			order = append(order, rec.ProductName)
		}
		sums[rec.ProductName] += rec.TotalPrice
		grandTotal += rec.TotalPrice
	}

	slices.SortStableFunc(order, func(x, y string) int {
		switch {
		case sums[x] > sums[y]:
			return -1
		case sums[x] < sums[y]:
			return 1
		default:
			return 0
		}
	})

	report := models.ABCReport{}
	classTotals := map[string]*models.ABCSummary{}
	var cumulative float64
	for _, product := range order {
		percentage := 0.0
		if grandTotal > 0 {
			percentage = 100 * float64(sums[product]) / float64(grandTotal)
		}
		cumulative += percentage

		class := "C"
		switch {
		case cumulative <= 80:
			class = "A"
		case cumulative <= 95:
			class = "B"
		}

		report.Entries = append(report.Entries, models.ABCEntry{
			ProductName: product,
			Revenue:     sums[product],
			Percentage:  percentage,
			Cumulative:  cumulative,
			Class:       class,
		})

		if classTotals[class] == nil {
			classTotals[class] = &models.ABCSummary{Class: class}
		}
		classTotals[class].ProductCount++
		classTotals[class].Revenue += sums[product]
	}

	for _, class := range []string{"A", "B", "C"} {
		summary := classTotals[class]
		if summary == nil {
			continue
		}
		if grandTotal > 0 {
			summary.Contribution = 100 * float64(summary.Revenue) / float64(grandTotal)
		}
		report.Summaries = append(report.Summaries, *summary)
	}
	return report, nil
}

// Loyalty tiers customers by distinct transaction days or total transaction
// count. The month range applies; the category filter does not — loyalty
// describes the customer, not the product mix.
func (a *Analytics) Loyalty(f Filter, metric models.LoyaltyMetric) (models.LoyaltyReport, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	records := a.filtered(Filter{FromMonth: f.FromMonth, ToMonth: f.ToMonth})
	if len(records) == 0 {
		return models.LoyaltyReport{}, ErrEmptyResultSet
	}

	type customerStats struct {
		days         map[string]struct{}
		transactions int
		revenue      int64
	}
	stats := make(map[string]*customerStats)
	var order []string
	for _, rec := range records {
		cs := stats[rec.Customer]
		if cs == nil {
			cs = &customerStats{days: make(map[string]struct{})}
			stats[rec.Customer] = cs
			order = append(order, rec.Customer)
		}
		cs.days[rec.Date.Format("2006-01-02")] = struct{}{}
		cs.transactions++
		cs.revenue += rec.TotalPrice
	}

	report := models.LoyaltyReport{Metric: metric}
	tierMembers := map[string][]string{}
	for _, customer := range order {
		cs := stats[customer]
		count := cs.transactions
		if metric == models.LoyaltyByDays {
			count = len(cs.days)
		}
		tier := loyaltyTier(count)
		report.Customers = append(report.Customers, models.CustomerLoyalty{
			Customer:        customer,
			TransactionDays: len(cs.days),
			Transactions:    cs.transactions,
			Revenue:         cs.revenue,
			Tier:            tier,
		})
		tierMembers[tier] = append(tierMembers[tier], customer)
	}

	slices.SortStableFunc(report.Customers, func(x, y models.CustomerLoyalty) int {
		switch {
		case x.Revenue > y.Revenue:
			return -1
		case x.Revenue < y.Revenue:
			return 1
		default:
			return 0
		}
	})

	for _, tier := range []string{models.TierVeryLoyal, models.TierLoyal, models.TierPotentialLoyal, models.TierNew} {
		members := tierMembers[tier]
		sort.Strings(members)
		report.Tiers = append(report.Tiers, models.LoyaltyTier{
			Tier:          tier,
			CustomerCount: len(members),
			Customers:     members,
		})
	}
	return report, nil
}

func loyaltyTier(count int) string {
	switch {
	case count >= 4:
		return models.TierVeryLoyal
	case count == 3:
		return models.TierLoyal
	case count == 2:
		return models.TierPotentialLoyal
	default:
		return models.TierNew
	}
}

// Summary computes the KPI tile block over the filtered table.
func (a *Analytics) Summary(f Filter) (models.Summary, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	records := a.filtered(f)
	if len(records) == 0 {
		return models.Summary{}, ErrEmptyResultSet
	}

	customers := make(map[string]struct{})
	products := make(map[string]struct{})
	summary := models.Summary{Records: len(records)}
	for _, rec := range records {
		summary.TotalRevenue += rec.TotalPrice
		customers[rec.Customer] = struct{}{}
		products[rec.ProductName] = struct{}{}
	}
	summary.UniqueCustomers = len(customers)
	summary.UniqueProducts = len(products)
	return summary, nil
}

// Months lists the distinct months present, sorted, for the range filter
// widgets.
func (a *Analytics) Months() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, rec := range a.records {
		if rec.Month != "" {
			seen[rec.Month] = struct{}{}
		}
	}
	months := make([]string, 0, len(seen))
	for month := range seen {
		months = append(months, month)
	}
	sort.Strings(months)
	return months
}

// Categories lists the distinct categories present in the table, sorted.
func (a *Analytics) Categories() []models.Category {
	a.mu.RLock()
	defer a.mu.RUnlock()

	seen := make(map[models.Category]struct{})
	for _, rec := range a.records {
		seen[rec.Category] = struct{}{}
	}
	categories := make([]models.Category, 0, len(seen))
	for category := range seen {
		categories = append(categories, category)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })
	return categories
}

// RecordCount reports the size of the working table.
func (a *Analytics) RecordCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.records)
}

// ClassifierReview reports category-table entries that matched no observed
// product name, for data-owner review of whitespace-damaged entries.
func (a *Analytics) ClassifierReview() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make([]string, 0, len(a.mapping))
	for name := range a.mapping {
		names = append(names, name)
	}
	return a.classifier.UnmatchedTableEntries(names)
}

// Stats is the admin monitoring snapshot.
func (a *Analytics) Stats() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return map[string]any{
		"records":           len(a.records),
		"records_ingested":  a.recordsIngested.Load(),
		"dropped_excluded":  a.droppedExcluded.Load(),
		"sources":           append([]string(nil), a.sources...),
		"distinct_products": len(a.mapping),
		"last_modified":     a.modified,
	}
}

// Seed cache: gob under .cache, invalidated by the seed file's mtime.
func (a *Analytics) cacheFilename(path string) string {
	return fmt.Sprintf("%s/%s_%s.gob", cacheDir, strings.ReplaceAll(path, string(os.PathSeparator), "_"), cacheVersion)
}

func (a *Analytics) saveToCache(path string, records []models.SalesRecord) error {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return err
	}

	file, err := os.Create(a.cacheFilename(path))
	if err != nil {
		return err
	}
	defer file.Close()

	return gob.NewEncoder(file).Encode(seedCache{
		Records:      records,
		LastModified: time.Now(),
	})
}

func (a *Analytics) loadFromCache(path string) (seedCache, error) {
	file, err := os.Open(a.cacheFilename(path))
	if err != nil {
		return seedCache{}, err
	}
	defer file.Close()

	var cached seedCache
	if err := gob.NewDecoder(file).Decode(&cached); err != nil {
		return seedCache{}, err
	}
	return cached, nil
}
