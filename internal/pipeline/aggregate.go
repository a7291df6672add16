package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strconv"
	"time"

	"orders-pipeline/internal/config"
	"orders-pipeline/internal/model"
	"orders-pipeline/pkg/utils"
)

// topCustomers caps the by-user rollup; customers beyond this rank are
// silently excluded from that rollup only.
const topCustomers = 1000

// weekdayOrder fixes the day-of-week rollup ordering, Monday first.
var weekdayOrder = map[string]int{
	"Monday": 0, "Tuesday": 1, "Wednesday": 2, "Thursday": 3,
	"Friday": 4, "Saturday": 5, "Sunday": 6,
}

const dateStampLayout = "2006-01-02 15:04:05"

// Rollup is one named aggregate set, written to its own collection.
type Rollup struct {
	Name    string
	Records []model.AggregateRecord
}

// Aggregation computes the five rollups from the current clean set and
// persists each, replacing prior contents.
type Aggregation struct {
	store  DocumentStore
	cfg    config.Config
	logger *log.Logger
}

func NewAggregation(st DocumentStore, cfg config.Config, logger *log.Logger) *Aggregation {
	return &Aggregation{store: st, cfg: cfg, logger: logger}
}

// group accumulates one rollup bucket.
type group struct {
	id         string
	orders     int
	revenue    float64
	quantity   int64
	users      map[int64]struct{}
	categories map[string]struct{}
	firstDate  time.Time
	lastDate   time.Time
}

func groupBy(records []model.CleanRecord, key func(model.CleanRecord) string) []*group {
	byID := make(map[string]*group)
	var order []string
	for _, rec := range records {
		id := key(rec)
		g, ok := byID[id]
		if !ok {
			g = &group{
				id:         id,
				users:      make(map[int64]struct{}),
				categories: make(map[string]struct{}),
				firstDate:  rec.OrderDate,
				lastDate:   rec.OrderDate,
			}
			byID[id] = g
			order = append(order, id)
		}
		g.orders++
		g.revenue += rec.TotalAmount
		g.quantity += rec.Quantity
		g.users[rec.UserID] = struct{}{}
		g.categories[rec.Category] = struct{}{}
		if rec.OrderDate.Before(g.firstDate) {
			g.firstDate = rec.OrderDate
		}
		if rec.OrderDate.After(g.lastDate) {
			g.lastDate = rec.OrderDate
		}
	}
	groups := make([]*group, 0, len(byID))
	for _, id := range order {
		groups = append(groups, byID[id])
	}
	return groups
}

// base builds the shared aggregate columns. Monetary values are rounded once,
// after the sums are complete.
func (g *group) base() model.AggregateRecord {
	return model.AggregateRecord{
		ID:            g.id,
		TotalOrders:   g.orders,
		TotalRevenue:  utils.Round2(g.revenue),
		AvgOrderValue: utils.Round2(utils.SafeDivide(g.revenue, float64(g.orders), 0)),
		TotalQuantity: g.quantity,
	}
}

// Aggregate computes all five rollups. Processed counts the output rows of
// every rollup; aggregation never rejects rows, so failed is always zero.
func (s *Aggregation) Aggregate(records []model.CleanRecord) ([]Rollup, model.PipelineMetrics) {
	start := time.Now()

	rollups := []Rollup{
		{Name: "category", Records: s.byCategory(records)},
		{Name: "month", Records: s.byMonth(records)},
		{Name: "status", Records: s.byStatus(records)},
		{Name: "user", Records: s.byUser(records)},
		{Name: "day_of_week", Records: s.byWeekday(records)},
	}

	total := 0
	for _, r := range rollups {
		total += len(r.Records)
	}
	metrics := model.PipelineMetrics{
		Stage:                "aggregation",
		RecordsProcessed:     total,
		RecordsFailed:        0,
		ExecutionTimeSeconds: time.Since(start).Seconds(),
		Timestamp:            time.Now(),
	}
	return rollups, metrics
}

func (s *Aggregation) byCategory(records []model.CleanRecord) []model.AggregateRecord {
	groups := groupBy(records, func(r model.CleanRecord) string { return r.Category })
	out := make([]model.AggregateRecord, 0, len(groups))
	for _, g := range groups {
		rec := g.base()
		rec.UniqueCustomers = len(g.users)
		rec.FirstOrderDate = g.firstDate.Format(dateStampLayout)
		rec.LastOrderDate = g.lastDate.Format(dateStampLayout)
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalRevenue != out[j].TotalRevenue {
			return out[i].TotalRevenue > out[j].TotalRevenue
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Aggregation) byMonth(records []model.CleanRecord) []model.AggregateRecord {
	groups := groupBy(records, func(r model.CleanRecord) string {
		return fmt.Sprintf("%04d-%02d", r.Year, r.Month)
	})
	out := make([]model.AggregateRecord, 0, len(groups))
	for _, g := range groups {
		rec := g.base()
		rec.UniqueCustomers = len(g.users)
		out = append(out, rec)
	}
	// lexicographic on YYYY-MM is chronological
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Aggregation) byStatus(records []model.CleanRecord) []model.AggregateRecord {
	groups := groupBy(records, func(r model.CleanRecord) string { return r.Status })
	out := make([]model.AggregateRecord, 0, len(groups))
	for _, g := range groups {
		rec := g.base()
		rec.UniqueCustomers = len(g.users)
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalOrders != out[j].TotalOrders {
			return out[i].TotalOrders > out[j].TotalOrders
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Aggregation) byUser(records []model.CleanRecord) []model.AggregateRecord {
	groups := groupBy(records, func(r model.CleanRecord) string {
		return strconv.FormatInt(r.UserID, 10)
	})
	out := make([]model.AggregateRecord, 0, len(groups))
	for _, g := range groups {
		rec := g.base()
		rec.FirstOrderDate = g.firstDate.Format(dateStampLayout)
		rec.LastOrderDate = g.lastDate.Format(dateStampLayout)
		rec.CategoriesPurchased = len(g.categories)
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalRevenue != out[j].TotalRevenue {
			return out[i].TotalRevenue > out[j].TotalRevenue
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > topCustomers {
		out = out[:topCustomers]
	}
	return out
}

func (s *Aggregation) byWeekday(records []model.CleanRecord) []model.AggregateRecord {
	groups := groupBy(records, func(r model.CleanRecord) string { return r.DayOfWeek })
	out := make([]model.AggregateRecord, 0, len(groups))
	for _, g := range groups {
		rec := g.base()
		rec.UniqueCustomers = len(g.users)
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return weekdayOrder[out[i].ID] < weekdayOrder[out[j].ID]
	})
	return out
}

// Run reads the clean set, computes the rollups, and fully replaces each
// rollup collection.
func (s *Aggregation) Run(ctx context.Context) (model.PipelineMetrics, error) {
	start := time.Now()

	records, err := s.readClean(ctx)
	if err != nil {
		return model.PipelineMetrics{}, err
	}

	rollups, metrics := s.Aggregate(records)
	for _, rollup := range rollups {
		col := s.cfg.Collections.Aggregated + "_" + rollup.Name
		if err := s.store.Drop(ctx, col); err != nil {
			return model.PipelineMetrics{}, err
		}
		docs := make([]interface{}, 0, len(rollup.Records))
		for _, rec := range rollup.Records {
			docs = append(docs, rec)
		}
		if _, err := s.store.BulkInsert(ctx, col, docs, false); err != nil {
			return model.PipelineMetrics{}, err
		}
		s.logger.Printf("rollup %s: %d rows written to %s", rollup.Name, len(rollup.Records), col)
	}

	metrics.ExecutionTimeSeconds = time.Since(start).Seconds()
	metrics.Timestamp = time.Now()
	s.logger.Printf("aggregation complete: %d rollup rows in %.2fs",
		metrics.RecordsProcessed, metrics.ExecutionTimeSeconds)
	return metrics, nil
}

// Summary is a read-only snapshot over the current clean set.
type Summary struct {
	TotalRecords     int     `json:"total_records"`
	UniqueUsers      int     `json:"unique_users"`
	UniqueCategories int     `json:"unique_categories"`
	TotalRevenue     float64 `json:"total_revenue"`
	AvgOrderValue    float64 `json:"avg_order_value"`
	DateRangeStart   string  `json:"date_range_start"`
	DateRangeEnd     string  `json:"date_range_end"`
}

func (s *Aggregation) Summary(ctx context.Context) (Summary, error) {
	records, err := s.readClean(ctx)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{TotalRecords: len(records)}
	if len(records) == 0 {
		return summary, nil
	}

	users := make(map[int64]struct{})
	categories := make(map[string]struct{})
	var revenue float64
	minDate, maxDate := records[0].OrderDate, records[0].OrderDate
	for _, rec := range records {
		users[rec.UserID] = struct{}{}
		categories[rec.Category] = struct{}{}
		revenue += rec.TotalAmount
		if rec.OrderDate.Before(minDate) {
			minDate = rec.OrderDate
		}
		if rec.OrderDate.After(maxDate) {
			maxDate = rec.OrderDate
		}
	}
	summary.UniqueUsers = len(users)
	summary.UniqueCategories = len(categories)
	summary.TotalRevenue = utils.Round2(revenue)
	summary.AvgOrderValue = utils.Round2(revenue / float64(len(records)))
	summary.DateRangeStart = minDate.Format(dateStampLayout)
	summary.DateRangeEnd = maxDate.Format(dateStampLayout)
	return summary, nil
}

func (s *Aggregation) readClean(ctx context.Context) ([]model.CleanRecord, error) {
	docs, err := s.store.FindAll(ctx, s.cfg.Collections.Clean)
	if err != nil {
		return nil, err
	}
	records := make([]model.CleanRecord, 0, len(docs))
	for _, doc := range docs {
		var rec model.CleanRecord
		if err := json.Unmarshal(doc, &rec); err != nil {
			return nil, fmt.Errorf("decode clean record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}
