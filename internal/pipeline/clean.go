package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"orders-pipeline/internal/config"
	"orders-pipeline/internal/model"
	"orders-pipeline/pkg/utils"
)

// statusSynonyms is the single place raw status spellings map into the closed
// enumeration. Anything not listed here becomes "unknown".
var statusSynonyms = map[string]string{
	"completed": "completed",
	"complete":  "completed",
	"done":      "completed",
	"pending":   "pending",
	"processing": "pending",
	"cancelled": "cancelled",
	"canceled":  "cancelled",
	"returned":  "returned",
	"refunded":  "returned",
}

const (
	defaultProductName = "Unknown Product"
	defaultCategory    = "Uncategorized"
	defaultStatus      = "unknown"
)

// dateLayouts are the order-date formats the source feed is known to use.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"02-01-2006",
}

// Cleaning is the deterministic transform from the full raw set to the full
// clean set.
type Cleaning struct {
	store  DocumentStore
	cfg    config.Config
	logger *log.Logger
}

func NewCleaning(st DocumentStore, cfg config.Config, logger *log.Logger) *Cleaning {
	return &Cleaning{store: st, cfg: cfg, logger: logger}
}

// Clean applies the transform steps in their fixed order: dedup, default
// fills, critical-null drops, text normalization, status mapping, date
// parsing, derivation, and the final invalid-row drop. Rows whose date fails
// to parse are carried to the final drop so no derived value is computed from
// garbage.
//
// Metrics count every dropped row as failed, duplicates included. That
// conflates quality issues with intentional dedup and is preserved as
// documented behavior.
func (s *Cleaning) Clean(records []model.RawRecord) ([]model.CleanRecord, model.PipelineMetrics) {
	start := time.Now()
	initial := len(records)

	// 1. exact-duplicate rows collapse to one
	seen := make(map[string]struct{}, len(records))
	deduped := make([]model.RawRecord, 0, len(records))
	for _, rec := range records {
		key, err := json.Marshal(rec)
		if err != nil {
			continue
		}
		if _, dup := seen[string(key)]; dup {
			continue
		}
		seen[string(key)] = struct{}{}
		deduped = append(deduped, rec)
	}
	s.logger.Printf("removed %d duplicate rows", initial-len(deduped))

	out := make([]model.CleanRecord, 0, len(deduped))
	for _, rec := range deduped {
		// 2. defaults for missing optional fields
		productName := stringOr(rec.ProductName, defaultProductName)
		category := stringOr(rec.Category, defaultCategory)
		status := stringOr(rec.Status, defaultStatus)

		// 3. null in any critical field drops the row
		if rec.UserID == nil || rec.OrderID == nil || rec.ProductID == nil ||
			rec.Price == nil || rec.Quantity == nil {
			continue
		}

		// 4. text normalization
		productName = utils.CollapseSpaces(productName)
		category = utils.TitleCase(utils.CollapseSpaces(category))
		status = strings.ToLower(utils.CollapseSpaces(status))

		// 5. synonym table, unknown fallback
		mapped, ok := statusSynonyms[status]
		if !ok {
			mapped = defaultStatus
		}

		// 6. date parse failures are flagged, not dropped yet
		orderDate, dateOK := parseOrderDate(stringOr(rec.OrderDate, ""))

		// 7. derived fields
		c := model.CleanRecord{
			UserID:      *rec.UserID,
			OrderID:     *rec.OrderID,
			ProductID:   *rec.ProductID,
			ProductName: productName,
			Category:    category,
			Price:       *rec.Price,
			Quantity:    *rec.Quantity,
			Status:      mapped,
			TotalAmount: utils.Round2(*rec.Price * float64(*rec.Quantity)),
		}
		if dateOK {
			c.OrderDate = orderDate
			c.Year = orderDate.Year()
			c.Month = int(orderDate.Month())
			c.DayOfWeek = orderDate.Weekday().String()
		}

		// 8. invariant enforcement: invalid rows are dropped, never coerced
		if c.Price < 0 || c.Quantity <= 0 || c.UserID <= 0 || !dateOK {
			continue
		}
		out = append(out, c)
	}

	metrics := model.PipelineMetrics{
		Stage:                "cleaning",
		RecordsProcessed:     len(out),
		RecordsFailed:        initial - len(out),
		ExecutionTimeSeconds: time.Since(start).Seconds(),
		Timestamp:            time.Now(),
	}
	return out, metrics
}

// Run reads the raw collection, cleans it, and fully replaces the clean
// collection (drop, then batched bulk inserts).
func (s *Cleaning) Run(ctx context.Context) (model.PipelineMetrics, error) {
	start := time.Now()

	docs, err := s.store.FindAll(ctx, s.cfg.Collections.Raw)
	if err != nil {
		return model.PipelineMetrics{}, err
	}
	records := make([]model.RawRecord, 0, len(docs))
	for _, doc := range docs {
		var rec model.RawRecord
		if err := json.Unmarshal(doc, &rec); err != nil {
			return model.PipelineMetrics{}, fmt.Errorf("decode raw record: %w", err)
		}
		records = append(records, rec)
	}

	cleaned, metrics := s.Clean(records)

	cleanCol := s.cfg.Collections.Clean
	if err := s.store.Drop(ctx, cleanCol); err != nil {
		return model.PipelineMetrics{}, err
	}
	batchSize := s.cfg.Processing.BatchSize
	for i := 0; i < len(cleaned); i += batchSize {
		end := min(i+batchSize, len(cleaned))
		batch := make([]interface{}, 0, end-i)
		for _, rec := range cleaned[i:end] {
			batch = append(batch, rec)
		}
		if _, err := s.store.BulkInsert(ctx, cleanCol, batch, false); err != nil {
			return model.PipelineMetrics{}, err
		}
	}

	metrics.ExecutionTimeSeconds = time.Since(start).Seconds()
	metrics.Timestamp = time.Now()
	s.logger.Printf("cleaning complete: %d records kept, %d dropped in %.2fs",
		metrics.RecordsProcessed, metrics.RecordsFailed, metrics.ExecutionTimeSeconds)
	return metrics, nil
}

// QualityReport summarizes the current clean set. Read-only, no side effects.
type QualityReport struct {
	TotalRows      int            `json:"total_rows"`
	NullCounts     map[string]int `json:"null_counts"`
	DistinctCounts struct {
		Category int `json:"category"`
		Status   int `json:"status"`
	} `json:"distinct_counts"`
	NumericStats struct {
		AvgPrice     float64 `json:"avg_price"`
		MinPrice     float64 `json:"min_price"`
		MaxPrice     float64 `json:"max_price"`
		TotalRevenue float64 `json:"total_revenue"`
	} `json:"numeric_stats"`
}

func (s *Cleaning) QualityReport(ctx context.Context) (QualityReport, error) {
	docs, err := s.store.FindAll(ctx, s.cfg.Collections.Clean)
	if err != nil {
		return QualityReport{}, err
	}

	report := QualityReport{
		TotalRows:  len(docs),
		NullCounts: make(map[string]int),
	}
	categories := make(map[string]struct{})
	statuses := make(map[string]struct{})
	var priceSum float64
	first := true

	for _, doc := range docs {
		var fields map[string]interface{}
		if err := json.Unmarshal(doc, &fields); err != nil {
			return QualityReport{}, fmt.Errorf("decode clean record: %w", err)
		}
		for k, v := range fields {
			if v == nil {
				report.NullCounts[k]++
			}
		}

		var rec model.CleanRecord
		if err := json.Unmarshal(doc, &rec); err != nil {
			return QualityReport{}, fmt.Errorf("decode clean record: %w", err)
		}
		categories[rec.Category] = struct{}{}
		statuses[rec.Status] = struct{}{}
		priceSum += rec.Price
		report.NumericStats.TotalRevenue += rec.TotalAmount
		if first || rec.Price < report.NumericStats.MinPrice {
			report.NumericStats.MinPrice = rec.Price
		}
		if first || rec.Price > report.NumericStats.MaxPrice {
			report.NumericStats.MaxPrice = rec.Price
		}
		first = false
	}

	report.DistinctCounts.Category = len(categories)
	report.DistinctCounts.Status = len(statuses)
	report.NumericStats.AvgPrice = utils.SafeDivide(priceSum, float64(len(docs)), 0)
	report.NumericStats.TotalRevenue = utils.Round2(report.NumericStats.TotalRevenue)
	return report, nil
}

func parseOrderDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func stringOr(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}
