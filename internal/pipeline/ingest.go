package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"orders-pipeline/internal/config"
	"orders-pipeline/internal/model"
	"orders-pipeline/internal/source"
	"orders-pipeline/internal/store"
)

// DocumentStore is the slice of the store the stages depend on.
type DocumentStore interface {
	Drop(ctx context.Context, collection string) error
	BulkInsert(ctx context.Context, collection string, docs []interface{}, ordered bool) (store.BulkResult, error)
	FindAll(ctx context.Context, collection string) ([]json.RawMessage, error)
	Count(ctx context.Context, collection string) (int, error)
	ConfigurePartitioning(ctx context.Context, collection, key string) error
}

// SourceReader is the tabular source collaborator.
type SourceReader interface {
	ReadAll(path string) ([]source.Row, error)
}

// Individually reported validation failures per run; the rest are only
// counted.
const maxReportedFailures = 5

// Ingestion turns the external tabular source into validated, store-resident
// raw records, tracking throughput and failures.
type Ingestion struct {
	source SourceReader
	store  DocumentStore
	cfg    config.Config
	logger *log.Logger
}

func NewIngestion(src SourceReader, st DocumentStore, cfg config.Config, logger *log.Logger) *Ingestion {
	return &Ingestion{source: src, store: st, cfg: cfg, logger: logger}
}

// Run reads the full source, validates each row, and bulk-loads valid rows in
// chunks. A validation failure counts against the stage but never aborts it;
// ingesting zero valid rows is still a successful stage.
func (s *Ingestion) Run(ctx context.Context) (model.PipelineMetrics, error) {
	start := time.Now()
	rawCol := s.cfg.Collections.Raw

	// Full replace: a rerun must not leave rows from a prior generation.
	if err := s.store.Drop(ctx, rawCol); err != nil {
		return model.PipelineMetrics{}, err
	}
	if err := s.store.ConfigurePartitioning(ctx, rawCol, s.cfg.Store.ShardKey); err != nil {
		return model.PipelineMetrics{}, err
	}

	rows, err := s.source.ReadAll(s.cfg.Source.Path)
	if err != nil {
		return model.PipelineMetrics{}, err
	}

	chunkSize := s.cfg.Processing.ChunkSize
	processed := 0
	failed := 0
	batch := make([]interface{}, 0, min(chunkSize, len(rows)))

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		res, err := s.store.BulkInsert(ctx, rawCol, batch, false)
		if err != nil {
			return err
		}
		processed += res.InsertedCount
		failed += len(res.WriteErrors)
		for _, we := range res.WriteErrors {
			s.logger.Printf("bulk insert write error at batch index %d: %s", we.Index, we.Message)
		}
		batch = batch[:0]
		return nil
	}

	for idx, row := range rows {
		rec, verr := model.ValidateRaw(row, idx)
		if verr != nil {
			failed++
			if failed <= maxReportedFailures {
				s.logger.Printf("validation failed: %v", verr)
			}
			continue
		}
		batch = append(batch, rec)
		if len(batch) >= chunkSize {
			if err := flush(); err != nil {
				return model.PipelineMetrics{}, err
			}
		}
	}
	if err := flush(); err != nil {
		return model.PipelineMetrics{}, err
	}

	metrics := model.PipelineMetrics{
		Stage:                "ingestion",
		RecordsProcessed:     processed,
		RecordsFailed:        failed,
		ExecutionTimeSeconds: time.Since(start).Seconds(),
		Timestamp:            time.Now(),
	}
	s.logger.Printf("ingestion complete: %d inserted, %d failed in %.2fs",
		processed, failed, metrics.ExecutionTimeSeconds)
	return metrics, nil
}

// SchemaInfo samples the first stored document and reports its shape.
func (s *Ingestion) SchemaInfo(ctx context.Context) (map[string]interface{}, error) {
	docs, err := s.store.FindAll(ctx, s.cfg.Collections.Raw)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return map[string]interface{}{"error": "no documents found"}, nil
	}
	var sample map[string]interface{}
	if err := json.Unmarshal(docs[0], &sample); err != nil {
		return nil, fmt.Errorf("decode sample document: %w", err)
	}
	fields := make([]string, 0, len(sample))
	for k := range sample {
		fields = append(fields, k)
	}
	return map[string]interface{}{
		"sample_document": sample,
		"field_count":     len(sample),
		"fields":          fields,
	}, nil
}
