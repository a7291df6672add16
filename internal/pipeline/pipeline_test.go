package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"orders-pipeline/internal/model"
	"orders-pipeline/internal/source"
	"orders-pipeline/pkg/logger"
)

func TestPipelineRunEndToEnd(t *testing.T) {
	t.Parallel()

	csvPath := writeCSV(t, fixtureHeader+
		"1,ORD-1,PROD-1,Laptop,Electronics,999.99,1,2024-01-15,complete\n"+
		"1,ORD-1,PROD-1,Laptop,Electronics,999.99,1,2024-01-15,complete\n"+ // duplicate
		"2,ORD-2,PROD-2,Mouse,Electronics,29.99,2,2024-01-16,PENDING\n"+
		"3,ORD-3,PROD-3,T-Shirt,Clothing,25.00,1,2024-02-01,canceled\n"+
		"4,ORD-4,PROD-4,Mug,Home,8.00,0,2024-02-02,completed\n") // dropped at ingestion
	cfg := testConfig(t, csvPath)
	st := openStore(t, cfg)
	log := logger.NewWithWriter("test", io.Discard)

	p := New(cfg, st, source.NewCSVReader(log), log)
	ctx := context.Background()
	if err := st.SaveRun(ctx, "run-1"); err != nil {
		t.Fatalf("save run: %v", err)
	}

	report, err := p.Run(ctx, "run-1")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(report.Stages) != 3 {
		t.Fatalf("expected 3 stages, got %d", len(report.Stages))
	}
	for i, name := range []string{"ingestion", "cleaning", "aggregation"} {
		if report.Stages[i].Stage != name {
			t.Fatalf("stage %d: %q", i, report.Stages[i].Stage)
		}
	}
	// 5 source rows: one invalid, one duplicate of another
	if report.Stages[0].RecordsProcessed != 4 || report.Stages[0].RecordsFailed != 1 {
		t.Fatalf("ingestion metrics: %+v", report.Stages[0])
	}
	if report.Stages[1].RecordsProcessed != 3 || report.Stages[1].RecordsFailed != 1 {
		t.Fatalf("cleaning metrics: %+v", report.Stages[1])
	}

	n, err := st.Count(ctx, cfg.Collections.Clean)
	if err != nil {
		t.Fatalf("count clean: %v", err)
	}
	if n != 3 {
		t.Fatalf("clean collection: %d rows", n)
	}

	// synonyms resolved before the rollups see them
	docs, err := st.FindAll(ctx, cfg.Collections.Aggregated+"_status")
	if err != nil {
		t.Fatalf("find status rollup: %v", err)
	}
	statuses := make(map[string]bool)
	for _, doc := range docs {
		var rec model.AggregateRecord
		if err := json.Unmarshal(doc, &rec); err != nil {
			t.Fatalf("decode rollup: %v", err)
		}
		statuses[rec.ID] = true
	}
	for _, want := range []string{"completed", "pending", "cancelled"} {
		if !statuses[want] {
			t.Fatalf("status rollup missing %q: %v", want, statuses)
		}
	}

	for _, suffix := range []string{"category", "month", "user", "day_of_week"} {
		n, err := st.Count(ctx, cfg.Collections.Aggregated+"_"+suffix)
		if err != nil {
			t.Fatalf("count %s rollup: %v", suffix, err)
		}
		if n == 0 {
			t.Fatalf("rollup %s is empty", suffix)
		}
	}

	detail, err := st.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if detail.Status != "completed" {
		t.Fatalf("run status: %q", detail.Status)
	}
	var persisted RunReport
	if err := json.Unmarshal(detail.Report, &persisted); err != nil {
		t.Fatalf("decode persisted report: %v", err)
	}
	if persisted.RunID != "run-1" || len(persisted.Stages) != 3 {
		t.Fatalf("persisted report: %+v", persisted)
	}
}

func TestPipelineRunStopsOnStageFailure(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, filepath.Join(t.TempDir(), "missing.csv"))
	st := openStore(t, cfg)
	log := logger.NewWithWriter("test", io.Discard)

	p := New(cfg, st, source.NewCSVReader(log), log)
	ctx := context.Background()
	if err := st.SaveRun(ctx, "run-1"); err != nil {
		t.Fatalf("save run: %v", err)
	}

	_, err := p.Run(ctx, "run-1")
	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("expected StageError, got %v", err)
	}
	if stageErr.Stage != "ingestion" {
		t.Fatalf("failing stage: %q", stageErr.Stage)
	}
	if !errors.Is(err, source.ErrNotFound) {
		t.Fatalf("expected wrapped ErrNotFound, got %v", err)
	}

	detail, err := st.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if detail.Status != "failed" {
		t.Fatalf("run status: %q", detail.Status)
	}
	errs, err := st.ListRunErrors(ctx, "run-1")
	if err != nil {
		t.Fatalf("list run errors: %v", err)
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 recorded error, got %d", len(errs))
	}

	// cleaning and aggregation never ran
	if n, _ := st.Count(ctx, cfg.Collections.Clean); n != 0 {
		t.Fatalf("clean collection written after failure: %d rows", n)
	}
}
