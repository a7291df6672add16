package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"orders-pipeline/internal/config"
	"orders-pipeline/internal/pipeline"
	"orders-pipeline/internal/source"
	"orders-pipeline/internal/store"
	"orders-pipeline/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "pipeline failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	lg := logger.New("pipeline")
	ctx := context.Background()

	st, err := store.Open(cfg.Store.Path, logger.New("store"))
	if err != nil {
		return err
	}
	defer st.Close()

	reader := source.NewCSVReader(logger.New("source"))
	p := pipeline.New(cfg, st, reader, lg)

	runID := uuid.New().String()
	if err := st.SaveRun(ctx, runID); err != nil {
		return err
	}

	lg.Printf("starting pipeline run %s", runID)
	lg.Printf("store: %s, source: %s", cfg.Store.Path, cfg.Source.Path)

	report, err := p.Run(ctx, runID)
	if err != nil {
		return err
	}

	_, cleaning, aggregation := p.Stages()
	quality, err := cleaning.QualityReport(ctx)
	if err != nil {
		return err
	}
	summary, err := aggregation.Summary(ctx)
	if err != nil {
		return err
	}

	lg.Println("============================================================")
	lg.Println("PIPELINE EXECUTION SUMMARY")
	lg.Println("============================================================")
	for _, m := range report.Stages {
		lg.Printf("stage %-12s processed=%-10d failed=%-8d success=%6.2f%% time=%.2fs",
			m.Stage, m.RecordsProcessed, m.RecordsFailed, m.SuccessRate(), m.ExecutionTimeSeconds)
	}
	lg.Printf("total processed: %d", report.TotalProcessed)
	lg.Printf("total failed: %d", report.TotalFailed)
	lg.Printf("overall success rate: %.2f%%", report.OverallSuccessRate)
	lg.Printf("total time: %.2fs", report.TotalTimeSeconds)
	lg.Printf("clean rows: %d, total revenue: %.2f, avg price: %.2f",
		quality.TotalRows, quality.NumericStats.TotalRevenue, quality.NumericStats.AvgPrice)
	lg.Printf("unique users: %d, unique categories: %d, dates %s .. %s",
		summary.UniqueUsers, summary.UniqueCategories, summary.DateRangeStart, summary.DateRangeEnd)
	return nil
}
