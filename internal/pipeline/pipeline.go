package pipeline

import (
	"context"
	"log"
	"time"

	"orders-pipeline/internal/config"
	"orders-pipeline/internal/model"
	"orders-pipeline/internal/store"
	"orders-pipeline/pkg/utils"
)

// RunReport is the consolidated outcome of one full pipeline run.
type RunReport struct {
	RunID              string                  `json:"run_id"`
	Stages             []model.PipelineMetrics `json:"stages"`
	TotalProcessed     int                     `json:"total_processed"`
	TotalFailed        int                     `json:"total_failed"`
	OverallSuccessRate float64                 `json:"overall_success_rate"`
	TotalTimeSeconds   float64                 `json:"total_time_seconds"`
}

// Pipeline sequences ingestion, cleaning, and aggregation. It is the only
// place with cross-stage control flow: a stage failure stops the run, later
// stages never see a half-written predecessor.
type Pipeline struct {
	cfg     config.Config
	store   *store.Store
	source  SourceReader
	logger  *log.Logger
	retries RetryPolicy
}

func New(cfg config.Config, st *store.Store, src SourceReader, logger *log.Logger) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		store:   st,
		source:  src,
		logger:  logger,
		retries: NewRetryPolicy(cfg.Retry),
	}
}

// Stages exposes the stage constructors with the pipeline's wiring, for the
// API's read-only report endpoints.
func (p *Pipeline) Stages() (*Ingestion, *Cleaning, *Aggregation) {
	return NewIngestion(p.source, p.store, p.cfg, p.logger),
		NewCleaning(p.store, p.cfg, p.logger),
		NewAggregation(p.store, p.cfg, p.logger)
}

// Run executes the three stages strictly in order, retrying each whole stage
// per the configured policy, and records progress under runID. On failure the
// remaining stages are skipped and the error is recorded against the run.
func (p *Pipeline) Run(ctx context.Context, runID string) (*RunReport, error) {
	start := time.Now()
	report := &RunReport{RunID: runID}

	if err := p.store.UpdateRunStatus(ctx, runID, "running"); err != nil {
		return nil, err
	}

	ingestion, cleaning, aggregation := p.Stages()
	stages := []struct {
		name string
		run  func(context.Context) (model.PipelineMetrics, error)
	}{
		{"ingestion", ingestion.Run},
		{"cleaning", cleaning.Run},
		{"aggregation", aggregation.Run},
	}

	for _, stage := range stages {
		var metrics model.PipelineMetrics
		err := p.retries.Do(ctx, stage.name, p.logger, func() error {
			var stageErr error
			metrics, stageErr = stage.run(ctx)
			return stageErr
		})
		if err != nil {
			stageErr := &StageError{Stage: stage.name, Err: err}
			p.logger.Printf("%v", stageErr)
			if dbErr := p.store.SaveRunError(ctx, runID, stageErr); dbErr != nil {
				p.logger.Printf("record run error: %v", dbErr)
			}
			if dbErr := p.store.FinishRun(ctx, runID, "failed", report); dbErr != nil {
				p.logger.Printf("record run failure: %v", dbErr)
			}
			return report, stageErr
		}

		report.Stages = append(report.Stages, metrics)
		report.TotalProcessed += metrics.RecordsProcessed
		report.TotalFailed += metrics.RecordsFailed
		p.logger.Printf("stage %s: processed=%d failed=%d success=%.2f%% time=%.2fs",
			metrics.Stage, metrics.RecordsProcessed, metrics.RecordsFailed,
			metrics.SuccessRate(), metrics.ExecutionTimeSeconds)
	}

	report.TotalTimeSeconds = time.Since(start).Seconds()
	report.OverallSuccessRate = utils.SafeDivide(
		float64(report.TotalProcessed)*100,
		float64(report.TotalProcessed+report.TotalFailed),
		0,
	)

	if err := p.store.FinishRun(ctx, runID, "completed", report); err != nil {
		p.logger.Printf("record run completion: %v", err)
	}
	p.logger.Printf("pipeline run %s complete in %s", runID, utils.FormatDuration(time.Since(start)))
	return report, nil
}
