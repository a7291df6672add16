package model

import "time"

// PipelineMetrics is the per-stage outcome record. It is constructed once when
// a stage finishes and never mutated.
type PipelineMetrics struct {
	Stage                string    `json:"stage"`
	RecordsProcessed     int       `json:"records_processed"`
	RecordsFailed        int       `json:"records_failed"`
	ExecutionTimeSeconds float64   `json:"execution_time_seconds"`
	Timestamp            time.Time `json:"timestamp"`
}

// SuccessRate returns processed/(processed+failed) as a percentage, or 0 when
// the stage saw no records at all.
func (m PipelineMetrics) SuccessRate() float64 {
	total := m.RecordsProcessed + m.RecordsFailed
	if total == 0 {
		return 0
	}
	return float64(m.RecordsProcessed) / float64(total) * 100
}
