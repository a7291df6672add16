package pipeline

import (
	"errors"
	"fmt"

	"orders-pipeline/internal/source"
	"orders-pipeline/internal/store"
)

// StageError wraps any failure that aborted a stage, carrying the stage name
// for the driver's report. The driver never runs later stages after one fails.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// DefaultRetryable is the driver's retry predicate: store connectivity
// problems are worth another attempt, a missing source or any deterministic
// stage failure is not.
func DefaultRetryable(err error) bool {
	if errors.Is(err, source.ErrNotFound) {
		return false
	}
	return errors.Is(err, store.ErrUnavailable)
}
