package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"orders-pipeline/internal/source"
	"orders-pipeline/internal/store"
	"orders-pipeline/pkg/logger"
)

func testPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		Backoff:      2.0,
		Retryable:    DefaultRetryable,
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	log := logger.NewWithWriter("test", io.Discard)
	calls := 0
	err := testPolicy(3).Do(context.Background(), "stage", log, func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("write batch: %w", store.ErrUnavailable)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	t.Parallel()

	log := logger.NewWithWriter("test", io.Discard)
	calls := 0
	wantErr := fmt.Errorf("%w: data/raw.csv", source.ErrNotFound)
	err := testPolicy(3).Do(context.Background(), "stage", log, func() error {
		calls++
		return wantErr
	})
	if !errors.Is(err, source.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("non-retryable error should not be retried, got %d attempts", calls)
	}
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	log := logger.NewWithWriter("test", io.Discard)
	calls := 0
	err := testPolicy(3).Do(context.Background(), "stage", log, func() error {
		calls++
		return store.ErrUnavailable
	})
	if !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	log := logger.NewWithWriter("test", io.Discard)
	policy := testPolicy(5)
	policy.InitialDelay = time.Minute
	err := policy.Do(ctx, "stage", log, func() error {
		return store.ErrUnavailable
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestStageErrorUnwraps(t *testing.T) {
	t.Parallel()

	err := &StageError{Stage: "ingestion", Err: source.ErrNotFound}
	if !errors.Is(err, source.ErrNotFound) {
		t.Fatal("StageError should unwrap to its cause")
	}
	if err.Error() != "stage ingestion failed: source not found" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestDefaultRetryable(t *testing.T) {
	t.Parallel()

	if !DefaultRetryable(store.ErrUnavailable) {
		t.Fatal("store unavailability should be retryable")
	}
	if DefaultRetryable(source.ErrNotFound) {
		t.Fatal("a missing source should not be retryable")
	}
	if DefaultRetryable(errors.New("boom")) {
		t.Fatal("arbitrary errors should not be retryable")
	}
}
