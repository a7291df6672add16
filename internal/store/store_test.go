package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"path/filepath"
	"testing"
	"time"

	"orders-pipeline/pkg/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), logger.NewWithWriter("test", io.Discard))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func doc(id int) interface{} {
	return map[string]interface{}{"user_id": id, "order_id": "ORD-1"}
}

func TestBulkInsertAndFindAll(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	docs := []interface{}{doc(1), doc(2), doc(3)}
	res, err := s.BulkInsert(ctx, "raw_data", docs, false)
	if err != nil {
		t.Fatalf("bulk insert: %v", err)
	}
	if res.InsertedCount != 3 || len(res.WriteErrors) != 0 {
		t.Fatalf("result: %+v", res)
	}

	found, err := s.FindAll(ctx, "raw_data")
	if err != nil {
		t.Fatalf("find all: %v", err)
	}
	if len(found) != 3 {
		t.Fatalf("expected 3 docs, got %d", len(found))
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(found[0], &fields); err != nil {
		t.Fatalf("decode doc: %v", err)
	}
	if fields["user_id"] != float64(1) {
		t.Fatalf("insertion order lost: %v", fields)
	}

	n, err := s.Count(ctx, "raw_data")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Fatalf("count = %d", n)
	}
}

func TestBulkInsertUnorderedContinuesPastBadDoc(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	// NaN cannot be marshalled to JSON
	bad := map[string]interface{}{"price": math.NaN()}
	docs := []interface{}{doc(1), bad, doc(3)}

	res, err := s.BulkInsert(ctx, "raw_data", docs, false)
	if err != nil {
		t.Fatalf("bulk insert: %v", err)
	}
	if res.InsertedCount != 2 {
		t.Fatalf("expected 2 inserted, got %d", res.InsertedCount)
	}
	if len(res.WriteErrors) != 1 || res.WriteErrors[0].Index != 1 {
		t.Fatalf("write errors: %+v", res.WriteErrors)
	}

	n, _ := s.Count(ctx, "raw_data")
	if n != 2 {
		t.Fatalf("expected 2 rows persisted, got %d", n)
	}
}

func TestBulkInsertOrderedStopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	bad := map[string]interface{}{"price": math.NaN()}
	docs := []interface{}{doc(1), bad, doc(3)}

	res, err := s.BulkInsert(ctx, "raw_data", docs, true)
	if err != nil {
		t.Fatalf("bulk insert: %v", err)
	}
	if res.InsertedCount != 1 || len(res.WriteErrors) != 1 {
		t.Fatalf("result: %+v", res)
	}
}

func TestBulkInsertEmptyBatch(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	res, err := s.BulkInsert(context.Background(), "raw_data", nil, false)
	if err != nil {
		t.Fatalf("empty insert: %v", err)
	}
	if res.InsertedCount != 0 || len(res.WriteErrors) != 0 {
		t.Fatalf("result: %+v", res)
	}
}

func TestDropReplacesCollection(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.BulkInsert(ctx, "clean_data", []interface{}{doc(1)}, false); err != nil {
		t.Fatalf("bulk insert: %v", err)
	}
	if err := s.Drop(ctx, "clean_data"); err != nil {
		t.Fatalf("drop: %v", err)
	}
	found, err := s.FindAll(ctx, "clean_data")
	if err != nil {
		t.Fatalf("find after drop: %v", err)
	}
	if len(found) != 0 {
		t.Fatalf("expected empty collection, got %d docs", len(found))
	}

	// dropping a collection that never existed is fine
	if err := s.Drop(ctx, "never_written"); err != nil {
		t.Fatalf("drop missing: %v", err)
	}
}

func TestFindAllOnMissingCollection(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	found, err := s.FindAll(context.Background(), "nothing_here")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(found) != 0 {
		t.Fatalf("expected empty, got %d", len(found))
	}
}

func TestConfigurePartitioningIsIdempotent(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	if err := s.ConfigurePartitioning(ctx, "raw_data", "user_id"); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if err := s.ConfigurePartitioning(ctx, "raw_data", "user_id"); err != nil {
		t.Fatalf("second call should succeed: %v", err)
	}
}

func TestRunTracking(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveRun(ctx, "run-1"); err != nil {
		t.Fatalf("save run: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := s.SaveRun(ctx, "run-2"); err != nil {
		t.Fatalf("save run: %v", err)
	}

	if err := s.UpdateRunStatus(ctx, "run-1", "running"); err != nil {
		t.Fatalf("update status: %v", err)
	}
	report := map[string]interface{}{"total_processed": 100}
	if err := s.FinishRun(ctx, "run-1", "completed", report); err != nil {
		t.Fatalf("finish run: %v", err)
	}

	runs, err := s.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != "run-2" {
		t.Fatalf("expected newest first, got %q", runs[0].ID)
	}

	detail, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if detail.Status != "completed" {
		t.Fatalf("status: %q", detail.Status)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(detail.Report, &decoded); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if decoded["total_processed"] != float64(100) {
		t.Fatalf("report: %v", decoded)
	}

	if _, err := s.GetRun(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestRunErrors(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveRun(ctx, "run-1"); err != nil {
		t.Fatalf("save run: %v", err)
	}
	if err := s.SaveRunError(ctx, "run-1", errors.New("stage ingestion failed")); err != nil {
		t.Fatalf("save run error: %v", err)
	}
	if err := s.SaveRunError(ctx, "run-1", nil); err != nil {
		t.Fatalf("nil error should be a no-op: %v", err)
	}

	errs, err := s.ListRunErrors(ctx, "run-1")
	if err != nil {
		t.Fatalf("list run errors: %v", err)
	}
	if len(errs) != 1 || errs[0].Message != "stage ingestion failed" {
		t.Fatalf("run errors: %+v", errs)
	}

	other, err := s.ListRunErrors(ctx, "run-2")
	if err != nil {
		t.Fatalf("list run errors: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected no errors for other run, got %d", len(other))
	}
}
