package source

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"orders-pipeline/pkg/logger"
)

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func newReader() *CSVReader {
	return NewCSVReader(logger.NewWithWriter("test", io.Discard))
}

func TestReadAllTypesCells(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, "user_id,order_id,price,quantity,product_name\n"+
		"12345,ORD-1,999.99,2,\"Laptop, 15 inch\"\n"+
		"678,ORD-2,50,1,\n")

	rows, err := newReader().ReadAll(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	first := rows[0]
	if first["user_id"] != int64(12345) {
		t.Fatalf("user_id: %v (%T)", first["user_id"], first["user_id"])
	}
	if first["price"] != 999.99 {
		t.Fatalf("price: %v", first["price"])
	}
	if first["quantity"] != int64(2) {
		t.Fatalf("quantity: %v", first["quantity"])
	}
	if first["product_name"] != "Laptop, 15 inch" {
		t.Fatalf("quoted field mangled: %v", first["product_name"])
	}

	// integral-looking price stays numeric, empty cell becomes nil
	second := rows[1]
	if second["price"] != int64(50) {
		t.Fatalf("price: %v (%T)", second["price"], second["price"])
	}
	if v, present := second["product_name"]; !present || v != nil {
		t.Fatalf("empty cell should be nil, got %v", v)
	}
}

func TestReadAllMissingFile(t *testing.T) {
	t.Parallel()

	_, err := newReader().ReadAll(filepath.Join(t.TempDir(), "nope.csv"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReadAllHeaderOnly(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, "user_id,order_id\n")
	rows, err := newReader().ReadAll(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no rows, got %d", len(rows))
	}
}

func TestReadAllEmptyFile(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, "")
	rows, err := newReader().ReadAll(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if rows != nil {
		t.Fatalf("expected nil rows, got %v", rows)
	}
}
