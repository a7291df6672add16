package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
)

// ErrUnavailable signals a whole-call store failure (connectivity, timeout,
// transaction failure). Per-document write problems are not errors; they are
// reported in BulkResult.WriteErrors.
var ErrUnavailable = errors.New("store unavailable")

// Store is a generic document store over SQLite: one table per collection,
// each row holding one JSON document.
type Store struct {
	db     *sql.DB
	logger *log.Logger
}

// WriteError describes one document that a bulk insert could not write.
type WriteError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// BulkResult is the outcome of a bulk insert.
type BulkResult struct {
	InsertedCount int          `json:"inserted_count"`
	WriteErrors   []WriteError `json:"write_errors,omitempty"`
}

// Open connects to the SQLite file at path and prepares the tracking tables.
func Open(path string, logger *log.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s := &Store{db: db, logger: logger}
	if err := s.initRunTables(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// collectionTable maps a collection name onto a table name, keeping only
// characters that are safe to embed in DDL.
func collectionTable(collection string) string {
	var b strings.Builder
	for _, r := range collection {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' {
			b.WriteRune(r)
		}
	}
	return "collection_" + b.String()
}

func (s *Store) ensureCollection(ctx context.Context, collection string) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		doc TEXT NOT NULL
	)`, collectionTable(collection))
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("%w: ensure %s: %v", ErrUnavailable, collection, err)
	}
	return nil
}

// Drop removes a collection entirely. Dropping a collection that does not
// exist is a no-op.
func (s *Store) Drop(ctx context.Context, collection string) error {
	ddl := fmt.Sprintf(`DROP TABLE IF EXISTS %q`, collectionTable(collection))
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("%w: drop %s: %v", ErrUnavailable, collection, err)
	}
	return nil
}

// BulkInsert writes docs into collection. With ordered=false a failing
// document is recorded as a write error and the rest of the batch still goes
// through; with ordered=true the insert stops at the first failure. The call
// itself only errors when the store cannot complete the transaction.
func (s *Store) BulkInsert(ctx context.Context, collection string, docs []interface{}, ordered bool) (BulkResult, error) {
	var res BulkResult
	if len(docs) == 0 {
		return res, nil
	}
	if err := s.ensureCollection(ctx, collection); err != nil {
		return res, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("%w: begin: %v", ErrUnavailable, err)
	}
	defer tx.Rollback()

	table := collectionTable(collection)
	for i, doc := range docs {
		raw, err := json.Marshal(doc)
		if err != nil {
			res.WriteErrors = append(res.WriteErrors, WriteError{Index: i, Message: err.Error()})
			if ordered {
				break
			}
			continue
		}
		query, args, err := sq.Insert(table).Columns("doc").Values(string(raw)).ToSql()
		if err != nil {
			return res, fmt.Errorf("%w: build insert: %v", ErrUnavailable, err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			res.WriteErrors = append(res.WriteErrors, WriteError{Index: i, Message: err.Error()})
			if ordered {
				break
			}
			continue
		}
		res.InsertedCount++
	}

	if err := tx.Commit(); err != nil {
		return BulkResult{}, fmt.Errorf("%w: commit: %v", ErrUnavailable, err)
	}
	return res, nil
}

// FindAll returns every document in a collection in insertion order. A
// collection that was never written reads as empty.
func (s *Store) FindAll(ctx context.Context, collection string) ([]json.RawMessage, error) {
	if err := s.ensureCollection(ctx, collection); err != nil {
		return nil, err
	}
	query, args, err := sq.Select("doc").From(collectionTable(collection)).OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: build select: %v", ErrUnavailable, err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: find %s: %v", ErrUnavailable, collection, err)
	}
	defer rows.Close()

	var docs []json.RawMessage
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("%w: scan %s: %v", ErrUnavailable, collection, err)
		}
		docs = append(docs, json.RawMessage(doc))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate %s: %v", ErrUnavailable, collection, err)
	}
	return docs, nil
}

// Count returns the number of documents in a collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	if err := s.ensureCollection(ctx, collection); err != nil {
		return 0, err
	}
	query, args, err := sq.Select("COUNT(*)").From(collectionTable(collection)).ToSql()
	if err != nil {
		return 0, fmt.Errorf("%w: build count: %v", ErrUnavailable, err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count %s: %v", ErrUnavailable, collection, err)
	}
	return n, nil
}

// ConfigurePartitioning prepares the collection for writes by indexing the
// partition key expression. Safe to call repeatedly; an index that already
// exists is success, not failure.
func (s *Store) ConfigurePartitioning(ctx context.Context, collection, key string) error {
	if err := s.ensureCollection(ctx, collection); err != nil {
		return err
	}
	table := collectionTable(collection)
	ddl := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %q ON %q (json_extract(doc, '$.%s'))`,
		"idx_"+table+"_"+key, table, key)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("%w: partition %s on %s: %v", ErrUnavailable, collection, key, err)
	}
	s.logger.Printf("partitioning configured for %s on key %s", collection, key)
	return nil
}
