package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"orders-pipeline/pkg/utils"
)

// ErrNotFound signals that the source file could not be located. It is fatal
// to the ingestion stage and is surfaced to the driver, not retried locally.
var ErrNotFound = errors.New("source not found")

// Row is one source line keyed by column name. Cell values are typed by
// utils.ParseValue: int64, float64, string, or nil for empty cells.
type Row map[string]interface{}

// CSVReader reads a flat tabular source in full. The whole file is the unit
// of work.
type CSVReader struct {
	logger *log.Logger
}

func NewCSVReader(logger *log.Logger) *CSVReader {
	return &CSVReader{logger: logger}
}

// ReadAll loads every row of the file at path.
func (r *CSVReader) ReadAll(path string) ([]Row, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("open source %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.ReplaceAll(h, `"`, ""))
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		row := make(Row, len(header))
		for i, h := range header {
			if i < len(record) {
				row[h] = utils.ParseValue(record[i])
			}
		}
		rows = append(rows, row)
	}

	r.logger.Printf("loaded %d rows from %s", len(rows), path)
	return rows, nil
}
