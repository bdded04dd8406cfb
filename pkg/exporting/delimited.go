package exporting

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"colmet/pkg/counters"
	"colmet/pkg/utils"
)

func init() {
	Register(&CSVFormat{})
	Register(&TSVFormat{})
}

// CSVFormat handles CSV files.
type CSVFormat struct{}

func (f *CSVFormat) Name() string         { return "csv" }
func (f *CSVFormat) Extensions() []string { return []string{".csv"} }
func (f *CSVFormat) Appendable() bool     { return true }
func (f *CSVFormat) Reader() Reader       { return &DelimitedReader{delimiter: ','} }
func (f *CSVFormat) Writer() Writer       { return &DelimitedWriter{delimiter: ','} }

// TSVFormat handles TSV files.
type TSVFormat struct{}

func (f *TSVFormat) Name() string         { return "tsv" }
func (f *TSVFormat) Extensions() []string { return []string{".tsv"} }
func (f *TSVFormat) Appendable() bool     { return true }
func (f *TSVFormat) Reader() Reader       { return &DelimitedReader{delimiter: '\t'} }
func (f *TSVFormat) Writer() Writer       { return &DelimitedWriter{delimiter: '\t'} }

// DelimitedReader reads CSV/TSV files.
type DelimitedReader struct {
	file      *os.File
	reader    *csv.Reader
	header    []string
	delimiter rune
}

// Open opens the file and reads the header row.
func (r *DelimitedReader) Open(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	r.file = file
	r.reader = csv.NewReader(file)
	r.reader.Comma = r.delimiter
	r.reader.FieldsPerRecord = -1
	r.reader.LazyQuotes = true

	header, err := r.reader.Read()
	if err != nil {
		_ = r.file.Close()
		return fmt.Errorf("failed to read header: %w", err)
	}
	r.header = header
	return nil
}

// Read parses all records from the file.
func (r *DelimitedReader) Read() ([]Record, error) {
	var records []Record
	for {
		row, err := r.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		records = append(records, r.rowToRecord(row))
	}
	return records, nil
}

// rowToRecord parses integers as int64 (uint64 when too large), other
// numbers as float64 and keeps the rest as strings.
func (r *DelimitedReader) rowToRecord(row []string) Record {
	record := make(Record, len(row))
	for i, val := range row {
		if i >= len(r.header) || val == "" {
			continue
		}
		key := r.header[i]

		if i64, err := strconv.ParseInt(val, 10, 64); err == nil {
			record[key] = i64
		} else if u64, err := strconv.ParseUint(val, 10, 64); err == nil {
			record[key] = u64
		} else if f, err := strconv.ParseFloat(val, 64); err == nil && strings.ContainsAny(val, ".eE") {
			record[key] = f
		} else {
			record[key] = val
		}
	}
	return record
}

// Close closes the underlying file handle.
func (r *DelimitedReader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// DelimitedWriter appends to a CSV/TSV file. The header row is the schema's
// field list and is written only when the file is empty.
type DelimitedWriter struct {
	path      string
	schema    *counters.Schema
	file      *os.File
	writer    *csv.Writer
	header    []string
	delimiter rune
	mu        sync.Mutex
}

// Init opens the file and writes the header if needed.
func (w *DelimitedWriter) Init(path string, schema *counters.Schema) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to stat file: %w", err)
	}

	w.path = path
	w.schema = schema
	w.file = file
	w.writer = csv.NewWriter(file)
	w.writer.Comma = w.delimiter
	for _, f := range schema.Fields() {
		w.header = append(w.header, f.Name)
	}

	if info.Size() == 0 {
		if err := w.writer.Write(w.header); err != nil {
			_ = file.Close()
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	return nil
}

// Write writes a single record to the file.
func (w *DelimitedWriter) Write(r *counters.Unpacked) error {
	if err := checkSchema(w.schema, r); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	row := make([]string, len(w.header))
	for i, key := range w.header {
		row[i] = utils.FormatValue(r.Value(key))
	}
	if err := w.writer.Write(row); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	return nil
}

// Flush writes any buffered data to the underlying io.Writer.
func (w *DelimitedWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.writer != nil {
		w.writer.Flush()
		return w.writer.Error()
	}
	return nil
}

// Close flushes the buffer and closes the file.
func (w *DelimitedWriter) Close() error {
	if err := w.Flush(); err != nil {
		if w.file != nil {
			_ = w.file.Close()
		}
		return err
	}
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}

// Path returns the file path.
func (w *DelimitedWriter) Path() string {
	return w.path
}
