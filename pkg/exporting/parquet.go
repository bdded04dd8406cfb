package exporting

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/parquet-go/parquet-go"

	"colmet/pkg/counters"
	"colmet/pkg/utils"
)

const ParquetBatchSize = 1000

func init() {
	Register(&ParquetFormat{})
}

// ParquetFormat handles Parquet files. A file cannot be reopened for
// append, so each writer creates a new one.
type ParquetFormat struct{}

func (f *ParquetFormat) Name() string         { return "parquet" }
func (f *ParquetFormat) Extensions() []string { return []string{".parquet"} }
func (f *ParquetFormat) Appendable() bool     { return false }
func (f *ParquetFormat) Reader() Reader       { return &ParquetReader{} }
func (f *ParquetFormat) Writer() Writer       { return &ParquetWriter{} }

// ParquetReader reads Parquet files.
type ParquetReader struct {
	file  *os.File
	pfile *parquet.File
}

func (r *ParquetReader) Open(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	r.file = file

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, stat.Size())
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to open parquet file: %w", err)
	}
	r.pfile = pf
	return nil
}

func (r *ParquetReader) Read() ([]Record, error) {
	if r.pfile == nil {
		return nil, fmt.Errorf("reader not initialized")
	}

	fields := r.pfile.Schema().Fields()
	fieldNames := make([]string, len(fields))
	for i, f := range fields {
		fieldNames[i] = f.Name()
	}

	records := make([]Record, 0, r.pfile.NumRows())
	rowBuf := make([]parquet.Row, 100)

	for _, rg := range r.pfile.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(rowBuf)
			for _, row := range rowBuf[:n] {
				record := make(Record, len(fields))
				for _, val := range row {
					col := val.Column()
					if col < 0 || col >= len(fieldNames) || val.IsNull() {
						continue
					}
					record[fieldNames[col]] = parquetValueToGo(val)
				}
				records = append(records, record)
			}
			if errors.Is(err, io.EOF) || (err == nil && n == 0) {
				break
			}
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to read rows: %w", err)
			}
		}
		rows.Close()
	}
	return records, nil
}

func parquetValueToGo(v parquet.Value) any {
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return v.String()
	}
}

func (r *ParquetReader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// ParquetWriter writes typed columns derived from the counters schema.
type ParquetWriter struct {
	path    string
	schema  *counters.Schema
	file    *os.File
	writer  *parquet.Writer
	columns []counters.Field
	buffer  []parquet.Row
	mu      sync.Mutex
}

// ParquetSchema maps a counters schema onto optional Parquet columns.
// Unsigned fields become UINT(64) columns stored as int64.
func ParquetSchema(s *counters.Schema) *parquet.Schema {
	group := make(parquet.Group)
	for _, f := range s.Fields() {
		group[f.Name] = parquet.Optional(parquetNode(f.Type))
	}
	return parquet.NewSchema(s.Name(), group)
}

func parquetNode(t counters.FieldType) parquet.Node {
	switch t.Kind() {
	case counters.Unsigned:
		return parquet.Uint(64)
	case counters.Signed:
		return parquet.Int(64)
	case counters.Float:
		return parquet.Leaf(parquet.DoubleType)
	default:
		return parquet.String()
	}
}

func (w *ParquetWriter) Init(path string, schema *counters.Schema) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	ps := ParquetSchema(schema)

	// Group columns come out sorted by name, not in schema order.
	w.columns = w.columns[:0]
	for _, pf := range ps.Fields() {
		f, _ := schema.Field(pf.Name())
		w.columns = append(w.columns, f)
	}

	w.path = path
	w.schema = schema
	w.file = file
	w.writer = parquet.NewWriter(file, ps, parquet.Compression(&parquet.Snappy))
	w.buffer = make([]parquet.Row, 0, ParquetBatchSize)
	return nil
}

func (w *ParquetWriter) recordToRow(r *counters.Unpacked) parquet.Row {
	row := make(parquet.Row, len(w.columns))
	for i, f := range w.columns {
		val := r.Value(f.Name)
		if val == nil {
			row[i] = parquet.NullValue().Level(0, 0, i)
			continue
		}
		row[i] = goToParquetValue(f.Type.Kind(), val).Level(0, 1, i)
	}
	return row
}

func goToParquetValue(kind counters.Kind, val any) parquet.Value {
	switch kind {
	case counters.Unsigned:
		return parquet.Int64Value(int64(utils.ToUint64(val)))
	case counters.Signed:
		return parquet.Int64Value(utils.ToInt64(val))
	case counters.Float:
		return parquet.DoubleValue(utils.ToFloat64(val))
	default:
		return parquet.ByteArrayValue([]byte(utils.ToString(val)))
	}
}

func (w *ParquetWriter) Write(r *counters.Unpacked) error {
	if err := checkSchema(w.schema, r); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buffer = append(w.buffer, w.recordToRow(r))
	if len(w.buffer) >= ParquetBatchSize {
		return w.flushBuffer()
	}
	return nil
}

func (w *ParquetWriter) flushBuffer() error {
	if len(w.buffer) == 0 || w.writer == nil {
		return nil
	}
	if _, err := w.writer.WriteRows(w.buffer); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	w.buffer = w.buffer[:0]
	return nil
}

// Flush ends the current row group.
func (w *ParquetWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.flushBuffer(); err != nil {
		return err
	}
	if w.writer != nil {
		return w.writer.Flush()
	}
	return nil
}

func (w *ParquetWriter) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}
	if w.writer != nil {
		if err := w.writer.Close(); err != nil {
			return err
		}
	}
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}

func (w *ParquetWriter) Path() string {
	return w.path
}
