package exporting

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"

	"colmet/pkg/counters"
)

const (
	DefaultBufferSize = 64 * 1024
	MaxLineSize       = 10 * 1024 * 1024
)

func init() {
	Register(&JSONLFormat{})
}

// JSONLFormat stores one JSON object per line, fields in schema order.
type JSONLFormat struct{}

func (f *JSONLFormat) Name() string         { return "jsonl" }
func (f *JSONLFormat) Extensions() []string { return []string{".jsonl", ".json"} }
func (f *JSONLFormat) Appendable() bool     { return true }
func (f *JSONLFormat) Reader() Reader       { return &JSONLReader{} }
func (f *JSONLFormat) Writer() Writer       { return &JSONLWriter{} }

// JSONLReader reads JSONL files. Numbers are returned as json.Number.
type JSONLReader struct {
	file    *os.File
	scanner *bufio.Scanner
}

func (r *JSONLReader) Open(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	r.file = file
	r.scanner = bufio.NewScanner(file)
	r.scanner.Buffer(make([]byte, DefaultBufferSize), MaxLineSize)
	return nil
}

func (r *JSONLReader) Read() ([]Record, error) {
	var records []Record
	lineNum := 0
	for r.scanner.Scan() {
		lineNum++
		line := r.scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		var record Record
		if err := dec.Decode(&record); err != nil {
			log.Debugf("%s:%d: skipping malformed line: %v", r.file.Name(), lineNum, err)
			continue
		}
		records = append(records, record)
	}

	if err := r.scanner.Err(); err != nil {
		return records, fmt.Errorf("scanner error: %w", err)
	}
	return records, nil
}

func (r *JSONLReader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// JSONLWriter appends to a JSONL file.
type JSONLWriter struct {
	path   string
	schema *counters.Schema
	file   *os.File
	writer *bufio.Writer
	line   bytes.Buffer
	mu     sync.Mutex
}

func (w *JSONLWriter) Init(path string, schema *counters.Schema) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	w.path = path
	w.schema = schema
	w.file = file
	w.writer = bufio.NewWriterSize(file, DefaultBufferSize)
	return nil
}

func (w *JSONLWriter) Write(r *counters.Unpacked) error {
	if err := checkSchema(w.schema, r); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.line.Reset()
	if err := encodeObject(&w.line, w.schema, r); err != nil {
		return err
	}
	w.line.WriteByte('\n')
	if _, err := w.writer.Write(w.line.Bytes()); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}
	return nil
}

// encodeObject writes r as a JSON object whose keys follow the schema.
func encodeObject(buf *bytes.Buffer, schema *counters.Schema, r *counters.Unpacked) error {
	buf.WriteByte('{')
	for i, f := range schema.Fields() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(f.Name)
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(r.Value(f.Name))
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", f.Name, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return nil
}

func (w *JSONLWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.writer != nil {
		return w.writer.Flush()
	}
	return nil
}

func (w *JSONLWriter) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}

func (w *JSONLWriter) Path() string {
	return w.path
}
