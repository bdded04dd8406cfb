package exporting

import (
	"fmt"
	"path/filepath"
	"strings"

	"colmet/pkg/counters"
)

// Record is one stored row read back from a file, keyed by field name.
type Record = map[string]any

// Format is a file format records can be stored in.
type Format interface {
	Name() string
	Extensions() []string
	// Appendable reports whether an existing file can be extended.
	Appendable() bool
	Reader() Reader
	Writer() Writer
}

// Reader reads back a stored file.
type Reader interface {
	Open(path string) error
	Read() ([]Record, error)
	Close() error
}

// Writer stores records of a single schema in one file.
type Writer interface {
	Init(path string, schema *counters.Schema) error
	Write(r *counters.Unpacked) error
	Flush() error
	Close() error
	Path() string
}

var (
	registry    = make(map[string]Format)
	extRegistry = make(map[string]Format)
)

// Register adds a format to the registry.
func Register(f Format) {
	name := strings.ToLower(f.Name())
	registry[name] = f
	for _, ext := range f.Extensions() {
		extRegistry[strings.ToLower(ext)] = f
	}
}

// Get returns a format by name.
func Get(name string) (Format, bool) {
	f, ok := registry[strings.ToLower(name)]
	return f, ok
}

// GetByExtension returns a format by file extension.
func GetByExtension(ext string) (Format, bool) {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	f, ok := extRegistry[ext]
	return f, ok
}

// GetByPath returns a format based on the file's extension.
func GetByPath(path string) (Format, bool) {
	return GetByExtension(filepath.Ext(path))
}

// GetExtension returns the file extension for a format name.
func GetExtension(format string) string {
	if f, ok := Get(format); ok {
		return f.Extensions()[0]
	}
	return ".jsonl"
}

// LoadRecords loads all records from a file.
func LoadRecords(path string) ([]Record, error) {
	f, ok := GetByPath(path)
	if !ok {
		return nil, fmt.Errorf("unsupported format for file: %s", path)
	}

	reader := f.Reader()
	if err := reader.Open(path); err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer reader.Close()

	records, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return records, nil
}

// SaveRecords writes records of one schema to a new file.
func SaveRecords(path string, schema *counters.Schema, records []*counters.Unpacked) error {
	f, ok := GetByPath(path)
	if !ok {
		return fmt.Errorf("unsupported format for file: %s", path)
	}

	writer := f.Writer()
	if err := writer.Init(path, schema); err != nil {
		return fmt.Errorf("failed to initialize writer: %w", err)
	}
	for i, r := range records {
		if err := writer.Write(r); err != nil {
			writer.Close()
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	return writer.Close()
}

// checkSchema rejects a record written to another schema's file.
func checkSchema(want *counters.Schema, r *counters.Unpacked) error {
	if r.Schema() != want && !r.Schema().Equal(want) {
		return &counters.SchemaMismatchError{Want: want.Name(), Got: r.Backend()}
	}
	return nil
}
