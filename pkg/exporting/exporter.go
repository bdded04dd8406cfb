package exporting

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"colmet/pkg/config"
	"colmet/pkg/counters"
)

// Exporter writes one schema's records for one job to a file.
type Exporter struct {
	format Format
	writer Writer
}

// NewExporter opens a writer for path in the given format. A format that
// cannot append never overwrites: a timestamp suffix is added instead.
func NewExporter(path, format string, schema *counters.Schema) (*Exporter, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, ok := Get(format)
	if !ok {
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
	if !f.Appendable() {
		path = freshPath(path, time.Now())
	}

	writer := f.Writer()
	if err := writer.Init(path, schema); err != nil {
		return nil, fmt.Errorf("failed to initialize writer: %w", err)
	}
	return &Exporter{format: f, writer: writer}, nil
}

func freshPath(path string, now time.Time) string {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return path
	}
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(path, ext), now.UnixNano(), ext)
}

func (e *Exporter) Path() string   { return e.writer.Path() }
func (e *Exporter) Format() string { return e.format.Name() }

// WriteBatch writes records and flushes them.
func (e *Exporter) WriteBatch(recs []*counters.Unpacked) error {
	for i, r := range recs {
		if err := e.writer.Write(r); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	return e.writer.Flush()
}

func (e *Exporter) Close() error {
	return e.writer.Close()
}

// ============================================================================
// File sink
// ============================================================================

type exportKey struct {
	schema string
	job    uint64
}

// FileSink keeps one Exporter per (schema, job) open under the output
// directory.
type FileSink struct {
	cfg    config.SinkConfig
	format string
	ext    string

	mu        sync.Mutex
	exporters map[exportKey]*Exporter
}

func NewFileSink(cfg *config.SinkConfig) (*FileSink, error) {
	if _, ok := Get(cfg.Format); !ok {
		return nil, fmt.Errorf("unsupported format: %s", cfg.Format)
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &FileSink{
		cfg:       *cfg,
		format:    cfg.Format,
		ext:       GetExtension(cfg.Format),
		exporters: make(map[exportKey]*Exporter),
	}, nil
}

func (s *FileSink) Name() string { return "file(" + s.format + ")" }

// Push appends recs to their files. A failing file does not stop the
// others; all failures are returned joined.
func (s *FileSink) Push(_ context.Context, recs []*counters.Unpacked) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	groups := make(map[exportKey][]*counters.Unpacked)
	var order []exportKey
	for _, r := range recs {
		k := exportKey{schema: r.Backend(), job: r.JobID()}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}

	var errs []error
	for _, k := range order {
		e, err := s.exporter(k, groups[k][0].Schema())
		if err == nil {
			err = e.WriteBatch(groups[k])
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s job %d: %w", k.schema, k.job, err))
		}
	}
	return errors.Join(errs...)
}

func (s *FileSink) exporter(k exportKey, schema *counters.Schema) (*Exporter, error) {
	if e, ok := s.exporters[k]; ok {
		return e, nil
	}
	e, err := NewExporter(s.cfg.GenerateOutputPath(k.schema, k.job, s.ext), s.format, schema)
	if err != nil {
		return nil, err
	}
	log.Debugf("Writing %s job %d to %s", k.schema, k.job, e.Path())
	s.exporters[k] = e
	return e, nil
}

// Paths lists the files written so far.
func (s *FileSink) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.exporters))
	for _, e := range s.exporters {
		paths = append(paths, e.Path())
	}
	return paths
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for k, e := range s.exporters {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(s.exporters, k)
	}
	return errors.Join(errs...)
}
