package exporting

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"colmet/pkg/counters"
)

// StdoutSink prints each record with its display units.
type StdoutSink struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func NewStdoutSink(w io.Writer) *StdoutSink {
	return &StdoutSink{w: bufio.NewWriter(w)}
}

func (s *StdoutSink) Name() string { return "stdout" }

func (s *StdoutSink) Push(_ context.Context, recs []*counters.Unpacked) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range recs {
		s.w.WriteString(FormatRecord(r))
	}
	return s.w.Flush()
}

func (s *StdoutSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Flush()
}

// FormatRecord renders r on several lines: a title with the headers, then
// one indented line per counter.
func FormatRecord(r *counters.Unpacked) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s job %d on %s at %s\n", r.Backend(), r.JobID(), r.Hostname(),
		counters.Date.Format(r.Timestamp()))

	fields := r.Schema().Counters()
	width := 0
	for _, f := range fields {
		width = max(width, len(f.Name))
	}
	for _, f := range fields {
		fmt.Fprintf(&b, "  %-*s %s\n", width, f.Name, f.Unit.Format(r.Value(f.Name)))
	}
	return b.String()
}
