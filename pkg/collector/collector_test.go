package collector

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"colmet/pkg/config"
	"colmet/pkg/counters"
	"colmet/pkg/exporting"
	"colmet/pkg/metrics"
	"colmet/pkg/transport"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// memSink keeps what was pushed to it.
type memSink struct {
	mu   sync.Mutex
	recs []*counters.Unpacked
	err  error
}

func (s *memSink) Name() string { return "mem" }
func (s *memSink) Close() error { return nil }

func (s *memSink) Push(_ context.Context, recs []*counters.Unpacked) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for _, r := range recs {
		s.recs = append(s.recs, r.Clone())
	}
	return nil
}

func (s *memSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recs)
}

func batch(t *testing.T, job uint64, timestamps ...uint64) []byte {
	t.Helper()
	var recs []*counters.Unpacked
	for _, ts := range timestamps {
		r, err := counters.FromValues(metrics.RAPLstats, map[string]any{"energy_uj": ts * 10})
		require.NoError(t, err)
		r.SetHeaders("node1", job, ts)
		recs = append(recs, r)
	}
	buf, err := counters.PackUnpacked(recs)
	require.NoError(t, err)
	return buf
}

func newTestCollector(t *testing.T, cfg *config.CollectorConfig, pipe *transport.Pipe, sinks ...exporting.Sink) *Collector {
	t.Helper()
	reg, err := metrics.NewRegistry()
	require.NoError(t, err)
	c, err := New(cfg, reg, pipe, sinks)
	require.NoError(t, err)
	return c
}

func TestHandleAndFlush(t *testing.T) {
	cfg := config.NewCollectorConfig()
	cfg.BufferSize = 3
	pipe := transport.NewPipe(8, "node1", "s-1")
	sink := &memSink{}
	c := newTestCollector(t, cfg, pipe, sink)

	full := c.Handle([]transport.Message{{Payload: batch(t, 7, 100, 105), Hostname: "node1", Session: "s-1"}})
	assert.False(t, full)
	full = c.Handle([]transport.Message{{Payload: batch(t, 7, 110), Hostname: "node1", Session: "s-1"}})
	assert.True(t, full)

	require.NoError(t, c.Flush(context.Background()))
	require.Equal(t, 3, sink.Len())
	assert.Equal(t, uint64(1100), sink.recs[2].Value("energy_uj"))
	assert.Equal(t, 2, pipe.Committed())

	require.NoError(t, c.Flush(context.Background()))
	assert.Equal(t, 1, c.Stats().Flushes, "nothing pending, nothing to do")
}

func TestDuplicatesAreDiscarded(t *testing.T) {
	pipe := transport.NewPipe(8, "node1", "s")
	sink := &memSink{}
	c := newTestCollector(t, config.NewCollectorConfig(), pipe, sink)

	payload := batch(t, 7, 100, 105)
	c.Handle([]transport.Message{{Payload: payload}, {Payload: payload}})
	c.Handle([]transport.Message{{Payload: batch(t, 8, 100)}})
	require.NoError(t, c.Flush(context.Background()))

	assert.Equal(t, 3, sink.Len())
	st := c.Stats()
	assert.Equal(t, 5, st.Records)
	assert.Equal(t, 2, st.Duplicates)
	assert.Equal(t, 3, pipe.Committed())
}

func TestDedupeDisabled(t *testing.T) {
	cfg := config.NewCollectorConfig()
	cfg.DedupeSize = 0
	sink := &memSink{}
	c := newTestCollector(t, cfg, transport.NewPipe(1, "n", "s"), sink)

	payload := batch(t, 7, 100)
	c.Handle([]transport.Message{{Payload: payload}, {Payload: payload}})
	require.NoError(t, c.Flush(context.Background()))
	assert.Equal(t, 2, sink.Len())
}

func TestBadBatchesAreDropped(t *testing.T) {
	pipe := transport.NewPipe(8, "node1", "s")
	sink := &memSink{}
	c := newTestCollector(t, config.NewCollectorConfig(), pipe, sink)

	good := batch(t, 7, 100)
	truncated := good[:len(good)-3]

	unknown := counters.NewSchemaBuilder("unknown_default").
		Counter("x", counters.UInt64, counters.Raw, counters.Add, "").MustBuild()
	foreign, err := counters.PackUnpacked([]*counters.Unpacked{counters.New(unknown)})
	require.NoError(t, err)

	c.Handle([]transport.Message{{Payload: truncated}, {Payload: foreign}, {Payload: batch(t, 7, 105)}})
	require.NoError(t, c.Flush(context.Background()))

	assert.Equal(t, 1, sink.Len())
	assert.Equal(t, 2, c.Stats().Dropped)
	assert.Equal(t, 3, pipe.Committed(), "dropped batches are committed too")
}

func TestFailingSinkDoesNotBlockOthers(t *testing.T) {
	pipe := transport.NewPipe(8, "node1", "s")
	broken := &memSink{err: errors.New("disk full")}
	sink := &memSink{}
	c := newTestCollector(t, config.NewCollectorConfig(), pipe, broken, sink)

	c.Handle([]transport.Message{{Payload: batch(t, 7, 100)}})
	require.NoError(t, c.Flush(context.Background()))
	assert.Equal(t, 1, sink.Len())
	assert.Equal(t, 1, c.Stats().Stored)
	assert.Equal(t, 1, pipe.Committed())
}

func TestRunFlushesOnClose(t *testing.T) {
	cfg := config.NewCollectorConfig()
	cfg.BufferSize = 1000
	cfg.FlushInterval = time.Hour
	pipe := transport.NewPipe(8, "node1", "s")
	sink := &memSink{}
	c := newTestCollector(t, cfg, pipe, sink)

	require.NoError(t, pipe.Send(context.Background(), batch(t, 7, 100, 105)))
	require.NoError(t, pipe.Send(context.Background(), batch(t, 0, 100)))
	require.NoError(t, pipe.Close())

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, 3, sink.Len())
	assert.Equal(t, 2, pipe.Committed())
}

func TestRunFlushesOnInterval(t *testing.T) {
	cfg := config.NewCollectorConfig()
	cfg.BufferSize = 1000
	cfg.FlushInterval = 10 * time.Millisecond
	pipe := transport.NewPipe(8, "node1", "s")
	sink := &memSink{}
	c := newTestCollector(t, cfg, pipe, sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.NoError(t, pipe.Send(ctx, batch(t, 7, 100)))
	assert.Eventually(t, func() bool { return sink.Len() == 1 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("collector did not stop")
	}
}

func TestHashKey(t *testing.T) {
	a := recordKey{schema: "s", hostname: "h", jobID: 1, ts: 12}
	b := recordKey{schema: "s", hostname: "h", jobID: 11, ts: 2}
	assert.Equal(t, hashKey(a), hashKey(a))
	assert.NotEqual(t, hashKey(a), hashKey(b))
}
