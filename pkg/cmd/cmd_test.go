package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"colmet/pkg/collecting"
	"colmet/pkg/config"
	"colmet/pkg/counters"
	"colmet/pkg/metrics"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// counterSource returns a counter that grows on every fetch.
type counterSource struct {
	n uint64
}

func (s *counterSource) Name() string             { return "rapl" }
func (s *counterSource) Schema() *counters.Schema { return metrics.RAPLstats }
func (s *counterSource) Level() collecting.Level  { return collecting.NodeLevel }
func (s *counterSource) Close() error             { return nil }

func (s *counterSource) Fetch(collecting.Handle) *counters.Unpacked {
	s.n += 1000
	r, err := counters.FromValues(metrics.RAPLstats, map[string]any{"energy_uj": s.n, "packages": uint16(1)})
	if err != nil {
		panic(err)
	}
	return r
}

func TestWriteSchemas(t *testing.T) {
	reg, err := metrics.NewRegistry()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeSchemas(&buf, reg, []string{"raplstats_default"}))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "raplstats_default ("))
	assert.Contains(t, out, "energy_uj")
	assert.Contains(t, out, "header")
	assert.NotContains(t, out, "taskstats_default")

	buf.Reset()
	require.NoError(t, writeSchemas(&buf, reg, nil))
	for _, name := range reg.Names() {
		assert.Contains(t, buf.String(), name)
	}

	assert.Error(t, writeSchemas(&buf, reg, []string{"nope"}))
}

func TestRunSnapshot(t *testing.T) {
	cfg := config.NewNodeConfig()
	cfg.Hostname = "node1"
	cfg.SamplePeriod = 0.01
	cfg.Emit = config.EmitDelta

	var buf bytes.Buffer
	mgr := collecting.NewManagerWith(&counterSource{})
	require.NoError(t, runSnapshot(context.Background(), cfg, mgr, &buf))

	out := buf.String()
	assert.Contains(t, out, "raplstats_default job 0 on node1")
	assert.Contains(t, out, "energy_uj")
}

func TestRunSnapshotCancelled(t *testing.T) {
	cfg := config.NewNodeConfig()
	cfg.SamplePeriod = 60

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := runSnapshot(ctx, cfg, collecting.NewManagerWith(&counterSource{}), io.Discard)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunSnapshotNothingToMonitor(t *testing.T) {
	cfg := config.NewNodeConfig()
	err := runSnapshot(context.Background(), cfg, collecting.NewManagerWith(), io.Discard)
	assert.Error(t, err)
}
