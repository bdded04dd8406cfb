package graphing

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"colmet/pkg/counters"
	"colmet/pkg/exporting"
	"colmet/pkg/metrics"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func raplRecords(t *testing.T) []*counters.Unpacked {
	t.Helper()
	var recs []*counters.Unpacked
	add := func(host string, ts, energy uint64) {
		r, err := counters.FromValues(metrics.RAPLstats, map[string]any{"energy_uj": energy})
		require.NoError(t, err)
		r.SetHeaders(host, 0, ts)
		recs = append(recs, r)
	}
	add("node1", 100, 1000)
	add("node2", 100, 5000)
	add("node1", 105, 1500)
	add("node1", 110, 2500)
	add("node2", 110, 6000)
	return recs
}

func TestBuildDatasetWithSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rapl.jsonl")
	require.NoError(t, exporting.SaveRecords(path, metrics.RAPLstats, raplRecords(t)))
	records, err := exporting.LoadRecords(path)
	require.NoError(t, err)

	ds := BuildDataset(records, metrics.RAPLstats)
	assert.Equal(t, metrics.RAPLstats.Name(), ds.Backend)
	assert.Equal(t, []string{"node1", "node2"}, ds.Hosts)
	assert.Equal(t, []uint64{0}, ds.Jobs)
	assert.Equal(t, []uint64{100, 105, 110}, ds.Timestamps)
	assert.Equal(t, 5, ds.Records)

	var energy *Series
	for _, s := range ds.Series {
		if s.Name == "energy_uj" {
			energy = s
		}
	}
	require.NotNil(t, energy)
	assert.True(t, energy.Cumulative)

	node2 := energy.Values["node2"]
	require.Len(t, node2, 3)
	assert.Nil(t, node2[1], "node2 has no sample at 105")
	assert.Equal(t, 6000.0, *node2[2])
}

func TestBuildDatasetWithoutSchema(t *testing.T) {
	records := []exporting.Record{
		{counters.HeaderBackend: "custom", counters.HeaderHostname: "h", counters.HeaderJobID: uint64(3), counters.HeaderTimestamp: uint64(2), "b": 2.0, "a": int64(1), "label": "x"},
		{counters.HeaderBackend: "custom", counters.HeaderHostname: "h", counters.HeaderJobID: uint64(3), counters.HeaderTimestamp: uint64(1), "b": 1.0, "a": int64(0), "label": "y"},
	}
	ds := BuildDataset(records, nil)

	require.Len(t, ds.Series, 2)
	assert.Equal(t, "a", ds.Series[0].Name)
	assert.Equal(t, "b", ds.Series[1].Name)
	assert.Equal(t, []uint64{1, 2}, ds.Timestamps)
	assert.Equal(t, 1.0, *ds.Series[1].Values["h"][0])
}

func TestDeltas(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	got := Deltas([]*float64{f(1), f(4), nil, f(10), f(12)})

	require.Len(t, got, 5)
	assert.Nil(t, got[0])
	assert.Equal(t, 3.0, *got[1])
	assert.Nil(t, got[2])
	assert.Nil(t, got[3])
	assert.Equal(t, 2.0, *got[4])
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "rapl-job0.csv")
	require.NoError(t, exporting.SaveRecords(in, metrics.RAPLstats, raplRecords(t)))

	reg, err := metrics.NewRegistry()
	require.NoError(t, err)
	out, err := GenerateGraphsFromFile(in, filepath.Join(dir, "graphs"), reg)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "graphs", "rapl-job0-graphs.html"), out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	html := string(data)
	assert.Contains(t, html, "energy_uj (Raw)")
	assert.Contains(t, html, "energy_uj (Delta)")
	assert.Contains(t, html, "node1, node2")
	assert.Contains(t, html, "summary-header")
	assert.Equal(t, 1, strings.Count(html, `class="summary-header"`))
}

func TestGenerateNeedsTwoRecords(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "one.jsonl")
	require.NoError(t, exporting.SaveRecords(in, metrics.RAPLstats, raplRecords(t)[:1]))

	_, err := GenerateGraphsFromFile(in, dir, nil)
	assert.ErrorContains(t, err, "at least 2 records")

	_, err = NewGenerator("", dir, nil)
	assert.Error(t, err)
}
