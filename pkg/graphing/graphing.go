// Package graphing renders stored records as an HTML page of charts, one
// chart per counter with a line per host.
package graphing

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	log "github.com/sirupsen/logrus"

	"colmet/pkg/counters"
	"colmet/pkg/exporting"
	"colmet/pkg/utils"
)

// Generator builds the chart page of one stored file.
type Generator struct {
	inputPath string
	outputDir string
	reg       *counters.Registry
}

// NewGenerator creates a generator. reg, when not nil, supplies the units
// and accumulation rules of known schemas.
func NewGenerator(inputPath, outputDir string, reg *counters.Registry) (*Generator, error) {
	if inputPath == "" {
		return nil, fmt.Errorf("input path is required")
	}
	if outputDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	return &Generator{inputPath: inputPath, outputDir: outputDir, reg: reg}, nil
}

// Series is one counter over time, per host.
type Series struct {
	Name string
	Unit counters.DisplayUnit
	// Cumulative counters also get a per-interval chart.
	Cumulative bool
	Values     map[string][]*float64 // host -> value per timestamp, nil when absent
}

// Dataset is everything read from one file, aligned on a common time axis.
type Dataset struct {
	Backend    string
	Jobs       []uint64
	Hosts      []string
	Timestamps []uint64
	Series     []*Series
	Records    int
}

// Generate writes the page and returns its path.
func (g *Generator) Generate() (string, error) {
	records, err := exporting.LoadRecords(g.inputPath)
	if err != nil {
		return "", fmt.Errorf("failed to load records: %w", err)
	}
	if len(records) < 2 {
		return "", fmt.Errorf("need at least 2 records to generate graphs, got %d", len(records))
	}

	ds := BuildDataset(records, g.schemaFor(records))
	if len(ds.Series) == 0 {
		return "", fmt.Errorf("no numeric counters in %s", g.inputPath)
	}

	if err := os.MkdirAll(g.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	html, err := renderPage(ds, filepath.Base(g.inputPath))
	if err != nil {
		return "", err
	}

	base := strings.TrimSuffix(filepath.Base(g.inputPath), filepath.Ext(g.inputPath))
	out := filepath.Join(g.outputDir, base+"-graphs.html")
	if err := os.WriteFile(out, []byte(html), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", out, err)
	}
	log.Infof("Generated %d charts for %d records in %s", len(ds.Series), ds.Records, out)
	return out, nil
}

func (g *Generator) schemaFor(records []exporting.Record) *counters.Schema {
	if g.reg == nil {
		return nil
	}
	name := utils.ToString(records[0][counters.HeaderBackend])
	s, err := g.reg.Lookup(name)
	if err != nil {
		log.Warnf("Schema %q is not known, charting every numeric column", name)
		return nil
	}
	return s
}

func isHeader(name string) bool {
	switch name {
	case counters.HeaderBackend, counters.HeaderHostname, counters.HeaderJobID, counters.HeaderTimestamp:
		return true
	}
	return false
}

// BuildDataset aligns records on their timestamps. With a schema the
// counters keep its order, units and rules; without one every numeric
// column is charted in name order and treated as cumulative.
func BuildDataset(records []exporting.Record, schema *counters.Schema) *Dataset {
	ds := &Dataset{Records: len(records)}
	if len(records) > 0 {
		ds.Backend = utils.ToString(records[0][counters.HeaderBackend])
	}

	tsIndex := make(map[uint64]int)
	for _, r := range records {
		ts := utils.ToUint64(r[counters.HeaderTimestamp])
		tsIndex[ts] = 0
		host := utils.ToString(r[counters.HeaderHostname])
		if !slices.Contains(ds.Hosts, host) {
			ds.Hosts = append(ds.Hosts, host)
		}
		job := utils.ToUint64(r[counters.HeaderJobID])
		if !slices.Contains(ds.Jobs, job) {
			ds.Jobs = append(ds.Jobs, job)
		}
	}
	for ts := range tsIndex {
		ds.Timestamps = append(ds.Timestamps, ts)
	}
	slices.Sort(ds.Timestamps)
	for i, ts := range ds.Timestamps {
		tsIndex[ts] = i
	}
	slices.Sort(ds.Hosts)
	slices.Sort(ds.Jobs)

	for _, s := range seriesFor(records, schema) {
		for _, r := range records {
			f, ok := utils.ToFloat64Ok(r[s.Name])
			if !ok {
				continue
			}
			host := utils.ToString(r[counters.HeaderHostname])
			vals, ok := s.Values[host]
			if !ok {
				vals = make([]*float64, len(ds.Timestamps))
				s.Values[host] = vals
			}
			vals[tsIndex[utils.ToUint64(r[counters.HeaderTimestamp])]] = &f
		}
		if len(s.Values) > 0 {
			ds.Series = append(ds.Series, s)
		}
	}
	return ds
}

func seriesFor(records []exporting.Record, schema *counters.Schema) []*Series {
	var out []*Series
	if schema != nil {
		for _, f := range schema.Counters() {
			if f.Type.Kind() == counters.Text {
				continue
			}
			out = append(out, &Series{
				Name:       f.Name,
				Unit:       f.Unit,
				Cumulative: f.Rule == counters.Add,
				Values:     map[string][]*float64{},
			})
		}
		return out
	}

	names := make(map[string]bool)
	for _, r := range records {
		for k, v := range r {
			if isHeader(k) {
				continue
			}
			if _, ok := utils.ToFloat64Ok(v); ok {
				names[k] = true
			}
		}
	}
	for _, name := range slices.Sorted(maps.Keys(names)) {
		out = append(out, &Series{Name: name, Unit: counters.Raw, Cumulative: true, Values: map[string][]*float64{}})
	}
	return out
}

// Deltas returns the differences between consecutive present values. The
// first point and points after a gap are absent.
func Deltas(vals []*float64) []*float64 {
	out := make([]*float64, len(vals))
	for i := 1; i < len(vals); i++ {
		if vals[i] == nil || vals[i-1] == nil {
			continue
		}
		d := *vals[i] - *vals[i-1]
		out[i] = &d
	}
	return out
}

// GenerateGraphsFromFile renders inputPath into outputDir.
func GenerateGraphsFromFile(inputPath, outputDir string, reg *counters.Registry) (string, error) {
	gen, err := NewGenerator(inputPath, outputDir, reg)
	if err != nil {
		return "", err
	}
	return gen.Generate()
}
