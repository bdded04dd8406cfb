package graphing

import (
	"fmt"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"colmet/pkg/counters"
)

const timeLayout = "01-02 15:04:05"

func timeLabels(timestamps []uint64) []string {
	labels := make([]string, len(timestamps))
	for i, ts := range timestamps {
		labels[i] = time.Unix(int64(ts), 0).Format(timeLayout)
	}
	return labels
}

func lineData(vals []*float64) []opts.LineData {
	data := make([]opts.LineData, len(vals))
	for i, v := range vals {
		if v == nil {
			data[i] = opts.LineData{Value: "-"}
			continue
		}
		data[i] = opts.LineData{Value: *v}
	}
	return data
}

func unitName(u counters.DisplayUnit) string {
	switch u {
	case counters.Raw, counters.Label, "":
		return ""
	case counters.Temperature:
		return "°C"
	}
	return string(u)
}

// createLineChart charts one counter with a line per host. A delta chart
// shows the change between consecutive samples.
func createLineChart(ds *Dataset, s *Series, isDelta bool) *charts.Line {
	line := charts.NewLine()

	title := s.Name
	if isDelta {
		title += " (Delta)"
	} else {
		title += " (Raw)"
	}
	subtitle := ""
	if u := unitName(s.Unit); u != "" {
		subtitle = fmt.Sprintf("unit: %s", u)
	}

	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(len(ds.Hosts) > 1), Top: "30"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", AxisLabel: &opts.AxisLabel{Rotate: 45}}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "400px"}),
	)

	line.SetXAxis(timeLabels(ds.Timestamps))
	for _, host := range ds.Hosts {
		vals, ok := s.Values[host]
		if !ok {
			continue
		}
		if isDelta {
			vals = Deltas(vals)
		}
		line.AddSeries(host, lineData(vals),
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true), ConnectNulls: opts.Bool(false)}),
		)
	}

	if isDelta {
		line.SetSeriesOptions(charts.WithAreaStyleOpts(opts.AreaStyle{Opacity: opts.Float(0.2)}))
	}
	return line
}
