package graphing

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-echarts/go-echarts/v2/components"
)

// SummaryData is the header shown above the charts.
type SummaryData struct {
	Source  string
	Backend string
	Jobs    []uint64
	Hosts   []string
	First   uint64
	Last    uint64
	Records int
	Charts  int
}

func newSummary(ds *Dataset, source string, charts int) *SummaryData {
	s := &SummaryData{
		Source:  source,
		Backend: ds.Backend,
		Jobs:    ds.Jobs,
		Hosts:   ds.Hosts,
		Records: ds.Records,
		Charts:  charts,
	}
	if n := len(ds.Timestamps); n > 0 {
		s.First = ds.Timestamps[0]
		s.Last = ds.Timestamps[n-1]
	}
	return s
}

// Duration is the time covered by the records.
func (s *SummaryData) Duration() time.Duration {
	return time.Duration(s.Last-s.First) * time.Second
}

// renderPage lays out a raw chart per series, followed by a delta chart
// for cumulative ones, and injects the summary into the echarts page.
func renderPage(ds *Dataset, source string) (string, error) {
	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("%s - %s", ds.Backend, source)

	count := 0
	for _, s := range ds.Series {
		page.AddCharts(createLineChart(ds, s, false))
		count++
		if s.Cumulative && len(ds.Timestamps) > 1 {
			page.AddCharts(createLineChart(ds, s, true))
			count++
		}
	}

	var buf strings.Builder
	if err := page.Render(&buf); err != nil {
		return "", fmt.Errorf("failed to render charts: %w", err)
	}

	var summary, head bytes.Buffer
	if err := templates.ExecuteTemplate(&summary, "summary", newSummary(ds, source, count)); err != nil {
		return "", fmt.Errorf("failed to execute summary template: %w", err)
	}
	if err := templates.ExecuteTemplate(&head, "styles", nil); err != nil {
		return "", err
	}
	if err := templates.ExecuteTemplate(&head, "scripts", nil); err != nil {
		return "", err
	}

	html := buf.String()
	html = strings.Replace(html, "<body>", "<body>\n"+summary.String(), 1)
	html = strings.Replace(html, "</head>", head.String()+"</head>", 1)
	return html, nil
}
