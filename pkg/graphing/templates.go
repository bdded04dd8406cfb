package graphing

import (
	"fmt"
	"html/template"
	"strings"
	"time"
)

var templates = template.Must(template.New("").Funcs(templateFuncs).Parse(`
{{define "styles"}}
<style>
* {
    font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Arial, sans-serif;
}
body {
    max-width: 1400px;
    margin: 0 auto;
    padding: 20px;
}
.summary-header {
    border-bottom: 2px solid #333;
    padding-bottom: 10px;
    margin-bottom: 15px;
}
.summary-header h1 {
    margin: 0;
    font-size: 18px;
}
.summary-source {
    font-size: 11px;
    color: #666;
    font-family: monospace;
}
.info-section {
    margin-bottom: 15px;
    padding: 15px;
    background: #f5f5f5;
    border: 1px solid #ddd;
}
.info-table {
    width: 100%;
    border-collapse: collapse;
    font-size: 12px;
}
.info-table td {
    padding: 3px 8px;
    border-bottom: 1px solid #eee;
}
.info-table td:first-child {
    width: 150px;
    color: #666;
}
.info-table td:last-child {
    font-family: monospace;
    font-size: 11px;
}
.info-table tr:last-child td {
    border-bottom: none;
}
.container {
    display: block !important;
    margin: 0 0 10px 0 !important;
    padding: 15px !important;
    background: #f5f5f5 !important;
    border: 1px solid #ddd !important;
    overflow: hidden !important;
}
.item {
    margin: 0 !important;
}
</style>
{{end}}

{{define "scripts"}}
<script>
function resizeCharts() {
    document.querySelectorAll('[_echarts_instance_]').forEach(function(el) {
        var c = echarts.getInstanceByDom(el);
        if (c) c.resize();
    });
}
window.addEventListener('resize', resizeCharts);
window.addEventListener('load', function() { setTimeout(resizeCharts, 100); });
</script>
{{end}}

{{define "summary"}}
<div class="summary-header">
    <h1>{{.Backend}}</h1>
    <div class="summary-source">{{.Source}}</div>
</div>
<div class="info-section">
    <table class="info-table">
        {{template "row" dict "Label" "Jobs" "Value" (joinJobs .Jobs)}}
        {{template "row" dict "Label" "Hosts" "Value" (join .Hosts)}}
        {{template "row" dict "Label" "First sample" "Value" (formatTime .First)}}
        {{template "row" dict "Label" "Last sample" "Value" (formatTime .Last)}}
        {{template "row" dict "Label" "Duration" "Value" .Duration}}
        {{template "row" dict "Label" "Records" "Value" .Records}}
        {{template "row" dict "Label" "Charts" "Value" .Charts}}
    </table>
</div>
{{end}}

{{define "row"}}
<tr><td>{{.Label}}</td><td>{{.Value}}</td></tr>
{{end}}
`))

var templateFuncs = template.FuncMap{
	"dict":       dictFunc,
	"join":       func(s []string) string { return strings.Join(s, ", ") },
	"joinJobs":   joinJobsFunc,
	"formatTime": formatTimeFunc,
}

// dictFunc creates a map from key-value pairs for template use.
func dictFunc(values ...any) map[string]any {
	if len(values)%2 != 0 {
		return nil
	}
	dict := make(map[string]any, len(values)/2)
	for i := 0; i < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			continue
		}
		dict[key] = values[i+1]
	}
	return dict
}

func joinJobsFunc(jobs []uint64) string {
	parts := make([]string, len(jobs))
	for i, j := range jobs {
		if j == 0 {
			parts[i] = "node"
			continue
		}
		parts[i] = fmt.Sprintf("%d", j)
	}
	return strings.Join(parts, ", ")
}

func formatTimeFunc(ts uint64) string {
	if ts == 0 {
		return ""
	}
	return time.Unix(int64(ts), 0).Format("2006-01-02 15:04:05")
}
