// Package html renders runs of the monitor as plain HTML pages.
package html

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/vianscientific/apicheck/internal/model"
)

const layout = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{template "title" .}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
td, th { padding: 0.2em 0.8em; text-align: left; border-bottom: 1px solid #ddd; }
.passed { color: #187218; }
.failed { color: #b11b1b; }
.skipped, .pending { color: #8a6d00; }
pre { background: #f4f4f4; padding: 0.5em; }
</style>
</head>
<body>{{template "body" .}}</body>
</html>`

const runTemplate = `{{define "title"}}{{.SuiteName}} run {{.ID}}{{end}}
{{define "body"}}
<h1>{{.SuiteName}} run {{.ID}} <span class="{{.Result}}">{{.Result}}</span></h1>
<p>Triggered by {{.Params.TriggeredBy}} {{relative .Scheduled}}{{if .Params.TestFilter}}, filter <code>{{.Params.TestFilter}}</code>{{end}}{{if .Params.Groups}}, groups {{join .Params.Groups}}{{end}}.</p>
<p>Passed {{.Summary.Passed}}, failed {{.Summary.Failed}}, total {{.Summary.Total}}, success rate {{printf "%.1f" .Summary.SuccessRate}}%.</p>
{{if .SetupLogs}}<pre>{{.SetupLogs}}</pre>{{end}}
<table>
<tr><th>Test</th><th>Group</th><th>Result</th><th>Passed</th><th>Failed</th><th>Duration</th></tr>
{{range .TestResults}}<tr><td>{{.Name}}</td><td>{{.Group}}</td><td class="{{.Result}}">{{.Result}}</td><td>{{.Passed}}</td><td>{{.Failed}}</td><td>{{.DurationInMS}} ms</td></tr>
{{end}}</table>
{{if .Summary.Failures}}<h2>Failures</h2>
<table>
<tr><th>Test</th><th>Check</th><th>Kind</th><th>Message</th></tr>
{{range .Summary.Failures}}<tr><td>{{.Test}}</td><td>{{.Name}}</td><td>{{.Kind}}</td><td>{{.Message}}</td></tr>
{{end}}</table>{{end}}
{{range .TestResults}}{{if and .Logs (eq .Result "failed")}}<h3>{{.Name}} logs</h3><pre>{{.Logs}}</pre>{{end}}{{end}}
{{end}}`

var runPage = template.Must(template.Must(template.New("layout").Funcs(template.FuncMap{
	"relative": FormatRelativeTime,
	"join":     join,
}).Parse(layout)).Parse(runTemplate))

func RenderRun(run model.SuiteRun, w io.Writer) error {
	return runPage.Execute(w, run)
}

func join(list []string) string {
	return strings.Join(list, ", ")
}

func FormatRelativeTime(t time.Time) string {
	now := time.Now()
	diff := now.Sub(t)

	if diff < 0 {
		diff = -diff
	}

	if diff < time.Minute {
		seconds := int(diff.Seconds())
		return fmt.Sprintf("%d s ago", seconds)
	}

	if diff < time.Hour {
		minutes := int(diff.Minutes())
		return fmt.Sprintf("%d min ago", minutes)
	}

	if diff < 24*time.Hour {
		hours := int(diff.Hours())
		return fmt.Sprintf("%d h ago", hours)
	}

	if diff < 7*24*time.Hour {
		days := int(diff.Hours() / 24)
		return fmt.Sprintf("%d day%s ago", days, pluralize(days))
	}

	return t.Format("Jan 2")
}

func pluralize(n int) string {
	if n > 1 {
		return "s"
	}
	return ""
}
