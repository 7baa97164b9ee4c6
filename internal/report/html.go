package report

import (
	"fmt"
	"html/template"
	"io"
	"time"
)

// HTMLGenerator generates HTML reports
type HTMLGenerator struct {
	template *template.Template
}

var htmlFuncs = template.FuncMap{
	"formatTime": func(t time.Time) string {
		return t.Format("2006-01-02 15:04:05")
	},
	"formatDuration": func(d time.Duration) string {
		return d.String()
	},
	"truncate": func(s string, n int) string {
		if len(s) <= n {
			return s
		}
		return s[:n] + "..."
	},
}

// NewHTMLGenerator creates a generator with the default template
func NewHTMLGenerator() *HTMLGenerator {
	return &HTMLGenerator{
		template: template.Must(template.New("report").Funcs(htmlFuncs).Parse(htmlTemplate)),
	}
}

// CustomHTMLGenerator creates a generator with a custom template
func CustomHTMLGenerator(templateStr string) (*HTMLGenerator, error) {
	tmpl, err := template.New("report").Funcs(htmlFuncs).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return &HTMLGenerator{template: tmpl}, nil
}

// Generate generates an HTML report
func (g *HTMLGenerator) Generate(report *Report, w io.Writer) error {
	return g.template.Execute(w, report)
}

// Extension returns the file extension
func (g *HTMLGenerator) Extension() string {
	return "html"
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}} - Bypass Report</title>
    <style>
        body { margin: 0; background: #f4f5f7; color: #1f2328; font: 14px/1.5 system-ui, sans-serif; }
        main { max-width: 1280px; margin: 0 auto; padding: 24px; }
        header { border-bottom: 3px solid #cf222e; padding-bottom: 12px; margin-bottom: 24px; }
        header h1 { margin: 0 0 4px; font-size: 24px; }
        header p { margin: 0; color: #59636e; }
        section { background: #fff; border: 1px solid #d1d9e0; border-radius: 6px; padding: 16px; margin-bottom: 16px; }
        section h2 { margin: 0 0 12px; font-size: 16px; }
        dl.totals { display: flex; flex-wrap: wrap; gap: 32px; margin: 0; }
        dl.totals dt { color: #59636e; font-size: 12px; text-transform: uppercase; }
        dl.totals dd { margin: 0; font-size: 22px; font-weight: 600; }
        table { width: 100%; border-collapse: collapse; }
        th { text-align: left; background: #f6f8fa; }
        th, td { padding: 4px 8px; border-bottom: 1px solid #eaeef2; vertical-align: top; }
        code { font: 12px ui-monospace, monospace; word-break: break-all; }
        tr.high { background: #dafbe1; }
        tr.medium { background: #fff8c5; }
        tr.low { background: #ffebe9; }
        .hl { display: inline-block; width: 10px; height: 10px; border-radius: 50%; }
        .none { color: #59636e; font-style: italic; }
        footer { color: #59636e; font-size: 12px; text-align: center; }
    </style>
</head>
<body>
    <main>
        <header>
            <h1>{{.Title}}</h1>
            <p>{{.TargetURL}} &middot; {{formatTime .GeneratedAt}} &middot; run {{.RunID}}</p>
        </header>

        <section>
            <h2>Totals</h2>
            <dl class="totals">
                <div><dt>Requests</dt><dd>{{.Statistics.TotalResults}}</dd></div>
                <div><dt>Shown</dt><dd>{{.Statistics.VisibleResults}}</dd></div>
                <div><dt>Filtered</dt><dd>{{.Statistics.HiddenResults}}</dd></div>
                <div><dt>Patterns</dt><dd>{{.Statistics.UniquePatterns}}</dd></div>
                <div><dt>Duration</dt><dd>{{formatDuration .Statistics.Duration}}</dd></div>
            </dl>
        </section>

        <section>
            <h2>Findings ({{len .Findings}})</h2>
            {{if .Findings}}
            <table>
                <tr><th>#</th><th>Attack</th><th>Payload</th><th>Status</th><th>Length</th><th>Type</th><th></th></tr>
                {{range .Findings}}
                <tr class="{{.Severity}}">
                    <td>{{.ID}}</td>
                    <td>{{.AttackType}}</td>
                    <td><code>{{truncate .Payload 160}}</code></td>
                    <td>{{.StatusCode}}</td>
                    <td>{{.ContentLength}}</td>
                    <td>{{.ContentType}}</td>
                    <td>{{if .Highlight}}<span class="hl" title="{{.Highlight}}" style="background: {{.Highlight}}"></span>{{end}}</td>
                </tr>
                {{end}}
            </table>
            {{else}}
            <p class="none">No results passed the filters.</p>
            {{end}}
        </section>

        <section>
            <h2>Response patterns</h2>
            <table>
                <tr><th>Status</th><th>Length</th><th>Type</th><th>Seen</th><th>Shown</th></tr>
                {{range .Patterns}}
                <tr><td>{{.StatusCode}}</td><td>{{.ContentLength}}</td><td>{{.ContentType}}</td><td>{{.Count}}</td><td>{{.Shown}}</td></tr>
                {{end}}
            </table>
        </section>

        <footer>bypassfuzzer {{.Version}}</footer>
    </main>
</body>
</html>`
