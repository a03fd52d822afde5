package report

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"text/template"
	"time"

	"github.com/google/uuid"

	"github.com/FranksOps/scout/internal/logging"
)

// Usage is what one provider spent and contributed during a run.
type Usage struct {
	QueriesMade int `json:"queries_made"`
	Domains     int `json:"domains"`
}

// DiscoveryReport summarizes one discovery run. It is built once at the end
// of the run and not modified afterwards.
type DiscoveryReport struct {
	RunID         string           `json:"run_id"`
	Keywords      int              `json:"keywords"`
	UniqueDomains int              `json:"unique_domains"`
	ProviderUsage map[string]Usage `json:"provider_usage"`
	OutputPath    string           `json:"output_path"`
	StartedAt     time.Time        `json:"started_at"`
	CollectedAt   time.Time        `json:"collected_at"`
}

// Build assembles the report and stamps it with a fresh run id.
func Build(keywords, uniqueDomains int, usage map[string]Usage, outputPath string, startedAt time.Time) DiscoveryReport {
	u := make(map[string]Usage, len(usage))
	for k, v := range usage {
		u[k] = v
	}
	return DiscoveryReport{
		RunID:         uuid.NewString(),
		Keywords:      keywords,
		UniqueDomains: uniqueDomains,
		ProviderUsage: u,
		OutputPath:    outputPath,
		StartedAt:     startedAt.UTC(),
		CollectedAt:   time.Now().UTC(),
	}
}

// Providers returns the provider names in r, sorted.
func (r DiscoveryReport) Providers() []string {
	names := make([]string, 0, len(r.ProviderUsage))
	for name := range r.ProviderUsage {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Log emits the run summary record.
func Log(logger *slog.Logger, r DiscoveryReport) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("discovery summary",
		"run_id", r.RunID,
		"collected_at", logging.CollectedAt(r.CollectedAt),
		"keywords", r.Keywords,
		"unique_domains", r.UniqueDomains,
		"provider_usage", r.ProviderUsage,
		"output_path", r.OutputPath,
	)
}

// Write renders r in the named format: json, text or html.
func Write(w io.Writer, format string, r DiscoveryReport) error {
	switch format {
	case "", "json":
		return WriteJSON(w, r)
	case "text":
		return WriteText(w, r)
	case "html":
		return WriteHTML(w, r)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// WriteJSON writes the report to the provided writer in JSON format.
func WriteJSON(w io.Writer, r DiscoveryReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

var funcs = template.FuncMap{
	"usage": func(r DiscoveryReport, name string) Usage { return r.ProviderUsage[name] },
}

// WriteText writes a human-readable summary.
func WriteText(w io.Writer, r DiscoveryReport) error {
	const textTmpl = `Scout Discovery Summary
-----------------------
Run:            {{.RunID}}
Time:           {{.StartedAt.Format "2006-01-02 15:04:05"}} - {{.CollectedAt.Format "2006-01-02 15:04:05"}}
Keywords:       {{.Keywords}}
Unique Domains: {{.UniqueDomains}}
Output:         {{.OutputPath}}

Providers:
{{- range $name := .Providers}}
{{- with usage $ $name}}
  {{$name}}: {{.QueriesMade}} queries, {{.Domains}} domains
{{- end}}
{{- else}}
  None
{{- end}}
`
	t, err := template.New("textReport").Funcs(funcs).Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("parse text template: %w", err)
	}
	if err := t.Execute(w, r); err != nil {
		return fmt.Errorf("render text report: %w", err)
	}
	return nil
}

// WriteHTML writes a basic HTML report.
func WriteHTML(w io.Writer, r DiscoveryReport) error {
	const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<title>Scout Discovery Report</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; }
  th { background: #eaeaea; }
</style>
</head>
<body>
  <h1>Scout Discovery Report</h1>
  <p><strong>Run:</strong> {{.RunID}}</p>
  <p><strong>Time:</strong> {{.StartedAt.Format "2006-01-02 15:04:05"}} to {{.CollectedAt.Format "2006-01-02 15:04:05"}}</p>

  <div class="stat-card">
    <div>Keywords</div>
    <div class="stat-val">{{.Keywords}}</div>
  </div>
  <div class="stat-card">
    <div>Unique Domains</div>
    <div class="stat-val">{{.UniqueDomains}}</div>
  </div>

  <h3>Provider Usage</h3>
  <table>
    <tr><th>Provider</th><th>Queries</th><th>Domains</th></tr>
    {{- range $name := .Providers}}
    {{- with usage $ $name}}
    <tr><td>{{$name}}</td><td>{{.QueriesMade}}</td><td>{{.Domains}}</td></tr>
    {{- end}}
    {{- else}}
    <tr><td colspan="3">None</td></tr>
    {{- end}}
  </table>
  <p>Domains written to <code>{{.OutputPath}}</code></p>
</body>
</html>
`
	t, err := template.New("htmlReport").Funcs(funcs).Parse(htmlTmpl)
	if err != nil {
		return fmt.Errorf("parse html template: %w", err)
	}
	if err := t.Execute(w, r); err != nil {
		return fmt.Errorf("render html report: %w", err)
	}
	return nil
}
