package report

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fieldguard/fieldguard/internal/analysis"
	"github.com/fieldguard/fieldguard/internal/classifier"
	"github.com/fieldguard/fieldguard/internal/logger"
	"go.uber.org/zap"
)

type reviewRow struct {
	Path       string
	FinalKey   string
	Source     string
	Decision   string
	Categories string
	Confidence string
	Reasons    string
	RowClass   string
}

type reviewPage struct {
	GeneratedAt string
	RunID       string
	Fingerprint string
	InputFiles  []string
	Stats       analysis.RunStats
	PayloadLine string
	HeadersLine string
	Blacklisted []reviewRow
	Excluded    []reviewRow
	Clean       []reviewRow
}

var reviewTemplate = template.Must(template.New("review").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Blacklist Review — {{.RunID}}</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2rem; color: #1c1e21; }
h1 { font-size: 1.4rem; }
h2 { font-size: 1.1rem; margin-top: 2rem; }
table { border-collapse: collapse; width: 100%; font-size: 0.85rem; }
th, td { border: 1px solid #d0d4d9; padding: 0.35rem 0.6rem; text-align: left; vertical-align: top; }
th { background: #f2f4f6; }
tr.blacklisted td:nth-child(4) { color: #b42318; font-weight: 600; }
tr.excluded td:nth-child(4) { color: #667085; }
tr.clean td:nth-child(4) { color: #067647; }
.meta { color: #667085; font-size: 0.85rem; }
.stats span { display: inline-block; margin-right: 1.5rem; }
</style>
</head>
<body>
<h1>Field Sensitivity Review</h1>
<p class="meta">Run {{.RunID}} · generated {{.GeneratedAt}} · rules {{.Fingerprint}}</p>
<p class="meta">Inputs: {{range .InputFiles}}{{.}} {{end}}</p>
<p class="stats">
<span><strong>{{.Stats.FieldsAnalyzed}}</strong> fields analyzed</span>
<span><strong>{{.Stats.FieldsBlacklisted}}</strong> blacklisted</span>
<span><strong>{{.Stats.FieldsExcluded}}</strong> excluded</span>
<span><strong>{{.Stats.CacheHits}}</strong> cache hits</span>
</p>

<h2>Blacklisted fields ({{len .Blacklisted}})</h2>
{{template "table" .Blacklisted}}

<h2>Excluded fields ({{len .Excluded}})</h2>
{{template "table" .Excluded}}

<h2>Clean fields ({{len .Clean}})</h2>
{{template "table" .Clean}}

<h2>Generated properties</h2>
<pre>payload.blacklist={{.PayloadLine}}
headers.blacklist={{.HeadersLine}}</pre>

<p class="meta">To override a decision, add the field's final key to
manual_blacklist or manual_whitelist in a developer overrides file and
run the merge command.</p>
</body>
</html>
{{define "table"}}
{{if .}}
<table>
<tr><th>Path</th><th>Final key</th><th>Source</th><th>Decision</th><th>Categories</th><th>Confidence</th><th>Reasons</th></tr>
{{range .}}<tr class="{{.RowClass}}"><td>{{.Path}}</td><td>{{.FinalKey}}</td><td>{{.Source}}</td><td>{{.Decision}}</td><td>{{.Categories}}</td><td>{{.Confidence}}</td><td>{{.Reasons}}</td></tr>
{{end}}</table>
{{else}}<p class="meta">None.</p>{{end}}
{{end}}`))

// RenderHTML renders the human review report for a run to a writer.
func RenderHTML(run *analysis.RunResult, w io.Writer) error {
	page := reviewPage{
		GeneratedAt: time.Now().Format("2006-01-02 15:04:05"),
		RunID:       run.RunID,
		Fingerprint: shortFingerprint(run.RuleFingerprint),
		InputFiles:  run.InputFiles,
		Stats:       run.Stats,
		PayloadLine: strings.Join(run.PayloadBlacklist, ","),
		HeadersLine: strings.Join(run.HeadersBlacklist, ","),
	}

	for _, r := range run.Results {
		row := toRow(r)
		switch {
		case r.Blacklisted:
			page.Blacklisted = append(page.Blacklisted, row)
		case r.Excluded:
			page.Excluded = append(page.Excluded, row)
		default:
			page.Clean = append(page.Clean, row)
		}
	}

	if err := reviewTemplate.Execute(w, page); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}

// WriteHTML renders the review report for a run into a file.
func WriteHTML(run *analysis.RunResult, path string, log *logger.Logger) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	if err := RenderHTML(run, file); err != nil {
		return err
	}

	log.Info("Review report written",
		zap.String("path", path),
		zap.Int("results", len(run.Results)))

	return nil
}

func toRow(r classifier.Result) reviewRow {
	decision, class := "clean", "clean"
	switch {
	case r.Blacklisted:
		decision, class = "BLACKLIST", "blacklisted"
	case r.Excluded:
		decision, class = "excluded", "excluded"
	}

	cats := make([]string, len(r.Categories))
	for i, c := range r.Categories {
		cats[i] = string(c)
	}

	return reviewRow{
		Path:       r.Path,
		FinalKey:   r.FinalKey,
		Source:     string(r.Source),
		Decision:   decision,
		Categories: strings.Join(cats, ", "),
		Confidence: string(r.Confidence),
		Reasons:    strings.Join(r.Reasons, "; "),
		RowClass:   class,
	}
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
