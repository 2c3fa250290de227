package server

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/a-h/templ"
	"github.com/conneroisu/sitewright/internal/pipeline"
)

// CommandSummary describes one finished host command.
type CommandSummary struct {
	ID          string
	Description string
	Finished    time.Time
	Duration    time.Duration
	Err         string
}

// Status is what the status page shows.
type Status struct {
	Version    string
	ProjectDir string
	WebsiteDir string
	Clients    int
	LastRun    *pipeline.RunReport
	Commands   []CommandSummary
}

// StatusFunc returns the current status
type StatusFunc func() Status

// StatusPage renders st as a standalone HTML page.
func StatusPage(st Status) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		e := templ.EscapeString[string]
		p := &pageWriter{w: w}

		p.printf(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>sitewright status</title>`)
		p.printf(`<style>body{font-family:system-ui,sans-serif;margin:2rem}table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:.25rem .5rem;text-align:left}.err{color:#b00}</style>`)
		p.printf(`</head><body><h1>sitewright %s</h1>`, e(st.Version))
		p.printf(`<p>Project <code>%s</code> building into <code>%s</code>. %d live reload client(s).</p>`,
			e(st.ProjectDir), e(st.WebsiteDir), st.Clients)

		p.printf(`<h2>Last pipeline run</h2>`)
		if st.LastRun == nil {
			p.printf(`<p>No views built yet.</p>`)
		} else {
			r := st.LastRun
			p.printf(`<p>Run <code>%s</code> of <code>%s</code> started %s and took %s: %d written, %d copied, %d skipped, %d failed.</p>`,
				e(r.RunID.String()), e(r.Input), e(r.Started.Format(time.RFC3339)), e(r.Duration.String()),
				len(r.Written), len(r.Copied), len(r.Skipped), len(r.Errors))
			if len(r.Errors) > 0 {
				p.printf(`<table><tr><th>Stage</th><th>File</th><th>Error</th></tr>`)
				for _, se := range r.Errors {
					p.printf(`<tr><td>%s</td><td>%s</td><td class="err">%s</td></tr>`, e(se.Stage), e(se.File), e(se.Err.Error()))
				}
				p.printf(`</table>`)
			}
			if byStage := r.ErrorsByStage(); len(byStage) > 0 {
				stages := make([]string, 0, len(byStage))
				for stage := range byStage {
					stages = append(stages, stage)
				}
				sort.Strings(stages)
				p.printf(`<ul>`)
				for _, stage := range stages {
					p.printf(`<li>%s: %d</li>`, e(stage), byStage[stage])
				}
				p.printf(`</ul>`)
			}
		}

		p.printf(`<h2>Recent commands</h2>`)
		if len(st.Commands) == 0 {
			p.printf(`<p>None.</p>`)
		} else {
			p.printf(`<table><tr><th>Finished</th><th>Command</th><th>Duration</th><th>Result</th></tr>`)
			for _, c := range st.Commands {
				result, class := "ok", ""
				if c.Err != "" {
					result, class = c.Err, ` class="err"`
				}
				p.printf(`<tr><td>%s</td><td>%s</td><td>%s</td><td%s>%s</td></tr>`,
					e(c.Finished.Format(time.TimeOnly)), e(c.Description), e(c.Duration.String()), class, e(result))
			}
			p.printf(`</table>`)
		}

		p.printf(`</body></html>`)
		return p.err
	})
}

// pageWriter keeps the first write error
type pageWriter struct {
	w   io.Writer
	err error
}

func (p *pageWriter) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
