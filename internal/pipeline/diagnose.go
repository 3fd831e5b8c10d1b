package pipeline

import (
	"context"
	"fmt"
	"time"

	"rustdiag/internal/markup"
	"rustdiag/internal/report"
	"rustdiag/internal/span"
	"rustdiag/internal/storage"
)

// FileDiagnostics is one marked-up file.
type FileDiagnostics struct {
	Path   string      `json:"path"`
	Output string      `json:"output"`
	Spans  []span.Span `json:"spans"`
}

// DiagnoseResult is the outcome of a diagnostic pass.
type DiagnoseResult struct {
	RunID   string            `json:"runId"`
	Spans   span.FileSpans    `json:"-"`
	Files   []FileDiagnostics `json:"files"`
	Skipped []Skipped         `json:"skipped,omitempty"`
	Stats   report.Stats      `json:"stats"`
}

// Summary returns the console line reporting how many warnings were found.
func (r *DiagnoseResult) Summary() string {
	return fmt.Sprintf("There are %d warnings in %d files.", r.Spans.Count(), len(r.Spans))
}

// Diagnose runs the analyzer, then writes every reported file of the project with its spans
// marked up into the diagnostics tree. Previously marked-up files are removed first.
func (p *Pipeline) Diagnose(ctx context.Context) (*DiagnoseResult, error) {
	run := storage.NewRun(storage.RunDiagnose, p.root, p.rules)
	res, err := p.diagnose(ctx, run.ID)
	if err != nil {
		return nil, err
	}

	if p.dataset != nil {
		p.saveRun(run)
		if err := p.dataset.SaveSpans(run.ID, storage.PhaseBefore, res.Spans); err != nil {
			p.logger.Warn("Failed to record spans", "run", run.ID, "error", err)
		}
		finished := time.Now().UTC()
		run.FinishedAt = &finished
		p.saveRun(run)
	}
	return res, nil
}

func (p *Pipeline) diagnose(ctx context.Context, runID string) (*DiagnoseResult, error) {
	if err := p.writer.CleanDiagnostics(); err != nil {
		p.logger.Warn("Failed to remove previous diagnostics", "error", err)
	}

	start := time.Now()
	checked, err := p.runner.Check(ctx, p.root, p.rules)
	if err != nil {
		return nil, err
	}
	spans := p.inProject(checked.Spans)

	files := spans.Files()
	out := make([]FileDiagnostics, len(files))
	written := make([]bool, len(files))

	skipped, err := p.forEach(ctx, files, func(ctx context.Context, i int, path string) error {
		source, err := p.readSource(path)
		if err != nil {
			return err
		}
		target, err := p.writer.WriteDiagnostics(path, markup.Markup(source, spans[path]))
		if err != nil {
			return err
		}
		out[i] = FileDiagnostics{Path: path, Output: target, Spans: spans[path]}
		written[i] = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := &DiagnoseResult{RunID: runID, Spans: spans, Skipped: skipped, Stats: checked.Stats}
	for i := range out {
		if written[i] {
			res.Files = append(res.Files, out[i])
		}
	}

	p.logger.Info("Diagnostics written",
		"warnings", spans.Count(),
		"files", len(res.Files),
		"skipped", len(skipped),
		"duration", time.Since(start).String(),
	)
	return res, nil
}
