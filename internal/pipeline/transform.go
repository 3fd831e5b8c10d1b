package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"rustdiag/internal/emit"
	"rustdiag/internal/items"
	"rustdiag/internal/span"
	"rustdiag/internal/storage"
	"rustdiag/internal/transform"
)

// TransformResult is the outcome of a transform run.
type TransformResult struct {
	RunID     string             `json:"runId"`
	Before    span.FileSpans     `json:"-"`
	After     span.FileSpans     `json:"-"`
	Files     []transform.Result `json:"files"`
	Pairs     int                `json:"pairs"`
	Manifests []string           `json:"manifests"`
	Rewritten []string           `json:"rewritten,omitempty"`
	Skipped   []Skipped          `json:"skipped,omitempty"`
}

// Summary returns the console line reporting how many warnings were found before the fix.
func (r *TransformResult) Summary() string {
	d := DiagnoseResult{Spans: r.Before}
	return d.Summary()
}

// Transform diagnoses the project, runs configured rewriters and a single auto-fix pass,
// then turns every changed item into a before/after pair per rule. Source files are
// restored to their pre-fix content before Transform returns, whether or not it succeeds.
func (p *Pipeline) Transform(ctx context.Context) (*TransformResult, error) {
	run := storage.NewRun(storage.RunTransform, p.root, p.rules)
	start := time.Now()

	diag, err := p.diagnose(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	if err := p.writer.CleanTransform(); err != nil {
		p.logger.Warn("Failed to remove previous pairs", "error", err)
	}
	res := &TransformResult{RunID: run.ID, Before: diag.Spans, Skipped: diag.Skipped}

	originals := make(map[string][]byte)
	modes := make(map[string]os.FileMode)
	for _, f := range diag.Files {
		data, err := p.readSource(f.Path)
		if err != nil {
			res.Skipped = append(res.Skipped, Skipped{Path: f.Path, Err: err})
			continue
		}
		originals[f.Path] = data
		if info, err := os.Stat(p.sourcePath(f.Path)); err == nil {
			modes[f.Path] = info.Mode().Perm()
		}
	}

	var restoreOnce sync.Once
	restore := func() {
		restoreOnce.Do(func() { p.restore(originals, modes) })
	}
	defer restore()

	res.Rewritten = p.rewrite(ctx, diag.Spans, originals)

	fixed, err := p.runner.Fix(ctx, p.root, p.rules)
	if err != nil {
		return nil, err
	}
	res.After = p.inProject(fixed.Spans)

	buffers := make(map[string][]byte, len(originals))
	for path := range originals {
		data, err := p.readSource(path)
		if err != nil {
			res.Skipped = append(res.Skipped, Skipped{Path: path, Err: err})
			continue
		}
		buffers[path] = data
	}
	restore()

	files := make([]string, 0, len(buffers))
	for path := range buffers {
		files = append(files, path)
	}
	sort.Strings(files)

	var mu sync.Mutex
	var pairs []transform.Pair
	entries := make(map[string][]emit.ManifestEntry)
	results := make([]transform.Result, len(files))

	skipped, err := p.forEach(ctx, files, func(ctx context.Context, i int, path string) error {
		r := p.transformer.File(ctx, transform.File{
			Path:     path,
			Language: p.language(path),
			Original: originals[path],
			Fixed:    buffers[path],
			Before:   res.Before[path],
			After:    res.After[path],
		})
		results[i] = r
		if r.ExtractErr != nil {
			p.logger.Warn("Item extraction failed", "path", path, "error", r.ExtractErr)
		}

		for _, pair := range r.Pairs {
			before, after, err := p.writer.WritePair(pair)
			if err != nil {
				return err
			}
			entry := p.writer.Entry(pair, before, after)
			mu.Lock()
			pairs = append(pairs, pair)
			entries[pair.Rule] = append(entries[pair.Rule], entry)
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Skipped = append(res.Skipped, skipped...)
	res.Files = results
	res.Pairs = len(pairs)

	rules := make([]string, 0, len(entries))
	for rule := range entries {
		rules = append(rules, rule)
	}
	sort.Strings(rules)
	for _, rule := range rules {
		path, err := p.writer.WriteManifest(emit.Manifest{
			Rule:      rule,
			RunID:     run.ID,
			Generated: time.Now().UTC(),
			Pairs:     entries[rule],
		})
		if err != nil {
			p.logger.Warn("Failed to write manifest", "rule", rule, "error", err)
			continue
		}
		res.Manifests = append(res.Manifests, path)
	}

	p.record(run, res, pairs)

	p.logger.Info("Transform finished",
		"pairs", res.Pairs,
		"rules", len(rules),
		"skipped", len(res.Skipped),
		"duration", time.Since(start).String(),
	)
	return res, nil
}

// rewrite runs the configured rewriters on every file with spans of their rule and returns
// the files a rewriter ran on. Rules are applied in sorted order per file.
func (p *Pipeline) rewrite(ctx context.Context, spans span.FileSpans, originals map[string][]byte) []string {
	var files []string
	for _, path := range spans.Files() {
		if _, ok := originals[path]; ok {
			files = append(files, path)
		}
	}

	var mu sync.Mutex
	var rewritten []string
	_, _ = p.forEach(ctx, files, func(ctx context.Context, _ int, path string) error {
		rules := make(map[string]bool)
		for _, s := range spans[path] {
			if p.runner.HasRewriter(s.RuleID) {
				rules[s.RuleID] = true
			}
		}
		ordered := make([]string, 0, len(rules))
		for r := range rules {
			ordered = append(ordered, r)
		}
		sort.Strings(ordered)

		for _, rule := range ordered {
			ran, err := p.runner.Rewrite(ctx, p.root, rule, path)
			if err != nil {
				return err
			}
			if ran {
				mu.Lock()
				rewritten = append(rewritten, path)
				mu.Unlock()
			}
		}
		return nil
	})

	sort.Strings(rewritten)
	return slices.Compact(rewritten)
}

// restore writes the captured pre-fix buffers back with their original permissions.
func (p *Pipeline) restore(originals map[string][]byte, modes map[string]os.FileMode) {
	for path, data := range originals {
		mode, ok := modes[path]
		if !ok {
			mode = 0644
		}
		target := p.sourcePath(path)
		if err := os.WriteFile(target, data, mode); err != nil {
			p.logger.Error("Failed to restore original file", "path", path, "error", err)
			continue
		}
		// WriteFile applies mode only to files it creates; the fixer may have replaced this one.
		if err := os.Chmod(target, mode); err != nil {
			p.logger.Warn("Failed to restore file mode", "path", path, "error", err)
		}
	}
}

func (p *Pipeline) record(run *storage.Run, res *TransformResult, pairs []transform.Pair) {
	if p.dataset == nil {
		return
	}
	p.saveRun(run)
	if err := p.dataset.SaveSpans(run.ID, storage.PhaseBefore, res.Before); err != nil {
		p.logger.Warn("Failed to record spans", "run", run.ID, "error", err)
	}
	if err := p.dataset.SaveSpans(run.ID, storage.PhaseAfter, res.After); err != nil {
		p.logger.Warn("Failed to record spans", "run", run.ID, "error", err)
	}
	if err := p.dataset.SavePairs(run.ID, pairs); err != nil {
		p.logger.Warn("Failed to record pairs", "run", run.ID, "error", err)
	}
	finished := time.Now().UTC()
	run.FinishedAt = &finished
	p.saveRun(run)
}

// language picks the grammar from the file extension, falling back to the configured one.
func (p *Pipeline) language(path string) items.Language {
	if lang, ok := items.LanguageFromExtension(filepath.Ext(path)); ok {
		return lang
	}
	return items.Language(p.cfg.Language)
}
