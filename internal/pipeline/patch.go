package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"rustdiag/internal/errors"
	"rustdiag/internal/git"
	"rustdiag/internal/patch"
	"rustdiag/internal/paths"
	"rustdiag/internal/span"
	"rustdiag/internal/storage"
)

// PatchResult is the outcome of correlating a revision's diff with the current diagnostics.
type PatchResult struct {
	RunID     string             `json:"runId"`
	Head      string             `json:"head"`
	Target    string             `json:"target"`
	Spans     span.FileSpans     `json:"-"`
	Touched   span.FileSpans     `json:"touched"`
	Confirmed bool               `json:"confirmed"`
	Resolved  int                `json:"resolved"`
	Reports   []patch.FileReport `json:"reports"`
}

// Summary returns the console line reporting how many warnings were found at HEAD.
func (r *PatchResult) Summary() string {
	d := DiagnoseResult{Spans: r.Spans}
	return d.Summary()
}

// Patch diagnoses the project at HEAD and correlates the spans with the hunks of the diff
// from HEAD to rev. With confirm set, rev is checked out into a temporary worktree and
// diagnosed again; a touched span stays resolved only when no span reported at rev overlaps
// its lines, and only resolved spans are reported.
func (p *Pipeline) Patch(ctx context.Context, rev string, confirm bool) (*PatchResult, error) {
	repo, err := git.NewAdapter(ctx, p.root, 0, p.logger)
	if err != nil {
		return nil, err
	}
	head, err := repo.Head(ctx)
	if err != nil {
		return nil, err
	}
	target, err := repo.ResolveRevision(ctx, rev)
	if err != nil {
		return nil, err
	}

	run := storage.NewRun(storage.RunPatch, p.root, p.rules)
	run.Revision = target

	diag, err := p.diagnose(ctx, run.ID)
	if err != nil {
		return nil, err
	}

	text, err := repo.Diff(ctx, head, target)
	if err != nil {
		return nil, err
	}
	diffs, err := patch.Parse(text)
	if err != nil {
		return nil, errors.New(errors.InternalError, "cannot parse diff", err)
	}

	// Diff paths are relative to the repository, analyzer paths to the project.
	prefix, err := paths.CanonicalizePath(p.root, repo.Root())
	if err != nil {
		return nil, err
	}
	spans := rebase(diag.Spans, prefix)

	res := &PatchResult{
		RunID:     run.ID,
		Head:      head,
		Target:    target,
		Spans:     diag.Spans,
		Touched:   patch.Touched(diffs, spans),
		Confirmed: confirm,
	}
	if confirm {
		if err := p.confirm(ctx, repo, target, prefix, res.Touched); err != nil {
			return nil, err
		}
	}
	// Without confirmation every touched span counts as resolved.
	resolved := res.Touched.Resolved()
	res.Resolved = resolved.Count()
	res.Reports = patch.Correlate(diffs, resolved, false)

	p.logger.Info("Patch correlated",
		"head", head,
		"target", target,
		"files", len(diffs),
		"touched", res.Touched.Count(),
		"resolved", res.Resolved,
	)

	if p.dataset != nil {
		p.saveRun(run)
		if err := p.dataset.SaveSpans(run.ID, storage.PhaseBefore, res.Touched); err != nil {
			p.logger.Warn("Failed to record spans", "run", run.ID, "error", err)
		}
		finished := time.Now().UTC()
		run.FinishedAt = &finished
		p.saveRun(run)
	}
	return res, nil
}

// confirm diagnoses target in a detached worktree and clears Resolved on touched spans that
// are still diagnosed there.
func (p *Pipeline) confirm(ctx context.Context, repo *git.Adapter, target, prefix string, touched span.FileSpans) error {
	worktree, err := repo.AddWorktree(ctx, target)
	if err != nil {
		return err
	}
	defer func() {
		// The caller's context may already be cancelled; cleanup still has to run.
		if err := repo.RemoveWorktree(context.WithoutCancel(ctx), worktree); err != nil {
			p.logger.Warn("Failed to remove worktree", "path", worktree, "error", err)
		}
	}()

	dir := filepath.Join(worktree, filepath.FromSlash(prefix))
	checked, err := p.runner.Check(ctx, dir, p.rules)
	if err != nil {
		return err
	}
	resolved := patch.Confirm(touched, rebase(checked.Spans, prefix))
	p.logger.Debug("Confirmed touched spans", "target", target, "resolved", resolved)
	return nil
}

// rebase prefixes project-relative paths so they match repository-relative diff paths.
// Absolute paths are left alone.
func rebase(spans span.FileSpans, prefix string) span.FileSpans {
	if prefix == "" || prefix == "." {
		return spans
	}
	out := make(span.FileSpans, len(spans))
	for path, ss := range spans {
		if !filepath.IsAbs(path) {
			path = prefix + "/" + paths.NormalizePath(path)
		}
		out[path] = ss
	}
	return out
}
