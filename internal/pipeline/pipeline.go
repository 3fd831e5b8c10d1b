// Package pipeline orchestrates the analyzer passes, the fix pass and the per-file
// transformations over a project, writing the generated trees and the optional dataset.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"rustdiag/internal/analyzer"
	"rustdiag/internal/config"
	"rustdiag/internal/emit"
	"rustdiag/internal/errors"
	"rustdiag/internal/paths"
	"rustdiag/internal/slogutil"
	"rustdiag/internal/span"
	"rustdiag/internal/storage"
	"rustdiag/internal/transform"
)

// Options configures a Pipeline.
type Options struct {
	// Root is the project directory the analyzer runs in.
	Root   string
	Config *config.Config
	// Rules are the effective rule names without the lint prefix.
	Rules  []string
	Logger *slog.Logger
	// Exec runs external commands; nil uses os/exec.
	Exec analyzer.ExecRunner
	// Dataset, when set, receives runs, spans and pairs.
	Dataset *storage.DB
}

// Pipeline runs diagnose, transform and patch over one project.
type Pipeline struct {
	root        string
	cfg         *config.Config
	rules       []string
	jobs        int
	runner      *analyzer.Runner
	writer      *emit.Writer
	transformer *transform.Transformer
	dataset     *storage.DB
	logger      *slog.Logger
}

// Skipped records a file that was left out of a run.
type Skipped struct {
	Path string `json:"path"`
	Err  error  `json:"-"`
}

// New creates a pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, errors.New(errors.ConfigInvalid, "invalid configuration", err)
	}
	if opts.Logger == nil {
		opts.Logger = slogutil.NewDiscardLogger()
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}

	jobs := opts.Config.Jobs
	if jobs <= 0 {
		jobs = 1
	}

	return &Pipeline{
		root:        root,
		cfg:         opts.Config,
		rules:       opts.Rules,
		jobs:        jobs,
		runner:      analyzer.NewRunner(opts.Config, opts.Exec, opts.Logger),
		writer:      emit.NewWriter(root, opts.Config.Output, opts.Logger),
		transformer: transform.New(opts.Config.Output.PrefixRules),
		dataset:     opts.Dataset,
		logger:      opts.Logger,
	}, nil
}

// Root returns the absolute project directory.
func (p *Pipeline) Root() string {
	return p.root
}

// Writer returns the writer placing generated files.
func (p *Pipeline) Writer() *emit.Writer {
	return p.writer
}

// forEach runs fn for every file on a bounded worker pool. A file whose fn fails is logged
// and returned as skipped; only cancellation aborts the whole run.
func (p *Pipeline) forEach(ctx context.Context, files []string, fn func(ctx context.Context, i int, path string) error) ([]Skipped, error) {
	var mu sync.Mutex
	var skipped []Skipped

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(p.jobs, len(files))))

	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := fn(gctx, i, path); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				p.logger.Warn("Skipping file", "path", path, "error", err)
				mu.Lock()
				skipped = append(skipped, Skipped{Path: path, Err: err})
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return skipped, err
	}

	sort.Slice(skipped, func(i, j int) bool { return skipped[i].Path < skipped[j].Path })
	return skipped, nil
}

// inProject keeps the spans of files inside the project. Dependencies built from outside
// the project are reported by the analyzer too but are never marked up.
func (p *Pipeline) inProject(spans span.FileSpans) span.FileSpans {
	out := make(span.FileSpans, len(spans))
	for path, ss := range spans {
		if !paths.IsWithinRepo(path, p.root) {
			p.logger.Debug("Ignoring file outside the project", "path", path)
			continue
		}
		out[path] = ss
	}
	return out
}

// sourcePath returns the absolute path of a file reported by the analyzer.
func (p *Pipeline) sourcePath(path string) string {
	return paths.Resolve(p.root, path)
}

func (p *Pipeline) readSource(path string) ([]byte, error) {
	data, err := os.ReadFile(p.sourcePath(path))
	if err != nil {
		return nil, errors.New(errors.FileUnreadable, fmt.Sprintf("cannot read %s", path), err)
	}
	return data, nil
}

func (p *Pipeline) saveRun(run *storage.Run) {
	if p.dataset == nil {
		return
	}
	if err := p.dataset.SaveRun(run); err != nil {
		p.logger.Warn("Failed to record run", "run", run.ID, "error", err)
	}
}
