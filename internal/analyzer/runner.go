// Package analyzer invokes the external analyzer, auto-fixer, per-rule rewriters and
// formatter, and decodes the analyzer's report into spans.
package analyzer

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"rustdiag/internal/config"
	"rustdiag/internal/errors"
	"rustdiag/internal/report"
	"rustdiag/internal/slogutil"
	"rustdiag/internal/span"
)

// FilePlaceholder in rewriter arguments is replaced by the file being rewritten.
const FilePlaceholder = "{file}"

const defaultRewriteTimeout = time.Minute

// Runner runs the analyzer and the tools around it inside a project directory.
type Runner struct {
	exec      ExecRunner
	analyzer  config.AnalyzerConfig
	formatter config.FormatterConfig
	rewriters map[string]config.RewriterConfig
	logger    *slog.Logger
}

// NewRunner creates a runner from configuration. A nil exec uses os/exec.
func NewRunner(cfg *config.Config, exec ExecRunner, logger *slog.Logger) *Runner {
	if exec == nil {
		exec = RealRunner{}
	}
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	return &Runner{
		exec:      exec,
		analyzer:  cfg.Analyzer,
		formatter: cfg.Formatter,
		rewriters: cfg.Rewriters,
		logger:    logger,
	}
}

// Result is one decoded analyzer pass.
type Result struct {
	Spans span.FileSpans
	Stats report.Stats
	// ExitErr is set when the analyzer exited non-zero but still produced a report.
	ExitErr error
}

// Available reports whether the analyzer binary can be found.
func (r *Runner) Available() error {
	if _, err := r.exec.LookPath(r.analyzer.Command); err != nil {
		return errors.New(errors.AnalyzerUnavailable, fmt.Sprintf("%s not found in PATH", r.analyzer.Command), err)
	}
	return nil
}

// LintArgs returns the analyzer arguments enabling rules as warnings.
func (r *Runner) LintArgs(rules []string) []string {
	if len(rules) == 0 {
		return nil
	}
	args := make([]string, 0, len(rules)+1)
	args = append(args, "--")
	for _, rule := range rules {
		args = append(args, "-W"+r.analyzer.LintPrefix+rule)
	}
	return args
}

// Check runs the diagnostic pass in dir.
func (r *Runner) Check(ctx context.Context, dir string, rules []string) (*Result, error) {
	args := append(append([]string(nil), r.analyzer.Args...), r.LintArgs(rules)...)
	return r.analyze(ctx, dir, args, errors.AnalyzerFailed)
}

// Fix runs the auto-fix pass in dir. The fixer rewrites files in place and reports the
// diagnostics that remain afterwards.
func (r *Runner) Fix(ctx context.Context, dir string, rules []string) (*Result, error) {
	args := append(append([]string(nil), r.analyzer.FixArgs...), r.LintArgs(rules)...)
	return r.analyze(ctx, dir, args, errors.FixerFailed)
}

func (r *Runner) analyze(ctx context.Context, dir string, args []string, failure errors.ErrorCode) (*Result, error) {
	timeout := time.Duration(r.analyzer.TimeoutMs) * time.Millisecond
	start := time.Now()

	stdout, stderr, err := r.run(ctx, dir, timeout, r.analyzer.Command, args...)
	r.logger.Debug("Analyzer finished",
		"dir", dir,
		"args", args,
		"duration", time.Since(start).String(),
	)
	if err != nil && (errors.Is(err, errors.Timeout) || errors.Is(err, errors.AnalyzerUnavailable)) {
		return nil, err
	}

	spans, stats, decodeErr := report.Decode(bytes.NewReader(stdout))
	if decodeErr != nil {
		return nil, errors.New(failure, "cannot read analyzer report", decodeErr)
	}

	res := &Result{Spans: spans, Stats: stats}
	if err != nil {
		if stats.Records == 0 {
			return nil, errors.New(failure, "analyzer produced no report", err).
				WithDetails(map[string]interface{}{"stderr": lastLines(stderr, 20)})
		}
		res.ExitErr = err
		r.logger.Warn("Analyzer exited with an error, using partial report",
			"error", err,
			"records", stats.Records,
		)
	}
	if stats.MalformedLine > 0 || stats.InvalidSpans > 0 {
		r.logger.Debug("Dropped analyzer records",
			"malformed", stats.MalformedLine,
			"invalidSpans", stats.InvalidSpans,
			"missingCode", stats.MissingCode,
		)
	}
	return res, nil
}

// HasRewriter reports whether a rewriter is configured for rule.
func (r *Runner) HasRewriter(rule string) bool {
	_, ok := r.rewriters[span.RuleName(rule)]
	return ok
}

// Rewrite runs the rewriter configured for rule on file, then formats it. It reports
// whether a rewriter ran.
func (r *Runner) Rewrite(ctx context.Context, dir, rule, file string) (bool, error) {
	rw, ok := r.rewriters[span.RuleName(rule)]
	if !ok {
		return false, nil
	}

	args := make([]string, len(rw.Args))
	for i, a := range rw.Args {
		args[i] = strings.ReplaceAll(a, FilePlaceholder, file)
	}
	timeout := defaultRewriteTimeout
	if rw.TimeoutMs > 0 {
		timeout = time.Duration(rw.TimeoutMs) * time.Millisecond
	}

	stdout, stderr, err := r.run(ctx, dir, timeout, rw.Command, args...)
	if err != nil {
		if errors.Is(err, errors.Timeout) {
			return true, err
		}
		return true, errors.New(errors.FixerFailed, fmt.Sprintf("rewriter %s failed", rw.Command), err).
			WithDetails(map[string]interface{}{"file": file, "stderr": lastLines(stderr, 20)})
	}

	if rw.Stdout {
		if len(bytes.TrimSpace(stdout)) == 0 {
			return true, errors.New(errors.FixerFailed, fmt.Sprintf("rewriter %s produced no output", rw.Command), nil).
				WithDetails(map[string]interface{}{"file": file})
		}
		if err := os.WriteFile(resolve(dir, file), stdout, 0644); err != nil {
			return true, errors.New(errors.FixerFailed, "cannot write rewritten file", err)
		}
	}

	if err := r.Format(ctx, dir, file); err != nil {
		r.logger.Warn("Formatter failed after rewrite", "file", file, "error", err)
	}
	return true, nil
}

// Format runs the formatter on file when enabled.
func (r *Runner) Format(ctx context.Context, dir, file string) error {
	if !r.formatter.Enabled {
		return nil
	}
	args := append(append([]string(nil), r.formatter.Args...), file)
	_, stderr, err := r.run(ctx, dir, defaultRewriteTimeout, r.formatter.Command, args...)
	if err != nil {
		return fmt.Errorf("%s: %w: %s", r.formatter.Command, err, lastLines(stderr, 5))
	}
	return nil
}

// run executes a command with a timeout, mapping a missing binary and an expired deadline
// to their error codes.
func (r *Runner) run(ctx context.Context, dir string, timeout time.Duration, name string, args ...string) ([]byte, string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	stdout, stderr, err := r.exec.Run(ctx, dir, name, args...)
	if err == nil {
		return stdout, stderr, nil
	}
	if ctx.Err() == context.DeadlineExceeded {
		return stdout, stderr, errors.New(errors.Timeout, fmt.Sprintf("%s timed out after %s", name, timeout), err)
	}
	if stderrors.Is(err, exec.ErrNotFound) {
		return stdout, stderr, errors.New(errors.AnalyzerUnavailable, fmt.Sprintf("%s not found in PATH", name), err)
	}
	return stdout, stderr, err
}

func resolve(dir, file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(dir, file)
}

func lastLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
