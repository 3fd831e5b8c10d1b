// Package git runs the git commands rustdiag needs to compare a working tree against a
// revision: resolving revisions, producing unified diffs and checking out detached worktrees.
package git

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"rustdiag/internal/errors"
	"rustdiag/internal/paths"
	"rustdiag/internal/slogutil"
)

// DefaultTimeout bounds every git invocation.
const DefaultTimeout = 30 * time.Second

// Adapter runs git in a single repository.
type Adapter struct {
	root    string
	timeout time.Duration
	logger  *slog.Logger
}

// NewAdapter verifies that root is inside a git work tree and returns an adapter rooted at
// the repository's top level.
func NewAdapter(ctx context.Context, root string, timeout time.Duration, logger *slog.Logger) (*Adapter, error) {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	a := &Adapter{root: root, timeout: timeout, logger: logger}
	top, err := a.run(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, errors.New(errors.NotAGitRepository, "not inside a git work tree", err).
			WithDetails(map[string]interface{}{"path": root})
	}
	a.root = top

	logger.Debug("Git adapter initialized",
		"repoRoot", a.root,
		"timeout", timeout.String(),
	)
	return a, nil
}

// Root returns the repository top level.
func (a *Adapter) Root() string {
	return a.root
}

// Head returns the commit hash of HEAD.
func (a *Adapter) Head(ctx context.Context) (string, error) {
	return a.ResolveRevision(ctx, "HEAD")
}

// ResolveRevision returns the full commit hash rev refers to.
func (a *Adapter) ResolveRevision(ctx context.Context, rev string) (string, error) {
	if rev == "" || strings.HasPrefix(rev, "-") {
		return "", errors.New(errors.RevisionNotFound, fmt.Sprintf("invalid revision %q", rev), nil)
	}
	hash, err := a.run(ctx, "rev-parse", "--verify", "--quiet", rev+"^{commit}")
	if err != nil {
		if errors.Is(err, errors.Timeout) {
			return "", err
		}
		return "", errors.New(errors.RevisionNotFound, fmt.Sprintf("revision %q not found", rev), err)
	}
	return hash, nil
}

// Diff returns the unified diff from revision from to the working tree. With a non-empty to,
// the diff is taken between the two revisions instead.
func (a *Adapter) Diff(ctx context.Context, from, to string) ([]byte, error) {
	args := []string{"diff", "--no-color", "--no-ext-diff", "--unified=3", from}
	if to != "" {
		args = append(args, to)
	}
	args = append(args, "--")

	out, err := a.output(ctx, args...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AddWorktree checks rev out into a new detached worktree under the tool's state directory
// and returns its path. The caller removes it with RemoveWorktree.
func (a *Adapter) AddWorktree(ctx context.Context, rev string) (string, error) {
	hash, err := a.ResolveRevision(ctx, rev)
	if err != nil {
		return "", err
	}

	dir, err := paths.EnsureDir(paths.WorktreesDir(a.root))
	if err != nil {
		return "", errors.New(errors.InternalError, "cannot create worktree directory", err)
	}
	path := filepath.Join(dir, shortHash(hash)+"-"+uuid.NewString()[:8])

	if _, err := a.run(ctx, "worktree", "add", "--detach", path, hash); err != nil {
		return "", err
	}
	a.logger.Debug("Added worktree", "path", path, "revision", hash)
	return path, nil
}

// RemoveWorktree deletes a worktree created by AddWorktree.
func (a *Adapter) RemoveWorktree(ctx context.Context, path string) error {
	if _, err := a.run(ctx, "worktree", "remove", "--force", path); err != nil {
		a.logger.Warn("Failed to remove worktree, pruning", "path", path, "error", err)
		if rmErr := os.RemoveAll(path); rmErr != nil {
			return rmErr
		}
		_, err = a.run(ctx, "worktree", "prune")
		return err
	}
	return nil
}

// IsRepository reports whether dir is inside a git work tree.
func IsRepository(dir string) bool {
	cmd := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = dir
	out, err := cmd.Output()
	return err == nil && strings.TrimSpace(string(out)) == "true"
}

// IsAvailable reports whether the git binary is on PATH.
func IsAvailable() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

// run executes git and returns its trimmed standard output.
func (a *Adapter) run(ctx context.Context, args ...string) (string, error) {
	out, err := a.output(ctx, args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// output executes git with the adapter's timeout and returns raw standard output.
func (a *Adapter) output(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = a.root

	a.logger.Debug("Executing git command",
		"args", args,
		"timeout", a.timeout.String(),
	)

	out, err := cmd.Output()
	if err == nil {
		return out, nil
	}

	if ctx.Err() == context.DeadlineExceeded {
		return nil, errors.New(errors.Timeout, "git command timed out", err).
			WithDetails(map[string]interface{}{"args": args})
	}

	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		return nil, errors.New(errors.InternalError, "git command failed", err).
			WithDetails(map[string]interface{}{
				"args":   args,
				"stderr": strings.TrimSpace(string(exitErr.Stderr)),
			})
	}

	return nil, errors.New(errors.InternalError, "failed to execute git", err)
}
