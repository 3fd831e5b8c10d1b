package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rustdiag/internal/errors"
	"rustdiag/internal/patch"
)

func gitCmd(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
	return strings.TrimSpace(string(out))
}

// setupRepo creates a repository with two commits touching src/main.rs and returns the
// repository path and both hashes.
func setupRepo(t *testing.T) (string, string, string) {
	t.Helper()
	if !IsAvailable() {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	gitCmd(t, dir, "init", "-q")
	gitCmd(t, dir, "config", "commit.gpgsign", "false")

	src := filepath.Join(dir, "src")
	if err := os.MkdirAll(src, 0755); err != nil {
		t.Fatal(err)
	}
	main := filepath.Join(src, "main.rs")

	if err := os.WriteFile(main, []byte("fn main() {\n    let x = None::<u8>.unwrap();\n}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	gitCmd(t, dir, "add", ".")
	gitCmd(t, dir, "commit", "-q", "-m", "first")
	first := gitCmd(t, dir, "rev-parse", "HEAD")

	if err := os.WriteFile(main, []byte("fn main() {\n    let x = None::<u8>.unwrap_or(0);\n}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	gitCmd(t, dir, "commit", "-q", "-am", "second")
	second := gitCmd(t, dir, "rev-parse", "HEAD")

	return dir, first, second
}

func newTestAdapter(t *testing.T, dir string) *Adapter {
	t.Helper()
	a, err := NewAdapter(context.Background(), dir, 10*time.Second, nil)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	return a
}

func TestNewAdapter_NotARepository(t *testing.T) {
	if !IsAvailable() {
		t.Skip("git not installed")
	}
	dir := t.TempDir()

	_, err := NewAdapter(context.Background(), dir, time.Second, nil)
	if !errors.Is(err, errors.NotAGitRepository) {
		t.Fatalf("expected NOT_A_GIT_REPOSITORY, got %v", err)
	}
	if IsRepository(dir) {
		t.Error("temp dir should not be a repository")
	}
}

func TestResolveRevision(t *testing.T) {
	dir, first, second := setupRepo(t)
	a := newTestAdapter(t, dir)
	ctx := context.Background()

	head, err := a.Head(ctx)
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if head != second {
		t.Errorf("HEAD = %s, want %s", head, second)
	}

	got, err := a.ResolveRevision(ctx, "HEAD~1")
	if err != nil {
		t.Fatalf("ResolveRevision: %v", err)
	}
	if got != first {
		t.Errorf("HEAD~1 = %s, want %s", got, first)
	}

	for _, rev := range []string{"no-such-branch", "", "--all"} {
		if _, err := a.ResolveRevision(ctx, rev); !errors.Is(err, errors.RevisionNotFound) {
			t.Errorf("ResolveRevision(%q) = %v, want REVISION_NOT_FOUND", rev, err)
		}
	}
}

func TestDiff_ParsesIntoHunks(t *testing.T) {
	dir, first, second := setupRepo(t)
	a := newTestAdapter(t, dir)

	out, err := a.Diff(context.Background(), first, second)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}

	diffs, err := patch.Parse(out)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(diffs) != 1 {
		t.Fatalf("expected 1 file diff, got %d", len(diffs))
	}
	if diffs[0].Path() != "src/main.rs" {
		t.Errorf("unexpected path %q", diffs[0].Path())
	}
	if len(diffs[0].Hunks) != 1 || diffs[0].Hunks[0].OldStart != 1 {
		t.Errorf("unexpected hunks %+v", diffs[0].Hunks)
	}
}

func TestWorktree_AddAndRemove(t *testing.T) {
	dir, first, _ := setupRepo(t)
	a := newTestAdapter(t, dir)
	ctx := context.Background()

	path, err := a.AddWorktree(ctx, first)
	if err != nil {
		t.Fatalf("AddWorktree: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(path, "src", "main.rs"))
	if err != nil {
		t.Fatalf("worktree file missing: %v", err)
	}
	if !strings.Contains(string(data), ".unwrap();") {
		t.Errorf("worktree should hold the first revision, got:\n%s", data)
	}

	// The main checkout stays on the second revision.
	data, _ = os.ReadFile(filepath.Join(dir, "src", "main.rs"))
	if !strings.Contains(string(data), "unwrap_or(0)") {
		t.Error("main checkout was modified")
	}

	if err := a.RemoveWorktree(ctx, path); err != nil {
		t.Fatalf("RemoveWorktree: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("worktree still present: %v", err)
	}
}
