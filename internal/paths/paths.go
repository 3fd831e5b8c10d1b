// Package paths resolves the tool-local directory layout and normalizes the file paths
// reported by the analyzer.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

// StateDirName is the per-project directory holding configuration, logs and the dataset.
const StateDirName = ".rustdiag"

// StateDir returns <root>/.rustdiag.
func StateDir(root string) string {
	return filepath.Join(root, StateDirName)
}

// ConfigPath returns <root>/.rustdiag/config.json.
func ConfigPath(root string) string {
	return filepath.Join(StateDir(root), "config.json")
}

// LogPath returns <root>/.rustdiag/logs/rustdiag.log.
func LogPath(root string) string {
	return filepath.Join(StateDir(root), "logs", "rustdiag.log")
}

// WorktreesDir returns the directory holding temporary revision checkouts.
func WorktreesDir(root string) string {
	return filepath.Join(StateDir(root), "worktrees")
}

// Resolve joins a configured path with root unless it is absolute.
func Resolve(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return JoinRepoPath(root, path)
}

// EnsureDir creates dir with parents and returns it.
func EnsureDir(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// CanonicalizePath converts a path to a root-relative path with forward slashes.
// Relative input is taken relative to root. Symlinks are resolved when the path exists.
func CanonicalizePath(path string, root string) (string, error) {
	rootResolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}
		rootResolved = root
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(rootResolved, path)
	}

	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}
		resolved = path
	}

	rel, err := filepath.Rel(rootResolved, resolved)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// IsWithinRepo reports whether path lies inside root. Diagnostics for files outside the
// project (path dependencies, the registry) are not marked up.
func IsWithinRepo(path string, root string) bool {
	canonical, err := CanonicalizePath(path, root)
	if err != nil {
		return false
	}
	return canonical != ".." && !strings.HasPrefix(canonical, "../")
}

// NormalizePath converts backslashes to forward slashes.
func NormalizePath(path string) string {
	return filepath.ToSlash(path)
}

// JoinRepoPath joins root with a slash-separated relative path.
func JoinRepoPath(root string, canonicalPath string) string {
	normalized := strings.ReplaceAll(canonicalPath, "\\", "/")
	parts := strings.Split(normalized, "/")
	return filepath.Join(append([]string{root}, parts...)...)
}
