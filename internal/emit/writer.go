// Package emit writes the generated trees: marked-up diagnostics, before/after pair files
// and per-rule manifests.
package emit

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"rustdiag/internal/config"
	"rustdiag/internal/paths"
	"rustdiag/internal/slogutil"
	"rustdiag/internal/span"
	"rustdiag/internal/transform"
)

// ManifestName is the per-rule manifest file inside the transform tree.
const ManifestName = "manifest.yaml"

// Writer places generated files below a root directory.
type Writer struct {
	root   string
	output config.OutputConfig
	logger *slog.Logger
}

// NewWriter creates a writer for the project at root. Relative output roots are resolved
// against root.
func NewWriter(root string, output config.OutputConfig, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	return &Writer{
		root:   paths.Resolve(root, output.Root),
		output: output,
		logger: logger,
	}
}

// DiagnosticsDir returns the directory holding marked-up sources.
func (w *Writer) DiagnosticsDir() string {
	return filepath.Join(w.root, w.output.DiagnosticsDir)
}

// TransformDir returns the directory holding before/after pairs.
func (w *Writer) TransformDir() string {
	return filepath.Join(w.root, w.output.TransformDir)
}

// CleanStale removes files under dir whose base name matches pattern and returns how many
// were removed. A missing dir is not an error.
func (w *Writer) CleanStale(dir, pattern string) (int, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return 0, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	removed := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if d.Name() == paths.StateDirName || d.Name() == "target" || d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if ok, _ := filepath.Match(pattern, d.Name()); !ok {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, err
	}

	w.logger.Debug("Removed stale files", "dir", dir, "pattern", pattern, "count", removed)
	return removed, nil
}

// CleanDiagnostics removes previously marked-up sources.
func (w *Writer) CleanDiagnostics() error {
	_, err := w.CleanStale(w.DiagnosticsDir(), "*.rs")
	return err
}

// CleanTransform removes previously generated pairs.
func (w *Writer) CleanTransform() error {
	dir := w.TransformDir()
	for _, suffix := range []string{w.output.BeforeSuffix, w.output.AfterSuffix} {
		if _, err := w.CleanStale(dir, "*"+suffix); err != nil {
			return err
		}
	}
	_, err := w.CleanStale(dir, ManifestName)
	return err
}

// WriteDiagnostics writes a marked-up buffer to <diagnostics>/<path> and returns the file
// written.
func (w *Writer) WriteDiagnostics(path string, buf []byte) (string, error) {
	target := paths.JoinRepoPath(w.DiagnosticsDir(), path)
	if err := writeFile(target, buf); err != nil {
		return "", err
	}
	return target, nil
}

// PairDir returns <transform>/<rule>/<dir of path>/<stem of path>.
func (w *Writer) PairDir(rule, path string) string {
	slashed := paths.NormalizePath(path)
	dir, base := "", slashed
	if i := strings.LastIndex(slashed, "/"); i >= 0 {
		dir, base = slashed[:i], slashed[i+1:]
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	parts := []string{w.TransformDir(), span.RuleName(rule)}
	if dir != "" {
		parts = append(parts, strings.Split(dir, "/")...)
	}
	return filepath.Join(append(parts, stem)...)
}

// WritePair writes the before and after buffers of a pair as <offset><suffix> files and
// returns their paths.
func (w *Writer) WritePair(p transform.Pair) (string, string, error) {
	dir := w.PairDir(p.Rule, p.Path)
	name := strconv.Itoa(p.Offset)
	before := filepath.Join(dir, name+w.output.BeforeSuffix)
	after := filepath.Join(dir, name+w.output.AfterSuffix)

	if err := writeFile(before, p.Before); err != nil {
		return "", "", err
	}
	if err := writeFile(after, p.After); err != nil {
		return "", "", err
	}
	return before, after, nil
}

// Manifest lists the pairs written for one rule.
type Manifest struct {
	Rule      string          `yaml:"rule"`
	RunID     string          `yaml:"run_id,omitempty"`
	Generated time.Time       `yaml:"generated"`
	Pairs     []ManifestEntry `yaml:"pairs"`
}

// ManifestEntry describes one written pair. File names are relative to the rule directory.
type ManifestEntry struct {
	Path   string   `yaml:"path"`
	Offset int      `yaml:"offset"`
	End    int      `yaml:"end"`
	Before string   `yaml:"before"`
	After  string   `yaml:"after"`
	Spans  []string `yaml:"spans,omitempty"`
}

// Entry builds the manifest entry of a pair written to before and after.
func (w *Writer) Entry(p transform.Pair, before, after string) ManifestEntry {
	ruleDir := filepath.Join(w.TransformDir(), span.RuleName(p.Rule))
	entry := ManifestEntry{
		Path:   p.Path,
		Offset: p.Offset,
		End:    p.End,
		Before: relSlash(ruleDir, before),
		After:  relSlash(ruleDir, after),
	}
	for _, s := range p.Spans {
		entry.Spans = append(entry.Spans, fmt.Sprintf("%s@%d:%d", s.Label(), s.StartLine, s.EndLine))
	}
	return entry
}

// WriteManifest writes <transform>/<rule>/manifest.yaml with entries sorted by path and
// offset, and returns the file written.
func (w *Writer) WriteManifest(m Manifest) (string, error) {
	sort.SliceStable(m.Pairs, func(i, j int) bool {
		if m.Pairs[i].Path != m.Pairs[j].Path {
			return m.Pairs[i].Path < m.Pairs[j].Path
		}
		return m.Pairs[i].Offset < m.Pairs[j].Offset
	})

	data, err := yaml.Marshal(&m)
	if err != nil {
		return "", fmt.Errorf("failed to encode manifest: %w", err)
	}
	target := filepath.Join(w.TransformDir(), span.RuleName(m.Rule), ManifestName)
	if err := writeFile(target, data); err != nil {
		return "", err
	}
	return target, nil
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return &m, nil
}

func relSlash(base, target string) string {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return filepath.ToSlash(target)
	}
	return filepath.ToSlash(rel)
}

func writeFile(path string, data []byte) error {
	if _, err := paths.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
