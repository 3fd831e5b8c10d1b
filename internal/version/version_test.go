package version

import (
	"strings"
	"testing"
)

func setVersion(t *testing.T, version, commit, built string) {
	t.Helper()
	v, c, b := Version, Commit, BuildDate
	t.Cleanup(func() { Version, Commit, BuildDate = v, c, b })
	Version, Commit, BuildDate = version, commit, built
}

func TestInfo(t *testing.T) {
	tests := []struct {
		commit string
		want   string
	}{
		{"unknown", "0.3.0"},
		{"abc", "0.3.0"},
		{"1234567", "0.3.0"},
		{"12345678", "0.3.0 (1234567)"},
		{"9f8e7d6c5b4a", "0.3.0 (9f8e7d6)"},
	}
	for _, tt := range tests {
		setVersion(t, "0.3.0", tt.commit, "unknown")
		if got := Info(); got != tt.want {
			t.Errorf("Info() with commit %q = %q, want %q", tt.commit, got, tt.want)
		}
	}
}

func TestFull(t *testing.T) {
	setVersion(t, "1.2.3", "abcdef123456", "2026-01-15")

	lines := strings.Split(Full(), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %q", lines)
	}
	want := []string{"rustdiag version 1.2.3", "Commit: abcdef123456", "Built: 2026-01-15"}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("line %d = %q, want %q", i, lines[i], w)
		}
	}
	if !strings.HasPrefix(lines[3], "Go: go") {
		t.Errorf("unexpected Go line %q", lines[3])
	}
}
