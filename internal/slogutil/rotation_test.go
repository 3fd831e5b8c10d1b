package slogutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
	}{
		{"", 0},
		{"invalid", 0},
		{"100", 100},
		{"100B", 100},
		{"1KiB", 1024},
		{"1kB", 1000},
		{"10MB", 10 * 1000 * 1000},
		{"1MiB", 1024 * 1024},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseSize(tt.input); got != tt.expected {
				t.Errorf("ParseSize(%q) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestRotatingFile_Rotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "rustdiag.log")

	rf, err := OpenRotatingFile(path, 30, 2)
	if err != nil {
		t.Fatalf("OpenRotatingFile failed: %v", err)
	}
	defer rf.Close()

	line := []byte("0123456789abcdefghij\n")
	for i := 0; i < 5; i++ {
		if _, err := rf.Write(line); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	for _, p := range []string{path, path + ".1", path + ".2"} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s to exist: %v", p, err)
		}
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Error("only two backups should be kept")
	}
}

func TestRotatingFile_NoRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rustdiag.log")

	rf, err := OpenRotatingFile(path, 0, 2)
	if err != nil {
		t.Fatalf("OpenRotatingFile failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		_, _ = rf.Write([]byte("line\n"))
	}
	if err := rf.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Error("rotation should be disabled")
	}
	data, _ := os.ReadFile(path)
	if strings.Count(string(data), "line\n") != 10 {
		t.Errorf("expected 10 lines, got %q", data)
	}
}

func TestFileHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rustdiag.log")

	h, closer, err := FileHandler(path, slog.LevelInfo, FormatText, "1MB", 1)
	if err != nil {
		t.Fatalf("FileHandler failed: %v", err)
	}
	slog.New(h).Info("written", "k", "v")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "written | k=v") {
		t.Errorf("unexpected log file content %q", data)
	}
}
