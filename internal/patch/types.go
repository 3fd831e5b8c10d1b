// Package patch correlates diagnostic spans with the hunks of a version-control diff and
// confirms whether a later revision resolved them.
package patch

import (
	"rustdiag/internal/span"
)

// Line is one line of a hunk body.
type Line struct {
	// Origin is ' ' for context, '+' for added and '-' for removed lines.
	Origin  byte   `json:"origin"`
	Content string `json:"content"`
}

// Hunk is a contiguous block of changes in old-file and new-file line coordinates.
type Hunk struct {
	OldStart int    `json:"oldStart"`
	OldLines int    `json:"oldLines"`
	NewStart int    `json:"newStart"`
	NewLines int    `json:"newLines"`
	Lines    []Line `json:"lines,omitempty"`
}

// OldEnd returns the first old-file line after the hunk.
func (h Hunk) OldEnd() int {
	return h.OldStart + h.OldLines
}

// FileDiff holds the hunks of one file.
type FileDiff struct {
	OldPath string `json:"oldPath"`
	NewPath string `json:"newPath"`
	IsNew   bool   `json:"isNew,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
	Hunks   []Hunk `json:"hunks"`
}

// Path returns the old-file path, which is what pre-patch spans refer to.
// New files have no old path and fall back to the new one.
func (fd FileDiff) Path() string {
	if fd.OldPath != "" {
		return fd.OldPath
	}
	return fd.NewPath
}

// HunkSpans is one hunk together with the spans it touches.
type HunkSpans struct {
	Hunk  Hunk        `json:"hunk"`
	Spans []span.Span `json:"spans"`
}

// FileReport groups the touched hunks of one file.
type FileReport struct {
	Path  string      `json:"path"`
	Hunks []HunkSpans `json:"hunks"`
}
