package patch

import (
	"fmt"
	"strings"

	godiff "github.com/sourcegraph/go-diff/diff"
)

// Parse parses a unified multi-file diff as produced by git.
func Parse(diffContent []byte) ([]FileDiff, error) {
	if len(diffContent) == 0 {
		return []FileDiff{}, nil
	}

	fileDiffs, err := godiff.ParseMultiFileDiff(diffContent)
	if err != nil {
		return nil, fmt.Errorf("failed to parse diff: %w", err)
	}

	out := make([]FileDiff, 0, len(fileDiffs))
	for _, fd := range fileDiffs {
		out = append(out, parseFileDiff(fd))
	}
	return out, nil
}

func parseFileDiff(fd *godiff.FileDiff) FileDiff {
	out := FileDiff{
		OldPath: cleanPath(fd.OrigName),
		NewPath: cleanPath(fd.NewName),
		Hunks:   make([]Hunk, 0, len(fd.Hunks)),
	}

	if fd.OrigName == "/dev/null" || fd.OrigName == "" {
		out.IsNew = true
		out.OldPath = ""
	}
	if fd.NewName == "/dev/null" || fd.NewName == "" {
		out.Deleted = true
		out.NewPath = ""
	}

	for _, h := range fd.Hunks {
		out.Hunks = append(out.Hunks, parseHunk(h))
	}
	return out
}

func parseHunk(h *godiff.Hunk) Hunk {
	out := Hunk{
		OldStart: int(h.OrigStartLine),
		OldLines: int(h.OrigLines),
		NewStart: int(h.NewStartLine),
		NewLines: int(h.NewLines),
	}

	body := strings.TrimSuffix(string(h.Body), "\n")
	if body == "" {
		return out
	}
	for _, line := range strings.Split(body, "\n") {
		if line == "" {
			// Some tools strip the space of empty context lines.
			out.Lines = append(out.Lines, Line{Origin: ' '})
			continue
		}
		switch line[0] {
		case ' ', '+', '-':
			out.Lines = append(out.Lines, Line{Origin: line[0], Content: line[1:]})
		case '\\':
			// "\ No newline at end of file"
		}
	}
	return out
}

// cleanPath removes the a/ or b/ prefix from git diff paths.
func cleanPath(path string) string {
	if path == "" || path == "/dev/null" {
		return path
	}
	if strings.HasPrefix(path, "a/") || strings.HasPrefix(path, "b/") {
		return path[2:]
	}
	return path
}
