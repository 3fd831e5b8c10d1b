package patch

import (
	"rustdiag/internal/span"
)

// Overlaps reports whether the hunk's old-line range [OldStart, OldStart+OldLines) intersects
// the span's closed line range [StartLine, EndLine].
func Overlaps(h Hunk, s span.Span) bool {
	return h.OldStart <= s.EndLine && h.OldEnd() > s.StartLine
}

// Touched returns, per file, the spans intersecting at least one hunk of that file. Returned
// spans are copies with Resolved set; Confirm may clear it again.
func Touched(diffs []FileDiff, spans span.FileSpans) span.FileSpans {
	out := make(span.FileSpans)
	for _, fd := range diffs {
		path := fd.Path()
		for _, s := range spans[path] {
			for _, h := range fd.Hunks {
				if Overlaps(h, s) {
					s.Resolved = true
					out.Add(path, s)
					break
				}
			}
		}
	}
	return out
}

// Confirm clears Resolved on every touched span whose line range overlaps any span reported
// for the same file at the target revision, regardless of rule. It modifies touched in place
// and returns the number of spans still resolved.
func Confirm(touched, target span.FileSpans) int {
	resolved := 0
	for path, spans := range touched {
		for i := range spans {
			if !spans[i].Resolved {
				continue
			}
			for _, n := range target[path] {
				if spans[i].OverlapsLines(n) {
					spans[i].Resolved = false
					break
				}
			}
			if spans[i].Resolved {
				resolved++
			}
		}
	}
	return resolved
}

// Correlate groups spans by the hunks they intersect. Hunks touching no span are omitted,
// as are files without such hunks. When onlyResolved is set, spans with Resolved unset are
// ignored.
func Correlate(diffs []FileDiff, spans span.FileSpans, onlyResolved bool) []FileReport {
	var reports []FileReport
	for _, fd := range diffs {
		path := fd.Path()
		var fr FileReport
		for _, h := range fd.Hunks {
			var hit []span.Span
			for _, s := range spans[path] {
				if onlyResolved && !s.Resolved {
					continue
				}
				if Overlaps(h, s) {
					hit = append(hit, s)
				}
			}
			if len(hit) > 0 {
				fr.Hunks = append(fr.Hunks, HunkSpans{Hunk: h, Spans: hit})
			}
		}
		if len(fr.Hunks) > 0 {
			fr.Path = path
			reports = append(reports, fr)
		}
	}
	return reports
}
