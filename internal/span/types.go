// Package span models diagnostic findings anchored to byte and line ranges of a source file.
package span

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Severity is the diagnostic level as reported by the analyzer.
type Severity string

const (
	SeverityError       Severity = "error"
	SeverityWarning     Severity = "warning"
	SeverityNote        Severity = "note"
	SeverityHelp        Severity = "help"
	SeverityFailureNote Severity = "failure-note"
	SeverityICE         Severity = "error: internal compiler error"
)

// Title returns the capitalized level name used inside markers, e.g. "Warning".
func (s Severity) Title() string {
	switch s {
	case SeverityError:
		return "Error"
	case SeverityWarning:
		return "Warning"
	case SeverityNote:
		return "Note"
	case SeverityHelp:
		return "Help"
	case SeverityFailureNote:
		return "FailureNote"
	case SeverityICE:
		return "Ice"
	case "":
		return "Unknown"
	}
	// Unknown levels are kept verbatim with the first letter upper-cased.
	r, size := utf8.DecodeRuneInString(string(s))
	return string(unicode.ToUpper(r)) + string(s[size:])
}

// Span is one diagnostic finding anchored to a byte range and a line range.
//
// StartByte/EndByte are 0-based offsets into the file. StartLine/EndLine are 1-based and
// only used for patch correlation. Resolved is set by the patch correlator.
type Span struct {
	RuleID     string   `json:"ruleId"`
	Severity   Severity `json:"severity"`
	StartByte  int      `json:"startByte"`
	EndByte    int      `json:"endByte"`
	StartLine  int      `json:"startLine"`
	EndLine    int      `json:"endLine"`
	Suggestion *string  `json:"suggestion,omitempty"`
	Note       string   `json:"note,omitempty"`
	Resolved   bool     `json:"resolved"`
}

// Key identifies a span for equality and hashing.
type Key struct {
	RuleID    string
	StartByte int
	EndByte   int
}

// Key returns the identity of the span: rule and byte range.
func (s Span) Key() Key {
	return Key{RuleID: s.RuleID, StartByte: s.StartByte, EndByte: s.EndByte}
}

// Equal reports whether two spans share rule and byte range.
func (s Span) Equal(other Span) bool {
	return s.Key() == other.Key()
}

// Label is the marker text for the span, e.g. "#[Warning(clippy::unwrap_used)".
func (s Span) Label() string {
	return fmt.Sprintf("#[%s(%s)", s.Severity.Title(), s.RuleID)
}

// HasSuggestion reports whether the analyzer proposed a replacement.
func (s Span) HasSuggestion() bool {
	return s.Suggestion != nil
}

// ValidFor reports whether the byte range lies within a source of the given length.
func (s Span) ValidFor(sourceLen int) bool {
	return s.StartByte >= 0 && s.StartByte <= s.EndByte && s.EndByte <= sourceLen
}

// OverlapsLines reports whether the closed line ranges of both spans intersect.
func (s Span) OverlapsLines(other Span) bool {
	return s.StartLine <= other.EndLine && s.EndLine >= other.StartLine
}

// Within reports whether the byte range of s is contained in [start, end].
func (s Span) Within(start, end int) bool {
	return start <= s.StartByte && s.EndByte <= end
}

// RuleName strips the tool namespace from the rule id ("clippy::unwrap_used" -> "unwrap_used").
func RuleName(ruleID string) string {
	if i := strings.LastIndex(ruleID, "::"); i >= 0 {
		return ruleID[i+2:]
	}
	return ruleID
}

// FileSpans groups spans by the file path reported by the analyzer.
type FileSpans map[string][]Span

// Add appends a span to the file's collection.
func (fs FileSpans) Add(path string, s Span) {
	fs[path] = append(fs[path], s)
}

// Files returns the file paths in sorted order.
func (fs FileSpans) Files() []string {
	files := make([]string, 0, len(fs))
	for f := range fs {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// Count returns the total number of spans.
func (fs FileSpans) Count() int {
	n := 0
	for _, v := range fs {
		n += len(v)
	}
	return n
}

// Rules returns the distinct rule ids in sorted order.
func (fs FileSpans) Rules() []string {
	seen := make(map[string]bool)
	for _, v := range fs {
		for _, s := range v {
			seen[s.RuleID] = true
		}
	}
	rules := make([]string, 0, len(seen))
	for r := range seen {
		rules = append(rules, r)
	}
	sort.Strings(rules)
	return rules
}

// ByRule partitions the spans of a single diagnostic pass by rule id.
// Files without spans for a rule are absent from that rule's FileSpans.
func (fs FileSpans) ByRule() map[string]FileSpans {
	out := make(map[string]FileSpans)
	for path, spans := range fs {
		for _, s := range spans {
			part, ok := out[s.RuleID]
			if !ok {
				part = make(FileSpans)
				out[s.RuleID] = part
			}
			part.Add(path, s)
		}
	}
	return out
}

// Filter returns the spans for which keep returns true, dropping empty files.
func (fs FileSpans) Filter(keep func(Span) bool) FileSpans {
	out := make(FileSpans)
	for path, spans := range fs {
		for _, s := range spans {
			if keep(s) {
				out.Add(path, s)
			}
		}
	}
	return out
}

// Resolved returns the resolved spans.
func (fs FileSpans) Resolved() FileSpans {
	return fs.Filter(func(s Span) bool { return s.Resolved })
}

// Reconcile separates the spans reported before a fix pass into those the fix removed and
// those still reported afterwards. A before-span remains when an after-span carries the same
// label; the first such after-span is returned in remaining. Otherwise it is fixed.
func Reconcile(before, after []Span) (fixed, remaining []Span) {
	for _, w := range before {
		found := false
		for _, f := range after {
			if w.Label() == f.Label() {
				found = true
				remaining = append(remaining, f)
				break
			}
		}
		if !found {
			fixed = append(fixed, w)
		}
	}
	return fixed, remaining
}
