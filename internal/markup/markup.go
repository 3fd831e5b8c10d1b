// Package markup renders diagnostic spans into source text as inline block comments.
//
// Markers never alter or reorder source bytes: removing every inserted marker from the
// output yields the input unchanged.
package markup

import (
	"sort"
	"strings"

	"rustdiag/internal/span"
)

// OpenMarker returns the comment inserted before the first byte of a span.
func OpenMarker(s span.Span) string {
	return "/*" + s.Label() + "*/"
}

// CloseMarker returns the comment inserted before the byte following a span. It carries the
// label and, when present, the analyzer's suggestion and note.
func CloseMarker(s span.Span) string {
	var b strings.Builder
	b.WriteString("/*\n")
	b.WriteString(s.Label())
	if s.Suggestion != nil {
		b.WriteString("\nsuggestion: ")
		b.WriteString(normalize(*s.Suggestion))
	}
	if s.Note != "" {
		b.WriteString("\nnote: ")
		b.WriteString(normalize(s.Note))
	}
	b.WriteString("*/")
	return b.String()
}

// RuleMarker returns the one-line comment listing a rule in front of an extracted item.
func RuleMarker(s span.Span) string {
	return "/*" + s.Label() + "*/\n"
}

// normalize turns escaped newlines into real ones and drops quotes. Comment delimiters are
// broken apart so the marker stays a single comment token.
func normalize(text string) string {
	text = strings.ReplaceAll(text, `\n`, "\n")
	text = strings.ReplaceAll(text, `"`, "")
	text = strings.ReplaceAll(text, "*/", "* /")
	text = strings.ReplaceAll(text, "/*", "/ *")
	return text
}

type event struct {
	order int
	span  span.Span
}

// Markup inserts an opening marker before byte StartByte and a closing marker before byte
// EndByte of every span. A span ending at len(source) is closed after the last byte.
// Spans whose range does not fit the source are ignored.
//
// When several markers fall on the same offset, spans closing there come first (innermost
// first), then spans opening there (outermost first); an empty span is opened and closed
// in place.
func Markup(source []byte, spans []span.Span) []byte {
	output, _ := MarkupIndex(source, spans)
	return output
}

// Index maps source offsets to offsets in marked-up output: Index[i] is the output position
// of source byte i, and Index[len(source)] the position after the last byte.
type Index []int

// Source maps an output offset back to the source: it returns the smallest source offset
// whose output position is at or after k.
func (idx Index) Source(k int) int {
	return sort.SearchInts(idx, k)
}

// MarkupIndex is Markup that also returns the offset index of the output.
func MarkupIndex(source []byte, spans []span.Span) ([]byte, Index) {
	opens := make(map[int][]event)
	closes := make(map[int][]event)
	for i, s := range spans {
		if !s.ValidFor(len(source)) {
			continue
		}
		opens[s.StartByte] = append(opens[s.StartByte], event{order: i, span: s})
		if s.EndByte > s.StartByte {
			closes[s.EndByte] = append(closes[s.EndByte], event{order: i, span: s})
		}
	}
	for _, evs := range opens {
		sort.SliceStable(evs, func(a, b int) bool {
			if evs[a].span.EndByte != evs[b].span.EndByte {
				return evs[a].span.EndByte > evs[b].span.EndByte
			}
			return evs[a].order < evs[b].order
		})
	}
	for _, evs := range closes {
		sort.SliceStable(evs, func(a, b int) bool {
			if evs[a].span.StartByte != evs[b].span.StartByte {
				return evs[a].span.StartByte > evs[b].span.StartByte
			}
			return evs[a].order < evs[b].order
		})
	}

	output := make([]byte, 0, len(source)+len(spans)*64)
	index := make(Index, len(source)+1)
	for i := 0; i <= len(source); i++ {
		for _, ev := range closes[i] {
			output = append(output, CloseMarker(ev.span)...)
		}
		for _, ev := range opens[i] {
			output = append(output, OpenMarker(ev.span)...)
			if ev.span.EndByte == i {
				output = append(output, CloseMarker(ev.span)...)
			}
		}
		index[i] = len(output)
		if i < len(source) {
			output = append(output, source[i])
		}
	}
	return output, index
}

// Rules returns one RuleMarker line for every span fully contained in [start, end],
// in span order.
func Rules(start, end int, spans []span.Span) []byte {
	var output []byte
	for _, s := range spans {
		if s.Within(start, end) {
			output = append(output, RuleMarker(s)...)
		}
	}
	return output
}
