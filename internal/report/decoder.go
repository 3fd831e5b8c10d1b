// Package report decodes the analyzer's JSON message stream into diagnostic spans.
package report

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"rustdiag/internal/span"
)

// reasonCompilerMessage is the only record kind that carries diagnostics.
const reasonCompilerMessage = "compiler-message"

// Stats counts what the decoder kept and dropped.
type Stats struct {
	Records       int `json:"records"`
	Diagnostics   int `json:"diagnostics"`
	Spans         int `json:"spans"`
	MissingCode   int `json:"missingCode"`
	InvalidSpans  int `json:"invalidSpans"`
	MalformedLine int `json:"malformedLines"`
}

type message struct {
	Reason  string      `json:"reason"`
	Message *diagnostic `json:"message"`
}

type diagnostic struct {
	Message  string           `json:"message"`
	Code     *diagnosticCode  `json:"code"`
	Level    string           `json:"level"`
	Spans    []diagnosticSpan `json:"spans"`
	Children []diagnostic     `json:"children"`
	Rendered *string          `json:"rendered"`
}

type diagnosticCode struct {
	Code string `json:"code"`
}

type diagnosticSpan struct {
	FileName             string  `json:"file_name"`
	ByteStart            int64   `json:"byte_start"`
	ByteEnd              int64   `json:"byte_end"`
	LineStart            int64   `json:"line_start"`
	LineEnd              int64   `json:"line_end"`
	SuggestedReplacement *string `json:"suggested_replacement"`
}

// Decode reads newline-delimited analyzer records from r and groups the resulting spans by
// file. Records without a rule code, spans with invalid ranges and lines that are not JSON
// are dropped and counted in Stats. Only read errors are returned.
func Decode(r io.Reader) (span.FileSpans, Stats, error) {
	out := make(span.FileSpans)
	var stats Stats

	br := bufio.NewReader(r)
	for {
		line, err := br.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			decodeLine(line, out, &stats)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return out, stats, err
		}
	}

	return out, stats, nil
}

// DecodeBytes is Decode over an in-memory buffer.
func DecodeBytes(data []byte) (span.FileSpans, Stats) {
	out, stats, _ := Decode(bytes.NewReader(data))
	return out, stats
}

func decodeLine(line []byte, out span.FileSpans, stats *Stats) {
	var msg message
	if err := json.Unmarshal(line, &msg); err != nil {
		stats.MalformedLine++
		return
	}
	stats.Records++
	if msg.Reason != reasonCompilerMessage || msg.Message == nil {
		return
	}
	stats.Diagnostics++

	d := msg.Message
	if d.Code == nil || d.Code.Code == "" {
		stats.MissingCode++
		return
	}

	note := subMessages(d.Children)
	for _, s := range d.Spans {
		if s.ByteStart < 0 || s.ByteEnd < s.ByteStart || s.LineStart < 0 || s.LineEnd < s.LineStart {
			stats.InvalidSpans++
			continue
		}
		out.Add(s.FileName, span.Span{
			RuleID:     d.Code.Code,
			Severity:   span.Severity(d.Level),
			StartByte:  int(s.ByteStart),
			EndByte:    int(s.ByteEnd),
			StartLine:  int(s.LineStart),
			EndLine:    int(s.LineEnd),
			Suggestion: s.SuggestedReplacement,
			Note:       note,
		})
		stats.Spans++
	}
}

// subMessages joins nested explanatory messages with newlines, preferring
// "message: rendered" when the analyzer rendered the child.
func subMessages(children []diagnostic) string {
	parts := make([]string, 0, len(children))
	for _, c := range children {
		if c.Rendered != nil {
			parts = append(parts, c.Message+": "+*c.Rendered)
		} else {
			parts = append(parts, c.Message)
		}
	}
	return strings.Join(parts, "\n")
}
