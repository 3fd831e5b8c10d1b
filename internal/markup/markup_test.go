package markup

import (
	"bytes"
	"strings"
	"testing"

	"rustdiag/internal/report"
	"rustdiag/internal/span"
	"rustdiag/internal/testutil"
)

func strip(annotated []byte, spans []span.Span) []byte {
	out := string(annotated)
	for _, s := range spans {
		out = strings.ReplaceAll(out, CloseMarker(s), "")
		out = strings.ReplaceAll(out, OpenMarker(s), "")
	}
	return []byte(out)
}

func warning(rule string, start, end int) span.Span {
	return span.Span{RuleID: rule, Severity: span.SeverityWarning, StartByte: start, EndByte: end}
}

func TestMarkup_RoundTrip(t *testing.T) {
	source := []byte("fn a() { x.unwrap(); }\nfn b(v: &Vec<u8>) {}\n")
	tests := []struct {
		name  string
		spans []span.Span
	}{
		{"no spans", nil},
		{"single", []span.Span{warning("clippy::unwrap_used", 9, 19)}},
		{"overlapping", []span.Span{
			warning("clippy::unwrap_used", 9, 19),
			warning("clippy::expect_used", 5, 12),
		}},
		{"nested same end", []span.Span{
			warning("clippy::ptr_arg", 23, 43),
			warning("clippy::ptr_arg_inner", 31, 43),
		}},
		{"empty span", []span.Span{warning("clippy::dbg_macro", 3, 3)}},
		{"whole file", []span.Span{warning("clippy::mod_module_files", 0, len(source))}},
		{"out of range", []span.Span{warning("clippy::large_stack_arrays", 40, 400)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Markup(source, tt.spans)
			if !bytes.Equal(strip(got, tt.spans), source) {
				t.Errorf("stripping markers did not reproduce the source:\n%s", got)
			}
		})
	}
}

func TestMarkup_Placement(t *testing.T) {
	source := []byte("let s = read().unwrap();")
	start := bytes.Index(source, []byte("read"))
	end := bytes.Index(source, []byte(";"))
	s := warning("clippy::unwrap_used", start, end)

	got := string(Markup(source, []span.Span{s}))
	want := "let s = " + OpenMarker(s) + "read().unwrap()" + CloseMarker(s) + ";"
	if got != want {
		t.Errorf("unexpected markup:\n%s\nwant:\n%s", got, want)
	}
}

func TestMarkup_NestingOrder(t *testing.T) {
	source := []byte("abcdef")
	outer := warning("outer", 1, 5)
	inner := warning("inner", 1, 3)
	tail := warning("tail", 3, 5)

	got := string(Markup(source, []span.Span{inner, tail, outer}))
	want := "a" +
		OpenMarker(outer) + OpenMarker(inner) + "bc" + CloseMarker(inner) +
		OpenMarker(tail) + "de" + CloseMarker(tail) + CloseMarker(outer) +
		"f"
	if got != want {
		t.Errorf("unexpected nesting:\n%s\nwant:\n%s", got, want)
	}
}

func TestMarkup_ClosesAtEndOfSource(t *testing.T) {
	source := []byte("abc")
	s := warning("clippy::missing_docs", 1, 3)

	got := string(Markup(source, []span.Span{s}))
	if !strings.HasSuffix(got, "bc"+CloseMarker(s)) {
		t.Errorf("expected closing marker after the last byte, got %q", got)
	}
}

func TestCloseMarker_SuggestionAndNote(t *testing.T) {
	suggestion := `if let Ok(s) = x {\n}`
	s := span.Span{
		RuleID:     "clippy::unwrap_used",
		Severity:   span.SeverityWarning,
		Suggestion: &suggestion,
		Note:       `use \"if let\" instead\nsee */ docs`,
	}

	want := "/*\n#[Warning(clippy::unwrap_used)\nsuggestion: if let Ok(s) = x {\n}\nnote: use \\if let\\ instead\nsee * / docs*/"
	if got := CloseMarker(s); got != want {
		t.Errorf("unexpected close marker:\n%q\nwant:\n%q", got, want)
	}
}

func TestRules(t *testing.T) {
	spans := []span.Span{
		warning("clippy::unwrap_used", 10, 20),
		warning("clippy::ptr_arg", 5, 30),
		warning("clippy::expect_used", 15, 15),
	}

	got := string(Rules(10, 20, spans))
	want := "/*#[Warning(clippy::unwrap_used)*/\n/*#[Warning(clippy::expect_used)*/\n"
	if got != want {
		t.Errorf("unexpected rules:\n%s\nwant:\n%s", got, want)
	}
	if len(Rules(0, 4, spans)) != 0 {
		t.Error("no span lies within [0, 4]")
	}
}

func TestMarkup_Golden(t *testing.T) {
	fixture := testutil.LoadFixture(t, "unwrap_used")
	source := fixture.Read(t, "original.rs")
	spans, _ := report.DecodeBytes(fixture.Read(t, "before.json"))

	got := Markup(source, spans["src/main.rs"])
	testutil.CompareGolden(t, fixture, "diagnostics.rs", got)
}

func TestMarkupIndex(t *testing.T) {
	source := []byte("fn a() {}\nfn b() { x.unwrap() }\n")
	start := bytes.Index(source, []byte("x.unwrap()"))
	end := start + len("x.unwrap()")
	s := warning("clippy::unwrap_used", start, end)

	got, idx := MarkupIndex(source, []span.Span{s})
	if len(idx) != len(source)+1 {
		t.Fatalf("expected %d index entries, got %d", len(source)+1, len(idx))
	}
	for i := range source {
		if got[idx[i]] != source[i] {
			t.Fatalf("index %d does not point at source byte %q", i, source[i])
		}
	}

	item := bytes.Index(got, []byte("fn b()"))
	itemEnd := bytes.LastIndex(got, []byte("}")) + 1
	if idx.Source(item) != bytes.Index(source, []byte("fn b()")) {
		t.Errorf("item start maps to %d", idx.Source(item))
	}
	if idx.Source(itemEnd) != len(source)-1 {
		t.Errorf("item end maps to %d, want %d", idx.Source(itemEnd), len(source)-1)
	}
	if idx.Source(len(got)) != len(source) {
		t.Errorf("end of output maps to %d", idx.Source(len(got)))
	}
}
