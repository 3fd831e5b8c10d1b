package report

import (
	"strings"
	"testing"

	"rustdiag/internal/span"
)

const unwrapRecord = `{"reason":"compiler-message","package_id":"abc 0.1.0","message":{"rendered":"warning: used unwrap()","children":[{"children":[],"code":null,"level":"note","message":"if this value is an ` + "`Err`" + `, it will panic","rendered":null,"spans":[]},{"children":[],"code":null,"level":"help","message":"for further information visit https://rust-lang.github.io/rust-clippy/master/index.html#unwrap_used","rendered":null,"spans":[]}],"code":{"code":"clippy::unwrap_used","explanation":null},"level":"warning","message":"used ` + "`unwrap()`" + ` on a ` + "`Result`" + ` value","spans":[{"byte_end":71,"byte_start":21,"column_end":59,"column_start":13,"expansion":null,"file_name":"src/main.rs","is_primary":true,"label":null,"line_end":3,"line_start":3,"suggested_replacement":null,"suggestion_applicability":null,"text":[]}]}}`

func TestDecode_CompilerMessage(t *testing.T) {
	input := strings.Join([]string{
		`{"reason":"compiler-artifact","package_id":"abc 0.1.0"}`,
		unwrapRecord,
		`{"reason":"build-finished","success":true}`,
	}, "\n")

	spans, stats, err := Decode(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Records != 3 {
		t.Errorf("expected 3 records, got %d", stats.Records)
	}
	if stats.Diagnostics != 1 || stats.Spans != 1 {
		t.Errorf("expected 1 diagnostic with 1 span, got %+v", stats)
	}

	got := spans["src/main.rs"]
	if len(got) != 1 {
		t.Fatalf("expected 1 span for src/main.rs, got %d", len(got))
	}
	s := got[0]
	if s.RuleID != "clippy::unwrap_used" {
		t.Errorf("unexpected rule %q", s.RuleID)
	}
	if s.Severity != span.SeverityWarning {
		t.Errorf("unexpected severity %q", s.Severity)
	}
	if s.StartByte != 21 || s.EndByte != 71 || s.StartLine != 3 || s.EndLine != 3 {
		t.Errorf("unexpected ranges %+v", s)
	}
	if s.HasSuggestion() {
		t.Error("null suggested_replacement should be absent")
	}
	wantNote := "if this value is an `Err`, it will panic\nfor further information visit https://rust-lang.github.io/rust-clippy/master/index.html#unwrap_used"
	if s.Note != wantNote {
		t.Errorf("unexpected note:\n%s\nwant:\n%s", s.Note, wantNote)
	}
}

func TestDecode_DropsRecordsWithoutCode(t *testing.T) {
	input := `{"reason":"compiler-message","message":{"message":"aborting","code":null,"level":"error","spans":[{"file_name":"src/lib.rs","byte_start":0,"byte_end":1,"line_start":1,"line_end":1}],"children":[]}}`

	spans, stats, err := Decode(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spans.Count() != 0 {
		t.Errorf("expected no spans, got %d", spans.Count())
	}
	if stats.MissingCode != 1 {
		t.Errorf("expected MissingCode=1, got %d", stats.MissingCode)
	}
}

func TestDecode_SkipsInvalidSpansAndGarbage(t *testing.T) {
	input := strings.Join([]string{
		"   Compiling abc v0.1.0",
		`{"reason":"compiler-message","message":{"message":"m","code":{"code":"E0308"},"level":"error","children":[],"spans":[` +
			`{"file_name":"src/lib.rs","byte_start":9,"byte_end":3,"line_start":1,"line_end":1},` +
			`{"file_name":"src/lib.rs","byte_start":3,"byte_end":9,"line_start":1,"line_end":2,"suggested_replacement":""}]}}`,
		"",
	}, "\n")

	spans, stats := DecodeBytes([]byte(input))
	if stats.MalformedLine != 1 {
		t.Errorf("expected 1 malformed line, got %d", stats.MalformedLine)
	}
	if stats.InvalidSpans != 1 {
		t.Errorf("expected 1 invalid span, got %d", stats.InvalidSpans)
	}
	got := spans["src/lib.rs"]
	if len(got) != 1 {
		t.Fatalf("expected 1 span, got %d", len(got))
	}
	if !got[0].HasSuggestion() || *got[0].Suggestion != "" {
		t.Error("empty suggested_replacement should be present and empty")
	}
}

func TestSubMessages_PrefersRendered(t *testing.T) {
	rendered := "try this"
	children := []diagnostic{
		{Message: "help", Rendered: &rendered},
		{Message: "plain"},
	}
	if got := subMessages(children); got != "help: try this\nplain" {
		t.Errorf("unexpected sub messages %q", got)
	}
}
