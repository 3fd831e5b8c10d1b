package span

import (
	"reflect"
	"testing"
)

func TestSeverityTitle(t *testing.T) {
	tests := []struct {
		sev  Severity
		want string
	}{
		{SeverityWarning, "Warning"},
		{SeverityError, "Error"},
		{SeverityNote, "Note"},
		{SeverityFailureNote, "FailureNote"},
		{SeverityICE, "Ice"},
		{Severity("lint"), "Lint"},
		{Severity("ébauche"), "Ébauche"},
		{Severity("λ"), "Λ"},
		{Severity(""), "Unknown"},
	}

	for _, tt := range tests {
		if got := tt.sev.Title(); got != tt.want {
			t.Errorf("Severity(%q).Title() = %q, want %q", tt.sev, got, tt.want)
		}
	}
}

func TestSpanLabel(t *testing.T) {
	s := Span{RuleID: "clippy::unwrap_used", Severity: SeverityWarning}
	if got := s.Label(); got != "#[Warning(clippy::unwrap_used)" {
		t.Errorf("unexpected label %q", got)
	}
}

func TestSpanEquality(t *testing.T) {
	note := "a"
	a := Span{RuleID: "r", StartByte: 1, EndByte: 4, StartLine: 1, Note: "x"}
	b := Span{RuleID: "r", StartByte: 1, EndByte: 4, StartLine: 9, Suggestion: &note}
	c := Span{RuleID: "r", StartByte: 1, EndByte: 5}

	if !a.Equal(b) {
		t.Error("spans with same rule and byte range should be equal")
	}
	if a.Equal(c) {
		t.Error("spans with different byte ranges should differ")
	}

	set := map[Key]bool{a.Key(): true}
	if !set[b.Key()] {
		t.Error("equal spans should hash to the same key")
	}
}

func TestSpanValidFor(t *testing.T) {
	tests := []struct {
		name string
		s    Span
		n    int
		want bool
	}{
		{"inside", Span{StartByte: 0, EndByte: 3}, 3, true},
		{"empty at end", Span{StartByte: 3, EndByte: 3}, 3, true},
		{"past end", Span{StartByte: 2, EndByte: 4}, 3, false},
		{"inverted", Span{StartByte: 2, EndByte: 1}, 3, false},
		{"negative", Span{StartByte: -1, EndByte: 1}, 3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.ValidFor(tt.n); got != tt.want {
				t.Errorf("ValidFor(%d) = %v, want %v", tt.n, got, tt.want)
			}
		})
	}
}

func TestRuleName(t *testing.T) {
	if got := RuleName("clippy::unwrap_used"); got != "unwrap_used" {
		t.Errorf("got %q", got)
	}
	if got := RuleName("E0308"); got != "E0308" {
		t.Errorf("got %q", got)
	}
}

func TestFileSpansByRule(t *testing.T) {
	fs := make(FileSpans)
	fs.Add("src/a.rs", Span{RuleID: "clippy::unwrap_used", StartByte: 1})
	fs.Add("src/a.rs", Span{RuleID: "clippy::ptr_arg", StartByte: 2})
	fs.Add("src/b.rs", Span{RuleID: "clippy::unwrap_used", StartByte: 3})

	if fs.Count() != 3 {
		t.Fatalf("expected 3 spans, got %d", fs.Count())
	}
	if got := fs.Files(); !reflect.DeepEqual(got, []string{"src/a.rs", "src/b.rs"}) {
		t.Errorf("unexpected files %v", got)
	}
	if got := fs.Rules(); !reflect.DeepEqual(got, []string{"clippy::ptr_arg", "clippy::unwrap_used"}) {
		t.Errorf("unexpected rules %v", got)
	}

	parts := fs.ByRule()
	if len(parts) != 2 {
		t.Fatalf("expected 2 partitions, got %d", len(parts))
	}
	unwrap := parts["clippy::unwrap_used"]
	if len(unwrap) != 2 || len(unwrap["src/a.rs"]) != 1 || len(unwrap["src/b.rs"]) != 1 {
		t.Errorf("unexpected unwrap_used partition %v", unwrap)
	}
	ptr := parts["clippy::ptr_arg"]
	if _, ok := ptr["src/b.rs"]; ok {
		t.Error("files without spans for a rule must be absent from its partition")
	}
}

func TestReconcile(t *testing.T) {
	unwrap := Span{RuleID: "clippy::unwrap_used", Severity: SeverityWarning, StartByte: 10, EndByte: 20}
	ptr := Span{RuleID: "clippy::ptr_arg", Severity: SeverityWarning, StartByte: 30, EndByte: 40}
	unwrapAfter := Span{RuleID: "clippy::unwrap_used", Severity: SeverityWarning, StartByte: 50, EndByte: 60}

	fixed, remaining := Reconcile([]Span{unwrap, ptr}, []Span{unwrapAfter})
	if len(fixed) != 1 || !fixed[0].Equal(ptr) {
		t.Errorf("expected ptr_arg to be fixed, got %v", fixed)
	}
	if len(remaining) != 1 || !remaining[0].Equal(unwrapAfter) {
		t.Errorf("expected the post-fix unwrap_used span to remain, got %v", remaining)
	}

	fixed, remaining = Reconcile([]Span{unwrap, ptr}, nil)
	if len(fixed) != 2 || len(remaining) != 0 {
		t.Errorf("no post-fix spans means everything was fixed, got fixed=%d remaining=%d", len(fixed), len(remaining))
	}
}

func TestOverlapsLines(t *testing.T) {
	a := Span{StartLine: 3, EndLine: 5}
	if !a.OverlapsLines(Span{StartLine: 5, EndLine: 9}) {
		t.Error("touching ranges should overlap")
	}
	if a.OverlapsLines(Span{StartLine: 6, EndLine: 9}) {
		t.Error("disjoint ranges should not overlap")
	}
}
