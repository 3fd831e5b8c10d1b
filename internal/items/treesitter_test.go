//go:build cgo

package items

import (
	"bytes"
	"context"
	"reflect"
	"testing"

	"rustdiag/internal/testutil"
)

const rustSource = `use std::fs;

#[derive(Debug)]
struct Config {
    path: String,
}

impl Config {
    fn load(&self) -> String {
        fs::read_to_string(&self.path).unwrap()
    }
}

fn main() {
    let c = Config { path: "Cargo.toml".into() };
    println!("{}", c.load());
}
`

func TestExtract_Rust(t *testing.T) {
	e := NewExtractor()
	doc := []byte(rustSource)

	m, err := e.Extract(context.Background(), doc, LangRust)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantPrefixes := []string{"use std::fs;", "#[derive(Debug)]", "struct Config", "impl Config", "fn main()"}
	keys := m.Keys()
	if len(keys) != len(wantPrefixes) {
		for _, k := range keys {
			t.Logf("item at %d: %q", k, m[k].Content)
		}
		t.Fatalf("expected %d items, got %d", len(wantPrefixes), len(keys))
	}
	for i, k := range keys {
		it := m[k]
		if it.StartByte != k {
			t.Errorf("item keyed %d starts at %d", k, it.StartByte)
		}
		if !bytes.Equal(it.Content, doc[it.StartByte:it.EndByte]) {
			t.Errorf("item %d content is not the source slice", k)
		}
		if !bytes.HasPrefix(it.Content, []byte(wantPrefixes[i])) {
			t.Errorf("item %d: expected prefix %q, got %q", i, wantPrefixes[i], it.Content)
		}
	}
}

func TestExtract_Deterministic(t *testing.T) {
	e := NewExtractor()
	doc := []byte(rustSource)

	first, err := e.Extract(context.Background(), doc, LangRust)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := NewExtractor().Extract(context.Background(), doc, LangRust)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("extraction over identical input should yield identical maps")
	}
}

func TestExtract_MarkedUpFixture(t *testing.T) {
	fixture := testutil.LoadFixture(t, "unwrap_used")
	doc := fixture.Read(t, "expected/diagnostics.rs")

	m, err := NewExtractor().Extract(context.Background(), doc, LangRust)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	it, ok := m[1]
	if !ok || len(m) != 1 {
		t.Fatalf("expected a single item at offset 1, got keys %v", m.Keys())
	}
	if !bytes.HasPrefix(it.Content, []byte("fn main()")) || !bytes.HasSuffix(it.Content, []byte("}")) {
		t.Errorf("unexpected item content %q", it.Content)
	}
}

func TestExtract_Failures(t *testing.T) {
	e := NewExtractor()

	m, err := e.Extract(context.Background(), []byte{0xff, 0xfe, 'f', 'n'}, LangRust)
	if err == nil {
		t.Error("expected an error for invalid UTF-8")
	}
	if m == nil || len(m) != 0 {
		t.Errorf("expected an empty map, got %v", m)
	}

	m, err = e.Extract(context.Background(), []byte("fn main() {}"), Language("cobol"))
	if err == nil {
		t.Error("expected an error for an unsupported language")
	}
	if m == nil || len(m) != 0 {
		t.Errorf("expected an empty map, got %v", m)
	}
}

func TestExtract_OtherLanguages(t *testing.T) {
	tests := []struct {
		lang Language
		src  string
		want int
	}{
		{LangGo, "package main\n\nimport \"fmt\"\n\nfunc main() {\n\tfmt.Println(1)\n}\n", 3},
		{LangPython, "import os\n\ndef f():\n    return os.getcwd()\n", 2},
	}
	e := NewExtractor()
	for _, tt := range tests {
		t.Run(string(tt.lang), func(t *testing.T) {
			m, err := e.Extract(context.Background(), []byte(tt.src), tt.lang)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(m) != tt.want {
				t.Errorf("expected %d items, got %d (%v)", tt.want, len(m), m.Keys())
			}
		})
	}
}
