//go:build cgo

package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"rustdiag/internal/analyzer"
	"rustdiag/internal/config"
	"rustdiag/internal/emit"
	"rustdiag/internal/storage"
	"rustdiag/internal/testutil"
)

// fixMock reports before.json on check and applies fixed.rs on fix.
func fixMock(t *testing.T, fixture *testutil.Fixture) *analyzer.MockRunner {
	fixed := fixture.Read(t, "fixed.rs")
	after := fixture.Read(t, "after.json")
	mock := analyzer.NewMockRunner()
	mock.SetCommand(checkPrefix, string(fixture.Read(t, "before.json")), "", nil)
	mock.Handle(fixPrefix, func(dir string, _ []string) ([]byte, string, error) {
		if err := os.WriteFile(filepath.Join(dir, "src", "main.rs"), fixed, 0644); err != nil {
			return nil, "", err
		}
		return after, "", nil
	})
	return mock
}

func TestTransform(t *testing.T) {
	fixture := testutil.LoadFixture(t, "unwrap_used")
	root := setupProject(t, fixture)

	db, err := storage.Open(filepath.Join(root, ".rustdiag", "dataset.db"), true, nil)
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	defer db.Close()

	cfg := config.DefaultConfig()
	p, err := New(Options{
		Root:    root,
		Config:  cfg,
		Rules:   []string{"unwrap_used"},
		Exec:    fixMock(t, fixture),
		Dataset: db,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := p.Transform(context.Background())
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if res.Pairs != 1 {
		t.Fatalf("expected 1 pair, got %d", res.Pairs)
	}
	if res.After.Count() != 0 {
		t.Errorf("expected no spans after the fix, got %d", res.After.Count())
	}

	dir := filepath.Join(root, "transform", "unwrap_used", "src", "main")
	before, err := os.ReadFile(filepath.Join(dir, "1.2.rs"))
	if err != nil {
		t.Fatalf("before file missing: %v", err)
	}
	after, err := os.ReadFile(filepath.Join(dir, "1.3.rs"))
	if err != nil {
		t.Fatalf("after file missing: %v", err)
	}
	testutil.CompareGolden(t, fixture, "1.2.rs", before)
	testutil.CompareGolden(t, fixture, "1.3.rs", after)

	if len(res.Manifests) != 1 {
		t.Fatalf("expected 1 manifest, got %v", res.Manifests)
	}
	m, err := emit.ReadManifest(res.Manifests[0])
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if m.RunID != res.RunID || len(m.Pairs) != 1 || m.Pairs[0].Before != "src/main/1.2.rs" {
		t.Errorf("unexpected manifest %+v", m)
	}

	source, _ := os.ReadFile(filepath.Join(root, "src", "main.rs"))
	if !bytes.Equal(source, fixture.Read(t, "original.rs")) {
		t.Errorf("source not restored after transform:\n%s", source)
	}

	stored, err := db.ListPairs("clippy::unwrap_used")
	if err != nil {
		t.Fatalf("ListPairs: %v", err)
	}
	if len(stored) != 1 || stored[0].RunID != res.RunID || !bytes.Equal(stored[0].Before, before) {
		t.Errorf("pair not stored: %+v", stored)
	}
	run, err := db.GetRun(res.RunID)
	if err != nil || run == nil || run.FinishedAt == nil {
		t.Errorf("run not recorded as finished: %+v (%v)", run, err)
	}
}

func TestTransform_UnfixedRuleStillPaired(t *testing.T) {
	fixture := testutil.LoadFixture(t, "unwrap_unfixed")
	root := setupProject(t, fixture)

	res, err := newTestPipeline(t, root, fixMock(t, fixture)).Transform(context.Background())
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if len(res.Files) != 1 || len(res.Files[0].Rules) != 1 {
		t.Fatalf("unexpected files %+v", res.Files)
	}
	rr := res.Files[0].Rules[0]
	if len(rr.Fixed) != 0 || len(rr.Remaining) != 1 {
		t.Errorf("expected the span to remain, got fixed=%d remaining=%d", len(rr.Fixed), len(rr.Remaining))
	}
	if res.Pairs != 1 {
		t.Errorf("expected the changed item to be paired, got %d", res.Pairs)
	}
}

func TestTransform_Rewriter(t *testing.T) {
	fixture := testutil.LoadFixture(t, "unwrap_used")
	root := setupProject(t, fixture)

	mock := fixMock(t, fixture)
	mock.SetCommand("txl", "fn main() {}\n", "", nil)
	mock.SetCommand("rustfmt", "", "", nil)

	cfg := config.DefaultConfig()
	cfg.Rewriters["unwrap_used"] = config.RewriterConfig{
		Command: "txl",
		Args:    []string{analyzer.FilePlaceholder, "unwrap_used.txl"},
		Stdout:  true,
	}
	p, err := New(Options{Root: root, Config: cfg, Rules: []string{"unwrap_used"}, Exec: mock})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := p.Transform(context.Background())
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if len(res.Rewritten) != 1 || res.Rewritten[0] != "src/main.rs" {
		t.Errorf("unexpected rewritten files %v", res.Rewritten)
	}
	source, _ := os.ReadFile(filepath.Join(root, "src", "main.rs"))
	if !bytes.Equal(source, fixture.Read(t, "original.rs")) {
		t.Errorf("rewritten source not restored:\n%s", source)
	}
}
