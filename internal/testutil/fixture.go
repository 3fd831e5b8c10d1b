// Package testutil provides fixture loading and golden-file helpers for tests.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// Fixture is one scenario under testdata/fixtures/<name>/.
//
// A fixture directory holds the source before the fix (original.rs), the source after the
// fix (fixed.rs), the analyzer output for both (before.json, after.json) and an expected/
// directory with golden outputs.
type Fixture struct {
	// Name is the fixture directory name (e.g., "unwrap_used")
	Name string

	// Root is the absolute path to the fixture directory
	Root string

	// ExpectedDir is the path to the expected/ directory
	ExpectedDir string
}

// LoadFixture loads a fixture, failing the test when its directory is missing.
func LoadFixture(t *testing.T, name string) *Fixture {
	t.Helper()

	root := getFixturesRoot(t)
	fixtureDir := filepath.Join(root, name)

	if _, err := os.Stat(fixtureDir); os.IsNotExist(err) {
		t.Fatalf("Fixture directory not found: %s", fixtureDir)
	}

	return &Fixture{
		Name:        name,
		Root:        fixtureDir,
		ExpectedDir: filepath.Join(fixtureDir, "expected"),
	}
}

// Read returns the content of a file inside the fixture.
func (f *Fixture) Read(t *testing.T, name string) []byte {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(f.Root, name))
	if err != nil {
		t.Fatalf("Failed to read fixture file %s: %v", name, err)
	}
	return data
}

// ExpectedPath returns the path to a golden file within the fixture.
func (f *Fixture) ExpectedPath(name string) string {
	return filepath.Join(f.ExpectedDir, name)
}

// getFixturesRoot returns the absolute path to testdata/fixtures/.
func getFixturesRoot(t *testing.T) string {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get caller information")
	}

	// Navigate from internal/testutil to project root
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))
	fixturesRoot := filepath.Join(projectRoot, "testdata", "fixtures")

	if _, err := os.Stat(fixturesRoot); os.IsNotExist(err) {
		t.Fatalf("Fixtures root not found: %s", fixturesRoot)
	}

	return fixturesRoot
}
