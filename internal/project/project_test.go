package project

import (
	"os"
	"path/filepath"
	"testing"

	"rustdiag/internal/errors"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

const packageManifest = `[package]
name = "abc"
version = "0.1.0"
edition = "2021"

[[bin]]
name = "abc"
path = "src/main.rs"
`

func TestFind_Package(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Cargo.toml"), packageManifest)
	writeFile(t, filepath.Join(root, "src", "main.rs"), "fn main() {}\n")

	p, err := Find(filepath.Join(root, "src"))
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if p.Root != root {
		t.Errorf("Root = %s, want %s", p.Root, root)
	}
	if p.Name() != "abc" || p.IsWorkspace() {
		t.Errorf("unexpected project %+v", p.Manifest)
	}
	if p.Manifest.Package.Edition != "2021" {
		t.Errorf("Edition = %q", p.Manifest.Package.Edition)
	}
	if len(p.Manifest.Bin) != 1 || p.Manifest.Bin[0].Path != "src/main.rs" {
		t.Errorf("unexpected bin targets %+v", p.Manifest.Bin)
	}
}

func TestFind_Workspace(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Cargo.toml"), "[workspace]\nmembers = [\"crates/*\"]\n")
	member := filepath.Join(root, "crates", "abc")
	writeFile(t, filepath.Join(member, "Cargo.toml"), packageManifest)

	p, err := Find(member)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if p.Root != root || !p.IsWorkspace() {
		t.Errorf("expected the workspace root %s, got %s", root, p.Root)
	}
	if p.Name() != filepath.Base(root) {
		t.Errorf("virtual workspaces are named after their directory, got %q", p.Name())
	}
	if len(p.Manifest.Workspace.Members) != 1 {
		t.Errorf("unexpected members %v", p.Manifest.Workspace.Members)
	}
}

func TestFind_NotACargoProject(t *testing.T) {
	_, err := Find(t.TempDir())
	if !errors.Is(err, errors.NotACargoProject) {
		t.Errorf("expected NOT_A_CARGO_PROJECT, got %v", err)
	}
}

func TestFind_InvalidManifest(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Cargo.toml"), "[package\nname = ")

	if _, err := Find(root); !errors.Is(err, errors.NotACargoProject) {
		t.Errorf("expected NOT_A_CARGO_PROJECT, got %v", err)
	}
}
