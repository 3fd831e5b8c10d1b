// Package project locates the Cargo project the analyzer runs in.
package project

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"rustdiag/internal/errors"
)

// ManifestName is the file marking a Cargo package or workspace.
const ManifestName = "Cargo.toml"

// Manifest holds the parts of Cargo.toml rustdiag reads.
type Manifest struct {
	Package   *Package   `toml:"package"`
	Workspace *Workspace `toml:"workspace"`
	Lib       *Target    `toml:"lib"`
	Bin       []Target   `toml:"bin"`
}

// Package is the [package] table.
type Package struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
	Edition string `toml:"edition"`
}

// Workspace is the [workspace] table.
type Workspace struct {
	Members []string `toml:"members"`
	Exclude []string `toml:"exclude"`
}

// Target is a [lib] or [[bin]] table.
type Target struct {
	Name string `toml:"name"`
	Path string `toml:"path"`
}

// Project is a located Cargo project.
type Project struct {
	Root         string
	ManifestPath string
	Manifest     Manifest
}

// Name returns the package name, or the directory name for a virtual workspace.
func (p *Project) Name() string {
	if p.Manifest.Package != nil && p.Manifest.Package.Name != "" {
		return p.Manifest.Package.Name
	}
	return filepath.Base(p.Root)
}

// IsWorkspace reports whether the manifest declares a workspace.
func (p *Project) IsWorkspace() bool {
	return p.Manifest.Workspace != nil
}

// ReadManifest decodes a Cargo.toml file.
func ReadManifest(path string) (Manifest, error) {
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return Manifest{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return m, nil
}

// Find walks up from start to the directory the analyzer should run in: the nearest
// ancestor holding a Cargo.toml, or a workspace root above it when one exists.
func Find(start string) (*Project, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return nil, err
	}

	var found *Project
	for dir := abs; ; dir = filepath.Dir(dir) {
		path := filepath.Join(dir, ManifestName)
		if _, err := os.Stat(path); err == nil {
			m, err := ReadManifest(path)
			if err != nil {
				return nil, errors.New(errors.NotACargoProject, "invalid Cargo manifest", err)
			}
			if found == nil || m.Workspace != nil {
				found = &Project{Root: dir, ManifestPath: path, Manifest: m}
			}
			if m.Workspace != nil {
				break
			}
		}
		if filepath.Dir(dir) == dir {
			break
		}
	}

	if found == nil {
		return nil, errors.New(errors.NotACargoProject, fmt.Sprintf("no %s found in %s or its parents", ManifestName, abs), nil)
	}
	return found, nil
}
