package runner

import (
	"fmt"
	"os"

	"orcbuild/graph"
)

// Stager implements graph.DependencyStager by copying a dependency's
// staged install tree (dep.Dir.Staging) into a dependent's own build
// area, so headers/libraries a dependency installed are visible to the
// dependent's configure/build commands (§4.4 step 3).
type Stager struct{}

// Stage merges dep's staging tree into dir.Staging.
func (Stager) Stage(dep *graph.Package, dir *graph.BuildDir) error {
	if dep.Dir == nil {
		return fmt.Errorf("stage: dependency %s has no build directory", dep.Name)
	}
	if _, err := os.Stat(dep.Dir.Staging); os.IsNotExist(err) {
		// Nothing was installed (e.g. a header-only or meta package); not
		// an error.
		return nil
	}
	if err := os.MkdirAll(dir.Staging, 0755); err != nil {
		return fmt.Errorf("stage %s: %w", dep.Name, err)
	}
	if err := copyTree(dep.Dir.Staging, dir.Staging); err != nil {
		return fmt.Errorf("stage %s into %s: %w", dep.Name, dir.Staging, err)
	}
	return nil
}

// StageTo copies dep's staging tree into an explicit destination path,
// used when a package sets deps_extract to interrogate dependency
// outputs from a location of its own choosing rather than the default
// merged staging tree.
func (Stager) StageTo(dep *graph.Package, dest string) error {
	if dep.Dir == nil {
		return fmt.Errorf("stage: dependency %s has no build directory", dep.Name)
	}
	if _, err := os.Stat(dep.Dir.Staging); os.IsNotExist(err) {
		return nil
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return fmt.Errorf("stage %s to %s: %w", dep.Name, dest, err)
	}
	if err := copyTree(dep.Dir.Staging, dest); err != nil {
		return fmt.Errorf("stage %s to %s: %w", dep.Name, dest, err)
	}
	return nil
}
