package runner

import (
	"os"
	"path/filepath"
	"testing"

	"orcbuild/graph"
)

func TestStager_StageMergesIntoDependent(t *testing.T) {
	pwd := t.TempDir()

	dep := graph.NewPackage(nil, "libfoo", "", "", "", 0, nil)
	dep.Dir = graph.NewBuildDir(pwd, "devel", "libfoo")
	if err := os.MkdirAll(filepath.Join(dep.Dir.Staging, "usr", "local", "lib"), 0755); err != nil {
		t.Fatalf("setup dep staging: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dep.Dir.Staging, "usr", "local", "lib", "libfoo.a"), []byte("x"), 0644); err != nil {
		t.Fatalf("write staged artifact: %v", err)
	}

	dependentDir := graph.NewBuildDir(pwd, "editors", "widget")
	s := Stager{}
	if err := s.Stage(dep, dependentDir); err != nil {
		t.Fatalf("Stage() = %v", err)
	}

	if _, err := os.Stat(filepath.Join(dependentDir.Staging, "usr", "local", "lib", "libfoo.a")); err != nil {
		t.Errorf("expected staged artifact merged into dependent: %v", err)
	}
}

func TestStager_StageNoopWhenNothingStaged(t *testing.T) {
	pwd := t.TempDir()
	dep := graph.NewPackage(nil, "headeronly", "", "", "", 0, nil)
	dep.Dir = graph.NewBuildDir(pwd, "devel", "headeronly")

	dependentDir := graph.NewBuildDir(pwd, "editors", "widget")
	s := Stager{}
	if err := s.Stage(dep, dependentDir); err != nil {
		t.Fatalf("Stage() on package with no staging output = %v, want nil", err)
	}
}

func TestStager_StageTo(t *testing.T) {
	pwd := t.TempDir()
	dep := graph.NewPackage(nil, "libfoo", "", "", "", 0, nil)
	dep.Dir = graph.NewBuildDir(pwd, "devel", "libfoo")
	if err := os.MkdirAll(dep.Dir.Staging, 0755); err != nil {
		t.Fatalf("setup dep staging: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dep.Dir.Staging, "marker"), []byte("x"), 0644); err != nil {
		t.Fatalf("write marker: %v", err)
	}

	dest := filepath.Join(pwd, "custom-extract")
	s := Stager{}
	if err := s.StageTo(dep, dest); err != nil {
		t.Fatalf("StageTo() = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "marker")); err != nil {
		t.Errorf("expected marker at custom dest: %v", err)
	}
}
