package graph

import "testing"

func newTestPackage(t *testing.T, w *World, ns, name string) *Package {
	t.Helper()
	n := w.FindNameSpace(ns)
	p, _ := n.FindPackage(name, name)
	p.Dir = NewBuildDir(w.Pwd(), ns, name)
	return p
}

func TestAddDependencyCoalescesAndRejectsSelf(t *testing.T) {
	w := NewWorld("/tmp/orcbuild-test", nil, nil)
	a := newTestPackage(t, w, "ns", "a.pkg")
	b := newTestPackage(t, w, "ns", "b.pkg")

	if err := a.AddDependency(a, false); err != ErrSelfDependency {
		t.Errorf("AddDependency(self) = %v, want ErrSelfDependency", err)
	}

	if err := a.AddDependency(b, false); err != nil {
		t.Fatalf("AddDependency: %v", err)
	}
	if err := a.AddDependency(b, true); err != nil {
		t.Fatalf("AddDependency (second edge): %v", err)
	}

	deps := a.Depends()
	if len(deps) != 1 {
		t.Fatalf("Depends() = %d edges, want 1 (coalesced)", len(deps))
	}
	if deps[0].Pkg != b {
		t.Errorf("Depends()[0].Pkg = %v, want %v", deps[0].Pkg, b)
	}
}

func TestAddDependencyCoalesceSuppressIsAND(t *testing.T) {
	w := NewWorld("/tmp/orcbuild-test", nil, nil)
	a := newTestPackage(t, w, "ns", "a.pkg")
	b := newTestPackage(t, w, "ns", "b.pkg")

	if err := a.AddDependency(b, true); err != nil {
		t.Fatalf("AddDependency: %v", err)
	}
	if err := a.AddDependency(b, false); err != nil {
		t.Fatalf("AddDependency: %v", err)
	}

	deps := a.Depends()
	if len(deps) != 1 {
		t.Fatalf("Depends() = %d edges, want 1", len(deps))
	}
	if deps[0].SuppressBuildSideEffects {
		t.Error("coalesced suppress flag should be true&&false = false")
	}
}

func TestAddDependencyAfterProcessedFails(t *testing.T) {
	w := NewWorld("/tmp/orcbuild-test", nil, nil)
	a := newTestPackage(t, w, "ns", "a.pkg")
	b := newTestPackage(t, w, "ns", "b.pkg")

	a.Process(func(p *Package) error { return nil })

	err := a.AddDependency(b, false)
	if err == nil {
		t.Fatal("AddDependency after Process should fail")
	}
	if _, ok := err.(*UsageError); !ok {
		t.Errorf("AddDependency after Process returned %T, want *UsageError", err)
	}
}

func TestProcessRunsScriptExactlyOnce(t *testing.T) {
	w := NewWorld("/tmp/orcbuild-test", nil, nil)
	a := newTestPackage(t, w, "ns", "a.pkg")

	calls := 0
	fn := func(p *Package) error {
		calls++
		return nil
	}

	if !a.Process(fn) {
		t.Fatal("first Process should succeed")
	}
	if !a.Process(fn) {
		t.Fatal("second Process should report the original success, not re-run")
	}
	if calls != 1 {
		t.Errorf("script ran %d times, want 1", calls)
	}
	if !a.Processed() {
		t.Error("Processed() should be true after Process")
	}
}

func TestProcessFailurePropagates(t *testing.T) {
	w := NewWorld("/tmp/orcbuild-test", nil, nil)
	a := newTestPackage(t, w, "ns", "a.pkg")

	ok := a.Process(func(p *Package) error { return ErrNoSuchKey })
	if ok {
		t.Fatal("Process should fail when the script returns an error")
	}
	if !a.Failed.Load() {
		t.Error("Failed flag should be set after a failing Process")
	}
	// Second call is a no-op returning the cached (failed) outcome.
	if a.Process(func(p *Package) error { return nil }) {
		t.Error("second Process should still report failure, not re-run successfully")
	}
}

func TestCheckForDependencyLoopsDetectsCycle(t *testing.T) {
	w := NewWorld("/tmp/orcbuild-test", nil, nil)
	a := newTestPackage(t, w, "ns", "a.pkg")
	b := newTestPackage(t, w, "ns", "b.pkg")

	if err := a.AddDependency(b, false); err != nil {
		t.Fatalf("AddDependency: %v", err)
	}
	if err := b.AddDependency(a, false); err != nil {
		t.Fatalf("AddDependency: %v", err)
	}

	if a.CheckForDependencyLoops() {
		t.Error("CheckForDependencyLoops should detect the a->b->a cycle")
	}
}

func TestCheckForDependencyLoopsAcyclic(t *testing.T) {
	w := NewWorld("/tmp/orcbuild-test", nil, nil)
	a := newTestPackage(t, w, "ns", "a.pkg")
	b := newTestPackage(t, w, "ns", "b.pkg")
	c := newTestPackage(t, w, "ns", "c.pkg")

	if err := a.AddDependency(b, false); err != nil {
		t.Fatalf("AddDependency: %v", err)
	}
	if err := b.AddDependency(c, false); err != nil {
		t.Fatalf("AddDependency: %v", err)
	}

	if !a.CheckForDependencyLoops() {
		t.Error("CheckForDependencyLoops should report no cycle for a->b->c")
	}
}

func TestBuildForcedModeSkipsUnlisted(t *testing.T) {
	w := NewWorld("/tmp/orcbuild-test", nil, nil)
	a := newTestPackage(t, w, "ns", "a.pkg")

	env := &BuildEnv{ForcedMode: true, ForcedSet: map[string]bool{"other.pkg": true}}
	if !a.Build(env) {
		t.Error("forced-mode build of an unlisted package should trivially succeed")
	}
}

type fakeStager struct {
	staged   []*Package
	stagedTo []string
	fail     bool
}

func (s *fakeStager) Stage(dep *Package, dir *BuildDir) error {
	if s.fail {
		return ErrNoSuchKey
	}
	s.staged = append(s.staged, dep)
	return nil
}

func (s *fakeStager) StageTo(dep *Package, dest string) error {
	s.stagedTo = append(s.stagedTo, dest)
	return nil
}

func TestBuildStagesUnsuppressedDepsOnly(t *testing.T) {
	w := NewWorld("/tmp/orcbuild-test", nil, nil)
	a := newTestPackage(t, w, "ns", "a.pkg")
	b := newTestPackage(t, w, "ns", "b.pkg")
	c := newTestPackage(t, w, "ns", "c.pkg")

	if err := a.AddDependency(b, false); err != nil {
		t.Fatalf("AddDependency: %v", err)
	}
	if err := a.AddDependency(c, true); err != nil {
		t.Fatalf("AddDependency: %v", err)
	}

	stager := &fakeStager{}
	env := &BuildEnv{Stager: stager}
	if !a.Build(env) {
		t.Fatal("Build should succeed")
	}
	if len(stager.staged) != 1 || stager.staged[0] != b {
		t.Errorf("staged = %v, want only [b]", stager.staged)
	}
}

func TestBuildFailsWhenStagerErrors(t *testing.T) {
	w := NewWorld("/tmp/orcbuild-test", nil, nil)
	a := newTestPackage(t, w, "ns", "a.pkg")
	b := newTestPackage(t, w, "ns", "b.pkg")
	if err := a.AddDependency(b, false); err != nil {
		t.Fatalf("AddDependency: %v", err)
	}

	env := &BuildEnv{Stager: &fakeStager{fail: true}}
	if a.Build(env) {
		t.Error("Build should fail when staging a dependency errors")
	}
}
