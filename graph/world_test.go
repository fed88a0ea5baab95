package graph

import (
	"sync"
	"testing"
)

// mapEvaluator is a minimal ScriptEvaluator for World tests: each
// package's script is just a func(p *Package) error looked up by name.
type mapEvaluator struct {
	scripts map[string]func(p *Package) error
}

func (e *mapEvaluator) Evaluate(p *Package) error {
	fn, ok := e.scripts[p.Name]
	if !ok {
		return nil
	}
	return fn(p)
}

func TestBasePackageDiscoversLinearChain(t *testing.T) {
	w := NewWorld(t.TempDir(), nil, nil)
	w.ParseOnly = true

	eval := &mapEvaluator{scripts: map[string]func(p *Package) error{
		"editor.pkg": func(p *Package) error {
			dep := p.NS().World().FindNameSpace("ns")
			d, _ := dep.FindPackage("toolkit.pkg", "toolkit.pkg")
			return p.AddDependency(d, false)
		},
	}}

	if !w.BasePackage("editor.pkg", ".pkg", eval, nil) {
		t.Fatal("BasePackage should succeed for an acyclic chain")
	}

	ns := w.FindNameSpace("editor")
	root, ok := ns.Lookup("editor.pkg")
	if !ok {
		t.Fatal("root package should be registered after discovery")
	}
	if len(root.Depends()) != 1 {
		t.Fatalf("root has %d dependency edges, want 1", len(root.Depends()))
	}
}

func TestBasePackageDetectsCycle(t *testing.T) {
	w := NewWorld(t.TempDir(), nil, nil)
	w.ParseOnly = true

	eval := &mapEvaluator{scripts: map[string]func(p *Package) error{
		"a.pkg": func(p *Package) error {
			ns := p.NS().World().FindNameSpace("ns")
			d, _ := ns.FindPackage("b.pkg", "b.pkg")
			return p.AddDependency(d, false)
		},
		"b.pkg": func(p *Package) error {
			ns := p.NS().World().FindNameSpace("ns")
			d, _ := ns.FindPackage("a.pkg", "a.pkg")
			return p.AddDependency(d, false)
		},
	}}

	errLog := &collectingLogger{}
	if w.BasePackage("a.pkg", ".pkg", eval, errLog) {
		t.Fatal("BasePackage should fail on a circular dependency")
	}
	if len(errLog.errors) == 0 {
		t.Error("BasePackage should log at least one error message on a cycle")
	}
}

func TestBasePackageBuildsFullGraph(t *testing.T) {
	var mu sync.Mutex
	var built []string

	w := NewWorld(t.TempDir(), nil, func(p *Package) *BuildEnv {
		return &BuildEnv{}
	})
	w.ThreadLimit = 2
	w.OnPackageFinished = func(p *Package, ok bool) {
		mu.Lock()
		defer mu.Unlock()
		built = append(built, p.Name)
	}

	eval := &mapEvaluator{scripts: map[string]func(p *Package) error{
		"editor.pkg": func(p *Package) error {
			ns := p.NS().World().FindNameSpace("ns")
			d, _ := ns.FindPackage("toolkit.pkg", "toolkit.pkg")
			return p.AddDependency(d, false)
		},
	}}

	if !w.BasePackage("editor.pkg", ".pkg", eval, nil) {
		t.Fatal("BasePackage should succeed")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(built) != 2 {
		t.Fatalf("OnPackageFinished fired %d times, want 2", len(built))
	}
	if built[len(built)-1] != "editor.pkg" {
		t.Errorf("editor.pkg should finish last, finish order = %v", built)
	}
}

func TestBasePackageFailedBuildPropagates(t *testing.T) {
	w := NewWorld(t.TempDir(), nil, func(p *Package) *BuildEnv {
		return &BuildEnv{Runner: failingRunner{}}
	})

	eval := &mapEvaluator{scripts: map[string]func(p *Package) error{
		"editor.pkg": func(p *Package) error {
			p.Commands.Append(NewPackageCmd("/src", []string{"make"}, "editor"))
			return nil
		},
	}}

	if w.BasePackage("editor.pkg", ".pkg", eval, nil) {
		t.Fatal("BasePackage should report failure when a command fails")
	}
}

type failingRunner struct{}

func (failingRunner) Run(cmd *PackageCmd) error {
	return ErrNoSuchKey
}

type collectingLogger struct {
	errors []string
}

func (l *collectingLogger) Info(format string, args ...any)  {}
func (l *collectingLogger) Warn(format string, args ...any)  {}
func (l *collectingLogger) Error(format string, args ...any) {
	l.errors = append(l.errors, format)
}
