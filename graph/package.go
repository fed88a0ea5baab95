package graph

import (
	"sync"
	"sync/atomic"
)

// DependencyEdge is a directed edge from a dependent Package to one of
// its dependencies. SuppressBuildSideEffects corresponds to the
// "suppress-build-side-effects" flag of §3: when set, build() still
// requires the dependency built, but skips staging its install outputs
// (§4.4 step 3).
type DependencyEdge struct {
	Pkg                      *Package
	SuppressBuildSideEffects bool
}

// Logger is the minimal sink a Package writes lifecycle lines to. It is
// satisfied by log.PackageLogger and by log.NoOpLogger for tests.
type Logger interface {
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Package is a build unit: identity, dependency list, extraction queue,
// command queue, state flags and the build()/process() entry points
// (§3, C5).
type Package struct {
	ns *NameSpace // back-reference, non-owning

	Name           string
	ScriptFile     string
	WorkingPath    string
	OverlayPath    string
	InsertionOrder int // position among its namespace's packages, for deterministic tie-breaking

	mu         sync.Mutex
	depends    []DependencyEdge
	Extraction ExtractionQueue
	Commands   CommandQueue

	DepsExtract string // optional path for materialising deps' install outputs
	InstallFile string // optional relative install artifact path

	// State flags. All monotonic except Building (§3 invariant list).
	processingQueued atomic.Bool
	processed        atomic.Bool
	CodeUpdated      atomic.Bool
	Building         atomic.Bool
	Built            atomic.Bool
	Failed           atomic.Bool

	visiting bool // cycle-check scratch, guarded by mu

	log Logger

	Dir *BuildDir
}

// NewPackage constructs a Package bound to ns. It is not added to the
// namespace; callers use NameSpace.FindPackage to get one that is.
func NewPackage(ns *NameSpace, name, scriptFile, workingPath, overlayPath string, order int, log Logger) *Package {
	if log == nil {
		log = noopLogger{}
	}
	return &Package{
		ns:             ns,
		Name:           name,
		ScriptFile:     scriptFile,
		WorkingPath:    workingPath,
		OverlayPath:    overlayPath,
		InsertionOrder: order,
		log:            log,
	}
}

// NS returns the owning namespace.
func (p *Package) NS() *NameSpace { return p.ns }

// SetProcessingQueued flips the one-shot discovery gate. It returns true
// exactly once per package: the first caller is responsible for queuing
// (or directly evaluating) the package; every subsequent caller gets
// false and must not re-queue it. This is the idempotent guard invariant
// 1 depends on.
func (p *Package) SetProcessingQueued() bool {
	return p.processingQueued.CompareAndSwap(false, true)
}

// Depends returns the dependency edges frozen at the end of Process.
func (p *Package) Depends() []DependencyEdge {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]DependencyEdge, len(p.depends))
	copy(out, p.depends)
	return out
}

// AddDependency records an edge to dep, coalescing multi-edges to the
// same target and rejecting self-edges. Only valid before Process
// completes (§3 invariant 2); called from script bindings during
// evaluation.
func (p *Package) AddDependency(dep *Package, suppress bool) error {
	if dep == p {
		return ErrSelfDependency
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.processed.Load() {
		return &UsageError{Binding: "depends", Reason: "package already processed"}
	}
	for i, e := range p.depends {
		if e.Pkg == dep {
			// Coalesce: suppress only if every edge to this target suppresses.
			p.depends[i].SuppressBuildSideEffects = e.SuppressBuildSideEffects && suppress
			return nil
		}
	}
	p.depends = append(p.depends, DependencyEdge{Pkg: dep, SuppressBuildSideEffects: suppress})
	return nil
}

// ScriptFunc is the signature of a package's evaluated script body: it
// receives the Package so script bindings can mutate its queues and
// register dependencies, and returns an error on UsageError-class
// failures (§4.4, §6.2 — the "current package" ambient context).
type ScriptFunc func(p *Package) error

// Process runs the package's script exactly once (invariant 1),
// populating depends, Extraction, Commands, DepsExtract and
// InstallFile. On return the Package is immutable with respect to those
// fields (invariant 2). Calling Process a second time does not re-run
// the script; it returns false if the first run failed, true otherwise.
func (p *Package) Process(fn ScriptFunc) bool {
	if p.processed.Load() {
		return !p.Failed.Load()
	}
	p.log.Info("processing")
	err := fn(p)
	p.mu.Lock()
	p.processed.Store(true)
	p.mu.Unlock()
	if err != nil {
		p.log.Error("processing failed: %v", err)
		p.Failed.Store(true)
		return false
	}
	return true
}

// Processed reports whether Process has run (successfully or not).
func (p *Package) Processed() bool {
	return p.processed.Load()
}

// Dependencies used by build() to stage install outputs into a
// dependent's area; a thin seam so tests can substitute a fake.
type DependencyStager interface {
	Stage(dep *Package, dir *BuildDir) error
	StageTo(dep *Package, dest string) error
}

// BuildEnv bundles the external collaborators build() needs: an
// extractor, a command runner, and a dependency stager. The core
// remains indifferent to their concrete implementations (§1).
type BuildEnv struct {
	Extractor  Extractor
	Runner     CommandRunner
	Stager     DependencyStager
	ForcedMode bool
	ForcedSet  map[string]bool
	MkdirAll   func(path string) error
}

// build runs the ordered build steps of §4.4. Any non-zero command or
// extraction failure aborts the build and returns false.
func (p *Package) build(env *BuildEnv) bool {
	// Step 1: forced-mode filter.
	if env.ForcedMode && !env.ForcedSet[p.Name] {
		p.log.Info("forced-mode: skipping (not in forced set)")
		return true
	}

	// Step 2: ensure directories exist.
	if p.Dir != nil && env.MkdirAll != nil {
		for _, d := range []string{p.Dir.Path, p.Dir.WorkSrc, p.Dir.WorkBuild, p.Dir.Staging} {
			if err := env.MkdirAll(d); err != nil {
				p.log.Error("mkdir %s: %v", d, err)
				return false
			}
		}
	}

	// Step 3: stage dependency install outputs.
	for _, e := range p.Depends() {
		if e.SuppressBuildSideEffects {
			continue
		}
		if env.Stager == nil {
			continue
		}
		if err := env.Stager.Stage(e.Pkg, p.Dir); err != nil {
			p.log.Error("staging %s: %v", e.Pkg.Name, err)
			return false
		}
		if p.DepsExtract != "" {
			if err := env.Stager.StageTo(e.Pkg, p.DepsExtract); err != nil {
				p.log.Error("staging %s to %s: %v", e.Pkg.Name, p.DepsExtract, err)
				return false
			}
		}
	}

	// Step 4: replay extraction queue.
	if env.Extractor != nil {
		if err := p.Extraction.Replay(p.Dir, env.Extractor); err != nil {
			p.log.Error("%v", err)
			return false
		}
	}

	// Step 5: replay command queue.
	if env.Runner != nil {
		if err := p.Commands.Replay(env.Runner); err != nil {
			p.log.Error("%v", err)
			return false
		}
	}

	// Step 6: install_file recording is a no-op at the core level beyond
	// having been set during Process; build() records nothing further.
	return true
}

// Build is the public build() entry point invoked by the scheduler.
func (p *Package) Build(env *BuildEnv) bool {
	p.log.Info("build starting")
	ok := p.build(env)
	if !ok {
		p.log.Error("build failed")
	} else {
		p.log.Info("build succeeded")
	}
	return ok
}

// CheckForDependencyLoops runs a depth-first walk using a grey/black
// scheme (a package-local "visiting" flag / a per-walk "done" map) to detect cycles
// reachable from p. This complements DependencyGraph's global SCC scan
// as defence in depth (§4.4, §9).
func (p *Package) CheckForDependencyLoops() bool {
	done := make(map[*Package]bool)
	return p.checkLoop(done)
}

func (p *Package) checkLoop(done map[*Package]bool) bool {
	p.mu.Lock()
	if p.visiting {
		p.mu.Unlock()
		return false
	}
	if done[p] {
		p.mu.Unlock()
		return true
	}
	p.visiting = true
	deps := append([]DependencyEdge{}, p.depends...)
	p.mu.Unlock()

	ok := true
	for _, e := range deps {
		if !e.Pkg.checkLoop(done) {
			ok = false
			break
		}
	}

	p.mu.Lock()
	p.visiting = false
	done[p] = true
	p.mu.Unlock()
	return ok
}
