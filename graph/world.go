package graph

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// LoggerFactory constructs a per-package Logger, letting World hand each
// Package a sink that prefixes its lines with (namespace, name) (§3,
// §7).
type LoggerFactory func(ns, name string) Logger

// World is the process-wide coordinator: namespace registry, global
// features, forced-mode filter, thread-count limit, condition variable
// and failure flag (§3, §4.8, C9).
type World struct {
	pwd string

	nsMu sync.Mutex
	ns   []*NameSpace
	byNS map[string]*NameSpace

	featMu   sync.Mutex
	features map[string]string

	ForcedMode bool
	ForcedSet  map[string]bool
	KeepGoing  bool
	ParseOnly  bool

	ThreadLimit    int // 0 = unbounded
	DiscoveryLimit int // bounds discovery worker concurrency; 0 = ThreadLimit, still 0 = unbounded

	// OnPackageFinished, if set, is called after each package's build
	// completes (success or failure). It exists purely so a caller can
	// mirror run progress into an external ledger (builddb's
	// PutRunPackage/UpdateRunSnapshot) for the monitor command to poll;
	// the core itself has no notion of a "run".
	OnPackageFinished func(p *Package, ok bool)

	// OnPackageStarted, if set, is called the moment a package is
	// dispatched to a build worker, before buildThread runs. Paired with
	// OnPackageFinished so a caller can report which package is "current"
	// between the two events.
	OnPackageStarted func(p *Package)

	condMu        sync.Mutex
	cond          *sync.Cond
	threadsRun    int
	topo          TopoGraph
	graph         DependencyGraph
	failed        bool
	newLogger     LoggerFactory
	buildEnvMaker func(p *Package) *BuildEnv

	discoverySem chan struct{}
}

// NewWorld constructs a World rooted at pwd. buildEnvMaker supplies the
// external collaborators (extractor/runner/stager) a given Package's
// build() needs; newLogger supplies its per-package log sink. Both may
// be nil, in which case a no-op default is used.
func NewWorld(pwd string, newLogger LoggerFactory, buildEnvMaker func(p *Package) *BuildEnv) *World {
	w := &World{
		pwd:           pwd,
		byNS:          make(map[string]*NameSpace),
		features:      make(map[string]string),
		ForcedSet:     make(map[string]bool),
		newLogger:     newLogger,
		buildEnvMaker: buildEnvMaker,
	}
	w.cond = sync.NewCond(&w.condMu)
	if w.newLogger == nil {
		w.newLogger = func(ns, name string) Logger { return noopLogger{} }
	}
	if w.buildEnvMaker == nil {
		w.buildEnvMaker = func(p *Package) *BuildEnv { return &BuildEnv{} }
	}
	return w
}

// Pwd returns the process working directory this World was rooted at.
func (w *World) Pwd() string { return w.pwd }

func (w *World) loggerFor(ns, name string) Logger {
	return w.newLogger(ns, name)
}

func (w *World) namespaces() []*NameSpace {
	w.nsMu.Lock()
	defer w.nsMu.Unlock()
	out := make([]*NameSpace, len(w.ns))
	copy(out, w.ns)
	return out
}

// FindNameSpace looks up or creates a NameSpace by name, serialised by a
// dedicated mutex distinct from the scheduler's condition lock (§5).
func (w *World) FindNameSpace(name string) *NameSpace {
	w.nsMu.Lock()
	defer w.nsMu.Unlock()
	if existing, ok := w.byNS[name]; ok {
		return existing
	}
	n := newNameSpace(w, name, len(w.ns))
	w.byNS[name] = n
	w.ns = append(w.ns, n)
	return n
}

// SetFeature inserts key->value, overwriting only if override is set.
func (w *World) SetFeature(key, value string, override bool) {
	w.featMu.Lock()
	defer w.featMu.Unlock()
	if _, exists := w.features[key]; exists && !override {
		return
	}
	w.features[key] = value
}

// SetFeatureString parses a "k=v" string and sets it with override=true.
func (w *World) SetFeatureString(kv string) error {
	idx := strings.Index(kv, "=")
	if idx < 0 {
		return &UsageError{Binding: "setFeature", Reason: "expected key=value"}
	}
	w.SetFeature(kv[:idx], kv[idx+1:], true)
	return nil
}

// Feature looks up a feature value. ok is false ("no such key") if
// missing; this is not fatal — callers like the make binding treat it
// as "flag absent".
func (w *World) Feature(key string) (value string, ok bool) {
	w.featMu.Lock()
	defer w.featMu.Unlock()
	v, ok := w.features[key]
	return v, ok
}

// ThreadsRunning returns the current count of in-flight build workers.
func (w *World) ThreadsRunning() int {
	w.condMu.Lock()
	defer w.condMu.Unlock()
	return w.threadsRun
}

// Remaining returns the number of packages the topological scheduler
// still has to dispatch or finish, including those currently building.
// Only meaningful once BasePackage has filled the topo graph (i.e. after
// ParseOnly's early return); zero before that.
func (w *World) Remaining() int {
	w.condMu.Lock()
	defer w.condMu.Unlock()
	return w.topo.Len()
}

// threadStarted bumps the running count under condMu.
func (w *World) threadStarted() {
	w.condMu.Lock()
	w.threadsRun++
	w.condMu.Unlock()
}

// threadEnded drops the running count and broadcasts.
func (w *World) threadEnded() {
	w.condMu.Lock()
	w.threadsRun--
	w.condMu.Unlock()
	w.cond.Broadcast()
}

// SetFailed records the World-wide failure flag.
func (w *World) SetFailed() {
	w.condMu.Lock()
	w.failed = true
	w.condMu.Unlock()
	w.cond.Broadcast()
}

// Failed reports the World-wide failure flag.
func (w *World) Failed() bool {
	w.condMu.Lock()
	defer w.condMu.Unlock()
	return w.failed
}

// packageFinished deletes p from the topo-graph, recomputes the
// ready-set and broadcasts on the condition variable.
func (w *World) packageFinished(p *Package) {
	w.condMu.Lock()
	w.topo.DeleteNode(p)
	w.condMu.Unlock()
	w.cond.Broadcast()
}

func buildThread(w *World, p *Package) {
	defer w.threadEnded()
	defer w.packageFinished(p)

	env := w.buildEnvMaker(p)
	env.ForcedMode = w.ForcedMode
	env.ForcedSet = w.ForcedSet

	ok := p.Build(env)
	p.Built.Store(true)
	p.Building.Store(false)
	if !ok {
		p.Failed.Store(true)
		w.SetFailed()
	}
	if w.OnPackageFinished != nil {
		w.OnPackageFinished(p, ok)
	}
}

func processPackage(p *Package, eval ScriptEvaluator, pq *PackageQueue) {
	defer pq.Finish()

	if !p.Process(func(pkg *Package) error { return eval.Evaluate(pkg) }) {
		return
	}

	for _, e := range p.Depends() {
		dp := e.Pkg
		if dp.SetProcessingQueued() {
			pq.Push(dp)
		}
	}
}

// ScriptEvaluator evaluates one package's script against the given
// Package, populating its queues and registering dependencies via the
// script-binding surface (§6.2). A concrete ScriptEvaluator is supplied
// by the script package; the core depends only on this interface
// (design note: "a typed interface the binding layer fills").
type ScriptEvaluator interface {
	Evaluate(p *Package) error
}

func (w *World) processPackages(base *Package, eval ScriptEvaluator) {
	pq := NewPackageQueue()
	pq.Push(base)

	limit := w.DiscoveryLimit
	if limit <= 0 {
		limit = w.ThreadLimit
	}
	if limit > 0 {
		w.discoverySem = make(chan struct{}, limit)
	}

	for !pq.Done() {
		toProcess := pq.Pop()
		if toProcess != nil {
			pq.Start()
			if w.discoverySem != nil {
				w.discoverySem <- struct{}{}
				go func(p *Package) {
					defer func() { <-w.discoverySem }()
					processPackage(p, eval, pq)
				}(toProcess)
			} else {
				go processPackage(toProcess, eval, pq)
			}
		}
		pq.Wait()
	}
}

// BasePackage is the main entry point (§4.8.1): it resolves filename to
// an absolute path, derives the base namespace, runs discovery, checks
// for cycles, then drives the bounded-parallelism build to completion.
// It returns false (without panicking) on any fatal condition.
func (w *World) BasePackage(filename string, suffix string, eval ScriptEvaluator, errLog Logger) bool {
	if errLog == nil {
		errLog = noopLogger{}
	}

	abs, err := filepath.Abs(filename)
	if err != nil {
		errLog.Error("base package path does not exist: %v", err)
		return false
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	pname := filepath.Base(abs)
	nsname := strings.TrimSuffix(pname, suffix)

	ns := w.FindNameSpace(nsname)
	base, _ := ns.FindPackage(pname, abs)
	base.Dir = NewBuildDir(w.pwd, nsname, pname)

	w.processPackages(base, eval)

	w.condMu.Lock()
	w.graph.Fill(w)
	w.condMu.Unlock()

	cycled := w.graph.GetCycledPackages()
	if len(cycled) > 0 {
		errLog.Error("Dependency Loop Detected")
		errLog.Error("Cycled Packages:")
		for _, pk := range cycled {
			errLog.Error("    %s,%s", pk.NS().Name, pk.Name)
		}
		return false
	}

	if !base.CheckForDependencyLoops() {
		errLog.Error("Dependency Loop Detected")
		return false
	}

	if w.ParseOnly {
		return true
	}

	w.condMu.Lock()
	w.topo.Fill(w)
	w.topo.Topological()
	w.condMu.Unlock()

	w.condMu.Lock()
	for {
		if base.Built.Load() || w.failed {
			break
		}
		if w.ThreadLimit == 0 || w.threadsRun < w.ThreadLimit {
			next := w.topo.TopoNext()
			if next == nil {
				w.cond.Wait()
				continue
			}
			if next.Building.Load() {
				continue
			}
			next.Building.Store(true)
			w.threadsRun++
			if w.OnPackageStarted != nil {
				// Released around the hook so it may call ThreadsRunning
				// or Remaining, which take condMu themselves.
				w.condMu.Unlock()
				w.OnPackageStarted(next)
				w.condMu.Lock()
			}
			go buildThread(w, next)
			continue
		}
		w.cond.Wait()
	}
	w.condMu.Unlock()

	if w.KeepGoing && w.failed {
		w.condMu.Lock()
		for w.threadsRun > 0 {
			w.cond.Wait()
		}
		w.condMu.Unlock()
	}

	return !w.Failed()
}

// String is used by error messages / debug logging for a World.
func (w *World) String() string {
	return fmt.Sprintf("World(pwd=%s, threads=%d/%d)", w.pwd, w.ThreadsRunning(), w.ThreadLimit)
}
