package graph

import "sort"

// DependencyGraph is the global view over every Package's dependency
// edges, used once as a total barrier between discovery and execution
// to detect cycles (§4.6, C7).
type DependencyGraph struct {
	nodes []*Package
	edges map[*Package][]*Package // node -> its dependencies
}

// Fill scans every Package across every NameSpace in w and inserts a
// node plus its outgoing edges.
func (g *DependencyGraph) Fill(w *World) {
	g.nodes = nil
	g.edges = make(map[*Package][]*Package)
	for _, ns := range w.namespaces() {
		for _, p := range ns.Packages() {
			g.nodes = append(g.nodes, p)
			var outs []*Package
			for _, e := range p.Depends() {
				outs = append(outs, e.Pkg)
			}
			g.edges[p] = outs
		}
	}
}

// GetCycledPackages returns every node participating in a strongly
// connected component of size > 1, or in a self-loop, using Tarjan's
// algorithm.
func (g *DependencyGraph) GetCycledPackages() []*Package {
	t := &tarjan{
		edges:   g.edges,
		index:   make(map[*Package]int),
		lowlink: make(map[*Package]int),
		onStack: make(map[*Package]bool),
	}
	for _, n := range g.nodes {
		if _, seen := t.index[n]; !seen {
			t.strongconnect(n)
		}
	}

	var cycled []*Package
	for _, scc := range t.sccs {
		if len(scc) > 1 {
			cycled = append(cycled, scc...)
			continue
		}
		n := scc[0]
		for _, d := range g.edges[n] {
			if d == n {
				cycled = append(cycled, n)
				break
			}
		}
	}
	return cycled
}

type tarjan struct {
	edges   map[*Package][]*Package
	index   map[*Package]int
	lowlink map[*Package]int
	onStack map[*Package]bool
	stack   []*Package
	counter int
	sccs    [][]*Package
}

func (t *tarjan) strongconnect(v *Package) {
	t.index[v] = t.counter
	t.lowlink[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, w := range t.edges[v] {
		if _, seen := t.index[w]; !seen {
			t.strongconnect(w)
			if t.lowlink[w] < t.lowlink[v] {
				t.lowlink[v] = t.lowlink[w]
			}
		} else if t.onStack[w] {
			if t.index[w] < t.lowlink[v] {
				t.lowlink[v] = t.index[w]
			}
		}
	}

	if t.lowlink[v] == t.index[v] {
		var scc []*Package
		for {
			n := len(t.stack) - 1
			w := t.stack[n]
			t.stack = t.stack[:n]
			t.onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		t.sccs = append(t.sccs, scc)
	}
}

// TopoGraph is a snapshot of the same edge set as DependencyGraph,
// offering a topological iteration with dynamic deletion as builds
// complete (§4.6).
type TopoGraph struct {
	remaining map[*Package]int
	dependent map[*Package][]*Package // reverse edges: node -> packages depending on it
	ready     []*Package
	present   map[*Package]bool
}

// Fill snapshots the current edge set from w.
func (t *TopoGraph) Fill(w *World) {
	t.remaining = make(map[*Package]int)
	t.dependent = make(map[*Package][]*Package)
	t.present = make(map[*Package]bool)

	for _, ns := range w.namespaces() {
		for _, p := range ns.Packages() {
			t.present[p] = true
			deps := p.Depends()
			t.remaining[p] = len(deps)
			for _, e := range deps {
				t.dependent[e.Pkg] = append(t.dependent[e.Pkg], p)
			}
		}
	}
}

// Topological recomputes the ready-set: every node with zero remaining
// outgoing dependencies that has not been built or removed. Tie-breaks
// deterministically by (namespace insertion order, package insertion
// order) so dispatch sequence is reproducible (§4.6).
func (t *TopoGraph) Topological() {
	t.ready = t.ready[:0]
	for p, n := range t.remaining {
		if n == 0 {
			t.ready = append(t.ready, p)
		}
	}
	t.sortReady()
}

func (t *TopoGraph) sortReady() {
	sort.SliceStable(t.ready, func(i, j int) bool {
		a, b := t.ready[i], t.ready[j]
		if a.NS().InsertionOrder != b.NS().InsertionOrder {
			return a.NS().InsertionOrder < b.NS().InsertionOrder
		}
		return a.InsertionOrder < b.InsertionOrder
	})
}

// TopoNext removes one node from the ready-set and returns it, or
// returns nil if the ready-set is empty.
func (t *TopoGraph) TopoNext() *Package {
	if len(t.ready) == 0 {
		return nil
	}
	p := t.ready[0]
	t.ready = t.ready[1:]
	return p
}

// DeleteNode removes p and every edge terminating in p (i.e. every
// dependent's edge onto p), potentially adding newly-ready nodes. It
// must be called exactly once per successfully built Package; once
// deleted, p is never observable again via this TopoGraph (§3 invariant
// 6).
func (t *TopoGraph) DeleteNode(p *Package) {
	if !t.present[p] {
		return
	}
	delete(t.present, p)
	delete(t.remaining, p)

	var newlyReady []*Package
	for _, dependent := range t.dependent[p] {
		if !t.present[dependent] {
			continue
		}
		t.remaining[dependent]--
		if t.remaining[dependent] == 0 {
			newlyReady = append(newlyReady, dependent)
		}
	}
	delete(t.dependent, p)
	if len(newlyReady) > 0 {
		t.ready = append(t.ready, newlyReady...)
		t.sortReady()
	}
}

// Len reports how many nodes remain in the graph.
func (t *TopoGraph) Len() int {
	return len(t.present)
}
