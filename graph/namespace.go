package graph

import "sync"

// NameSpace is a named container of Packages, owning them for their
// entire lifetime (§3: every Package has exactly one NameSpace). Lookup
// by name creates the Package on first miss.
type NameSpace struct {
	world *World // non-owning back-reference
	Name  string

	mu       sync.Mutex
	packages []*Package
	byName   map[string]*Package

	InsertionOrder int // position among World's namespaces, for deterministic tie-breaking
}

func newNameSpace(world *World, name string, order int) *NameSpace {
	return &NameSpace{
		world:          world,
		Name:           name,
		byName:         make(map[string]*Package),
		InsertionOrder: order,
	}
}

// World returns the owning World.
func (ns *NameSpace) World() *World { return ns.world }

// FindPackage returns the existing Package registered under name, or
// constructs and registers a new one bound to this namespace. Lookup is
// a simple map hit; cardinality is expected to stay small (§4.5).
func (ns *NameSpace) FindPackage(name, scriptFile string) (pkg *Package, created bool) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if existing, ok := ns.byName[name]; ok {
		return existing, false
	}
	p := NewPackage(ns, name, scriptFile, ns.world.pwd, "", len(ns.packages), ns.world.loggerFor(ns.Name, name))
	ns.byName[name] = p
	ns.packages = append(ns.packages, p)
	return p, true
}

// Lookup returns the existing Package registered under name without
// creating one.
func (ns *NameSpace) Lookup(name string) (*Package, bool) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	p, ok := ns.byName[name]
	return p, ok
}

// Packages returns every Package owned by this namespace, in insertion
// order.
func (ns *NameSpace) Packages() []*Package {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	out := make([]*Package, len(ns.packages))
	copy(out, ns.packages)
	return out
}
