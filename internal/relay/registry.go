package relay

import "sync"

// Registry is the single source of truth for which identities are online.
// Identities are refcounted: two sessions may join under the same name and
// the name stays online until the last one leaves. Snapshots preserve
// insertion order for reproducibility; the order carries no meaning.
type Registry struct {
	mu    sync.RWMutex
	refs  map[string]int
	order []string
}

func NewRegistry() *Registry {
	return &Registry{refs: make(map[string]int)}
}

// Join adds identity to the online set (or bumps its refcount) and returns
// the updated snapshot.
func (g *Registry) Join(identity string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.refs[identity]++
	if g.refs[identity] == 1 {
		g.order = append(g.order, identity)
	}
	return g.snapshotLocked()
}

// Leave drops one reference to identity. The identity goes offline only when
// no other live session still holds it. Returns whether the online set
// changed, plus the updated snapshot.
func (g *Registry) Leave(identity string) (bool, []string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.refs[identity]
	if !ok {
		return false, g.snapshotLocked()
	}
	if n > 1 {
		g.refs[identity] = n - 1
		return false, g.snapshotLocked()
	}

	delete(g.refs, identity)
	for i, name := range g.order {
		if name == identity {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	return true, g.snapshotLocked()
}

// Snapshot returns the current online set in insertion order.
func (g *Registry) Snapshot() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.snapshotLocked()
}

func (g *Registry) snapshotLocked() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}
