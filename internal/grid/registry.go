package grid

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/alfredjeanlab/gridpanel/internal/config"
	"github.com/alfredjeanlab/gridpanel/internal/session"
	"github.com/alfredjeanlab/gridpanel/internal/store"
)

// Registry holds the grids a server exposes, keyed by component id.
type Registry struct {
	mu    sync.RWMutex
	grids map[string]*Grid
}

// NewRegistry returns a registry holding grids.
func NewRegistry(grids ...*Grid) *Registry {
	r := &Registry{grids: make(map[string]*Grid, len(grids))}
	for _, g := range grids {
		r.grids[g.id] = g
	}
	return r
}

// FromDefinitions builds one grid per definition, all sharing s, sessions
// and opts.
func FromDefinitions(defs *config.Definitions, s store.Store, sessions session.Store, opts ...Option) *Registry {
	r := NewRegistry()
	for _, id := range defs.GridIDs() {
		def := defs.Grids[id]
		r.Add(New(def.ID, def.Entity, def.Instance, s, sessions, opts...))
	}
	return r
}

// Add registers g, replacing any grid with the same id.
func (r *Registry) Add(g *Grid) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grids[g.id] = g
}

// Get returns the grid with the given id.
func (r *Registry) Get(id string) (*Grid, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.grids[id]
	return g, ok
}

// IDs returns the registered grid ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.grids))
	for id := range r.grids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Call dispatches endpoint on the grid id.
func (r *Registry) Call(ctx context.Context, id, sess, endpoint string, p Params) (any, error) {
	g, ok := r.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownGrid, id)
	}
	return g.Call(ctx, sess, endpoint, p)
}
