package reconcile

import "sort"

// Registry maps camera ids to the live handle for that id.
type Registry struct {
	entries map[string]Handle
}

func newRegistry() *Registry {
	return &Registry{entries: make(map[string]Handle)}
}

func (r *Registry) get(id string) (Handle, bool) {
	h, ok := r.entries[id]
	return h, ok
}

func (r *Registry) put(id string, h Handle) { r.entries[id] = h }
func (r *Registry) drop(id string)          { delete(r.entries, id) }

// Len returns the number of live entries.
func (r *Registry) Len() int { return len(r.entries) }

// IDs returns the keys in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot returns a copy of the id -> handle map.
func (r *Registry) Snapshot() map[string]Handle {
	out := make(map[string]Handle, len(r.entries))
	for id, h := range r.entries {
		out[id] = h
	}
	return out
}
