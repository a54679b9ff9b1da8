package catalog

import (
	"sort"
	"sync"
)

// Registry maps member ids to members. Composition uses GetOrCreate so
// repeated loads reuse the same model for the same logical layer or
// record instead of duplicating it.
type Registry struct {
	mu      sync.RWMutex
	members map[string]*Member
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{members: make(map[string]*Member)}
}

// MemberID derives the stable id of a child from its parent's id and its
// own name within the parent document.
func MemberID(parentID, name string) string {
	return parentID + "/" + name
}

// Get returns the member with the given id.
func (r *Registry) Get(id string) (*Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[id]
	return m, ok
}

// GetOrCreate looks up a member by id, creating and registering it when
// absent. Returns the member and whether it was created. An existing
// member is reused even when typ differs; the caller only overwrites the
// stratum it owns.
func (r *Registry) GetOrCreate(id string, typ Type) (*Member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.members[id]; ok {
		return m, false
	}
	m := NewMember(id, typ)
	r.members[id] = m
	return m, true
}

// Remove deletes a member by id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, id)
}

// List returns all members ordered by id.
func (r *Registry) List() []*Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Member, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of registered members.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}
