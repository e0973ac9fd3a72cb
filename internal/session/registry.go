package session

import "sync"

// Registry maps backend-issued session ids to their managers so HTTP
// handlers can address a running session.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Manager
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Manager)}
}

func (r *Registry) Add(id string, m *Manager) {
	if r == nil || id == "" || m == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = m
}

func (r *Registry) Get(id string) (*Manager, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.sessions[id]
	return m, ok
}

func (r *Registry) Remove(id string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
