package project

import (
	"sync"
)

// Pool holds the one Project built per model id during a reactor build.
// Parents, modules and children all resolve through it, so a POM referenced
// several times is backed by a single Project.
type Pool struct {
	mu       sync.Mutex
	projects map[string]*Project
	order    []string
}

// NewPool creates an empty pool
func NewPool() *Pool {
	return &Pool{projects: make(map[string]*Project)}
}

// GetOrCreate returns the project for id, creating it with create when absent.
// created reports whether create was called.
func (p *Pool) GetOrCreate(id string, create func() *Project) (proj *Project, created bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.projects[id]; ok {
		return existing, false
	}
	proj = create()
	p.projects[id] = proj
	p.order = append(p.order, id)
	return proj, true
}

// Get returns the project for id
func (p *Pool) Get(id string) (*Project, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	proj, ok := p.projects[id]
	return proj, ok
}

// Put registers a project under id unless one is already present
func (p *Pool) Put(id string, proj *Project) {
	p.GetOrCreate(id, func() *Project { return proj })
}

// Len returns the number of pooled projects
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.projects)
}

// Projects returns the pooled projects in registration order
func (p *Pool) Projects() []*Project {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Project, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.projects[id])
	}
	return out
}
