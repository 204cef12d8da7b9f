package llm

import (
	"sort"
	"strings"
)

type Registry struct {
	backends map[string]Backend
}

func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[string]Backend),
	}
}

func (r *Registry) Register(b Backend) {
	if r == nil || b == nil {
		return
	}
	name := strings.ToLower(strings.TrimSpace(b.Name()))
	if name == "" {
		return
	}
	if r.backends == nil {
		r.backends = make(map[string]Backend)
	}
	r.backends[name] = b
}

func (r *Registry) Get(name string) (Backend, bool) {
	if r == nil || r.backends == nil {
		return nil, false
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, false
	}
	b, ok := r.backends[name]
	return b, ok
}

// Names returns the registered backend names, sorted.
func (r *Registry) Names() []string {
	if r == nil || len(r.backends) == 0 {
		return nil
	}
	out := make([]string, 0, len(r.backends))
	for name := range r.backends {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
