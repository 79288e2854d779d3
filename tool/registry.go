package tool

import (
	"fmt"
	"sort"
	"sync"
)

// Info is the serializable description of a registered tool.
type Info struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	Parameters  map[string]any `json:"parameters"`
	Calls       int64          `json:"execution_count"`
}

// Registry indexes tools by name and category.
type Registry struct {
	mu         sync.RWMutex
	tools      map[string]Tool
	categories map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: map[string]Tool{}, categories: map[string]string{}}
}

// Register adds tools under category. Names must be unique across the
// registry.
func (r *Registry) Register(category string, tools ...Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tools {
		if _, exists := r.tools[t.Name()]; exists {
			return fmt.Errorf("tool %q already registered", t.Name())
		}
		r.tools[t.Name()] = t
		r.categories[t.Name()] = category
	}
	return nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns all tool names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ByCategory returns the sorted tool names registered under category.
func (r *Registry) ByCategory(category string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for n, c := range r.categories {
		if c == category {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// Categories groups the sorted tool names by category.
func (r *Registry) Categories() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := map[string][]string{}
	for n, c := range r.categories {
		out[c] = append(out[c], n)
	}
	for c := range out {
		sort.Strings(out[c])
	}
	return out
}

// Infos returns a snapshot of every tool, sorted by name.
func (r *Registry) Infos() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.tools))
	for n, t := range r.tools {
		out = append(out, Info{
			Name:        n,
			Description: t.Description(),
			Category:    r.categories[n],
			Parameters:  t.Parameters(),
			Calls:       t.Calls(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
