package tools

import (
	"context"
	"sort"
)

// Tool defines the interface for all executor capabilities. Input is the
// raw JSON arguments string from the model; implementations unmarshal it
// themselves.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any // JSON Schema for the tool's inputs
	Execute(ctx context.Context, input string) (string, error)
}

// Registry manages the set of available tools.
type Registry struct {
	Tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{
		Tools: make(map[string]Tool),
	}
}

func (r *Registry) Register(t Tool) {
	r.Tools[t.Name()] = t
}

// Get returns the named tool, or nil when it is not registered.
func (r *Registry) Get(name string) Tool {
	return r.Tools[name]
}

// List returns all tools ordered by name, so prompts and tool
// definitions stay stable across runs.
func (r *Registry) List() []Tool {
	names := make([]string, 0, len(r.Tools))
	for name := range r.Tools {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Tool, 0, len(names))
	for _, name := range names {
		out = append(out, r.Tools[name])
	}
	return out
}
