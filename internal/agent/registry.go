package agent

import (
	"fmt"
	"strings"
)

// Descriptor is the (name, description, hint) triple offered to the classifier.
type Descriptor struct {
	Name        string
	Description string
	Hint        string
}

// Registry maps intent names to agents. It is immutable after NewRegistry.
type Registry struct {
	byName map[string]Agent
	order  []Descriptor
}

// NewRegistry builds a registry from agents in the given order. Empty or
// duplicate names (compared case-insensitively) are rejected.
func NewRegistry(agents ...Agent) (*Registry, error) {
	r := &Registry{byName: make(map[string]Agent, len(agents))}
	for _, a := range agents {
		key := normalize(a.Name())
		if key == "" {
			return nil, fmt.Errorf("agent: empty name")
		}
		if _, dup := r.byName[key]; dup {
			return nil, fmt.Errorf("agent: duplicate name %q", a.Name())
		}
		r.byName[key] = a
		d := Descriptor{Name: key, Description: a.Description()}
		if h, ok := a.(ParameterHinter); ok {
			d.Hint = h.ParameterHint()
		}
		r.order = append(r.order, d)
	}
	return r, nil
}

// Lookup returns the agent registered for intent. Matching trims surrounding
// space and ignores case.
func (r *Registry) Lookup(intent string) (Agent, bool) {
	a, ok := r.byName[normalize(intent)]
	return a, ok
}

// Descriptors returns the registered agents in registration order.
func (r *Registry) Descriptors() []Descriptor {
	return append([]Descriptor(nil), r.order...)
}

// Len returns the number of registered agents.
func (r *Registry) Len() int { return len(r.order) }

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
