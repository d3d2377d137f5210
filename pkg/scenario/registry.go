package scenario

import (
	"fmt"
	"sort"
	"sync/atomic"
)

// Registry holds the set of known scenario definitions. Reads go through
// an atomically swapped immutable snapshot, so lookups never lock and
// never observe a half-applied reload.
type Registry struct {
	snapshot atomic.Pointer[registrySnapshot]
}

type registrySnapshot struct {
	byName map[string]*Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.snapshot.Store(&registrySnapshot{byName: map[string]*Definition{}})
	return r
}

// Reload replaces the whole definition set atomically. Duplicate names
// and nil scripts are configuration errors; on error the previous
// snapshot stays in place untouched.
func (r *Registry) Reload(defs []*Definition) error {
	byName := make(map[string]*Definition, len(defs))
	for _, d := range defs {
		if d == nil || d.Name == "" {
			return fmt.Errorf("scenario definition must have a name")
		}
		if d.Scenario == nil {
			return fmt.Errorf("scenario %q has no script", d.Name)
		}
		if _, dup := byName[d.Name]; dup {
			return fmt.Errorf("duplicate scenario name %q", d.Name)
		}
		byName[d.Name] = d
	}
	r.snapshot.Store(&registrySnapshot{byName: byName})
	return nil
}

// Lookup returns the definition registered under name, or a NotFoundError.
func (r *Registry) Lookup(name string) (*Definition, error) {
	if d, ok := r.snapshot.Load().byName[name]; ok {
		return d, nil
	}
	return nil, &NotFoundError{Name: name}
}

// Names returns all registered scenario names, sorted.
func (r *Registry) Names() []string {
	snap := r.snapshot.Load()
	names := make([]string, 0, len(snap.byName))
	for name := range snap.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StarterNames returns the names of scenarios that may be launched on
// demand, sorted.
func (r *Registry) StarterNames() []string {
	snap := r.snapshot.Load()
	var names []string
	for name, d := range snap.byName {
		if d.IsStarter() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Parameters returns the declared launch parameters of a starter
// scenario, in declaration order.
func (r *Registry) Parameters(name string) ([]Param, error) {
	d, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	params := make([]Param, len(d.Params))
	copy(params, d.Params)
	return params, nil
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int {
	return len(r.snapshot.Load().byName)
}
