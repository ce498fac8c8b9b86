package factory

import "github.com/loomkit/loom/internal/decl"

// Instance pairs one behavior object with its resolved name→context
// dependency map and records which of those contexts the constructor
// produced itself.
//
// Dependency names are unique within an instance; the same context may
// appear under several names, and under Shared binding the same context
// may appear in many instances' maps.
type Instance struct {
	spec        *decl.BehaviorSpec
	behavior    any
	deps        map[string]any
	selfCreated map[string]bool
}

// Spec returns the behavior declaration this instance was built from.
func (i *Instance) Spec() *decl.BehaviorSpec {
	return i.spec
}

// Behavior returns the behavior object.
func (i *Instance) Behavior() any {
	return i.behavior
}

// Deps returns the name→context dependency map. The map is owned by
// the instance; callers must not mutate it.
func (i *Instance) Deps() map[string]any {
	return i.deps
}

// Context returns the dependency context registered under name, or nil.
func (i *Instance) Context(name string) any {
	return i.deps[name]
}

// SelfCreated reports whether the named dependency was produced by the
// constructor rather than resolved from the pool.
func (i *Instance) SelfCreated(name string) bool {
	return i.selfCreated[name]
}

// SelfCreatedContexts returns the constructor-produced contexts keyed
// by dependency name.
func (i *Instance) SelfCreatedContexts() map[string]any {
	out := make(map[string]any, len(i.selfCreated))
	for name := range i.selfCreated {
		out[name] = i.deps[name]
	}
	return out
}

// NamesOf returns every dependency name under which ctx appears in
// this instance, in declaration order.
func (i *Instance) NamesOf(ctx any) []string {
	var names []string
	for _, d := range i.spec.Dependencies {
		if i.deps[d.Name] == ctx {
			names = append(names, d.Name)
		}
	}
	return names
}
