// Package factory implements the dependency fulfillment factory: one
// instance per behavior type, pooling available contexts by required
// type and computing how many complete behavior instances can currently
// be assembled.
//
// Pools are plain in-memory multisets owned by the runtime's single
// writer goroutine; no synchronization is needed or provided.
package factory

import (
	"fmt"
	"reflect"

	"github.com/loomkit/loom/internal/decl"
)

// State is the factory admission state.
type State int

const (
	// StateIdle means no complete instance can currently be assembled.
	StateIdle State = iota
	// StateReady means at least one instance can be assembled.
	StateReady
)

// String returns the state name for logs.
func (s State) String() string {
	if s == StateReady {
		return "ready"
	}
	return "idle"
}

// Unbounded is the ReadyInstances result for factories whose readiness
// is not limited by an Existing dependency pool. Such factories are
// paced to exactly one instance per drain.
const Unbounded = -1

// Factory pools available contexts for one behavior type and assembles
// instances on drain.
//
// Slot accounting per dependency type:
//   - Unique+Existing slots consume pool elements (popped on drain).
//   - Shared+Existing slots require presence (peeked, retained): the
//     pool must hold at least the declared slot count, and the same
//     elements satisfy every instance.
//   - SelfCreated slots are produced by the constructor. Their types
//     still classify into the pool (the produced contexts feed back in
//     once contextualized) and gate readiness for factories with no
//     Existing dependencies: such a factory is ready only while its
//     pool lacks a full complement of the self-created types, which is
//     what keeps a self-creating behavior from respawning its own
//     output every cycle.
type Factory struct {
	spec *decl.BehaviorSpec

	pools      map[reflect.Type][]any
	uniqueMult map[reflect.Type]int
	sharedMult map[reflect.Type]int
	selfMult   map[reflect.Type]int

	hasExisting bool
}

// New builds a factory for the given behavior declaration.
func New(spec *decl.BehaviorSpec) *Factory {
	f := &Factory{
		spec:       spec,
		pools:      make(map[reflect.Type][]any),
		uniqueMult: make(map[reflect.Type]int),
		sharedMult: make(map[reflect.Type]int),
		selfMult:   make(map[reflect.Type]int),
	}
	for _, d := range spec.Dependencies {
		switch d.Fulfillment {
		case decl.FulfillmentSelfCreated:
			f.selfMult[d.Type]++
		default:
			f.hasExisting = true
			if d.Binding == decl.BindingShared {
				f.sharedMult[d.Type]++
			} else {
				f.uniqueMult[d.Type]++
			}
		}
	}
	return f
}

// Spec returns the behavior declaration this factory serves.
func (f *Factory) Spec() *decl.BehaviorSpec {
	return f.spec
}

// Unconstrained reports whether the behavior declares no dependencies
// at all. The runtime re-drains unconstrained factories every cycle,
// producing one instance per update until explicitly stopped.
func (f *Factory) Unconstrained() bool {
	return len(f.spec.Dependencies) == 0
}

// AddAvailable classifies ctx by runtime type and inserts it into the
// matching pool. Contexts of types the behavior does not declare are
// ignored. Returns the post-update state.
func (f *Factory) AddAvailable(ctx any) State {
	t := reflect.TypeOf(ctx)
	if !f.declares(t) {
		return f.State()
	}
	f.pools[t] = append(f.pools[t], ctx)
	return f.State()
}

// RemoveAvailable removes one occurrence of ctx from its type pool.
// Returns the post-update state.
func (f *Factory) RemoveAvailable(ctx any) State {
	t := reflect.TypeOf(ctx)
	pool := f.pools[t]
	for i, v := range pool {
		if v == ctx {
			f.pools[t] = append(pool[:i], pool[i+1:]...)
			break
		}
	}
	return f.State()
}

// State returns Ready iff at least one instance can be assembled now.
func (f *Factory) State() State {
	n := f.ReadyInstances()
	if n == Unbounded || n > 0 {
		return StateReady
	}
	return StateIdle
}

// ReadyInstances returns how many complete instances the current pools
// admit: the minimum over Unique-bound Existing dependency types of
// floor(pool/multiplicity), after reserving the Shared slot complement
// of each type. Shared-only types gate the result to zero when the
// pool lacks their slot count. Factories with no Existing dependencies
// return Unbounded, except that a factory whose dependencies are all
// SelfCreated reports zero once its pool already holds a full
// complement of the self-created types.
func (f *Factory) ReadyInstances() int {
	for t, want := range f.sharedMult {
		if len(f.pools[t]) < want {
			return 0
		}
	}
	if !f.hasExisting {
		if len(f.selfMult) > 0 && f.selfSatisfied() {
			return 0
		}
		return Unbounded
	}
	if len(f.uniqueMult) == 0 {
		return Unbounded
	}
	min := -1
	for t, mult := range f.uniqueMult {
		avail := len(f.pools[t]) - f.sharedMult[t]
		if avail < 0 {
			avail = 0
		}
		n := avail / mult
		if min < 0 || n < min {
			min = n
		}
	}
	return min
}

// selfSatisfied reports whether every self-created type already has a
// full complement in the pool.
func (f *Factory) selfSatisfied() bool {
	for t, want := range f.selfMult {
		if len(f.pools[t]) < want {
			return false
		}
	}
	return true
}

// PoolSize returns the pool size for a dependency type.
// Used for diagnostics and tests.
func (f *Factory) PoolSize(t reflect.Type) int {
	return len(f.pools[t])
}

// declares reports whether t is one of the declared dependency types.
func (f *Factory) declares(t reflect.Type) bool {
	if _, ok := f.uniqueMult[t]; ok {
		return true
	}
	if _, ok := f.sharedMult[t]; ok {
		return true
	}
	_, ok := f.selfMult[t]
	return ok
}

// Drain assembles every currently admissible instance and returns them.
// Unbounded factories produce exactly one instance per drain, pacing
// instantiation to one per cycle.
//
// For each instance, Unique-bound Existing dependencies are popped from
// their pools, Shared-bound ones are peeked, the constructor runs with
// the resolved existing dependencies, and its self-created outputs are
// captured. A declared SelfCreated dependency that comes back unset is
// a malformed behavior type, reported as *ConstructionInvariantError
// and propagated.
func (f *Factory) Drain(rt decl.RuntimeHandle) ([]*Instance, error) {
	count := f.ReadyInstances()
	if count == 0 {
		return nil, nil
	}
	if count == Unbounded {
		count = 1
	}

	instances := make([]*Instance, 0, count)
	for k := 0; k < count; k++ {
		inst, err := f.assemble(rt)
		if err != nil {
			return instances, err
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

// assemble builds one instance from the current pools.
func (f *Factory) assemble(rt decl.RuntimeHandle) (*Instance, error) {
	existing := make(map[string]any)
	sharedSeen := make(map[reflect.Type]int)

	for _, d := range f.spec.Dependencies {
		if d.Fulfillment == decl.FulfillmentSelfCreated {
			continue
		}
		pool := f.pools[d.Type]
		if d.Binding == decl.BindingShared {
			idx := sharedSeen[d.Type]
			sharedSeen[d.Type]++
			existing[d.Name] = pool[idx]
			continue
		}
		// Unique: pop the first element past the reserved Shared prefix.
		idx := f.sharedMult[d.Type]
		ctx := pool[idx]
		f.pools[d.Type] = append(pool[:idx], pool[idx+1:]...)
		existing[d.Name] = ctx
	}

	behavior, produced, err := f.spec.Construct(rt, existing)
	if err != nil {
		return nil, fmt.Errorf("construct %s: %w", f.spec.Type, err)
	}

	deps := make(map[string]any, len(f.spec.Dependencies))
	for name, ctx := range existing {
		deps[name] = ctx
	}
	selfCreated := make(map[string]bool)
	for _, d := range f.spec.Dependencies {
		if d.Fulfillment != decl.FulfillmentSelfCreated {
			continue
		}
		ctx, ok := produced[d.Name]
		if !ok || ctx == nil {
			return nil, &ConstructionInvariantError{
				Behavior:   f.spec.Type.String(),
				Dependency: d.Name,
			}
		}
		deps[d.Name] = ctx
		selfCreated[d.Name] = true
	}

	return &Instance{
		spec:        f.spec,
		behavior:    behavior,
		deps:        deps,
		selfCreated: selfCreated,
	}, nil
}

// ConstructionInvariantError reports a behavior constructor that failed
// to produce a declared self-created dependency. This indicates the
// behavior type is malformed, not a recoverable runtime condition, so
// the runtime propagates it instead of retrying.
type ConstructionInvariantError struct {
	Behavior   string
	Dependency string
}

// Error implements the error interface.
func (e *ConstructionInvariantError) Error() string {
	return fmt.Sprintf("construction invariant violation: behavior %s did not produce self-created dependency %q", e.Behavior, e.Dependency)
}
