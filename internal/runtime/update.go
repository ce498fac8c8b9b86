package runtime

import (
	"fmt"
	"reflect"

	"github.com/loomkit/loom/internal/decl"
	"github.com/loomkit/loom/internal/factory"
	"github.com/loomkit/loom/internal/journal"
)

// Update runs one staged drain and reports whether any work was
// performed. Phase order is fixed and matters for correctness:
//
//  1. Decontextualizations: pending removals leave every factory pool,
//     and their dependent behavior instances are torn down (teardown
//     handlers run, surviving dependencies return to their factory's
//     pool, bookkeeping is dropped).
//  2. Pending factories: each snapshotted factory drains into behavior
//     instances; self-created contexts go through registration, and
//     each instance is registered under all of its dependency contexts.
//  3. Context changes: queued (context, field) records whose context is
//     still live invoke the dependent instances' any-change handlers,
//     then their field-specific handlers.
//
// Each phase operates on a snapshot taken at phase start; work
// generated during a phase is queued for the NEXT call. Callers needing
// full stabilization call Update until it reports false (or use Settle).
//
// ERROR HANDLING: handler failures are logged and the drain continues:
// aborting mid-phase would make otherwise-identical runs diverge. The
// one exception is a construction invariant violation, which marks a
// malformed behavior type and propagates immediately.
func (rt *Runtime) Update() (bool, error) {
	if !rt.initialized {
		return false, notInitializedError("update")
	}
	if rt.updating {
		return false, reentrantUpdateError()
	}
	rt.updating = true
	rt.wave = rt.waves.Generate()
	defer func() {
		rt.updating = false
		rt.wave = ""
	}()

	worked := false

	// Phase 1: decontextualizations.
	removed := rt.removed.drain()
	if len(removed) > 0 {
		worked = true
	}
	for _, ctx := range removed {
		rt.drainRemoval(ctx)
	}

	// Phase 2: pending factories. The snapshot includes factories
	// re-armed by phase 1 returns: a torn-down instance's surviving
	// dependencies must be instantiable in this same pass.
	pending := rt.pending.drain()
	if len(pending) > 0 {
		worked = true
	}
	for _, f := range pending {
		if err := rt.drainFactory(f); err != nil {
			return true, err
		}
	}

	// Phase 3: context changes.
	changes := rt.changes
	rt.changes = nil
	for _, ch := range changes {
		if rt.deliverChange(ch) > 0 {
			worked = true
		}
	}

	rt.log.Debug("update complete",
		"wave", rt.wave,
		"removed", len(removed),
		"drained", len(pending),
		"changes", len(changes),
		"worked", worked,
	)
	return worked, nil
}

// drainRemoval processes one pending decontextualization: the context
// leaves every factory pool and its dependent instances are torn down.
func (rt *Runtime) drainRemoval(ctx any) {
	id := rt.ids[ctx]

	for _, f := range rt.factories {
		before := f.State()
		after := f.RemoveAvailable(ctx)
		// Removal can flip a self-creating factory back to Ready: its
		// output disappeared and it re-creates it this same pass.
		if before == factory.StateIdle && after == factory.StateReady {
			rt.pending.push(f)
		}
	}

	dependents := rt.dependents[id]
	delete(rt.dependents, id)
	for _, inst := range dependents {
		rt.teardownInstance(inst, ctx)
	}

	delete(rt.ids, ctx)
}

// teardownInstance destroys one behavior instance because trigger was
// decontextualized: teardown handlers run, surviving Unique-consumed
// dependencies return to the factory pool, and the instance's
// bidirectional bookkeeping is dropped.
func (rt *Runtime) teardownInstance(inst *factory.Instance, trigger any) {
	spec := inst.Spec()
	deps := inst.Deps()

	for _, h := range spec.TeardownHandlers() {
		if err := h(rt, inst.Behavior(), deps); err != nil {
			rt.log.Error("teardown handler failed",
				"error", err,
				"behavior", spec.Type.String(),
			)
		}
	}

	f := rt.factoryByType[spec.Type]
	for _, d := range spec.Dependencies {
		c := deps[d.Name]
		if c == nil || c == trigger {
			continue
		}
		// Only Unique-consumed Existing dependencies were popped from
		// the pool; Shared ones never left it and self-created ones
		// entered it at their own contextualization.
		if d.Binding != decl.BindingUnique || d.Fulfillment != decl.FulfillmentExisting {
			continue
		}
		if !rt.member(c) {
			continue
		}
		before := f.State()
		after := f.AddAvailable(c)
		if before == factory.StateIdle && after == factory.StateReady {
			rt.pending.push(f)
		}
	}

	for _, d := range spec.Dependencies {
		c := deps[d.Name]
		if c == nil {
			continue
		}
		cid, ok := rt.ids[c]
		if !ok {
			continue
		}
		rt.dependents[cid] = dropInstance(rt.dependents[cid], inst)
	}

	tt := reflect.TypeOf(trigger)
	rt.record(journal.Event{
		Kind:        journal.KindTornDown,
		ContextType: tt.String(),
		ContextID:   int64(rt.ids[trigger]),
		Behavior:    spec.Type.String(),
	})
	rt.log.Debug("instance torn down",
		"behavior", spec.Type.String(),
		"trigger", tt.String(),
	)
}

// drainFactory drains one pending factory and wires up the produced
// instances.
func (rt *Runtime) drainFactory(f *factory.Factory) error {
	instances, err := f.Drain(rt)
	if err != nil {
		return fmt.Errorf("drain %s: %w", f.Spec().Type, err)
	}
	for _, inst := range instances {
		if err := rt.adoptInstance(inst); err != nil {
			return err
		}
	}
	// Pacing: a behavior with no dependencies produces one instance
	// per update until explicitly stopped, so its factory re-enters
	// the queue for the next pass.
	if f.Unconstrained() {
		rt.pending.push(f)
	}
	return nil
}

// adoptInstance contextualizes an instance's self-created contexts and
// registers the instance under every one of its dependency contexts.
func (rt *Runtime) adoptInstance(inst *factory.Instance) error {
	spec := inst.Spec()

	for _, d := range spec.Dependencies {
		if !inst.SelfCreated(d.Name) {
			continue
		}
		// Registration pipeline only; never a nested update.
		if err := rt.Contextualize(inst.Context(d.Name)); err != nil {
			return fmt.Errorf("contextualize self-created %s.%s: %w", spec.Type, d.Name, err)
		}
	}

	registered := make(map[uint64]bool, len(spec.Dependencies))
	for _, d := range spec.Dependencies {
		c := inst.Context(d.Name)
		cid, ok := rt.ids[c]
		if !ok || registered[cid] {
			continue
		}
		registered[cid] = true
		rt.dependents[cid] = append(rt.dependents[cid], inst)
	}

	rt.record(journal.Event{Kind: journal.KindInstantiated, Behavior: spec.Type.String()})
	rt.log.Debug("instance created", "behavior", spec.Type.String())
	return nil
}

// deliverChange invokes the handlers interested in one queued change
// record. Returns the number of handler invocations; records whose
// context already left the registry deliver nothing.
func (rt *Runtime) deliverChange(ch Change) int {
	if !rt.member(ch.Ctx) {
		return 0
	}
	t := reflect.TypeOf(ch.Ctx)
	id := rt.ids[ch.Ctx]
	rt.record(journal.Event{
		Kind:        journal.KindChange,
		ContextType: t.String(),
		ContextID:   int64(id),
		Field:       ch.Field,
	})

	invoked := 0
	// Snapshot: a handler may decontextualize and mutate the list.
	dependents := make([]*factory.Instance, len(rt.dependents[id]))
	copy(dependents, rt.dependents[id])

	for _, inst := range dependents {
		spec := inst.Spec()
		for _, name := range inst.NamesOf(ch.Ctx) {
			for _, h := range spec.AnyChangeHandlers(name) {
				invoked++
				if err := h(rt, inst.Behavior(), inst.Deps(), ch.Field); err != nil {
					rt.log.Error("change handler failed",
						"error", err,
						"behavior", spec.Type.String(),
						"dependency", name,
						"field", ch.Field,
					)
				}
			}
			for _, h := range spec.FieldChangeHandlers(name, ch.Field) {
				invoked++
				if err := h(rt, inst.Behavior(), inst.Deps(), ch.Field); err != nil {
					rt.log.Error("field change handler failed",
						"error", err,
						"behavior", spec.Type.String(),
						"dependency", name,
						"field", ch.Field,
					)
				}
			}
		}
	}
	return invoked
}

// dropInstance removes one occurrence of inst from a dependents list.
func dropInstance(list []*factory.Instance, inst *factory.Instance) []*factory.Instance {
	for i, v := range list {
		if v == inst {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
