package runtime

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/loomkit/loom/internal/cell"
	"github.com/loomkit/loom/internal/decl"
	"github.com/loomkit/loom/internal/factory"
	"github.com/loomkit/loom/internal/journal"
)

// Runtime owns all context and behavior-instance bookkeeping,
// orchestrates contextualize/decontextualize, and runs the staged
// update cycle.
//
// CRITICAL: the runtime is single-threaded and cooperative. Every
// public operation runs to completion before returning; there is no
// implicit parallelism and no suspension point. All calls must come
// from one logical owner goroutine; an embedder wanting concurrency
// must serialize calls itself. Update carries an explicit non-reentrant
// guard rather than relying on caller discipline.
//
// INVARIANTS:
//   - factory order never changes after Initialize (declaration order)
//   - a context belongs to exactly one type bucket, with set semantics
//   - work generated during an update phase is queued for the next
//     update call, never processed within the same call
type Runtime struct {
	reg       *decl.Registry
	log       *slog.Logger
	journal   *journal.Journal
	clock     *Clock
	waves     TokenGenerator
	maxPasses int

	initialized bool
	updating    bool

	// Identifier arena: contexts get stable uint64 ids; relation maps
	// are keyed by id and the same ids appear in journal records.
	nextID uint64
	ids    map[any]uint64

	buckets map[reflect.Type]*contextSet

	factories      []*factory.Factory
	factoryByType  map[reflect.Type]*factory.Factory
	factoriesByDep map[reflect.Type][]*factory.Factory

	// dependents maps a context id to the behavior instances holding it.
	dependents map[uint64][]*factory.Instance

	// Mutualism links, both directions.
	hostLinks map[uint64]map[string]any // host id -> mutualist name -> mutualist
	hostsOf   map[uint64]*contextSet    // mutualist id -> hosts

	pending *pendingQueue
	changes []Change
	removed *contextSet

	// wave is the token of the update pass currently draining; empty
	// outside an update.
	wave string
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(rt *Runtime) { rt.log = log }
}

// WithJournal attaches an event journal. Without one, no trace is kept.
func WithJournal(j *journal.Journal) Option {
	return func(rt *Runtime) { rt.journal = j }
}

// WithWaveTokens overrides the wave token generator (for testing).
func WithWaveTokens(gen TokenGenerator) Option {
	return func(rt *Runtime) { rt.waves = gen }
}

// WithMaxPasses sets the Settle pass quota. Default DefaultMaxPasses.
func WithMaxPasses(n int) Option {
	return func(rt *Runtime) { rt.maxPasses = n }
}

// New creates a Runtime over the given declaration registry.
// Call Initialize before any other operation.
func New(reg *decl.Registry, opts ...Option) *Runtime {
	rt := &Runtime{
		reg:            reg,
		log:            slog.Default(),
		clock:          NewClock(),
		waves:          UUIDv7Tokens{},
		maxPasses:      DefaultMaxPasses,
		ids:            make(map[any]uint64),
		buckets:        make(map[reflect.Type]*contextSet),
		factoryByType:  make(map[reflect.Type]*factory.Factory),
		factoriesByDep: make(map[reflect.Type][]*factory.Factory),
		dependents:     make(map[uint64][]*factory.Instance),
		hostLinks:      make(map[uint64]map[string]any),
		hostsOf:        make(map[uint64]*contextSet),
		pending:        newPendingQueue(),
		removed:        newContextSet(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Initialize builds the factories from the declaration registry and
// enqueues the ones that are ready with empty pools (no-dependency and
// self-creating behaviors). Idempotent: later calls are no-ops.
func (rt *Runtime) Initialize() error {
	if rt.initialized {
		return nil
	}
	for _, spec := range rt.reg.Behaviors() {
		f := factory.New(spec)
		rt.factories = append(rt.factories, f)
		rt.factoryByType[spec.Type] = f
		seen := make(map[reflect.Type]bool)
		for _, d := range spec.Dependencies {
			if seen[d.Type] {
				continue
			}
			seen[d.Type] = true
			rt.factoriesByDep[d.Type] = append(rt.factoriesByDep[d.Type], f)
		}
		if f.State() == factory.StateReady {
			rt.pending.push(f)
		}
	}
	rt.initialized = true
	rt.log.Info("runtime initialized",
		"behaviors", len(rt.factories),
		"pending", rt.pending.len(),
	)
	return nil
}

// Contextualize registers a context instance.
//
// Unknown runtime types fail with NOT_A_CONTEXT_TYPE. Re-contextualizing
// a current member is a no-op. A context removed earlier in the same
// unfinished drain cycle has its pending removal canceled instead of
// being re-fed to factories (the factories never saw the removal).
func (rt *Runtime) Contextualize(ctx any) error {
	if !rt.initialized {
		return notInitializedError("contextualize")
	}
	if ctx == nil {
		return nullArgumentError("contextualize", "ctx")
	}
	t := reflect.TypeOf(ctx)
	spec := rt.reg.Context(t)
	if spec == nil {
		return notAContextTypeError("contextualize", t)
	}
	bucket := rt.bucket(t)
	if bucket.has(ctx) {
		return nil
	}
	bucket.add(ctx)
	id := rt.idFor(ctx)

	canceled := rt.removed.remove(ctx)
	if canceled {
		rt.log.Debug("pending removal canceled", "type", t.String(), "ctx", id)
	}

	if spec.Mutualism != nil {
		if err := rt.fulfillMutualism(ctx, id, spec); err != nil {
			return err
		}
	}
	if err := rt.bindFields(ctx, spec); err != nil {
		return err
	}

	rt.record(journal.Event{Kind: journal.KindContextualized, ContextType: t.String(), ContextID: int64(id)})
	rt.log.Debug("contextualized", "type", t.String(), "ctx", id)

	if canceled {
		return nil
	}
	for _, f := range rt.factoriesByDep[t] {
		before := f.State()
		after := f.AddAvailable(ctx)
		if before == factory.StateIdle && after == factory.StateReady {
			rt.pending.push(f)
			rt.log.Debug("factory ready", "behavior", f.Spec().Type.String())
		}
	}
	return nil
}

// Decontextualize removes a context instance.
//
// Fields are unbound and mutualism relationships broken immediately;
// removal from factory pools and teardown of dependent behavior
// instances is deferred to the next update's decontextualization phase.
func (rt *Runtime) Decontextualize(ctx any) error {
	if !rt.initialized {
		return notInitializedError("decontextualize")
	}
	if ctx == nil {
		return nullArgumentError("decontextualize", "ctx")
	}
	t := reflect.TypeOf(ctx)
	if !rt.reg.IsContextType(t) {
		return unknownContextTypeError("decontextualize", t)
	}
	bucket := rt.buckets[t]
	if bucket == nil || !bucket.has(ctx) {
		return notRegisteredError("decontextualize", t)
	}
	rt.remove(ctx)
	return nil
}

// remove is the internal removal path shared with mutualism cascades.
// Unlike the public operation it treats a non-member as a no-op, which
// terminates cascade recursion.
func (rt *Runtime) remove(ctx any) {
	t := reflect.TypeOf(ctx)
	bucket := rt.buckets[t]
	if bucket == nil || !bucket.remove(ctx) {
		return
	}
	id := rt.ids[ctx]

	if spec := rt.reg.Context(t); spec != nil {
		for i := range spec.Fields {
			if c := spec.Fields[i].Get(ctx); c != nil {
				c.Deregister(ctx)
			}
		}
	}

	rt.breakMutualism(ctx, id)

	rt.removed.add(ctx)
	rt.record(journal.Event{Kind: journal.KindDecontextualized, ContextType: t.String(), ContextID: int64(id)})
	rt.log.Debug("decontextualized", "type", t.String(), "ctx", id)
}

// GetFirst returns the earliest-contextualized member of the type
// bucket, or nil when the bucket is empty. Fails with
// UNKNOWN_CONTEXT_TYPE for types never declared as contexts.
func (rt *Runtime) GetFirst(t reflect.Type) (any, error) {
	if !rt.initialized {
		return nil, notInitializedError("get first")
	}
	if !rt.reg.IsContextType(t) {
		return nil, unknownContextTypeError("get first", t)
	}
	if b := rt.buckets[t]; b != nil {
		return b.first(), nil
	}
	return nil, nil
}

// GetAll returns the type bucket's members in contextualization order.
// Fails with UNKNOWN_CONTEXT_TYPE for types never declared as contexts.
func (rt *Runtime) GetAll(t reflect.Type) ([]any, error) {
	if !rt.initialized {
		return nil, notInitializedError("get all")
	}
	if !rt.reg.IsContextType(t) {
		return nil, unknownContextTypeError("get all", t)
	}
	if b := rt.buckets[t]; b != nil {
		return b.snapshot(), nil
	}
	return nil, nil
}

// First returns the earliest-contextualized context of type T, or the
// zero value when none exists.
func First[T any](rt *Runtime) (T, error) {
	var zero T
	v, err := rt.GetFirst(reflect.TypeOf((*T)(nil)).Elem())
	if err != nil || v == nil {
		return zero, err
	}
	return v.(T), nil
}

// All returns the contexts of type T in contextualization order.
func All[T any](rt *Runtime) ([]T, error) {
	vs, err := rt.GetAll(reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return nil, err
	}
	out := make([]T, len(vs))
	for i, v := range vs {
		out[i] = v.(T)
	}
	return out, nil
}

// bucket returns (creating if needed) the type bucket for t.
func (rt *Runtime) bucket(t reflect.Type) *contextSet {
	b := rt.buckets[t]
	if b == nil {
		b = newContextSet()
		rt.buckets[t] = b
	}
	return b
}

// member reports whether ctx is currently a registry member.
func (rt *Runtime) member(ctx any) bool {
	b := rt.buckets[reflect.TypeOf(ctx)]
	return b != nil && b.has(ctx)
}

// idFor returns the stable id for ctx, assigning one on first sight.
// A context whose removal is still pending keeps its previous id.
func (rt *Runtime) idFor(ctx any) uint64 {
	if id, ok := rt.ids[ctx]; ok {
		return id
	}
	rt.nextID++
	rt.ids[ctx] = rt.nextID
	return rt.nextID
}

// bindFields registers (ctx, field) on every declared field cell,
// materializing missing cells first.
func (rt *Runtime) bindFields(ctx any, spec *decl.ContextSpec) error {
	for i := range spec.Fields {
		f := &spec.Fields[i]
		c := f.Get(ctx)
		if c == nil {
			c = cell.New(nil)
			f.Set(ctx, c)
		}
		if err := c.Register(ctx, f.Name, rt.noteChange); err != nil {
			return fmt.Errorf("bind field %s.%s: %w", spec.Type, f.Name, err)
		}
	}
	return nil
}

// noteChange is the notification sink every bound cell fires into.
// Records are consumed by the next update's change phase.
func (rt *Runtime) noteChange(owner any, field string) {
	rt.changes = append(rt.changes, Change{Ctx: owner, Field: field})
}

// record journals one event, stamping seq and the current wave token.
// Journal failures are logged and do not disturb the runtime.
func (rt *Runtime) record(ev journal.Event) {
	if rt.journal == nil {
		return
	}
	ev.Seq = rt.clock.Next()
	ev.Wave = rt.wave
	if ev.Wave == "" {
		ev.Wave = "external"
	}
	if err := rt.journal.Append(ev); err != nil {
		rt.log.Error("journal append failed", "error", err, "kind", string(ev.Kind))
	}
}
