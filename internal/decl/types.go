package decl

import "reflect"

// Binding controls how a fulfilled dependency occupies the factory pool.
type Binding int

const (
	// BindingUnique means the context is consumed by exactly one
	// behavior instance at a time: instantiation pops it from the pool.
	BindingUnique Binding = iota

	// BindingShared means the context may simultaneously satisfy many
	// behavior instances: instantiation peeks it and the pool retains it.
	BindingShared
)

// String returns the binding name for logs and traces.
func (b Binding) String() string {
	switch b {
	case BindingUnique:
		return "unique"
	case BindingShared:
		return "shared"
	default:
		return "unknown"
	}
}

// Fulfillment controls where a dependency's context comes from.
type Fulfillment int

const (
	// FulfillmentExisting means the context must already be
	// contextualized externally before the behavior can instantiate.
	FulfillmentExisting Fulfillment = iota

	// FulfillmentSelfCreated means the behavior's constructor produces
	// the context itself.
	FulfillmentSelfCreated
)

// String returns the fulfillment mode name for logs and traces.
func (f Fulfillment) String() string {
	switch f {
	case FulfillmentExisting:
		return "existing"
	case FulfillmentSelfCreated:
		return "self-created"
	default:
		return "unknown"
	}
}

// Dependency is one named, typed requirement of a behavior.
type Dependency struct {
	// Name is unique within the behavior's dependency list.
	Name string

	// Type is the context's runtime type (normally a pointer type).
	Type reflect.Type

	Binding     Binding
	Fulfillment Fulfillment
}

// RuntimeHandle lets behaviors reach back into their owning runtime
// from constructors and handlers without an explicit reference being
// plumbed by the embedder. It is implemented by runtime.Runtime and
// passed into every constructor and handler invocation.
type RuntimeHandle interface {
	// Contextualize registers a context instance with the runtime.
	Contextualize(ctx any) error

	// Decontextualize removes a context instance from the runtime.
	Decontextualize(ctx any) error
}

// Constructor builds one behavior instance. It receives the resolved
// Existing dependencies by name and must return the behavior object
// plus one produced context per declared SelfCreated dependency, keyed
// by dependency name. A missing or nil SelfCreated output is a
// construction invariant violation and aborts the drain.
type Constructor func(rt RuntimeHandle, existing map[string]any) (behavior any, produced map[string]any, err error)

// ChangeHandler reacts to a mutation of a dependency context. For
// field-specific handlers field names the changed state field; for
// any-change handlers it names whichever field actually changed.
type ChangeHandler func(rt RuntimeHandle, behavior any, deps map[string]any, field string) error

// TeardownHandler runs immediately before a behavior instance is
// destroyed because one of its dependency contexts was decontextualized.
type TeardownHandler func(rt RuntimeHandle, behavior any, deps map[string]any) error

// TypeOf returns the reflect.Type for T. Declarations use it so that
// context and behavior types are written once:
//
//	decl.TypeOf[*Sensor]()
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
