// Package decl is the declaration registry: the table of context types,
// behavior types, their dependencies, bindable fields, change/teardown
// handlers, and mutualism descriptors that the runtime core consults.
//
// Declarations are explicit registration tables built in Go code by the
// embedder, not discovered from annotations or compiled from a spec
// language. The registry validates declarations at registration time
// and is immutable from the runtime's point of view afterwards.
//
// # Model
//
//   - A context type declares bindable fields (accessors to *cell.Cell)
//     and optionally a mutualism descriptor.
//   - A behavior type declares an ordered list of named dependencies,
//     each with a context type, a binding (Unique or Shared) and a
//     fulfillment mode (Existing or SelfCreated), plus a constructor
//     and handler tables keyed by dependency name and field name.
//
// Declaration order of behaviors is preserved and determines factory
// evaluation order in the runtime (no other prioritization exists).
package decl
