// Package cell provides the bindable state cell: a mutable value box
// that can be registered to zero or more (owner, field) pairs and that,
// when mutated, emits one change notification per registered pair.
//
// Cells are the only channel through which context state reaches the
// runtime's change queue. A cell with no registrations is inert: writes
// succeed but notify nobody.
//
// Thread-safety: cells follow the runtime's single-writer model and are
// NOT safe for concurrent use. All registration and mutation must
// happen on the owning runtime's goroutine.
package cell

import (
	"fmt"
	"reflect"
)

// NotifyFunc receives one change notification for a registered
// (owner, field) pair. The runtime supplies a func that appends a
// ContextChange record to its change queue.
type NotifyFunc func(owner any, field string)

// registration is one (owner, field) pair with its notification sink.
// Duplicate registrations are allowed and each fires independently.
type registration struct {
	owner  any
	field  string
	notify NotifyFunc
}

// Cell is a bindable state cell.
//
// A value cell fires only when the new value differs from the old by
// deep equality. A collection cell fires unconditionally on every Set,
// because in-place element mutation can leave the container itself
// equal while its contents changed.
type Cell struct {
	value      any
	regs       []registration
	collection bool
}

// New creates a value cell holding initial.
func New(initial any) *Cell {
	return &Cell{value: initial}
}

// NewCollection creates a collection cell holding initial.
// Collection cells notify on every Set regardless of equality.
func NewCollection(initial any) *Cell {
	return &Cell{value: initial, collection: true}
}

// Register adds an (owner, field) registration with its notification
// sink. Registering the same pair twice yields two independent
// notifications on a later mutation.
//
// Returns an InvalidArgumentError for a nil owner, empty field name,
// or nil notify func.
func (c *Cell) Register(owner any, field string, notify NotifyFunc) error {
	if owner == nil {
		return &InvalidArgumentError{Arg: "owner", Reason: "must not be nil"}
	}
	if field == "" {
		return &InvalidArgumentError{Arg: "field", Reason: "must not be empty"}
	}
	if notify == nil {
		return &InvalidArgumentError{Arg: "notify", Reason: "must not be nil"}
	}
	c.regs = append(c.regs, registration{owner: owner, field: field, notify: notify})
	return nil
}

// Deregister removes ALL registrations for the given owner.
// Deregistering an owner with no registrations is a no-op.
func (c *Cell) Deregister(owner any) {
	kept := c.regs[:0]
	for _, r := range c.regs {
		if r.owner != owner {
			kept = append(kept, r)
		}
	}
	// Nil out dropped slots so owner references do not outlive the
	// registration in the backing array.
	for i := len(kept); i < len(c.regs); i++ {
		c.regs[i] = registration{}
	}
	c.regs = kept
}

// Set updates the cell's value and fires one notification per current
// registration. Value cells skip notification when the new value equals
// the old one; collection cells always fire.
func (c *Cell) Set(v any) {
	changed := c.collection || !equal(c.value, v)
	c.value = v
	if !changed {
		return
	}
	// Snapshot: a notification sink may register or deregister.
	snapshot := make([]registration, len(c.regs))
	copy(snapshot, c.regs)
	for _, r := range snapshot {
		r.notify(r.owner, r.field)
	}
}

// Value returns the current value.
func (c *Cell) Value() any {
	return c.value
}

// Registrations returns the current registration count.
// Used for diagnostics and tests.
func (c *Cell) Registrations() int {
	return len(c.regs)
}

// equal compares old and new cell values. reflect.DeepEqual handles
// both comparable scalars and non-comparable composites without
// panicking on mismatched kinds.
func equal(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// InvalidArgumentError reports a rejected cell operation argument.
type InvalidArgumentError struct {
	Arg    string
	Reason string
}

// Error implements the error interface.
func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %s: %s", e.Arg, e.Reason)
}
