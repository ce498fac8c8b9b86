package decl

import "reflect"

// BehaviorSpec declares a behavior type: its ordered dependency list,
// constructor, and handler tables.
//
// Handler tables are built once at declaration time; the runtime looks
// handlers up by (dependency name) and (dependency name, field name)
// during the change-notification phase.
type BehaviorSpec struct {
	Type         reflect.Type
	Dependencies []Dependency
	Construct    Constructor

	onAnyChange   map[string][]ChangeHandler
	onFieldChange map[fieldKey][]ChangeHandler
	onTeardown    []TeardownHandler
}

type fieldKey struct {
	dep   string
	field string
}

// NewBehavior starts a behavior declaration.
func NewBehavior(t reflect.Type, deps []Dependency, construct Constructor) *BehaviorSpec {
	return &BehaviorSpec{
		Type:          t,
		Dependencies:  deps,
		Construct:     construct,
		onAnyChange:   make(map[string][]ChangeHandler),
		onFieldChange: make(map[fieldKey][]ChangeHandler),
	}
}

// OnChange registers a handler fired for any change on the named
// dependency. Returns the spec for chaining.
func (s *BehaviorSpec) OnChange(dep string, h ChangeHandler) *BehaviorSpec {
	s.onAnyChange[dep] = append(s.onAnyChange[dep], h)
	return s
}

// OnFieldChange registers a handler fired when the named field of the
// named dependency changes. Returns the spec for chaining.
func (s *BehaviorSpec) OnFieldChange(dep, field string, h ChangeHandler) *BehaviorSpec {
	k := fieldKey{dep: dep, field: field}
	s.onFieldChange[k] = append(s.onFieldChange[k], h)
	return s
}

// OnTeardown registers a handler fired immediately before an instance
// of this behavior is destroyed. Returns the spec for chaining.
func (s *BehaviorSpec) OnTeardown(h TeardownHandler) *BehaviorSpec {
	s.onTeardown = append(s.onTeardown, h)
	return s
}

// AnyChangeHandlers returns handlers registered for any change on the
// named dependency, in registration order.
func (s *BehaviorSpec) AnyChangeHandlers(dep string) []ChangeHandler {
	return s.onAnyChange[dep]
}

// FieldChangeHandlers returns handlers registered for the specific
// (dependency, field) pair, in registration order.
func (s *BehaviorSpec) FieldChangeHandlers(dep, field string) []ChangeHandler {
	return s.onFieldChange[fieldKey{dep: dep, field: field}]
}

// TeardownHandlers returns teardown handlers in registration order.
func (s *BehaviorSpec) TeardownHandlers() []TeardownHandler {
	return s.onTeardown
}

// Dependency returns the declared dependency with the given name, or nil.
func (s *BehaviorSpec) Dependency(name string) *Dependency {
	for i := range s.Dependencies {
		if s.Dependencies[i].Name == name {
			return &s.Dependencies[i]
		}
	}
	return nil
}
