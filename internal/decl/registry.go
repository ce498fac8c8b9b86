package decl

import (
	"fmt"
	"reflect"
)

// Registry holds all context and behavior declarations.
//
// Declarations are validated as they are registered. Behavior order is
// preserved exactly as declared: the runtime evaluates factories in
// this order and no other prioritization exists.
type Registry struct {
	contexts  map[reflect.Type]*ContextSpec
	behaviors []*BehaviorSpec
	byType    map[reflect.Type]*BehaviorSpec
}

// NewRegistry creates an empty declaration registry.
func NewRegistry() *Registry {
	return &Registry{
		contexts: make(map[reflect.Type]*ContextSpec),
		byType:   make(map[reflect.Type]*BehaviorSpec),
	}
}

// DeclareContext registers a context type declaration.
//
// Validation:
//   - type and field accessors must be set
//   - field names unique within the context
//   - mutualist declarations must name declared-or-own fields later
//     validated by DeclareBehavior/mutualism linking at runtime
func (r *Registry) DeclareContext(spec *ContextSpec) error {
	if spec == nil || spec.Type == nil {
		return fmt.Errorf("declare context: nil spec or type")
	}
	if _, dup := r.contexts[spec.Type]; dup {
		return fmt.Errorf("declare context: duplicate type %s", spec.Type)
	}
	spec.fieldsByName = make(map[string]*FieldSpec, len(spec.Fields))
	for i := range spec.Fields {
		f := &spec.Fields[i]
		if f.Name == "" {
			return fmt.Errorf("declare context %s: empty field name", spec.Type)
		}
		if f.Get == nil || f.Set == nil {
			return fmt.Errorf("declare context %s: field %s missing accessor", spec.Type, f.Name)
		}
		if _, dup := spec.fieldsByName[f.Name]; dup {
			return fmt.Errorf("declare context %s: duplicate field %s", spec.Type, f.Name)
		}
		spec.fieldsByName[f.Name] = f
	}
	if m := spec.Mutualism; m != nil {
		seen := make(map[string]bool, len(m.Mutualists))
		for i := range m.Mutualists {
			mu := &m.Mutualists[i]
			if mu.Name == "" {
				return fmt.Errorf("declare context %s: empty mutualist name", spec.Type)
			}
			if seen[mu.Name] {
				return fmt.Errorf("declare context %s: duplicate mutualist %s", spec.Type, mu.Name)
			}
			seen[mu.Name] = true
			if mu.Type == nil || mu.Construct == nil {
				return fmt.Errorf("declare context %s: mutualist %s missing type or constructor", spec.Type, mu.Name)
			}
			for _, fp := range mu.Fields {
				if spec.fieldsByName[fp.HostField] == nil {
					return fmt.Errorf("declare context %s: mutualist %s pairs unknown host field %s", spec.Type, mu.Name, fp.HostField)
				}
			}
		}
	}
	r.contexts[spec.Type] = spec
	return nil
}

// DeclareBehavior registers a behavior type declaration. Context types
// referenced by its dependencies must already be declared.
func (r *Registry) DeclareBehavior(spec *BehaviorSpec) error {
	if spec == nil || spec.Type == nil {
		return fmt.Errorf("declare behavior: nil spec or type")
	}
	if spec.Construct == nil {
		return fmt.Errorf("declare behavior %s: missing constructor", spec.Type)
	}
	if _, dup := r.byType[spec.Type]; dup {
		return fmt.Errorf("declare behavior: duplicate type %s", spec.Type)
	}
	names := make(map[string]bool, len(spec.Dependencies))
	for _, d := range spec.Dependencies {
		if d.Name == "" {
			return fmt.Errorf("declare behavior %s: empty dependency name", spec.Type)
		}
		if names[d.Name] {
			return fmt.Errorf("declare behavior %s: duplicate dependency %s", spec.Type, d.Name)
		}
		names[d.Name] = true
		if d.Type == nil {
			return fmt.Errorf("declare behavior %s: dependency %s has nil type", spec.Type, d.Name)
		}
		if !r.IsContextType(d.Type) {
			return fmt.Errorf("declare behavior %s: dependency %s references undeclared context type %s", spec.Type, d.Name, d.Type)
		}
	}
	for dep := range spec.onAnyChange {
		if !names[dep] {
			return fmt.Errorf("declare behavior %s: change handler on unknown dependency %s", spec.Type, dep)
		}
	}
	for k := range spec.onFieldChange {
		if !names[k.dep] {
			return fmt.Errorf("declare behavior %s: field change handler on unknown dependency %s", spec.Type, k.dep)
		}
	}
	r.behaviors = append(r.behaviors, spec)
	r.byType[spec.Type] = spec
	return nil
}

// IsContextType reports whether t was declared as a context type.
func (r *Registry) IsContextType(t reflect.Type) bool {
	_, ok := r.contexts[t]
	return ok
}

// Context returns the declaration for a context type, or nil.
func (r *Registry) Context(t reflect.Type) *ContextSpec {
	return r.contexts[t]
}

// BindableFields returns the declared bindable fields of a context
// type, or nil for an undeclared type.
func (r *Registry) BindableFields(t reflect.Type) []FieldSpec {
	if s := r.contexts[t]; s != nil {
		return s.Fields
	}
	return nil
}

// MutualismDescriptor returns the mutualism declaration for a context
// type, or nil when the type declares no mutualists. The nil result is
// the absent sentinel: the runtime caches it once per type.
func (r *Registry) MutualismDescriptor(t reflect.Type) *MutualismSpec {
	if s := r.contexts[t]; s != nil {
		return s.Mutualism
	}
	return nil
}

// Behaviors returns behavior declarations in declaration order.
// The returned slice is a copy; mutation cannot break the order
// invariant.
func (r *Registry) Behaviors() []*BehaviorSpec {
	out := make([]*BehaviorSpec, len(r.behaviors))
	copy(out, r.behaviors)
	return out
}

// Behavior returns the declaration for a behavior type, or nil.
func (r *Registry) Behavior(t reflect.Type) *BehaviorSpec {
	return r.byType[t]
}
