package decl

import (
	"reflect"

	"github.com/loomkit/loom/internal/cell"
)

// FieldSpec declares one bindable state field on a context type.
// Get and Set are explicit accessors to the field's cell; the runtime
// uses Set both to materialize missing cells and to rewire a mutualist
// field onto its host's cell.
type FieldSpec struct {
	Name string
	Get  func(ctx any) *cell.Cell
	Set  func(ctx any, c *cell.Cell)
}

// ContextSpec declares a context type: its bindable fields and an
// optional mutualism descriptor.
type ContextSpec struct {
	Type      reflect.Type
	Fields    []FieldSpec
	Mutualism *MutualismSpec

	fieldsByName map[string]*FieldSpec
}

// Field returns the field spec with the given name, or nil.
func (s *ContextSpec) Field(name string) *FieldSpec {
	return s.fieldsByName[name]
}

// MutualismSpec declares the mutualist relationships of a host
// context type.
type MutualismSpec struct {
	Mutualists []MutualistSpec
}

// MutualistSpec declares one named mutualist of a host type.
type MutualistSpec struct {
	// Name identifies the relationship within the host.
	Name string

	// Type is the mutualist's context type.
	Type reflect.Type

	// Locate, when true, links the host to an already-contextualized
	// instance of Type if one exists instead of constructing a fresh
	// one. This is how a single mutualist accumulates multiple hosts.
	Locate bool

	// Construct produces a new mutualist for the host when none is
	// located. Required.
	Construct func(host any) any

	// Fields pairs host state fields with mutualist state fields that
	// must share one bindable cell.
	Fields []FieldPair
}

// FieldPair names a host field and a mutualist field that share a cell.
type FieldPair struct {
	HostField      string
	MutualistField string
}
