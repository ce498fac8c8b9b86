package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomkit/loom/internal/cell"
	"github.com/loomkit/loom/internal/decl"
)

// Test fixture types. sensor carries two bindable fields; probe and
// relay are plain data contexts used as factory fodder.
type sensor struct {
	Reading *cell.Cell
	Flag    *cell.Cell
}

type probe struct{ n int }
type relay struct{ n int }

type watcher struct{}
type spawner struct{ n int }
type maker struct{}

func newSensor() *sensor {
	return &sensor{Reading: cell.New(0), Flag: cell.New(false)}
}

func sensorSpec() *decl.ContextSpec {
	return &decl.ContextSpec{
		Type: decl.TypeOf[*sensor](),
		Fields: []decl.FieldSpec{
			{
				Name: "Reading",
				Get:  func(ctx any) *cell.Cell { return ctx.(*sensor).Reading },
				Set:  func(ctx any, c *cell.Cell) { ctx.(*sensor).Reading = c },
			},
			{
				Name: "Flag",
				Get:  func(ctx any) *cell.Cell { return ctx.(*sensor).Flag },
				Set:  func(ctx any, c *cell.Cell) { ctx.(*sensor).Flag = c },
			},
		},
	}
}

func probeSpec() *decl.ContextSpec {
	return &decl.ContextSpec{Type: decl.TypeOf[*probe]()}
}

func relaySpec() *decl.ContextSpec {
	return &decl.ContextSpec{Type: decl.TypeOf[*relay]()}
}

// quiet builds an initialized runtime with deterministic wave tokens.
func quiet(t *testing.T, reg *decl.Registry, opts ...Option) *Runtime {
	t.Helper()
	opts = append([]Option{WithWaveTokens(sequentialTokens())}, opts...)
	rt := New(reg, opts...)
	require.NoError(t, rt.Initialize())
	return rt
}

// sequentialTokens never exhausts; tests that do not assert on trace
// content should not have to count their update calls.
type countingTokens struct{ n int }

func (g *countingTokens) Generate() string {
	g.n++
	return "wave-" + string(rune('0'+g.n%10))
}

func sequentialTokens() TokenGenerator {
	return &countingTokens{}
}

// TestRuntime_OperationsRequireInitialize tests the NOT_INITIALIZED guard.
func TestRuntime_OperationsRequireInitialize(t *testing.T) {
	reg := decl.NewRegistry()
	require.NoError(t, reg.DeclareContext(sensorSpec()))
	rt := New(reg)

	err := rt.Contextualize(newSensor())
	assert.True(t, IsNotInitialized(err))

	err = rt.Decontextualize(newSensor())
	assert.True(t, IsNotInitialized(err))

	_, err = rt.GetFirst(decl.TypeOf[*sensor]())
	assert.True(t, IsNotInitialized(err))

	_, err = rt.Update()
	assert.True(t, IsNotInitialized(err))
}

// TestRuntime_InitializeIdempotent tests repeated initialization.
func TestRuntime_InitializeIdempotent(t *testing.T) {
	reg := decl.NewRegistry()
	rt := New(reg)
	require.NoError(t, rt.Initialize())
	require.NoError(t, rt.Initialize())
}

// TestRuntime_Contextualize_Validation tests the error taxonomy of
// contextualize.
func TestRuntime_Contextualize_Validation(t *testing.T) {
	reg := decl.NewRegistry()
	require.NoError(t, reg.DeclareContext(sensorSpec()))
	rt := quiet(t, reg)

	err := rt.Contextualize(nil)
	var re *RegistryError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeNullArgument, re.Code)

	err = rt.Contextualize(&probe{})
	assert.True(t, IsNotAContextType(err))
}

// TestRuntime_Contextualize_SetSemantics tests that re-contextualizing
// a member is a no-op.
func TestRuntime_Contextualize_SetSemantics(t *testing.T) {
	reg := decl.NewRegistry()
	require.NoError(t, reg.DeclareContext(sensorSpec()))
	rt := quiet(t, reg)

	s := newSensor()
	require.NoError(t, rt.Contextualize(s))
	require.NoError(t, rt.Contextualize(s))

	all, err := rt.GetAll(decl.TypeOf[*sensor]())
	require.NoError(t, err)
	assert.Len(t, all, 1)

	// Double registration would have doubled the field registrations.
	assert.Equal(t, 1, s.Reading.Registrations())
}

// TestRuntime_Decontextualize_Validation tests the error taxonomy of
// decontextualize.
func TestRuntime_Decontextualize_Validation(t *testing.T) {
	reg := decl.NewRegistry()
	require.NoError(t, reg.DeclareContext(sensorSpec()))
	rt := quiet(t, reg)

	err := rt.Decontextualize(&probe{})
	assert.True(t, IsNotAContextType(err))

	err = rt.Decontextualize(newSensor())
	assert.True(t, IsNotRegistered(err))
}

// TestRuntime_Lookups tests GetFirst/GetAll and the generic helpers.
func TestRuntime_Lookups(t *testing.T) {
	reg := decl.NewRegistry()
	require.NoError(t, reg.DeclareContext(sensorSpec()))
	require.NoError(t, reg.DeclareContext(probeSpec()))
	rt := quiet(t, reg)

	_, err := rt.GetFirst(decl.TypeOf[*relay]())
	assert.True(t, IsNotAContextType(err))

	first, err := First[*sensor](rt)
	require.NoError(t, err)
	assert.Nil(t, first)

	s1 := newSensor()
	s2 := newSensor()
	require.NoError(t, rt.Contextualize(s1))
	require.NoError(t, rt.Contextualize(s2))

	first, err = First[*sensor](rt)
	require.NoError(t, err)
	assert.Same(t, s1, first)

	all, err := All[*sensor](rt)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Same(t, s1, all[0])
	assert.Same(t, s2, all[1])

	probes, err := All[*probe](rt)
	require.NoError(t, err)
	assert.Empty(t, probes)
}

// TestRuntime_FieldBindingMaterializesCells tests that contextualize
// creates missing cells before binding.
func TestRuntime_FieldBindingMaterializesCells(t *testing.T) {
	reg := decl.NewRegistry()
	require.NoError(t, reg.DeclareContext(sensorSpec()))
	rt := quiet(t, reg)

	s := &sensor{} // no cells
	require.NoError(t, rt.Contextualize(s))
	require.NotNil(t, s.Reading)
	require.NotNil(t, s.Flag)
	assert.Equal(t, 1, s.Reading.Registrations())
}

// TestRuntime_UnbindOnDecontextualize tests that removal leaves cells
// inert for the removed owner.
func TestRuntime_UnbindOnDecontextualize(t *testing.T) {
	reg := decl.NewRegistry()
	require.NoError(t, reg.DeclareContext(sensorSpec()))
	rt := quiet(t, reg)

	s := newSensor()
	require.NoError(t, rt.Contextualize(s))
	require.NoError(t, rt.Decontextualize(s))
	assert.Equal(t, 0, s.Reading.Registrations())

	// A write after removal queues nothing.
	s.Reading.Set(9)
	assert.Empty(t, rt.changes)
}
