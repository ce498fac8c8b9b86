package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomkit/loom/internal/cell"
	"github.com/loomkit/loom/internal/decl"
)

// panel hosts a gauge mutualist; their Level fields stay paired.
type panel struct{ Level *cell.Cell }
type gauge struct{ Level *cell.Cell }

func gaugeSpec() *decl.ContextSpec {
	return &decl.ContextSpec{
		Type: decl.TypeOf[*gauge](),
		Fields: []decl.FieldSpec{{
			Name: "Level",
			Get:  func(ctx any) *cell.Cell { return ctx.(*gauge).Level },
			Set:  func(ctx any, c *cell.Cell) { ctx.(*gauge).Level = c },
		}},
	}
}

func panelSpec(locate bool, pairFields bool) *decl.ContextSpec {
	mu := decl.MutualistSpec{
		Name:      "gauge",
		Type:      decl.TypeOf[*gauge](),
		Locate:    locate,
		Construct: func(host any) any { return &gauge{} },
	}
	if pairFields {
		mu.Fields = []decl.FieldPair{{HostField: "Level", MutualistField: "Level"}}
	}
	return &decl.ContextSpec{
		Type: decl.TypeOf[*panel](),
		Fields: []decl.FieldSpec{{
			Name: "Level",
			Get:  func(ctx any) *cell.Cell { return ctx.(*panel).Level },
			Set:  func(ctx any, c *cell.Cell) { ctx.(*panel).Level = c },
		}},
		Mutualism: &decl.MutualismSpec{Mutualists: []decl.MutualistSpec{mu}},
	}
}

func mutualismRegistry(t *testing.T, locate, pairFields bool) *decl.Registry {
	t.Helper()
	reg := decl.NewRegistry()
	require.NoError(t, reg.DeclareContext(gaugeSpec()))
	require.NoError(t, reg.DeclareContext(panelSpec(locate, pairFields)))
	return reg
}

// TestMutualism_ConstructsMutualistOnContextualize tests fulfillment:
// registering a host also registers a freshly constructed mutualist.
func TestMutualism_ConstructsMutualistOnContextualize(t *testing.T) {
	rt := quiet(t, mutualismRegistry(t, false, true))

	p := &panel{Level: cell.New(0)}
	require.NoError(t, rt.Contextualize(p))

	gauges, err := All[*gauge](rt)
	require.NoError(t, err)
	require.Len(t, gauges, 1)
	require.NotNil(t, gauges[0].Level)
}

// TestMutualism_PairedFieldsShareOneCell tests state synchronization:
// paired fields resolve to a single cell, a write through either side
// is visible through both, and both owners get notified.
func TestMutualism_PairedFieldsShareOneCell(t *testing.T) {
	rt := quiet(t, mutualismRegistry(t, false, true))

	p := &panel{Level: cell.New(0)}
	require.NoError(t, rt.Contextualize(p))
	g, err := First[*gauge](rt)
	require.NoError(t, err)

	assert.Same(t, p.Level, g.Level)
	assert.Equal(t, 2, p.Level.Registrations())

	g.Level.Set(42)
	assert.Equal(t, 42, p.Level.Value())

	// One write, one change record per bound owner.
	require.Len(t, rt.changes, 2)
	owners := map[any]bool{rt.changes[0].Ctx: true, rt.changes[1].Ctx: true}
	assert.True(t, owners[p])
	assert.True(t, owners[g])
	assert.Equal(t, "Level", rt.changes[0].Field)
}

// TestMutualism_HostRemovalReleasesMutualist tests the host-side
// cascade: decontextualizing the only host takes the mutualist with it.
func TestMutualism_HostRemovalReleasesMutualist(t *testing.T) {
	rt := quiet(t, mutualismRegistry(t, false, true))

	p := &panel{Level: cell.New(0)}
	require.NoError(t, rt.Contextualize(p))
	g, err := First[*gauge](rt)
	require.NoError(t, err)

	require.NoError(t, rt.Decontextualize(p))

	gauges, err := All[*gauge](rt)
	require.NoError(t, err)
	assert.Empty(t, gauges)
	assert.Equal(t, 0, g.Level.Registrations())
}

// TestMutualism_LocatedMutualistSurvivesUntilLastHost tests locate-mode
// sharing: one mutualist serves many hosts and is removed only when the
// last of them goes.
func TestMutualism_LocatedMutualistSurvivesUntilLastHost(t *testing.T) {
	rt := quiet(t, mutualismRegistry(t, true, false))

	p1 := &panel{Level: cell.New(0)}
	p2 := &panel{Level: cell.New(0)}
	require.NoError(t, rt.Contextualize(p1))
	require.NoError(t, rt.Contextualize(p2))

	gauges, err := All[*gauge](rt)
	require.NoError(t, err)
	require.Len(t, gauges, 1, "second host locates the existing gauge")

	require.NoError(t, rt.Decontextualize(p1))
	gauges, err = All[*gauge](rt)
	require.NoError(t, err)
	assert.Len(t, gauges, 1, "a remaining host keeps the gauge alive")

	require.NoError(t, rt.Decontextualize(p2))
	gauges, err = All[*gauge](rt)
	require.NoError(t, err)
	assert.Empty(t, gauges)
}

// TestMutualism_LocatedMutualistSharesOneCellAcrossHosts tests
// locate-mode sharing with paired fields: every host that locates the
// same mutualist resolves its paired field to the mutualist's existing
// cell, so earlier registrations stay live and a write through any
// side notifies every bound owner.
func TestMutualism_LocatedMutualistSharesOneCellAcrossHosts(t *testing.T) {
	rt := quiet(t, mutualismRegistry(t, true, true))

	p1 := &panel{Level: cell.New(0)}
	p2 := &panel{Level: cell.New(0)}
	require.NoError(t, rt.Contextualize(p1))
	require.NoError(t, rt.Contextualize(p2))
	g, err := First[*gauge](rt)
	require.NoError(t, err)

	assert.Same(t, p1.Level, g.Level)
	assert.Same(t, p2.Level, g.Level)
	assert.Equal(t, 3, g.Level.Registrations())

	g.Level.Set(42)
	assert.Equal(t, 42, p1.Level.Value())
	assert.Equal(t, 42, p2.Level.Value())

	// One write, one change record per bound owner.
	require.Len(t, rt.changes, 3)
	owners := map[any]bool{}
	for _, ch := range rt.changes {
		owners[ch.Ctx] = true
		assert.Equal(t, "Level", ch.Field)
	}
	assert.True(t, owners[p1])
	assert.True(t, owners[p2])
	assert.True(t, owners[g])
}

// TestMutualism_MutualistRemovalIsTotal tests the mutualist-side
// cascade: removing a shared mutualist directly decontextualizes every
// host referencing it.
func TestMutualism_MutualistRemovalIsTotal(t *testing.T) {
	rt := quiet(t, mutualismRegistry(t, true, false))

	p1 := &panel{Level: cell.New(0)}
	p2 := &panel{Level: cell.New(0)}
	require.NoError(t, rt.Contextualize(p1))
	require.NoError(t, rt.Contextualize(p2))
	g, err := First[*gauge](rt)
	require.NoError(t, err)

	require.NoError(t, rt.Decontextualize(g))

	panels, err := All[*panel](rt)
	require.NoError(t, err)
	assert.Empty(t, panels)
	gauges, err := All[*gauge](rt)
	require.NoError(t, err)
	assert.Empty(t, gauges)
}

// TestMutualism_ConstructorMisbehaviorRejected tests that a mutualist
// constructor returning nil or a foreign type fails contextualization.
func TestMutualism_ConstructorMisbehaviorRejected(t *testing.T) {
	reg := decl.NewRegistry()
	require.NoError(t, reg.DeclareContext(gaugeSpec()))
	spec := panelSpec(false, false)
	spec.Mutualism.Mutualists[0].Construct = func(host any) any { return nil }
	require.NoError(t, reg.DeclareContext(spec))
	rt := quiet(t, reg)

	err := rt.Contextualize(&panel{Level: cell.New(0)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "constructor returned nil")
}

// TestMutualism_CascadeTearsDownDependentBehaviors tests end-to-end
// coupling with the update cycle: behaviors holding a cascaded-away
// context are torn down on the next update.
func TestMutualism_CascadeTearsDownDependentBehaviors(t *testing.T) {
	reg := mutualismRegistry(t, false, true)

	teardowns := 0
	spec := decl.NewBehavior(
		decl.TypeOf[*watcher](),
		[]decl.Dependency{{Name: "gauge", Type: decl.TypeOf[*gauge]()}},
		nopConstruct,
	).OnTeardown(func(rt decl.RuntimeHandle, behavior any, deps map[string]any) error {
		teardowns++
		return nil
	})
	require.NoError(t, reg.DeclareBehavior(spec))
	rt := quiet(t, reg)

	p := &panel{Level: cell.New(0)}
	require.NoError(t, rt.Contextualize(p))
	worked, err := rt.Update()
	require.NoError(t, err)
	require.True(t, worked, "gauge satisfies the watcher")

	// Removing the host cascades to the gauge; the watcher goes with it.
	require.NoError(t, rt.Decontextualize(p))
	worked, err = rt.Update()
	require.NoError(t, err)
	assert.True(t, worked)
	assert.Equal(t, 1, teardowns)
}
