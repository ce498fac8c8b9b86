// Package demo provides the sample declarations used by the scenario
// harness and the CLI: a Sensor context whose Reading feeds a Threshold
// behavior, an Alarm mutualist mirroring each sensor's alarm state, and
// a self-created Console sink collecting output lines.
//
// The package exists to exercise every declaration feature end to end:
// bindable fields, collection cells, unique and shared bindings,
// self-created dependencies, mutualism with paired fields, change and
// teardown handlers.
package demo

import (
	"fmt"

	"github.com/loomkit/loom/internal/cell"
	"github.com/loomkit/loom/internal/decl"
)

// Sensor is an externally registered measurement source. Reading holds
// the latest measurement; Alarm mirrors the paired Alarm mutualist's
// Active field through a shared cell.
type Sensor struct {
	Name    string
	Reading *cell.Cell
	Alarm   *cell.Cell
}

// NewSensor creates a sensor with a zero reading and an inactive alarm.
func NewSensor(name string) *Sensor {
	return &Sensor{
		Name:    name,
		Reading: cell.New(0),
		Alarm:   cell.New(false),
	}
}

// Alarm is the mutualist paired with each Sensor: its Active field and
// the sensor's Alarm field resolve to one shared cell.
type Alarm struct {
	Active *cell.Cell
}

// Console is a self-created output sink. Lines is a collection cell, so
// every append notifies regardless of equality.
type Console struct {
	Lines *cell.Cell
}

// Snapshot returns the collected output lines.
func (c *Console) Snapshot() []string {
	lines := c.Lines.Value().([]string)
	out := make([]string, len(lines))
	copy(out, lines)
	return out
}

func (c *Console) println(line string) {
	lines := c.Lines.Value().([]string)
	next := make([]string, len(lines), len(lines)+1)
	copy(next, lines)
	c.Lines.Set(append(next, line))
}

// Printer owns the Console it creates. One Printer exists at a time;
// removing its Console re-creates both on the next update.
type Printer struct{}

// Threshold watches one sensor and raises its alarm when the reading
// crosses the configured limit, logging transitions to the shared
// console.
type Threshold struct {
	Limit int
}

// Declarations builds the demo registry: context types first, then
// behaviors in evaluation order (Printer before Threshold, so the
// console exists before any threshold needs it).
func Declarations(limit int) (*decl.Registry, error) {
	reg := decl.NewRegistry()

	if err := reg.DeclareContext(&decl.ContextSpec{
		Type: decl.TypeOf[*Console](),
		Fields: []decl.FieldSpec{{
			Name: "Lines",
			Get:  func(ctx any) *cell.Cell { return ctx.(*Console).Lines },
			Set:  func(ctx any, c *cell.Cell) { ctx.(*Console).Lines = c },
		}},
	}); err != nil {
		return nil, err
	}

	if err := reg.DeclareContext(&decl.ContextSpec{
		Type: decl.TypeOf[*Alarm](),
		Fields: []decl.FieldSpec{{
			Name: "Active",
			Get:  func(ctx any) *cell.Cell { return ctx.(*Alarm).Active },
			Set:  func(ctx any, c *cell.Cell) { ctx.(*Alarm).Active = c },
		}},
	}); err != nil {
		return nil, err
	}

	if err := reg.DeclareContext(&decl.ContextSpec{
		Type: decl.TypeOf[*Sensor](),
		Fields: []decl.FieldSpec{
			{
				Name: "Reading",
				Get:  func(ctx any) *cell.Cell { return ctx.(*Sensor).Reading },
				Set:  func(ctx any, c *cell.Cell) { ctx.(*Sensor).Reading = c },
			},
			{
				Name: "Alarm",
				Get:  func(ctx any) *cell.Cell { return ctx.(*Sensor).Alarm },
				Set:  func(ctx any, c *cell.Cell) { ctx.(*Sensor).Alarm = c },
			},
		},
		Mutualism: &decl.MutualismSpec{
			Mutualists: []decl.MutualistSpec{{
				Name:      "alarm",
				Type:      decl.TypeOf[*Alarm](),
				Construct: func(host any) any { return &Alarm{} },
				Fields: []decl.FieldPair{
					{HostField: "Alarm", MutualistField: "Active"},
				},
			}},
		},
	}); err != nil {
		return nil, err
	}

	printer := decl.NewBehavior(
		decl.TypeOf[*Printer](),
		[]decl.Dependency{{
			Name:        "console",
			Type:        decl.TypeOf[*Console](),
			Fulfillment: decl.FulfillmentSelfCreated,
		}},
		func(rt decl.RuntimeHandle, existing map[string]any) (any, map[string]any, error) {
			console := &Console{Lines: cell.NewCollection([]string{})}
			return &Printer{}, map[string]any{"console": console}, nil
		},
	)
	if err := reg.DeclareBehavior(printer); err != nil {
		return nil, err
	}

	threshold := decl.NewBehavior(
		decl.TypeOf[*Threshold](),
		[]decl.Dependency{
			{Name: "sensor", Type: decl.TypeOf[*Sensor]()},
			{Name: "console", Type: decl.TypeOf[*Console](), Binding: decl.BindingShared},
		},
		func(rt decl.RuntimeHandle, existing map[string]any) (any, map[string]any, error) {
			s := existing["sensor"].(*Sensor)
			c := existing["console"].(*Console)
			c.println(fmt.Sprintf("%s: watching (limit %d)", s.Name, limit))
			return &Threshold{Limit: limit}, nil, nil
		},
	).OnFieldChange("sensor", "Reading",
		func(rt decl.RuntimeHandle, behavior any, deps map[string]any, field string) error {
			b := behavior.(*Threshold)
			s := deps["sensor"].(*Sensor)
			c := deps["console"].(*Console)
			reading := s.Reading.Value().(int)
			active := reading > b.Limit
			if active != s.Alarm.Value().(bool) {
				s.Alarm.Set(active)
				if active {
					c.println(fmt.Sprintf("%s: alarm raised at %d", s.Name, reading))
				} else {
					c.println(fmt.Sprintf("%s: alarm cleared at %d", s.Name, reading))
				}
			}
			return nil
		},
	).OnTeardown(
		func(rt decl.RuntimeHandle, behavior any, deps map[string]any) error {
			s := deps["sensor"].(*Sensor)
			c := deps["console"].(*Console)
			c.println(fmt.Sprintf("%s: offline", s.Name))
			return nil
		},
	)
	if err := reg.DeclareBehavior(threshold); err != nil {
		return nil, err
	}

	return reg, nil
}
