// Package harness runs conformance scenarios against the demo
// declarations and compares the resulting event trace with golden
// files.
//
// Every scenario runs in a fresh runtime over an in-memory journal with
// sequential wave tokens, so identical scenarios always produce
// identical traces. The trace read back from the journal is the source
// of truth for golden comparison; console output is appended so a
// golden file also pins the observable behavior.
package harness

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/loomkit/loom/internal/demo"
	"github.com/loomkit/loom/internal/journal"
	"github.com/loomkit/loom/internal/runtime"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Passes is the total number of working update passes across all
	// settle steps.
	Passes int

	// Events is the full journal trace ordered by seq.
	Events []journal.Event

	// Console holds the demo console's collected lines, or nil when no
	// console was ever created.
	Console []string

	// Alarms maps live sensor names to their alarm state at the end.
	Alarms map[string]bool
}

// waveSeq generates sequential deterministic wave tokens. Unlike the
// fixed-token generator it never exhausts, so scenarios need not
// predict how many passes their settle steps take.
type waveSeq struct{ n int }

func (g *waveSeq) Generate() string {
	g.n++
	return fmt.Sprintf("wave-%03d", g.n)
}

// Run executes a scenario against a fresh runtime and returns its
// trace, console output, and final alarm states.
func Run(scenario *Scenario) (*Result, error) {
	reg, err := demo.Declarations(scenario.Limit)
	if err != nil {
		return nil, fmt.Errorf("build declarations: %w", err)
	}

	j, err := journal.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	rt := runtime.New(reg,
		runtime.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		runtime.WithJournal(j),
		runtime.WithWaveTokens(&waveSeq{}),
	)
	if err := rt.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize runtime: %w", err)
	}

	result := &Result{Alarms: make(map[string]bool)}
	sensors := make(map[string]*demo.Sensor)

	for i, step := range scenario.Steps {
		switch {
		case step.AddSensor != "":
			if sensors[step.AddSensor] != nil {
				return nil, fmt.Errorf("step %d: sensor %q already added", i, step.AddSensor)
			}
			s := demo.NewSensor(step.AddSensor)
			if err := rt.Contextualize(s); err != nil {
				return nil, fmt.Errorf("step %d: contextualize %q: %w", i, step.AddSensor, err)
			}
			sensors[step.AddSensor] = s

		case step.RemoveSensor != "":
			s := sensors[step.RemoveSensor]
			if s == nil {
				return nil, fmt.Errorf("step %d: unknown sensor %q", i, step.RemoveSensor)
			}
			if err := rt.Decontextualize(s); err != nil {
				return nil, fmt.Errorf("step %d: decontextualize %q: %w", i, step.RemoveSensor, err)
			}
			delete(sensors, step.RemoveSensor)

		case step.Set != nil:
			s := sensors[step.Set.Sensor]
			if s == nil {
				return nil, fmt.Errorf("step %d: unknown sensor %q", i, step.Set.Sensor)
			}
			s.Reading.Set(step.Set.Reading)

		case step.Settle:
			passes, err := rt.Settle()
			if err != nil {
				return nil, fmt.Errorf("step %d: settle: %w", i, err)
			}
			result.Passes += passes
		}
	}

	console, err := runtime.First[*demo.Console](rt)
	if err != nil {
		return nil, fmt.Errorf("read console: %w", err)
	}
	if console != nil {
		result.Console = console.Snapshot()
	}
	for name, s := range sensors {
		result.Alarms[name] = s.Alarm.Value().(bool)
	}

	result.Events, err = j.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	return result, nil
}
