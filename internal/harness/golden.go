package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/loomkit/loom/internal/journal"
)

// FormatTrace renders a result as the fixed-format text compared
// against golden files: one line per journal event ordered by seq,
// then a separator, then the console lines.
//
// The format is append-only by convention: fields are omitted when
// empty rather than printed blank, so extending Event cannot reflow
// existing golden files.
func FormatTrace(result *Result) []byte {
	var buf bytes.Buffer
	for _, ev := range result.Events {
		writeEvent(&buf, ev)
	}
	buf.WriteString("--\n")
	for _, line := range result.Console {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func writeEvent(buf *bytes.Buffer, ev journal.Event) {
	fmt.Fprintf(buf, "%03d %s %s", ev.Seq, ev.Wave, ev.Kind)
	if ev.ContextType != "" {
		fmt.Fprintf(buf, " ctx=%s#%d", ev.ContextType, ev.ContextID)
	}
	if ev.Field != "" {
		fmt.Fprintf(buf, " field=%s", ev.Field)
	}
	if ev.Behavior != "" {
		fmt.Fprintf(buf, " behavior=%s", ev.Behavior)
	}
	buf.WriteByte('\n')
}

// RunWithGolden executes a scenario and compares its formatted trace
// against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, FormatTrace(result))
	return result, nil
}
