package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomkit/loom/internal/journal"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_Valid(t *testing.T) {
	path := writeScenario(t, `
name: smoke
description: minimal valid scenario
limit: 5
steps:
  - settle: true
  - add_sensor: a
  - set:
      sensor: a
      reading: 7
  - remove_sensor: a
`)
	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "smoke", s.Name)
	assert.Equal(t, 5, s.Limit)
	require.Len(t, s.Steps, 4)
	assert.True(t, s.Steps[0].Settle)
	assert.Equal(t, "a", s.Steps[1].AddSensor)
	require.NotNil(t, s.Steps[2].Set)
	assert.Equal(t, 7, s.Steps[2].Set.Reading)
	assert.Equal(t, "a", s.Steps[3].RemoveSensor)
}

func TestLoadScenario_RejectsUnknownFields(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: catches misspelled keys
limit: 5
stepz:
  - settle: true
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
}

func TestLoadScenario_Validation(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing description",
			content: `
name: x
limit: 5
steps:
  - settle: true
`,
			wantErr: "description is required",
		},
		{
			name: "non-positive limit",
			content: `
name: x
description: d
limit: 0
steps:
  - settle: true
`,
			wantErr: "limit must be positive",
		},
		{
			name: "no steps",
			content: `
name: x
description: d
limit: 5
steps: []
`,
			wantErr: "steps list is required",
		},
		{
			name: "two operations in one step",
			content: `
name: x
description: d
limit: 5
steps:
  - add_sensor: a
    settle: true
`,
			wantErr: "exactly one operation per step",
		},
		{
			name: "set without sensor",
			content: `
name: x
description: d
limit: 5
steps:
  - set:
      reading: 3
`,
			wantErr: "sensor is required",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tc.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestRun_AlarmFlow(t *testing.T) {
	scenario := &Scenario{
		Name:        "inline",
		Description: "alarm raise flow",
		Limit:       10,
		Steps: []Step{
			{Settle: true},
			{AddSensor: "boiler"},
			{Settle: true},
			{Set: &SetStep{Sensor: "boiler", Reading: 17}},
			{Settle: true},
		},
	}
	result, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Passes)
	assert.Equal(t, map[string]bool{"boiler": true}, result.Alarms)
	assert.Equal(t, []string{
		"boiler: watching (limit 10)",
		"boiler: alarm raised at 17",
	}, result.Console)

	kinds := make(map[journal.Kind]int)
	for _, ev := range result.Events {
		kinds[ev.Kind]++
	}
	assert.Equal(t, 3, kinds[journal.KindContextualized], "console, alarm, sensor")
	assert.Equal(t, 2, kinds[journal.KindInstantiated], "printer, threshold")
	assert.Positive(t, kinds[journal.KindChange])
}

func TestRun_IdenticalScenariosProduceIdenticalTraces(t *testing.T) {
	scenario := &Scenario{
		Name:        "det",
		Description: "determinism check",
		Limit:       10,
		Steps: []Step{
			{Settle: true},
			{AddSensor: "s"},
			{Settle: true},
		},
	}
	a, err := Run(scenario)
	require.NoError(t, err)
	b, err := Run(scenario)
	require.NoError(t, err)
	assert.Equal(t, FormatTrace(a), FormatTrace(b))
}

func TestRun_UnknownSensorFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad",
		Description: "references a sensor that was never added",
		Limit:       10,
		Steps: []Step{
			{Set: &SetStep{Sensor: "ghost", Reading: 1}},
		},
	}
	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown sensor "ghost"`)
}

func TestRun_DuplicateSensorFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "dup",
		Description: "adds the same sensor twice",
		Limit:       10,
		Steps: []Step{
			{AddSensor: "a"},
			{AddSensor: "a"},
		},
	}
	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already added")
}
