package runtime

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomkit/loom/internal/decl"
	"github.com/loomkit/loom/internal/journal"
)

// TestRuntime_JournalTrace tests end-to-end trace production: lifecycle
// events land in the journal with strictly increasing seqs, and each
// event carries the wave token of the pass that produced it (or
// "external" for direct registry calls).
func TestRuntime_JournalTrace(t *testing.T) {
	reg := decl.NewRegistry()
	require.NoError(t, reg.DeclareContext(sensorSpec()))

	spec := decl.NewBehavior(
		decl.TypeOf[*watcher](),
		[]decl.Dependency{{Name: "sensor", Type: decl.TypeOf[*sensor]()}},
		nopConstruct,
	).OnFieldChange("sensor", "Reading", func(rt decl.RuntimeHandle, behavior any, deps map[string]any, field string) error {
		return nil
	})
	require.NoError(t, reg.DeclareBehavior(spec))

	j, err := journal.Open(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	defer j.Close()

	rt := New(reg,
		WithJournal(j),
		WithWaveTokens(NewFixedTokens("w1", "w2", "w3")),
	)
	require.NoError(t, rt.Initialize())

	s := newSensor()
	require.NoError(t, rt.Contextualize(s))

	_, err = rt.Update() // w1: instantiation
	require.NoError(t, err)

	s.Reading.Set(9)
	_, err = rt.Update() // w2: change delivery
	require.NoError(t, err)

	require.NoError(t, rt.Decontextualize(s))
	_, err = rt.Update() // w3: teardown
	require.NoError(t, err)

	events, err := j.ReadAll()
	require.NoError(t, err)
	require.Len(t, events, 5)

	kinds := make([]journal.Kind, len(events))
	waves := make([]string, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind
		waves[i] = ev.Wave
		if i > 0 {
			assert.Greater(t, ev.Seq, events[i-1].Seq)
		}
	}
	assert.Equal(t, []journal.Kind{
		journal.KindContextualized,
		journal.KindInstantiated,
		journal.KindChange,
		journal.KindDecontextualized,
		journal.KindTornDown,
	}, kinds)
	assert.Equal(t, []string{"external", "w1", "w2", "external", "w3"}, waves)

	// All sensor events reference the same stable id.
	assert.Equal(t, events[0].ContextID, events[2].ContextID)
	assert.Equal(t, events[0].ContextID, events[3].ContextID)
	assert.Equal(t, "Reading", events[2].Field)
	assert.Equal(t, decl.TypeOf[*watcher]().String(), events[1].Behavior)
	assert.Equal(t, decl.TypeOf[*watcher]().String(), events[4].Behavior)
}

// TestRuntime_WaveScopedReads tests grouping a trace by wave token.
func TestRuntime_WaveScopedReads(t *testing.T) {
	reg := decl.NewRegistry()
	require.NoError(t, reg.DeclareContext(sensorSpec()))

	j, err := journal.Open(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	defer j.Close()

	rt := New(reg,
		WithJournal(j),
		WithWaveTokens(NewFixedTokens("w1")),
	)
	require.NoError(t, rt.Initialize())

	require.NoError(t, rt.Contextualize(newSensor()))
	require.NoError(t, rt.Contextualize(newSensor()))

	external, err := j.ReadWave("external")
	require.NoError(t, err)
	assert.Len(t, external, 2)

	w1, err := j.ReadWave("w1")
	require.NoError(t, err)
	assert.Empty(t, w1)
}
