package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/loomkit/loom/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Wave     string // optional - filter to one update pass
}

// traceResult is the JSON payload for a trace dump.
type traceResult struct {
	Database string          `json:"database"`
	Wave     string          `json:"wave,omitempty"`
	Events   []journal.Event `json:"events"`
	Stats    traceStats      `json:"stats"`
}

// traceStats summarizes a trace by event kind.
type traceStats struct {
	TotalEvents        int `json:"total_events"`
	Contextualizations int `json:"contextualizations"`
	Removals           int `json:"removals"`
	Instantiations     int `json:"instantiations"`
	Teardowns          int `json:"teardowns"`
	Changes            int `json:"changes"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Dump a journal trace",
		Long: `Dump the event trace from a journal database.

Events print in seq order: contextualizations, removals, behavior
instantiations and teardowns, and delivered change notifications, each
stamped with the wave token of the update pass that produced it.

Examples:
  loom trace --db ./loom.db
  loom trace --db ./loom.db --wave 0190d3e1-...
  loom trace --db ./loom.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to journal database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Wave, "wave", "", "filter to one wave token")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, "journal database not found", err)
	}

	j, err := journal.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	var events []journal.Event
	if opts.Wave != "" {
		events, err = j.ReadWave(opts.Wave)
	} else {
		events, err = j.ReadAll()
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read trace", err)
	}

	result := traceResult{
		Database: opts.Database,
		Wave:     opts.Wave,
		Events:   events,
		Stats:    summarize(events),
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Trace: %s\n", opts.Database)
	if opts.Wave != "" {
		fmt.Fprintf(w, "Wave:  %s\n", opts.Wave)
	}
	fmt.Fprintln(w)
	if len(events) == 0 {
		fmt.Fprintln(w, "  (no events)")
		return nil
	}
	for _, ev := range events {
		formatTraceEvent(w, ev, opts.Verbose)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events:       %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Contextualizations: %d\n", result.Stats.Contextualizations)
	fmt.Fprintf(w, "  Removals:           %d\n", result.Stats.Removals)
	fmt.Fprintf(w, "  Instantiations:     %d\n", result.Stats.Instantiations)
	fmt.Fprintf(w, "  Teardowns:          %d\n", result.Stats.Teardowns)
	fmt.Fprintf(w, "  Changes:            %d\n", result.Stats.Changes)
	return nil
}

// summarize counts events by kind.
func summarize(events []journal.Event) traceStats {
	stats := traceStats{TotalEvents: len(events)}
	for _, ev := range events {
		switch ev.Kind {
		case journal.KindContextualized:
			stats.Contextualizations++
		case journal.KindDecontextualized:
			stats.Removals++
		case journal.KindInstantiated:
			stats.Instantiations++
		case journal.KindTornDown:
			stats.Teardowns++
		case journal.KindChange:
			stats.Changes++
		}
	}
	return stats
}

// formatTraceEvent formats a single event for text output.
func formatTraceEvent(w interface{ Write([]byte) (int, error) }, ev journal.Event, verbose bool) {
	fmt.Fprintf(w, "  [%d] %s", ev.Seq, ev.Kind)
	if ev.ContextType != "" {
		fmt.Fprintf(w, " %s#%d", ev.ContextType, ev.ContextID)
	}
	if ev.Field != "" {
		fmt.Fprintf(w, " field=%s", ev.Field)
	}
	if ev.Behavior != "" {
		fmt.Fprintf(w, " behavior=%s", ev.Behavior)
	}
	fmt.Fprintln(w)
	if verbose {
		fmt.Fprintf(w, "       wave: %s\n", ev.Wave)
	}
}
