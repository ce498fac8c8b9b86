package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomkit/loom/internal/harness"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
}

// runResult is the JSON payload for a scenario run.
type runResult struct {
	Scenario string          `json:"scenario"`
	Passes   int             `json:"passes"`
	Console  []string        `json:"console,omitempty"`
	Alarms   map[string]bool `json:"alarms,omitempty"`
	Events   int             `json:"events"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario against the demo declarations",
		Long: `Run a YAML scenario against a fresh runtime.

Scenario steps add/remove sensors, write readings, and settle the
runtime; the resulting trace and console output are printed.

Examples:
  loom run scenario.yaml
  loom run scenario.yaml --format json
  loom run scenario.yaml -v`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, cmd, args[0])
		},
	}
	return cmd
}

func runScenario(opts *RunOptions, cmd *cobra.Command, path string) error {
	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	result, err := harness.Run(scenario)
	if err != nil {
		return WrapExitError(ExitFailure, "scenario failed", err)
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), runResult{
			Scenario: scenario.Name,
			Passes:   result.Passes,
			Console:  result.Console,
			Alarms:   result.Alarms,
			Events:   len(result.Events),
		})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Scenario: %s\n", scenario.Name)
	fmt.Fprintf(w, "Passes:   %d\n", result.Passes)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Console ===")
	if len(result.Console) == 0 {
		fmt.Fprintln(w, "  (no output)")
	} else {
		for _, line := range result.Console {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
	if opts.Verbose {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Trace ===")
		w.Write(harness.FormatTrace(result))
	}
	return nil
}
