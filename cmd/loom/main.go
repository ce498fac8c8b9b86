// Command loom is the entry point for the loom CLI.
package main

import (
	"fmt"
	"os"

	"github.com/loomkit/loom/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
