// Command fernos is an operator CLI over the hosted kernel core
// (SPEC_FULL.md §B): boot a simulated kernel, optionally exec an app image
// into process 0, drive it tick-by-tick, and inspect its process/handle
// tables — all without real hardware, grounded in arctir-proctor's
// cobra-based introspection CLI.
package main

import (
	"fmt"
	"os"
)

func main() {
	fernosCmd := SetupCLI()
	if err := fernosCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
