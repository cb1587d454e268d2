package main

import "github.com/spf13/cobra"

var fernosCmd = &cobra.Command{
	Use:   "fernos",
	Short: "Drive a hosted simulation of the fernos kernel core from a terminal.",
	Run:   runFernos,
}

var bootCmd = &cobra.Command{
	Use:   "boot",
	Short: "Boot a fresh kernel, optionally exec an app image into process 0, then print its process table.",
	Run:   runBoot,
}

var stepCmd = &cobra.Command{
	Use:   "step",
	Short: "Boot a fresh kernel and advance it a number of timer ticks.",
	Run:   runStep,
}

var psCmd = &cobra.Command{
	Use:     "ps",
	Aliases: []string{"processes"},
	Short:   "Boot a fresh kernel and list its process table.",
	Run:     runPS,
}

var lsofCmd = &cobra.Command{
	Use:   "lsof",
	Short: "Boot a fresh kernel and list a process's open handles.",
	Run:   runLsof,
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Boot a fresh kernel and print a deep dump of its state.",
	Run:   runDump,
}

// SetupCLI constructs the cobra command tree for the fernos CLI.
func SetupCLI() *cobra.Command {
	fernosCmd.AddCommand(bootCmd)
	fernosCmd.AddCommand(stepCmd)
	fernosCmd.AddCommand(psCmd)
	fernosCmd.AddCommand(lsofCmd)
	fernosCmd.AddCommand(dumpCmd)
	return fernosCmd
}
