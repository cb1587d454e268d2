package main

import (
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"fernos/internal/kcfg"
	"fernos/internal/kdebug"
	"fernos/internal/proc"
)

// runFernos defines what should occur when `fernos` is run with no
// subcommand: print help, same as arctir-proctor's runProctor.
func runFernos(cmd *cobra.Command, args []string) {
	if len(args) == 0 {
		cmd.Help()
		os.Exit(0)
	}
}

func runBoot(cmd *cobra.Command, args []string) {
	fs := cmd.Flags()
	physEndMB, _ := fs.GetInt(physEndFlag)
	tickHz, _ := fs.GetUint32(tickHzFlag)
	dbDir, _ := fs.GetString(dbDirFlag)
	appPath, _ := fs.GetString(appFlag)
	ticks, _ := fs.GetInt(ticksFlag)

	a, err := buildKernel(logr.Discard(), kcfg.PAddr(physEndMB*1024*1024), tickHz, dbDir)
	if err != nil {
		outputErrorAndFail(fmt.Sprintf("failed wiring kernel: %s", err))
	}
	defer a.Close()

	root, err := a.kernel.Boot()
	if err != nil {
		outputErrorAndFail(fmt.Sprintf("boot failed: %s", err))
	}

	if appPath != "" {
		app, err := loadAppImage(appPath)
		if err != nil {
			outputErrorAndFail(fmt.Sprintf("failed loading app image %q: %s", appPath, err))
		}
		if _, err := a.kernel.Exec(root.ID, 0, app, nil); err != nil {
			outputErrorAndFail(fmt.Sprintf("exec failed: %s", err))
		}
	}

	for i := 0; i < ticks; i++ {
		a.kernel.TimerTick()
	}

	output(kdebug.ProcessTable(a.kernel.Procs))
}

func runStep(cmd *cobra.Command, args []string) {
	fs := cmd.Flags()
	physEndMB, _ := fs.GetInt(physEndFlag)
	tickHz, _ := fs.GetUint32(tickHzFlag)
	dbDir, _ := fs.GetString(dbDirFlag)
	ticks, _ := fs.GetInt(ticksFlag)

	a, err := buildKernel(logr.Discard(), kcfg.PAddr(physEndMB*1024*1024), tickHz, dbDir)
	if err != nil {
		outputErrorAndFail(fmt.Sprintf("failed wiring kernel: %s", err))
	}
	defer a.Close()

	if _, err := a.kernel.Boot(); err != nil {
		outputErrorAndFail(fmt.Sprintf("boot failed: %s", err))
	}

	var now int
	for i := 0; i < ticks; i++ {
		now = a.kernel.TimerTick()
	}
	fmt.Printf("tick now: %d\n", now)
}

func runPS(cmd *cobra.Command, args []string) {
	fs := cmd.Flags()
	physEndMB, _ := fs.GetInt(physEndFlag)
	dbDir, _ := fs.GetString(dbDirFlag)

	a, err := buildKernel(logr.Discard(), kcfg.PAddr(physEndMB*1024*1024), 1000, dbDir)
	if err != nil {
		outputErrorAndFail(fmt.Sprintf("failed wiring kernel: %s", err))
	}
	defer a.Close()

	if _, err := a.kernel.Boot(); err != nil {
		outputErrorAndFail(fmt.Sprintf("boot failed: %s", err))
	}

	output(kdebug.ProcessTable(a.kernel.Procs))
}

func runLsof(cmd *cobra.Command, args []string) {
	fs := cmd.Flags()
	physEndMB, _ := fs.GetInt(physEndFlag)
	dbDir, _ := fs.GetString(dbDirFlag)
	pid, _ := fs.GetInt(pidFlag)

	a, err := buildKernel(logr.Discard(), kcfg.PAddr(physEndMB*1024*1024), 1000, dbDir)
	if err != nil {
		outputErrorAndFail(fmt.Sprintf("failed wiring kernel: %s", err))
	}
	defer a.Close()

	if _, err := a.kernel.Boot(); err != nil {
		outputErrorAndFail(fmt.Sprintf("boot failed: %s", err))
	}

	p, err := a.kernel.Procs.Get(pid)
	if err != nil {
		outputErrorAndFail(fmt.Sprintf("no such process: %d", pid))
	}
	output(kdebug.ThreadTable(p))
	output(kdebug.HandleTable(p))
}

func runDump(cmd *cobra.Command, args []string) {
	fs := cmd.Flags()
	physEndMB, _ := fs.GetInt(physEndFlag)
	dbDir, _ := fs.GetString(dbDirFlag)

	a, err := buildKernel(logr.Discard(), kcfg.PAddr(physEndMB*1024*1024), 1000, dbDir)
	if err != nil {
		outputErrorAndFail(fmt.Sprintf("failed wiring kernel: %s", err))
	}
	defer a.Close()

	if _, err := a.kernel.Boot(); err != nil {
		outputErrorAndFail(fmt.Sprintf("boot failed: %s", err))
	}
	fmt.Print(kdebug.Dump(a.kernel))
}

// loadAppImage reads a CLI-authored app image file: UserAppRecordSize
// bytes of proc.DecodeUserApp's fixed header, immediately followed by
// each occupied area's given bytes concatenated in area order (a file
// has no address space to point into, unlike sc_proc_exec's in-memory
// given_vaddr/given_size pair, so the CLI's own encoding appends them
// inline instead).
func loadAppImage(path string) (*proc.UserApp, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(raw) < proc.UserAppRecordSize {
		return nil, fmt.Errorf("app image %q is shorter than a UserApp record", path)
	}
	header, rest := raw[:proc.UserAppRecordSize], raw[proc.UserAppRecordSize:]
	readGiven := func(_ kcfg.VAddr, length int) ([]byte, error) {
		if length > len(rest) {
			return nil, fmt.Errorf("app image %q: truncated given-bytes region", path)
		}
		given := rest[:length]
		rest = rest[length:]
		return given, nil
	}
	return proc.DecodeUserApp(header, readGiven)
}

func output(b []byte) { fmt.Print(string(b)) }

func outputErrorAndFail(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
