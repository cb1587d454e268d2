// Package diag is the fatal-halt path (spec.md §7's propagation policy:
// "hard errors ... print a diagnostic and halt the CPU"), and SPEC_FULL.md
// §D's BIOS-console boot-diagnostics supplement (term_sys_helpers.c /
// k_bios_term in original_source/): a diagnostic is logged and the VGA
// character-display plugin's buffer is written before the kernel halts.
//
// Grounded in the teacher's exceptions.go unhandled-exception path, which
// prints and spins rather than attempting recovery.
package diag

import (
	"fmt"

	"fernos/internal/kernel"
)

// VGAWriter is the minimal surface diag needs from the VGA character
// display plugin: write a line of text into the given row. A
// nil writer means "no display available", which Panic tolerates.
type VGAWriter interface {
	WriteLine(row int, text string)
}

// Panic halts k, logging reason through k.Log and — if display is
// non-nil — writing it to the legacy VGA text buffer, mirroring the
// original's on-screen fatal diagnostic (spec.md §7, §4.3).
func Panic(k *kernel.Kernel, display VGAWriter, format string, args ...any) {
	reason := fmt.Sprintf(format, args...)
	k.Log.Error(nil, "kernel panic", "reason", reason)
	if display != nil {
		display.WriteLine(0, "*** KERNEL PANIC ***")
		display.WriteLine(1, reason)
	}
	k.Halt(reason)
}
