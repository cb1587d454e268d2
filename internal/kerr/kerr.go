// Package kerr defines the kernel's error-kind taxonomy. Every fallible
// kernel operation returns a Kind (or an *E wrapping one) rather than an
// opaque error, so syscall return values and wait-queue results can be
// matched on exact kind the way the userspace ABI expects.
package kerr

import (
	"errors"
	"fmt"
)

// Kind is a 16-bit error code, matching the width the syscall ABI delivers
// it in (EAX, or a secondary out-register).
type Kind uint16

const (
	SUCCESS Kind = iota
	UNKNOWN_ERROR
	ALIGN_ERROR
	INVALID_RANGE
	INVALID_INDEX
	BAD_ARGS
	NO_MEM
	NO_SPACE
	EMPTY
	IN_USE
	ALREADY_ALLOCATED
	STATE_MISMATCH
	INACTIVE
	NOT_IMPLEMENTED
	NOT_PERMITTED

	// WOULD_BLOCK is returned by a plugin's Cmd to tell the syscall
	// dispatcher the caller must park instead of returning synchronously
	// (spec.md §4.8's wait_* hooks, generalized to plugin-id commands like
	// futex's CmdWait): the dispatcher enqueues the caller on the plugin's
	// exposed wait queue and calls Scheduler.Block rather than delivering
	// this kind to userspace.
	WOULD_BLOCK
)

var names = [...]string{
	"SUCCESS", "UNKNOWN_ERROR", "ALIGN_ERROR", "INVALID_RANGE",
	"INVALID_INDEX", "BAD_ARGS", "NO_MEM", "NO_SPACE", "EMPTY", "IN_USE",
	"ALREADY_ALLOCATED", "STATE_MISMATCH", "INACTIVE", "NOT_IMPLEMENTED",
	"NOT_PERMITTED", "WOULD_BLOCK",
}

func (k Kind) String() string {
	if int(k) < len(names) {
		return names[k]
	}
	return fmt.Sprintf("Kind(%d)", uint16(k))
}

// Ok reports whether k is SUCCESS.
func (k Kind) Ok() bool { return k == SUCCESS }

// E wraps a Kind with call-site context, satisfying the error interface so
// it composes with normal Go error handling at the boundaries (CLI, plugin
// hooks) while internal hot paths pass bare Kind values around.
type E struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *E) Unwrap() error { return e.Err }

// New wraps kind as an error for op, with an optional underlying cause.
func New(op string, kind Kind, cause error) error {
	if kind == SUCCESS {
		return nil
	}
	return &E{Kind: kind, Op: op, Err: cause}
}

// As extracts the Kind from err, defaulting to UNKNOWN_ERROR for foreign
// errors and SUCCESS for nil.
func As(err error) Kind {
	if err == nil {
		return SUCCESS
	}
	var e *E
	if errors.As(err, &e) {
		return e.Kind
	}
	return UNKNOWN_ERROR
}
