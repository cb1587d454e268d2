// Package kdebug renders the live kernel state into human-readable reports
// for the CLI's ps/lsof/dump subcommands. It never mutates anything it
// reads — this is read-only introspection layered over internal/proc and
// internal/hps.
//
// Grounded in the teacher's arctir-proctor retrieval (proctor/cmd/cmd.go):
// the same tablewriter.NewWriter(&buf)/SetHeader/AppendBulk/Render shape
// that repo uses to print process tables, here pointed at proc.Table
// instead of /proc. The go-spew deep dump is the "dump" subcommand's
// heavier sibling, for when a table row isn't enough detail.
package kdebug

import (
	"bytes"
	"strconv"

	"github.com/davecgh/go-spew/spew"
	"github.com/olekukonko/tablewriter"

	"fernos/internal/hps"
	"fernos/internal/proc"
)

// ProcessTable renders one row per live process: id, lifecycle state,
// parent, thread count, living/zombie child counts, and occupied handle
// count.
func ProcessTable(procs *proc.Table) []byte {
	rows := [][]string{}
	procs.Each(func(p *proc.Process) {
		rows = append(rows, []string{
			strconv.Itoa(p.ID),
			procStateName(p.State),
			strconv.Itoa(p.Parent),
			strconv.Itoa(len(p.Threads)),
			strconv.Itoa(len(p.LivingChildren)),
			strconv.Itoa(len(p.ZombieChildren)),
			strconv.Itoa(countHandles(p.Handles)),
		})
	})

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"PID", "STATE", "PARENT", "THREADS", "LIVING", "ZOMBIE", "HANDLES"})
	table.AppendBulk(rows)
	table.Render()
	return buf.Bytes()
}

func procStateName(s proc.ProcState) string {
	if s == proc.Zombie {
		return "zombie"
	}
	return "alive"
}

func countHandles(t *hps.Table) int {
	n := 0
	t.Each(func(idx int, st hps.State) { n++ })
	return n
}

// ThreadTable renders one row per thread of p: id, scheduling state, and
// exit status.
func ThreadTable(p *proc.Process) []byte {
	rows := [][]string{}
	for tid, th := range p.Threads {
		rows = append(rows, []string{
			strconv.Itoa(tid),
			th.State.String(),
			strconv.Itoa(int(th.ExitStatus)),
		})
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"TID", "STATE", "EXIT_STATUS"})
	table.AppendBulk(rows)
	table.Render()
	return buf.Bytes()
}

// HandleTable renders p's handle table the way lsof lists a process's open
// file descriptors: one row per occupied slot, with the handle state's
// concrete Go type standing in for "what kind of thing is this" since
// hps.State carries no self-describing name.
func HandleTable(p *proc.Process) []byte {
	rows := [][]string{}
	p.Handles.Each(func(idx int, st hps.State) {
		rows = append(rows, []string{
			strconv.Itoa(idx),
			typeName(st),
		})
	})

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"FD", "TYPE"})
	table.AppendBulk(rows)
	table.Render()
	return buf.Bytes()
}

func typeName(st hps.State) string {
	cs := spew.ConfigState{DisableMethods: true}
	return cs.Sprintf("%T", st)
}

// Dump deep-prints v with go-spew, for the CLI's "dump" subcommand when a
// table row isn't enough — the full Process (threads, handle table,
// signal masks) or a single handle state.
func Dump(v any) string {
	return spew.Sdump(v)
}
