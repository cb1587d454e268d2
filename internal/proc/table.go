package proc

import (
	"fernos/internal/kcfg"
	"fernos/internal/kerr"
)

// Table is the global process table (spec.md §3): proc_id is assigned from
// a reusable id table bounded by MAX_PROCS.
type Table struct {
	procs [kcfg.MaxProcs]*Process
}

// NewTable returns an empty process table.
func NewTable() *Table { return &Table{} }

// Create allocates the smallest free proc id, parented to parent (use
// NoParent only for process 0).
func (t *Table) Create(parent int) (*Process, error) {
	for id := 0; id < kcfg.MaxProcs; id++ {
		if t.procs[id] == nil {
			p := newProcess(id, parent)
			t.procs[id] = p
			return p, nil
		}
	}
	return nil, kerr.New("proc.Table.Create", kerr.NO_SPACE, nil)
}

// Get returns the process at id, or INVALID_INDEX if the slot is empty.
func (t *Table) Get(id int) (*Process, error) {
	if id < 0 || id >= kcfg.MaxProcs || t.procs[id] == nil {
		return nil, kerr.New("proc.Table.Get", kerr.INVALID_INDEX, nil)
	}
	return t.procs[id], nil
}

// Release frees id's slot entirely (spec.md §4.4, reap: "releases its
// remaining state ... and the id-slot").
func (t *Table) Release(id int) {
	t.procs[id] = nil
}

// Each calls fn for every live process id, in ascending id order, useful
// for the CLI's ps/debug dump.
func (t *Table) Each(fn func(*Process)) {
	for _, p := range t.procs {
		if p != nil {
			fn(p)
		}
	}
}
