package hps

import (
	"fernos/internal/kcfg"
	"fernos/internal/kerr"
)

// Table is a process's fixed-size handle table (spec.md §3, Handle):
// allocation yields the smallest free index, and each slot owns at most
// one State.
type Table struct {
	slots [kcfg.MaxHandlesPerProc]State
}

// NewTable returns an empty handle table.
func NewTable() *Table { return &Table{} }

// Alloc installs st at the smallest free index and returns it.
func (t *Table) Alloc(st State) (int, error) {
	for i, s := range t.slots {
		if s == nil {
			t.slots[i] = st
			return i, nil
		}
	}
	return 0, kerr.New("hps.Table.Alloc", kerr.NO_SPACE, nil)
}

// Get returns the state at idx, or INVALID_INDEX if the slot is empty.
func (t *Table) Get(idx int) (State, error) {
	if idx < 0 || idx >= len(t.slots) || t.slots[idx] == nil {
		return nil, kerr.New("hps.Table.Get", kerr.INVALID_INDEX, nil)
	}
	return t.slots[idx], nil
}

// Close invokes idx's destructor hook and frees the slot.
func (t *Table) Close(idx int) error {
	st, err := t.Get(idx)
	if err != nil {
		return err
	}
	t.slots[idx] = nil
	return st.Close()
}

// CloseAll tears down every occupied slot, used when a process is reaped.
func (t *Table) CloseAll() {
	for i, s := range t.slots {
		if s != nil {
			s.Close()
			t.slots[i] = nil
		}
	}
}

// Fork deep-copies every occupied slot into a fresh table owned by
// childPID, via each state's Copy hook (spec.md §3: "fork deep-copies each
// handle state via its plugin's copy hook").
func (t *Table) Fork(childPID int) (*Table, error) {
	nt := NewTable()
	for i, s := range t.slots {
		if s == nil {
			continue
		}
		cp, err := s.Copy(childPID)
		if err != nil {
			return nil, err
		}
		nt.slots[i] = cp
	}
	return nt, nil
}

// Len reports the fixed capacity of the table.
func (t *Table) Len() int { return len(t.slots) }

// Each calls fn with the index and state of every occupied slot, in
// ascending index order (internal/kdebug's per-process handle dump).
func (t *Table) Each(fn func(idx int, st State)) {
	for i, s := range t.slots {
		if s != nil {
			fn(i, s)
		}
	}
}
