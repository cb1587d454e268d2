package dip

// TSS stores only SS0 and ESP0 (spec.md §4.3): the ring-0 stack segment
// and pointer the CPU loads on a privilege-level change into the kernel.
// The Scheduler updates both fields on every thread switch to point at the
// chosen thread's kernel stack.
type TSS struct {
	SS0  uint16
	ESP0 uint32
}

// SetKernelStack updates the TSS to point at the given kernel-mode stack,
// called once per context switch (spec.md §4.5).
func (t *TSS) SetKernelStack(esp0 uint32) {
	t.SS0 = uint16(SelKernelData * 8)
	t.ESP0 = esp0
}
