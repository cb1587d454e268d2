// Package dip is the Descriptor & Interrupt Plane (spec.md §4.3): GDT, IDT,
// TSS, and PIC/PIT programming, dispatching CPU exceptions, the timer
// interrupt, IRQ1 and INT 48 into typed actions the scheduler owns.
//
// This is a hosted model: there is no real ring transition, so "dispatch"
// means "call the registered Action with a RegisterFrame", and the GDT/IDT
// are encoded faithfully (explicit shift/mask, matching real i386
// descriptor layout) without ever being loaded into a real CPU.
package dip

// RegisterFrame is everything needed to resume a thread: all
// general-purpose registers, segment selectors, EIP, EFLAGS, and the user
// ESP (spec.md §3, Thread). It is also the payload an Action receives and
// mutates to deliver a syscall return value.
type RegisterFrame struct {
	EAX, EBX, ECX, EDX uint32
	ESI, EDI, EBP      uint32
	EIP, EFLAGS        uint32
	UserESP            uint32
	CS, SS, DS, ES, FS, GS uint16
}

// SetReturn patches EAX (and optionally EDX as a secondary return
// register) the way the syscall return-value macro does (spec.md §4.7),
// just before the frame is restored on return-to-user.
func (f *RegisterFrame) SetReturn(primary uint32, secondary *uint32) {
	f.EAX = primary
	if secondary != nil {
		f.EDX = *secondary
	}
}

// Action is a function pointer registered with the Descriptor & Interrupt
// Plane that a trampoline invokes (GLOSSARY). It receives the vector that
// fired and the interrupted frame.
type Action func(vector int, frame *RegisterFrame)
