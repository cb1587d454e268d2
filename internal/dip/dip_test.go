package dip

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGDTSelectorLayout(t *testing.T) {
	g := NewGDT()
	require.EqualValues(t, 0, g.Entry(SelNull))
	require.NotZero(t, g.Entry(SelKernelCode))
	require.NotZero(t, g.Entry(SelUserCode))
}

func TestTSSSetKernelStack(t *testing.T) {
	tss := &TSS{}
	tss.SetKernelStack(0xDEAD0000)
	require.EqualValues(t, 0xDEAD0000, tss.ESP0)
	require.EqualValues(t, SelKernelData*8, tss.SS0)
}

func TestIDTDispatchUnregisteredIsNotImplemented(t *testing.T) {
	idt := NewIDT()
	err := idt.Dispatch(VecTimer, &RegisterFrame{})
	require.Error(t, err)
}

func TestIDTDispatchInvokesAction(t *testing.T) {
	idt := NewIDT()
	called := false
	require.NoError(t, idt.Register(VecTimer, func(vector int, f *RegisterFrame) {
		called = true
		require.Equal(t, VecTimer, vector)
	}))
	require.NoError(t, idt.Dispatch(VecTimer, &RegisterFrame{}))
	require.True(t, called)
}

func TestPICMaskingAndSpurious(t *testing.T) {
	p := NewPIC()
	p.SetMask(0, false) // unmask timer
	require.True(t, p.RaiseIRQ(0))

	p.SetMask(1, true) // keyboard stays masked
	require.False(t, p.RaiseIRQ(1))

	// IRQ7 never actually raised -> spurious.
	require.True(t, p.IsSpurious(7))
}

func TestPITReloadValue(t *testing.T) {
	pit := NewPIT(1000)
	require.NotZero(t, pit.Reload())
}
