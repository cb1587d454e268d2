package futex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type wakeRecorder struct {
	woken []int
}

func (r *wakeRecorder) wake(gtid int) error {
	r.woken = append(r.woken, gtid)
	return nil
}

func TestWaitReturnsImmediatelyWhenValueAlreadyChanged(t *testing.T) {
	rec := &wakeRecorder{}
	p := NewPlugin(1, rec.wake)

	n, err := p.Cmd(0, CmdWait, 100, 5, 9, 0)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestWaitBlocksWhenValueStillMatchesExpected(t *testing.T) {
	rec := &wakeRecorder{}
	p := NewPlugin(1, rec.wake)

	_, err := p.Cmd(0, CmdWait, 100, 5, 5, 0)
	require.ErrorIs(t, err, WouldBlock)
}

func TestWakeOneWakesOnlyEarliestWaiter(t *testing.T) {
	rec := &wakeRecorder{}
	p := NewPlugin(1, rec.wake)

	wq, interest := p.WaitQueue(100)
	wq.Enqueue(11, interest)
	wq.Enqueue(12, interest)

	n, err := p.Cmd(0, CmdWake, 100, 1, 0, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	require.Equal(t, []int{11}, rec.woken)

	// the second waiter is still parked
	require.Equal(t, 1, wq.Len())
}

func TestWakeAllDrainsEveryWaiterOnThatAddress(t *testing.T) {
	rec := &wakeRecorder{}
	p := NewPlugin(1, rec.wake)

	wq, interest := p.WaitQueue(200)
	wq.Enqueue(21, interest)
	wq.Enqueue(22, interest)

	n, err := p.Cmd(0, CmdWake, 200, 0, 0, 0)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
	require.ElementsMatch(t, []int{21, 22}, rec.woken)
	require.Zero(t, wq.Len())
}

func TestWakeOnDistinctAddressDoesNotDisturbOtherWaiters(t *testing.T) {
	rec := &wakeRecorder{}
	p := NewPlugin(1, rec.wake)

	wqA, interestA := p.WaitQueue(100)
	wqA.Enqueue(31, interestA)

	_, interestB := p.WaitQueue(200)
	require.NotEqual(t, interestA, interestB, "distinct addresses get distinct interest bits")

	n, err := p.Cmd(0, CmdWake, 200, 0, 0, 0)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Equal(t, 1, wqA.Len(), "waiter on a different address is untouched")
}

func TestSlotForReusesAssignedBitForSameAddress(t *testing.T) {
	p := NewPlugin(1, func(int) error { return nil })

	a := p.slotFor(42)
	b := p.slotFor(42)
	require.Equal(t, a, b)
}
