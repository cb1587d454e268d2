package waitq

import (
	"container/heap"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBasicFIFOOrder(t *testing.T) {
	b := NewBasic()
	b.Enqueue(1)
	b.Enqueue(2)
	b.Enqueue(3)

	require.Equal(t, 3, b.Notify(All))
	got1, err := b.Pop()
	require.NoError(t, err)
	got2, _ := b.Pop()
	got3, _ := b.Pop()
	require.Equal(t, []int{1, 2, 3}, []int{got1, got2, got3}, "basic notify(ALL) must preserve FIFO order")

	_, err = b.Pop()
	require.ErrorIs(t, err, ErrEmpty())
}

func TestBasicConservation(t *testing.T) {
	b := NewBasic()
	for i := 0; i < 5; i++ {
		b.Enqueue(i)
	}
	b.Notify(First)
	removed := b.Remove(3)
	require.True(t, removed)

	popped := 0
	for {
		if _, err := b.Pop(); err != nil {
			break
		}
		popped++
	}
	// entered(5) == popped + removed(1) + still-waiting(3)
	require.Equal(t, 1, popped, "only the notified item reached ready before the rest stayed waiting")
	require.Equal(t, 3, b.Len(), "remaining waiting items are still accounted for")
}

func TestVectorNotifyMatchesInterestBit(t *testing.T) {
	v := NewVector()
	require.NoError(t, v.Enqueue(1, 0b0001))
	require.NoError(t, v.Enqueue(2, 0b0010))
	require.NoError(t, v.Enqueue(3, 0b0011))

	require.Equal(t, 2, v.Notify(0, All)) // bit 0 matches tid 1 and tid 3

	seen := map[int]bool{}
	for {
		tid, ev, err := v.Pop()
		if err != nil {
			break
		}
		require.EqualValues(t, 0, ev)
		seen[tid] = true
	}
	require.Equal(t, map[int]bool{1: true, 3: true}, seen)
}

func TestVectorRejectsZeroInterest(t *testing.T) {
	v := NewVector()
	require.Error(t, v.Enqueue(1, 0))
}

func TestTimedWakeBound(t *testing.T) {
	tq := NewTimed()
	tq.Enqueue(42, 100)

	require.Equal(t, 0, tq.Notify(99), "must not wake before the wake tick")
	require.Equal(t, 1, tq.Notify(100), "must wake once now_tick reaches wake_tick")

	tid, err := tq.Pop()
	require.NoError(t, err)
	require.Equal(t, 42, tid)
}

func TestTimedWrapTolerance(t *testing.T) {
	tq := NewTimed()
	// wakeTick sits just below the uint32 boundary; now wraps past it.
	tq.Enqueue(1, 0xFFFFFFF0)
	require.Equal(t, 0, tq.Notify(0xFFFFFFE0))
	require.Equal(t, 1, tq.Notify(0x00000010), "now has wrapped past wakeTick; entry must still fire")
}

func TestTimedMinHeapProperty(t *testing.T) {
	tq := NewTimed()
	ticks := []uint32{50, 10, 40, 20, 30, 5, 60}
	for i, wt := range ticks {
		tq.Enqueue(i, wt)
		assertHeapProperty(t, tq.heap)
	}
	for len(tq.heap) > 0 {
		heap.Pop(&tq.heap)
		assertHeapProperty(t, tq.heap)
	}
}

func assertHeapProperty(t *testing.T, h timedHeap) {
	t.Helper()
	for i := 1; i < len(h); i++ {
		parent := (i - 1) / 2
		require.False(t, h.Less(i, parent), "child at %d must not sort before parent at %d", i, parent)
	}
}
