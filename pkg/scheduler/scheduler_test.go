package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/portos-dev/portos/pkg/alloc"
	"github.com/portos-dev/portos/pkg/errs"
	"github.com/portos-dev/portos/pkg/frame"
	"github.com/portos-dev/portos/pkg/priority"
)

func newTestScheduler(t *testing.T, levels int) (*Scheduler, *frame.Pool) {
	t.Helper()
	s, err := New(Config{Levels: levels})
	require.NoError(t, err)
	return s, frame.NewPool(alloc.New(alloc.Config{}))
}

// TestImmediatePreemption is spec.md §8 scenario 1: curpri=BASE, call
// F_hi at 5 which itself calls F_lo at 2; F_hi must run to completion
// before F_lo, and curpri must return to BASE afterward.
func TestImmediatePreemption(t *testing.T) {
	s, pool := newTestScheduler(t, 8)

	var trace []priority.Level
	lo, err := pool.New("lo", nil, func(*frame.Frame) {
		trace = append(trace, s.CurPriority())
	})
	require.NoError(t, err)

	hi, err := pool.New("hi", nil, func(*frame.Frame) {
		trace = append(trace, s.CurPriority())
		require.NoError(t, s.Call(lo, 2))
		trace = append(trace, s.CurPriority())
	})
	require.NoError(t, err)

	require.Equal(t, priority.BASE, s.CurPriority())
	require.NoError(t, s.Call(hi, 5))
	require.Equal(t, priority.BASE, s.CurPriority())
	require.Equal(t, []priority.Level{5, 2, 5}, trace)
}

// TestCallAtHigherPriorityRunsImmediately is spec.md §8 scenario 2's first
// half: from curpri=3, calling at 7 must run synchronously.
func TestCallAtHigherPriorityRunsImmediately(t *testing.T) {
	s, pool := newTestScheduler(t, 8)

	ran := false
	f, err := pool.New("f", nil, func(*frame.Frame) { ran = true })
	require.NoError(t, err)

	prev, err := s.RaisePriority(3)
	require.NoError(t, err)
	require.NoError(t, s.Call(f, 7))
	require.True(t, ran, "call above curpri must run synchronously")
	s.RestorePriority(prev)
}

// TestCallAtLowerPriorityDefers is spec.md §8 scenario 2's second half:
// from curpri=7, calling at 3 must not run until the current level drains.
func TestCallAtLowerPriorityDefers(t *testing.T) {
	s, pool := newTestScheduler(t, 8)

	ran := false
	f, err := pool.New("f", nil, func(*frame.Frame) { ran = true })
	require.NoError(t, err)

	prev, err := s.RaisePriority(7)
	require.NoError(t, err)
	require.NoError(t, s.Call(f, 3))
	require.False(t, ran, "call at/below curpri must not run synchronously")
	s.RestorePriority(prev)
	require.True(t, ran, "restoring below the deferred level must drain it")
}

// TestLaterEnqueuesFIFOWithinLevel checks ordering guarantee: within one
// priority level, dispatch order follows enqueue order.
func TestLaterEnqueuesFIFOWithinLevel(t *testing.T) {
	s, pool := newTestScheduler(t, 8)

	var order []int
	mk := func(i int) *frame.Frame {
		f, err := pool.New("", nil, func(*frame.Frame) { order = append(order, i) })
		require.NoError(t, err)
		return f
	}

	prev, err := s.RaisePriority(5)
	require.NoError(t, err)
	require.NoError(t, s.Later(mk(1), 2))
	require.NoError(t, s.Later(mk(2), 2))
	require.NoError(t, s.Later(mk(3), 2))
	s.RestorePriority(prev)

	require.Equal(t, []int{1, 2, 3}, order)
}

// TestRaiseBelowCurrentFails checks raise_pri's contract: p must be >=
// curpri.
func TestRaiseBelowCurrentFails(t *testing.T) {
	s, _ := newTestScheduler(t, 8)
	var aborted *errs.Error
	s.Platform().SetAbort(func(e *errs.Error) { aborted = e })

	prev, err := s.RaisePriority(5)
	require.NoError(t, err)

	_, err = s.RaisePriority(2)
	require.Error(t, err)
	require.NotNil(t, aborted)
	require.Equal(t, errs.InvalidRaisePri, aborted.Code)

	s.RestorePriority(prev)
}

// TestDrainResumesHigherLevelsFirst checks strict priority ordering across
// levels: with several levels pending, restore must drain the highest
// first.
func TestDrainResumesHigherLevelsFirst(t *testing.T) {
	s, pool := newTestScheduler(t, 8)

	var order []priority.Level
	mk := func(p priority.Level) *frame.Frame {
		f, err := pool.New("", nil, func(*frame.Frame) { order = append(order, p) })
		require.NoError(t, err)
		return f
	}

	prev, err := s.RaisePriority(6)
	require.NoError(t, err)
	require.NoError(t, s.Later(mk(1), 1))
	require.NoError(t, s.Later(mk(4), 4))
	require.NoError(t, s.Later(mk(2), 2))
	s.RestorePriority(prev)

	require.Equal(t, []priority.Level{4, 2, 1}, order)
}

// TestQuiescenceLeavesNoState is property P8: after everything drains,
// curpri is BASE and no level remains pending.
func TestQuiescenceLeavesNoState(t *testing.T) {
	s, pool := newTestScheduler(t, 8)
	f, err := pool.New("", nil, func(*frame.Frame) {})
	require.NoError(t, err)

	require.NoError(t, s.Call(f, 3))
	require.Equal(t, priority.BASE, s.CurPriority())

	dump := s.Dump()
	require.Equal(t, priority.Bitmap(0), dump.Bitmap)
	for _, n := range dump.QueueDepth {
		require.Zero(t, n)
	}
}

// TestBadPriorityLevelAborts checks the out-of-range contract from §4.1.
func TestBadPriorityLevelAborts(t *testing.T) {
	s, err := New(Config{Levels: 4, Debug: true})
	require.NoError(t, err)
	pool := frame.NewPool(alloc.New(alloc.Config{}))
	f, err := pool.New("", nil, func(*frame.Frame) {})
	require.NoError(t, err)

	var aborted *errs.Error
	s.Platform().SetAbort(func(e *errs.Error) { aborted = e })

	err = s.Call(f, 99)
	require.Error(t, err)
	require.NotNil(t, aborted)
	require.Equal(t, errs.BadPriority, aborted.Code)
}

func TestNewRejectsOutOfRangeLevels(t *testing.T) {
	_, err := New(Config{Levels: 0})
	require.Error(t, err)

	_, err = New(Config{Levels: priority.MaxLevels + 1})
	require.Error(t, err)
}

// TestNestedCallAtSameLevelDefersNotRecurses guards invariant 4 (a frame
// is never on a FIFO while its own trampoline runs) by checking a
// same-level nested call enqueues instead of re-entering synchronously.
func TestNestedCallAtSameLevelDefersNotRecurses(t *testing.T) {
	s, pool := newTestScheduler(t, 8)
	var order []string

	inner, err := pool.New("inner", nil, func(*frame.Frame) { order = append(order, "inner") })
	require.NoError(t, err)

	outer, err := pool.New("outer", nil, func(*frame.Frame) {
		order = append(order, "outer-start")
		require.NoError(t, s.Call(inner, 5))
		order = append(order, "outer-end")
	})
	require.NoError(t, err)

	require.NoError(t, s.Call(outer, 5))
	require.Equal(t, []string{"outer-start", "outer-end", "inner"}, order)
}
