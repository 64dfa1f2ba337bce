// Package scheduler implements the Portos core (spec.md §4.1): priority
// bitmap, per-level FIFO, immediate-vs-deferred dispatch, and raise/restore.
//
// Grounded on the teacher's Scheduler type (toysched/step7/toysched7.go) —
// a central mutex-guarded struct with explicit FIFO state and small,
// single-purpose methods — generalized from a multi-thread work-stealing
// run queue to a single-stack, priority-preemptive drain: there is exactly
// one logical stack here, modeled by plain (possibly nested) Go function
// calls, never a goroutine per unit of work.
package scheduler

import (
	"go.uber.org/zap"

	"github.com/portos-dev/portos/pkg/errs"
	"github.com/portos-dev/portos/pkg/frame"
	"github.com/portos-dev/portos/pkg/platform"
	"github.com/portos-dev/portos/pkg/priority"
)

// Config configures a Scheduler.
type Config struct {
	// Levels is L, the number of priority levels in [0, Levels). Must be
	// in (0, priority.MaxLevels].
	Levels int
	// Debug makes the BadPriority error for an out-of-range level name the
	// level and the valid range. Out-of-range levels are rejected whether
	// or not Debug is set, and no list-corruption check is made in either
	// configuration.
	Debug bool
	// Logger receives structured diagnostics. A no-op logger is used if
	// nil.
	Logger *zap.Logger
}

// Scheduler is the Portos dispatch core: a priority bitmap plus one FIFO
// per level, shared by every pfunc call in the process.
type Scheduler struct {
	cfg    Config
	plat   *platform.Interrupts
	log    *zap.Logger
	levels int

	// curpri/maxpri/bitmap/head/tail are all protected by plat's critical
	// section for field-level mutation, and by stack for the coarser
	// invariant that only one goroutine is ever inside a trampoline.
	// spec.md §5 treats curpri/maxpri as unlocked, single-writer state —
	// true on real hardware, where only one instruction stream ever
	// executes. This port's simulated-interrupt stress harness
	// (internal/sim) drives genuinely concurrent goroutines against the
	// same Scheduler, so both locks are needed to stay race-free
	// (SPEC_FULL.md §4). stack is always acquired before plat, never the
	// reverse.
	curpri priority.Level
	maxpri priority.Level
	bitmap priority.Bitmap
	head   []*frame.Frame
	tail   []*frame.Frame

	// stack serializes the single logical stack itself (invocation, not
	// just field mutation) across goroutines, while letting the goroutine
	// that already holds it re-enter for a genuine nested immediate call.
	// See stacklock.go.
	stack *stackLock
}

// New builds a Scheduler. cfg.Levels must be positive and at most
// priority.MaxLevels (spec.md §3: "L ≤ word_bits").
func New(cfg Config) (*Scheduler, error) {
	if cfg.Levels <= 0 || cfg.Levels > priority.MaxLevels {
		return nil, errs.Newf(errs.BadPriority, "levels=%d out of range (1..%d)", cfg.Levels, priority.MaxLevels)
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Scheduler{
		cfg:    cfg,
		log:    log,
		levels: cfg.Levels,
		curpri: priority.BASE,
		maxpri: priority.BASE,
		head:   make([]*frame.Frame, cfg.Levels),
		tail:   make([]*frame.Frame, cfg.Levels),
		stack:  newStackLock(),
	}
	s.plat = platform.New(s.Resume, s.abort)
	return s, nil
}

func (s *Scheduler) abort(e *errs.Error) {
	s.log.Error("portos: fatal", zap.String("code", e.Code.String()), zap.Error(e))
	panic(e)
}

// Platform exposes the scheduler's platform shim, e.g. so a caller can
// install a custom abort policy for tests via Platform().SetAbort.
func (s *Scheduler) Platform() *platform.Interrupts { return s.plat }

func (s *Scheduler) checkLevel(p priority.Level) error {
	if !priority.Valid(p, s.levels) {
		if s.cfg.Debug {
			return errs.Newf(errs.BadPriority, "level %d out of range (0..%d)", p, s.levels)
		}
		// Release builds: "production behaviour is undefined, by design"
		// (spec.md §4.1). We still refuse to index out of bounds.
		return errs.New(errs.BadPriority)
	}
	return nil
}

// CurPriority returns the currently executing priority, or priority.BASE.
func (s *Scheduler) CurPriority() priority.Level {
	tok := s.plat.Disable()
	defer s.plat.Restore(tok)
	return s.curpri
}

// Call invokes f at priority p (spec.md §4.1). If p is higher than the
// level currently executing, f runs immediately as a plain nested call on
// the caller's stack; otherwise f is queued for later dispatch via Later.
//
// The single-stack invariant (spec.md §2, §4.1) means at most one goroutine
// may ever be inside a trampoline at a time; stack enforces that across
// real goroutines (internal/sim's concurrent harness, in particular) while
// still letting the same goroutine re-enter for a genuine nested call.
func (s *Scheduler) Call(f *frame.Frame, p priority.Level) error {
	if err := s.checkLevel(p); err != nil {
		s.plat.Abort(err.(*errs.Error))
		return err
	}
	s.stack.acquire()
	tok := s.plat.Disable()
	cur := s.curpri
	if p > cur {
		s.curpri = p
		s.plat.Restore(tok)
		f.Invoke()
		s.RestorePriority(cur) // drains and releases stack
		return nil
	}
	s.plat.Restore(tok)
	s.stack.release()
	return s.Later(f, p)
}

// Later enqueues f for deferred invocation at priority p; it never
// dispatches directly (spec.md §4.1). Call reaches it for a frame at or
// below the running level. Services (signal post, queue release, clock
// tick) re-submit released frames through Call, so they reach Later only
// that way; internal/sim's deferred-enqueue workers call Later directly.
//
// SPEC_FULL.md §4 resolution 3: whenever a frame is enqueued while
// curpri == BASE, nothing else will ever drain it on its own, so a context
// entry is requested, whichever way Later was reached.
func (s *Scheduler) Later(f *frame.Frame, p priority.Level) error {
	if err := s.checkLevel(p); err != nil {
		s.plat.Abort(err.(*errs.Error))
		return err
	}
	tok := s.plat.Disable()
	f.ResetNext()
	wasBase := s.curpri == priority.BASE
	if p > s.maxpri {
		s.maxpri = p
	}
	s.bitmap.Set(p)
	if s.tail[p] == nil {
		s.head[p] = f
	} else {
		s.tail[p].SetNext(f)
	}
	s.tail[p] = f
	s.plat.Restore(tok)

	if wasBase {
		s.plat.RequestContext()
	}
	return nil
}

// RaisePriority raises the logical priority ceiling to p without building
// a new frame (spec.md §4.1's "priority ceiling" primitive). p must be at
// or above the current level; otherwise it fails with InvalidRaisePri.
//
// RaisePriority acquires stack and holds it across the caller's raised
// window; the matching RestorePriority releases it. Callers that raise
// without the scheduler itself invoking a trampoline (pkg/signal's
// Attach/Post/Detach, which serialize hash-table mutation this way) rely on
// that window for mutual exclusion just as much as Call's immediate branch
// does.
func (s *Scheduler) RaisePriority(p priority.Level) (priority.Level, error) {
	if err := s.checkLevel(p); err != nil {
		s.plat.Abort(err.(*errs.Error))
		return priority.BASE, err
	}
	s.stack.acquire()
	tok := s.plat.Disable()
	defer s.plat.Restore(tok)
	if p < s.curpri {
		s.stack.release()
		e := errs.Newf(errs.InvalidRaisePri, "raise to %d below curpri %d", p, s.curpri)
		s.plat.Abort(e)
		return priority.BASE, e
	}
	prev := s.curpri
	s.curpri = p
	return prev, nil
}

// RestorePriority drains every frame queued above prev, then leaves curpri
// at prev (spec.md §4.1). This is the full "resume()/restore_pri" drain
// algorithm shared by both entry points, and releases the stack lock
// acquired by the matching RaisePriority (or by Call's immediate branch).
func (s *Scheduler) RestorePriority(prev priority.Level) {
	s.drain(prev)
	s.stack.release()
}

// Resume is the hardware-interrupt continuation entry point (spec.md
// §4.1): invoked (here, synchronously — SPEC_FULL.md §4 resolution 4) by
// the platform when a context entry was requested. It drains everything
// above BASE under the same stack lock as Call and RestorePriority, so a
// concurrent Resume on another goroutine blocks rather than invoking
// trampolines in parallel.
func (s *Scheduler) Resume() {
	s.stack.acquire()
	defer s.stack.release()
	s.drain(priority.BASE)
}

// drain is the algorithm behind both RestorePriority and Resume: execute
// every frame whose priority exceeds prev, then return with curpri==prev.
func (s *Scheduler) drain(prev priority.Level) {
	for {
		tok := s.plat.Disable()
		s.curpri = prev
		maxp := s.maxpri
		s.plat.Restore(tok)

		if maxp <= prev {
			return
		}

		tok = s.plat.Disable()
		s.curpri = maxp
		s.plat.Restore(tok)

		s.drainLevel(maxp, prev)
	}
}

// drainLevel runs every frame queued at level p, repeating until the level
// is observed empty, then clears its bitmap bit (spec.md §4.1's "inner
// drain"). The interrupt lock is never held across trampoline execution,
// so a higher-priority context entry may preempt at any point between
// frames.
func (s *Scheduler) drainLevel(p, prev priority.Level) {
	for {
		tok := s.plat.Disable()
		head := s.head[p]
		if head == nil {
			s.plat.Restore(tok)
			return
		}
		s.head[p] = nil
		s.tail[p] = nil
		s.plat.Restore(tok)

		for n := head; n != nil; {
			next := n.Next()
			n.SetNext(nil)
			n.Invoke()
			n = next
		}

		tok = s.plat.Disable()
		if s.head[p] == nil {
			s.bitmap.Clear(p)
			newmax := s.bitmap.Highest()
			if newmax < prev {
				newmax = prev
			}
			s.maxpri = newmax
			s.plat.Restore(tok)
			return
		}
		s.plat.Restore(tok)
	}
}

// Dump reports the scheduler's live state for diagnostics, in the spirit
// of original_source/src/po_display.c (SPEC_FULL.md §3).
type Dump struct {
	CurPriority priority.Level
	MaxPriority priority.Level
	Bitmap      priority.Bitmap
	QueueDepth  []int
}

// Dump returns a snapshot of the scheduler's current state.
func (s *Scheduler) Dump() Dump {
	tok := s.plat.Disable()
	defer s.plat.Restore(tok)
	depths := make([]int, s.levels)
	for p := 0; p < s.levels; p++ {
		n := 0
		for f := s.head[p]; f != nil; f = f.Next() {
			n++
		}
		depths[p] = n
	}
	d := Dump{CurPriority: s.curpri, MaxPriority: s.maxpri, Bitmap: s.bitmap, QueueDepth: depths}
	s.log.Debug("portos: scheduler dump",
		zap.Int("curpri", int(d.CurPriority)),
		zap.Int("maxpri", int(d.MaxPriority)),
		zap.Uint64("bitmap", uint64(d.Bitmap)),
	)
	return d
}
