// Package signal implements the attach/post/detach group described in
// spec.md §4.2: pfuncs wait on an integer key, a post wakes every waiter
// attached to that key in attachment order, and detach cancels a waiter
// that has not yet run. Clocks and queues (pkg/clock, pkg/queue) are built
// on top of this package, per spec.md §1 ("timers and queues are trivial
// layers on top of it once the scheduler is specified").
//
// Grounded on the teacher's toysched/step7 channel-based wakeup, reworked
// from "one goroutine blocks on a channel" to "one hInt record sits in a
// hash bucket until post or detach resolves it" — there is no blocking
// here, only deferred dispatch (spec.md §5: "a pfunc never suspends").
package signal

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/portos-dev/portos/pkg/errs"
	"github.com/portos-dev/portos/pkg/frame"
	"github.com/portos-dev/portos/pkg/hash"
	"github.com/portos-dev/portos/pkg/priority"
	"github.com/portos-dev/portos/pkg/scheduler"
)

// dummyInt is the shared sentinel spec.md §3 and §9 describe: every Handle
// not currently attached points here, so Active() is a lock-free pointer
// comparison with no dangling-pointer risk.
var dummyInt = &hInt{}

// Handle is the caller-owned side of an attachment (spec.md §3's
// H_user). Its zero value is not ready for use; build one with NewHandle.
type Handle struct {
	ptr atomic.Pointer[hInt]
}

// NewHandle returns a Handle in the "not attached" state.
func NewHandle() *Handle {
	h := &Handle{}
	h.ptr.Store(dummyInt)
	return h
}

// Active reports whether the handle is currently attached and has not yet
// been posted or detached.
func (h *Handle) Active() bool {
	return h.ptr.Load() != dummyInt
}

// hInt is the signal-group-owned side of an attachment (spec.md §3's
// H_int): the hash item plus everything sig_invoke needs once the
// attachment is resolved. frame is an atomic.Pointer rather than a bare
// field because post and detach may race to claim it — the race is by
// design (spec.md §5, "Cancellation semantics"), and the swap below is
// what decides the winner instead of a raw pointer a data race could tear.
type hInt struct {
	item  hash.Item
	key   int32
	prio  priority.Level
	frame atomic.Pointer[frame.Frame]
	user  *Handle
}

// Group is a fixed-size signal group: a hash-bucketed index of waiters,
// plus the priority ceiling attach/post/detach raise to while touching a
// bucket (spec.md §4.2: "the attach body runs at group_priority — chosen
// so post can iterate the bucket without a lock"). table has no internal
// synchronization of its own; the RaisePriority/RestorePriority window
// below is what actually serializes bucket mutation across goroutines, via
// the scheduler's stack lock.
type Group struct {
	sched    *scheduler.Scheduler
	priority priority.Level
	table    *hash.Table
	log      *zap.Logger
}

// NewGroup builds a Group with the given bucket count, raising to prio
// while attach/post/detach touch a bucket. sched must already be
// configured with at least prio+1 levels.
func NewGroup(sched *scheduler.Scheduler, buckets int, prio priority.Level, log *zap.Logger) *Group {
	if log == nil {
		log = zap.NewNop()
	}
	return &Group{sched: sched, priority: prio, table: hash.New(buckets), log: log}
}

// Attach registers f to run at priority p when key is next posted,
// recording the attachment in h so the caller can later Detach or query
// Active (spec.md §4.2's attach). h must not already be active.
func (g *Group) Attach(key int32, p priority.Level, h *Handle, f *frame.Frame) error {
	if !g.table.InRange(key) {
		e := errs.Newf(errs.SigAttachOOR, "attach key %d out of range", key)
		g.sched.Platform().Abort(e)
		return e
	}
	prev, err := g.sched.RaisePriority(g.priority)
	if err != nil {
		return err
	}
	defer g.sched.RestorePriority(prev)

	if h.Active() {
		e := errs.New(errs.SigMultipleAttach)
		g.sched.Platform().Abort(e)
		return e
	}

	it := &hInt{key: key, prio: p, user: h}
	it.frame.Store(f)
	it.item.Payload = it
	if !g.table.Insert(key, &it.item) {
		e := errs.Newf(errs.SigAttachOOR, "attach key %d out of range", key)
		return e
	}
	h.ptr.Store(it)
	return nil
}

// Post wakes every pfunc attached to key, in attachment order (spec.md
// §4.2's post, property P5). Each woken pfunc is submitted to the
// scheduler at its own attach priority, outside the group's priority
// ceiling — matching spec.md's "sig_invoke runs at the pfunc's own
// priority".
func (g *Group) Post(key int32) error {
	if !g.table.InRange(key) {
		e := errs.Newf(errs.SigPostOOR, "post key %d out of range", key)
		g.sched.Platform().Abort(e)
		return e
	}
	prev, err := g.sched.RaisePriority(g.priority)
	if err != nil {
		return err
	}
	items := g.table.Remove(key)
	g.sched.RestorePriority(prev)

	for _, raw := range items {
		g.sigInvoke(raw.Payload.(*hInt))
	}
	return nil
}

// sigInvoke is the trampoline wrapper spec.md §4.2 names explicitly: clear
// the user handle first (so Active() flips false before the frame ever
// reaches the scheduler), then race Detach for ownership of the frame
// pointer. Whoever's Swap observes a non-nil value owns it.
func (g *Group) sigInvoke(hi *hInt) {
	hi.user.ptr.Store(dummyInt)
	f := hi.frame.Swap(nil)
	if f == nil {
		return
	}
	_ = g.sched.Call(f, hi.prio)
}

// Detach cancels h's attachment, if any (spec.md §4.2's detach). After
// Detach returns, the attached pfunc is either already fully executed or
// will never execute (spec.md §5's cancellation guarantee) — never both.
func (g *Group) Detach(h *Handle) error {
	prev, err := g.sched.RaisePriority(g.priority)
	if err != nil {
		return err
	}
	defer g.sched.RestorePriority(prev)

	hi := h.ptr.Load()
	if hi == dummyInt {
		return nil
	}
	if hi.user != h {
		e := errs.New(errs.SigCorruptHandle)
		g.sched.Platform().Abort(e)
		return e
	}

	g.table.RemoveItem(&hi.item)
	h.ptr.Store(dummyInt)
	if f := hi.frame.Swap(nil); f != nil {
		// Detach won the race against sig_invoke: nobody will invoke this
		// frame, so we free it here instead of leaking it.
		f.Discard()
	}
	return nil
}

// Dump is a diagnostic snapshot of a Group's bucket occupancy, in the
// spirit of original_source/src/po_display.c (SPEC_FULL.md §3).
type Dump struct {
	Priority        priority.Level
	BucketOccupancy []int
}

// Dump returns a snapshot of the group's current bucket occupancy.
func (g *Group) Dump() Dump {
	prev, err := g.sched.RaisePriority(g.priority)
	if err != nil {
		return Dump{Priority: g.priority}
	}
	defer g.sched.RestorePriority(prev)
	occ := g.table.BucketOccupancy()
	g.log.Debug("portos: signal group dump", zap.Int("priority", int(g.priority)), zap.Ints("bucket_occupancy", occ))
	return Dump{Priority: g.priority, BucketOccupancy: occ}
}

// Waiter binds a Group to a fixed key so it can be used as a
// pkg/pfunc.Service, for the common "always attach under this key" case
// (e.g. a single clock's signal group, see pkg/clock). Callers that need
// the Handle back for Detach should call Attach directly instead.
type Waiter struct {
	group *Group
	key   int32
}

// On returns a Waiter bound to key.
func (g *Group) On(key int32) *Waiter { return &Waiter{group: g, key: key} }

// Defer implements pkg/pfunc.Service by attaching f under the Waiter's
// key with a handle the caller has no further access to.
func (w *Waiter) Defer(f *frame.Frame, p priority.Level) error {
	return w.group.Attach(w.key, p, NewHandle(), f)
}
