// Package queue implements the bounded-concurrency, FIFO-on-contention
// gate described in spec.md §4.3: a counting semaphore where push either
// admits a pfunc immediately or parks it behind every earlier waiter, and
// next releases the longest-waiting pfunc first (property P6).
//
// Grounded on the teacher's toysched worker-pool admission control,
// generalized from "block a goroutine until a worker is free" to "hold a
// frame until next() re-submits it" — admission here never blocks a
// caller, it defers a frame (spec.md §5: no suspension points).
package queue

import (
	"github.com/pkg/errors"

	"github.com/portos-dev/portos/pkg/frame"
	"github.com/portos-dev/portos/pkg/hash"
	"github.com/portos-dev/portos/pkg/list"
	"github.com/portos-dev/portos/pkg/platform"
	"github.com/portos-dev/portos/pkg/priority"
	"github.com/portos-dev/portos/pkg/scheduler"
)

// waiter is a parked push, linked into the queue's FIFO via pkg/list.
type waiter struct {
	node  list.Node
	frame *frame.Frame
	prio  priority.Level
}

func newWaiter(f *frame.Frame, p priority.Level) *waiter {
	w := &waiter{frame: f, prio: p}
	w.node.Payload = w
	return w
}

// Queue is a counting semaphore gating pfunc admission. n_servers tokens
// are available; a push that finds a token consumes it and dispatches
// immediately, otherwise it waits in FIFO order for a next() release.
type Queue struct {
	sched   *scheduler.Scheduler
	plat    *platform.Interrupts
	servers int
	count   int
	waiters list.List

	// admitted tracks frames currently dispatched through this queue, by
	// pointer identity, so Release can catch a frame being released twice
	// (original_source/src/po_hashp.c's pointer-keyed lookup, SPEC_FULL.md
	// §3).
	admitted *hash.PtrTable

	highWater int
}

// New builds a Queue admitting up to nServers pfuncs simultaneously
// (spec.md §3: "Fixed: n_servers").
func New(sched *scheduler.Scheduler, nServers int) *Queue {
	q := &Queue{
		sched:    sched,
		plat:     sched.Platform(),
		servers:  nServers,
		count:    nServers,
		admitted: hash.NewPtrTable(),
	}
	q.waiters.Init()
	return q
}

// Push admits f at priority p immediately if a token is available,
// otherwise appends it to the FIFO until a Next() release reaches it
// (spec.md §4.3's push).
func (q *Queue) Push(f *frame.Frame, p priority.Level) error {
	tok := q.plat.Disable()
	if q.count > 0 {
		q.count--
		if inUse := q.servers - q.count; inUse > q.highWater {
			q.highWater = inUse
		}
		q.plat.Restore(tok)
		q.admitted.Add(f)
		return q.sched.Call(f, p)
	}
	w := newWaiter(f, p)
	q.waiters.PushBack(&w.node)
	q.plat.Restore(tok)
	return nil
}

// Next releases one token. If a pfunc is waiting, the longest-waiting one
// is dispatched with the freed token instead of the token being returned
// to the pool (spec.md §4.3's next; property P6).
func (q *Queue) Next() error {
	tok := q.plat.Disable()
	front := q.waiters.Front()
	if front == nil {
		q.count++
		q.plat.Restore(tok)
		return nil
	}
	q.waiters.Remove(front)
	q.plat.Restore(tok)

	w := front.Payload.(*waiter)
	q.admitted.Add(w.frame)
	return q.sched.Call(w.frame, w.prio)
}

// Release marks f as no longer occupying a server and calls Next, the
// same way po_queue's pointer-keyed table (original_source/src/po_hashp.c)
// validated a release against the frame it actually admitted. Returns an
// error instead of releasing a token if f was never admitted through this
// Queue, or has already been released — a double-release that Next alone
// (which releases an anonymous token, not a specific frame) cannot catch.
func (q *Queue) Release(f *frame.Frame) error {
	if !q.admitted.Remove(f) {
		return errors.Errorf("queue: release of frame %p not currently admitted", f)
	}
	return q.Next()
}

// Defer implements pkg/pfunc.Service, so a pfunc declared with
// pfunc.Declare can be gated by a Queue the same way it can be attached
// to a signal (spec.md §6: "presence of a service ⇒ the service owns the
// frame until release").
func (q *Queue) Defer(f *frame.Frame, p priority.Level) error {
	return q.Push(f, p)
}

// Stats reports the queue's admission state for diagnostics, including the
// high-water mark original_source/test/po_que_test.c's stress test asserts
// never exceeds Servers (property P6).
type Stats struct {
	Servers   int
	InUse     int
	Waiting   int
	HighWater int
}

// Stats returns a snapshot of admission pressure.
func (q *Queue) Stats() Stats {
	tok := q.plat.Disable()
	defer q.plat.Restore(tok)
	n := 0
	for cur := q.waiters.Front(); cur != nil; cur = q.waiters.Next(cur) {
		n++
	}
	return Stats{Servers: q.servers, InUse: q.servers - q.count, Waiting: n, HighWater: q.highWater}
}
