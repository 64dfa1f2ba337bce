// Package frame implements the invocation frame described in spec.md §3:
// the record a caller builds to invoke a pfunc, carrying a link for the
// per-level FIFO, a trampoline that runs the user body, and an optional
// debug name. Ownership moves sequentially: allocator -> caller ->
// scheduler/service -> trampoline, which frees the frame after the body
// returns (spec.md §3, §9).
package frame

import (
	"github.com/google/uuid"

	"github.com/portos-dev/portos/pkg/alloc"
)

// Trampoline un-marshals a Frame's arguments and invokes the user's pfunc
// body. In the source this is code-generated per function signature; here
// it is simply the closure passed to Pool.New when the Frame was built (see
// pkg/pfunc for the generic declaration helper spec.md §9 calls for).
type Trampoline func(*Frame)

// Frame is the marshalling record handed to the scheduler or a service.
// next is the only field the scheduler's per-level FIFO touches directly;
// everything else is read-only once the frame leaves its Pool.
type Frame struct {
	next *Frame

	trampoline Trampoline
	body       any
	name       string
	id         uuid.UUID

	pool *Pool
	blk  *alloc.Block
}

// Name returns the frame's debug name, or its generated id if none was
// given (spec.md §3, "name (debug)").
func (f *Frame) Name() string {
	if f.name != "" {
		return f.name
	}
	return f.id.String()
}

// Body returns the arguments the trampoline was built to un-marshal. Used
// by generic trampolines constructed through pkg/pfunc.
func (f *Frame) Body() any { return f.body }

// The next link is used exclusively by pkg/scheduler's per-level FIFO. The
// field itself is unexported and reached through the Next/SetNext/ResetNext
// methods so the scheduler does not need a second frame type just to
// manipulate the intrusive link (spec.md §3, invariant 3: a frame is on at
// most one per-level FIFO at a time).

// Next returns the frame linked after f in its current FIFO, or nil.
func (f *Frame) Next() *Frame { return f.next }

// SetNext sets f's FIFO link. Only the scheduler's later()/drain should
// call this.
func (f *Frame) SetNext(n *Frame) { f.next = n }

// ResetNext clears f's FIFO link before it is (re)enqueued.
func (f *Frame) ResetNext() { f.next = nil }

// Invoke runs the trampoline and then frees the frame back to its Pool,
// matching the ownership handoff in spec.md §3 ("the trampoline ... frees
// it after F returns"). Invoke must be called at most once per frame.
func (f *Frame) Invoke() {
	t := f.trampoline
	p := f.pool
	t(f)
	if p != nil {
		p.free(f)
	}
}

// Discard frees f without running its trampoline. Used when a frame is
// cancelled before it is ever invoked (pkg/signal's detach racing a post
// that has not yet reached sig_invoke). Must not be called after Invoke.
func (f *Frame) Discard() {
	if f.pool != nil {
		f.pool.free(f)
	}
}

// Pool builds and recycles Frames through an alloc.Allocator, so frame
// construction has the same O(1)-expected, interrupt-safe profile as the
// allocator itself.
type Pool struct {
	a *alloc.Allocator
}

// NewPool builds a Pool backed by a (allocator may be shared with other
// subsystems; Frame headers are small enough to share the allocator's
// smallest size class with other fixed-size records).
func NewPool(a *alloc.Allocator) *Pool {
	return &Pool{a: a}
}

// New builds a Frame whose trampoline is t and whose body is the
// marshalled argument value (typically built by pkg/pfunc.Declare). name
// is optional; an empty name falls back to a generated uuid in Name().
func (p *Pool) New(name string, body any, t Trampoline) (*Frame, error) {
	blk, err := p.a.Alloc(0)
	if err != nil {
		return nil, err
	}
	return &Frame{
		trampoline: t,
		body:       body,
		name:       name,
		id:         uuid.New(),
		pool:       p,
		blk:        blk,
	}, nil
}

func (p *Pool) free(f *Frame) {
	if f.blk != nil {
		_ = p.a.Free(f.blk)
		f.blk = nil
	}
}
