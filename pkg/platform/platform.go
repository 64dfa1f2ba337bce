// Package platform is the shim the scheduler, signal groups, and queue
// depend on for the few primitives spec.md §6 says belong to "the
// platform": critical-section entry/exit, most-significant-bit, a context
// entry request, and an abort policy.
//
// A real bare-metal Portos target backs this with interrupt-disable /
// interrupt-restore instructions and a software-interrupt post. This
// hosted Go target backs it with a mutex (see Interrupts) and a
// synchronously-invoked callback (see RequestContext) — SPEC_FULL.md §4
// resolution 4 records why a synchronous call is faithful here.
package platform

import (
	"math/bits"
	"sync"

	"github.com/portos-dev/portos/pkg/errs"
)

// State is the opaque token returned by Disable and consumed by Restore.
// It exists so call sites read like the source's disable/restore pairs
// even though this target has no real interrupt flag to save.
type State struct {
	held bool
}

// Interrupts models critical-section entry/exit. Every critical section in
// this port (per-level FIFO mutation, signal bucket mutation, queue token
// mutation) is a leaf: it never calls back into Disable while already
// holding one, so a plain mutex — rather than a nestable counter — is
// sufficient and faithful to spec.md §5 ("the only true critical
// sections").
type Interrupts struct {
	mu      sync.Mutex
	onCtx   func()
	onAbort func(*errs.Error)
}

// New returns a ready Interrupts shim. onContext is invoked by
// RequestContext (normally the scheduler's Resume); onAbort is invoked by
// Abort (normally a panic, swappable in tests).
func New(onContext func(), onAbort func(*errs.Error)) *Interrupts {
	if onAbort == nil {
		onAbort = func(e *errs.Error) { panic(e) }
	}
	return &Interrupts{onCtx: onContext, onAbort: onAbort}
}

// Disable enters a critical section, returning a token for Restore.
func (p *Interrupts) Disable() State {
	p.mu.Lock()
	return State{held: true}
}

// Restore leaves the critical section entered by the matching Disable.
// Restoring a zero State is a no-op, matching the "maybe already disabled"
// calling convention some call sites use defensively.
func (p *Interrupts) Restore(s State) {
	if !s.held {
		return
	}
	p.mu.Unlock()
}

// MSB returns the index of the most significant set bit of word, or -1 if
// word is zero (spec.md §6).
func MSB(word uint64) int {
	if word == 0 {
		return -1
	}
	return bits.Len64(word) - 1
}

// RequestContext asks the platform to invoke resume() "soon" (spec.md §6).
// On bare metal this posts a software interrupt; here it calls straight
// through, which still satisfies every ordering property in spec.md §8
// since there is no lower-priority code in this process that the deferred
// delivery would need to yield to first.
func (p *Interrupts) RequestContext() {
	if p.onCtx != nil {
		p.onCtx()
	}
}

// Abort is terminal for unrecoverable errors (spec.md §6-7). The default
// installed by New panics with e; tests commonly install a capturing func
// with SetAbort instead so a single bad-input assertion doesn't crash the
// whole suite.
func (p *Interrupts) Abort(e *errs.Error) {
	p.onAbort(e)
}

// SetAbort swaps the abort policy, e.g. for tests that want to assert a
// specific Code was raised instead of letting the panic propagate.
func (p *Interrupts) SetAbort(f func(*errs.Error)) {
	p.onAbort = f
}
