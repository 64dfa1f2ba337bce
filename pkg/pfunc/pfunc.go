// Package pfunc stands in for the source's annotated-function /
// code-generation preprocessor (spec.md §6, §9): given a plain Go function
// of one argument, Declare builds the three artifacts the preprocessor
// would generate — a private worker (the caller's own function value), a
// per-signature frame constructor, and a public entry point that marshals
// the argument into a frame and hands it either directly to a
// Dispatcher (immediate/deferred scheduling) or to a Service (a signal,
// timer, or queue that releases the frame later).
//
// spec.md §9: "in a modern language this is just a constructor that builds
// the invocation frame and hands it to call/later." Declare is that
// constructor, generic over the pfunc's argument type so callers do not
// write a marshalling struct by hand for every signature.
package pfunc

import (
	"github.com/portos-dev/portos/pkg/frame"
	"github.com/portos-dev/portos/pkg/priority"
)

// Dispatcher is the subset of pkg/scheduler.Scheduler a declared pfunc
// needs: immediate-or-deferred invocation at a priority.
type Dispatcher interface {
	Call(f *frame.Frame, p priority.Level) error
}

// Service is anything that can hold a released frame until some condition
// fires and then re-submit it to a Dispatcher: pkg/signal.Waiter (built
// with Group.On) and pkg/queue.Queue implement this (spec.md §6, "the
// service owns the frame until release"). pkg/signal.Group and
// pkg/clock.Clock do not implement it themselves.
type Service interface {
	Defer(f *frame.Frame, p priority.Level) error
}

// Fn is a declared pfunc: a function of one argument that may be invoked
// immediately at a priority, or deferred to a Service.
type Fn[T any] struct {
	name string
	pool *frame.Pool
	body func(T)
}

// Declare builds a Fn wrapping body. name is used for debug frames.
func Declare[T any](pool *frame.Pool, name string, body func(T)) *Fn[T] {
	return &Fn[T]{name: name, pool: pool, body: body}
}

func (fn *Fn[T]) newFrame(arg T) (*frame.Frame, error) {
	return fn.pool.New(fn.name, arg, func(f *frame.Frame) {
		fn.body(f.Body().(T))
	})
}

// Call marshals arg into a frame and hands it to d at priority p — the
// "absence of a service-or-priority tag ⇒ immediate scheduling" path from
// spec.md §6.
func (fn *Fn[T]) Call(d Dispatcher, p priority.Level, arg T) error {
	f, err := fn.newFrame(arg)
	if err != nil {
		return err
	}
	return d.Call(f, p)
}

// Defer marshals arg into a frame and hands it to svc, which owns the
// frame until its release condition fires — the "presence of a service"
// path from spec.md §6 (attach to a signal, enqueue on a queue, or arm
// against a clock).
func (fn *Fn[T]) Defer(svc Service, p priority.Level, arg T) error {
	f, err := fn.newFrame(arg)
	if err != nil {
		return err
	}
	return svc.Defer(f, p)
}
