// Package sim is the randomized simulated-interrupt stress harness spec.md
// §8 calls for ("mirrors the source's own harness"): many goroutines race
// real scheduler calls against each other at random priorities, with
// random nesting, and the Result it returns is enough to check P2 and P8
// at quiescence. P1 (no overlapping pfuncs on one level) is not observed
// or checked by this harness.
//
// Grounded on original_source/test/miscLib.c's seeded pseudo-random
// sequence generator, reimplemented with math/rand/v2's PCG source instead
// of the original's LCG so a given Seed reproduces the same interrupt
// sequence across runs without any unseeded global state.
package sim

import (
	"context"
	"math/rand/v2"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/portos-dev/portos/pkg/alloc"
	"github.com/portos-dev/portos/pkg/frame"
	"github.com/portos-dev/portos/pkg/pfunc"
	"github.com/portos-dev/portos/pkg/priority"
	"github.com/portos-dev/portos/pkg/scheduler"
)

// Config parameterizes one run of the stress harness.
type Config struct {
	// Levels is the scheduler's priority level count.
	Levels int
	// Ops is the total number of top-level pfunc submissions across every
	// worker (spec.md §8: "20 000 pfunc calls"), rounded down to a multiple
	// of Concurrency.
	Ops int
	// Concurrency is the number of goroutines concurrently submitting
	// work, standing in for independent simulated interrupt sources.
	Concurrency int
	// MaxNest bounds how many levels of immediate, self-nested calls a
	// single invocation may trigger (spec.md §8: "random nesting").
	MaxNest int
	// Seed makes the run reproducible: the same Seed with the same Config
	// drives the same sequence of priorities and nesting decisions.
	Seed uint64
}

// Result summarizes one run, enough to check P2 (every submission
// eventually ran) and P8 (quiescence leaves nothing pending, no leak).
// Submitted counts top-level submissions and nested calls alike.
type Result struct {
	Submitted   int64
	Invoked     int64
	LiveBlocks  int64
	CurPriority priority.Level
	Bitmap      priority.Bitmap
}

// laterService adapts *scheduler.Scheduler to pkg/pfunc.Service by calling
// Later instead of Call, for workers exercising the deferred-enqueue path
// rather than immediate dispatch.
type laterService struct{ s *scheduler.Scheduler }

func (l laterService) Defer(f *frame.Frame, p priority.Level) error {
	return l.s.Later(f, p)
}

// Run drives cfg.Concurrency goroutines, each submitting its share of
// cfg.Ops top-level pfunc calls at random priorities via a mix of Call
// (immediate dispatch) and Later (deferred enqueue), and returns once
// every worker has finished and the scheduler has drained to quiescence.
func Run(ctx context.Context, cfg Config) (Result, error) {
	if cfg.Levels <= 0 {
		cfg.Levels = 16
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.Ops <= 0 {
		cfg.Ops = 20000
	}

	a := alloc.New(alloc.Config{})
	pool := frame.NewPool(a)
	sched, err := scheduler.New(scheduler.Config{Levels: cfg.Levels})
	if err != nil {
		return Result{}, err
	}

	var submitted, invoked atomic.Int64

	// fn is declared before assignment so its own trampoline can close
	// over it and issue further immediate calls — the "random nesting"
	// spec.md §8 asks for, bounded by the nest argument threaded through
	// each invocation.
	var fn *pfunc.Fn[int]
	fn = pfunc.Declare(pool, "sim.work", func(nest int) {
		invoked.Add(1)
		if nest <= 0 {
			return
		}
		cur := sched.CurPriority()
		next := cur + 1
		if int(next) >= cfg.Levels {
			next = cur
		}
		submitted.Add(1)
		_ = fn.Call(sched, next, nest-1)
	})

	g, gctx := errgroup.WithContext(ctx)
	perWorker := cfg.Ops / cfg.Concurrency
	for w := 0; w < cfg.Concurrency; w++ {
		w := w
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(cfg.Seed, uint64(w)))
			for i := 0; i < perWorker; i++ {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				p := priority.Level(rng.IntN(cfg.Levels))
				nest := rng.IntN(cfg.MaxNest + 1)
				submitted.Add(1)

				var err error
				if rng.IntN(2) == 0 {
					err = fn.Call(sched, p, nest)
				} else {
					err = fn.Defer(laterService{sched}, p, nest)
				}
				if err != nil {
					return err
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	// A worker's last Later() may have raced the scheduler back to BASE
	// just before this point; one more Resume() is a safe no-op if
	// everything already drained and closes that window deterministically.
	sched.Resume()

	dump := sched.Dump()
	return Result{
		Submitted:   submitted.Load(),
		Invoked:     invoked.Load(),
		LiveBlocks:  a.Stats().Live,
		CurPriority: dump.CurPriority,
		Bitmap:      dump.Bitmap,
	}, nil
}
