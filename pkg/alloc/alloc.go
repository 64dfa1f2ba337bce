// Package alloc is the slab-style allocator spec.md §6 specifies at the
// boundary: alloc/free callable at any priority, O(1) expected, interrupt
// safe, double-free detected. It groups allocations into power-of-two size
// classes with a per-class free list (backed by sync.Pool, see DESIGN.md
// for why no third-party allocator library was warranted) and falls back
// to a plain heap allocation for anything larger than the biggest class.
package alloc

import (
	"sync"
	"sync/atomic"

	"github.com/portos-dev/portos/pkg/errs"
)

// defaultClasses are the size classes used when Config.Classes is empty:
// 16B covers a bare Frame header, up through 1KiB for larger marshalled
// argument sets.
var defaultClasses = []int{16, 32, 64, 128, 256, 512, 1024}

// Config configures an Allocator's size classes.
type Config struct {
	// Classes lists block sizes in ascending order. Each must be a power
	// of two. Empty uses defaultClasses.
	Classes []int
}

type class struct {
	size int
	pool sync.Pool
}

// Allocator is a slab allocator over a fixed set of size classes, plus a
// bump-style fallback (a plain make([]byte, n)) for requests larger than
// every class. alloc/free are interrupt-safe because sync.Pool's Get/Put
// are safe for concurrent use from any goroutine, which stands in for "any
// priority" on this hosted target.
type Allocator struct {
	classes []class

	mu      sync.Mutex
	live    map[*Block]int // size-class index, or -1 for bump fallback
	allocs  atomic.Int64
	frees   atomic.Int64
	current atomic.Int64
	peak    atomic.Int64
}

// Block is a handle to an allocated region. Its Bytes slice must not be
// retained past the matching Free call.
type Block struct {
	Bytes []byte
}

// New builds an Allocator from cfg. A zero Config uses defaultClasses.
func New(cfg Config) *Allocator {
	sizes := cfg.Classes
	if len(sizes) == 0 {
		sizes = defaultClasses
	}
	a := &Allocator{
		classes: make([]class, len(sizes)),
		live:    make(map[*Block]int),
	}
	for i, sz := range sizes {
		size := sz
		a.classes[i].size = size
		a.classes[i].pool.New = func() any {
			return &Block{Bytes: make([]byte, size)}
		}
	}
	return a
}

// classFor returns the index of the smallest class able to hold size, or
// -1 if size exceeds every class (bump-fallback territory).
func (a *Allocator) classFor(size int) int {
	for i, c := range a.classes {
		if size <= c.size {
			return i
		}
	}
	return -1
}

// Alloc returns a Block with size usable bytes. A negative size yields an
// errs.InvalidRegion error; every other request is served from a size
// class or the Go heap and succeeds. Alloc never returns errs.HeapFull and
// never returns (nil, nil).
func (a *Allocator) Alloc(size int) (*Block, error) {
	if size < 0 {
		return nil, errs.New(errs.InvalidRegion)
	}
	idx := a.classFor(size)
	var blk *Block
	if idx == -1 {
		blk = &Block{Bytes: make([]byte, size)}
	} else {
		blk = a.classes[idx].pool.Get().(*Block)
		if cap(blk.Bytes) < size {
			blk.Bytes = make([]byte, size)
		} else {
			blk.Bytes = blk.Bytes[:size]
		}
	}
	a.mu.Lock()
	a.live[blk] = idx
	a.mu.Unlock()

	a.allocs.Add(1)
	cur := a.current.Add(1)
	for {
		p := a.peak.Load()
		if cur <= p || a.peak.CompareAndSwap(p, cur) {
			break
		}
	}
	return blk, nil
}

// Free returns blk to its size class's pool (or simply drops it, for a
// bump-fallback allocation) and detects double-free: freeing a block this
// Allocator does not consider live raises errs.DoubleFree.
func (a *Allocator) Free(blk *Block) error {
	if blk == nil {
		return errs.New(errs.NullBlock)
	}
	a.mu.Lock()
	idx, ok := a.live[blk]
	if !ok {
		a.mu.Unlock()
		return errs.New(errs.DoubleFree)
	}
	delete(a.live, blk)
	a.mu.Unlock()

	a.frees.Add(1)
	a.current.Add(-1)
	if idx >= 0 {
		a.classes[idx].pool.Put(blk)
	}
	return nil
}

// Stats is a point-in-time snapshot of allocator activity, in the spirit
// of memgc/step2.go's printGCStats (DESIGN.md): a small set of counters
// worth watching under load, rather than a GC-style pause histogram this
// allocator has no need of.
type Stats struct {
	Allocs  int64
	Frees   int64
	Live    int64
	PeakLive int64
}

// Stats returns a snapshot of allocation activity.
func (a *Allocator) Stats() Stats {
	return Stats{
		Allocs:   a.allocs.Load(),
		Frees:    a.frees.Load(),
		Live:     a.current.Load(),
		PeakLive: a.peak.Load(),
	}
}
