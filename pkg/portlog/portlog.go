// Package portlog is the host-side counterpart to the source's po_log
// fixed-size ring buffer (spec.md §1-§2): a bounded-capacity log sink, built
// on top of go.uber.org/zap so every component gets structured, leveled
// logging instead of fmt.Printf (see DESIGN.md).
package portlog

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/portos-dev/portos/pkg/errs"
)

// Entry is one recorded log line, retained for inspection through Snapshot
// (cmd/portosctl prints the retained entries after each subcommand).
type Entry struct {
	Level   zapcore.Level
	Message string
	Fields  []zapcore.Field
}

// Ring is a fixed-capacity circular buffer of Entry, implementing
// zapcore.Core so it can be the backing store for a *zap.Logger. When full,
// the oldest entry is overwritten — exactly the source's ring-buffer
// semantics — rather than raising LogSize; LogSize is reserved for NewRing's
// cap validation (a ring buffer with zero capacity cannot record anything).
type Ring struct {
	mu       sync.Mutex
	entries  []Entry
	head     int
	size     int
	cap      int
	minLevel zapcore.Level
}

// NewRing builds a Ring of the given capacity. cap must be positive.
func NewRing(cap int) (*Ring, error) {
	if cap <= 0 {
		return nil, errs.New(errs.LogSize)
	}
	return &Ring{entries: make([]Entry, cap), cap: cap, minLevel: zapcore.DebugLevel}, nil
}

// Logger builds a *zap.Logger backed by this ring.
func (r *Ring) Logger() *zap.Logger {
	return zap.New(r)
}

// Enabled implements zapcore.Core.
func (r *Ring) Enabled(lvl zapcore.Level) bool {
	return lvl >= r.minLevel
}

// With implements zapcore.Core; the ring does not pre-bind fields, it
// records whatever Write is given.
func (r *Ring) With(fields []zapcore.Field) zapcore.Core {
	return r
}

// Check implements zapcore.Core.
func (r *Ring) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if r.Enabled(ent.Level) {
		return ce.AddCore(ent, r)
	}
	return ce
}

// Write implements zapcore.Core, appending to the ring (overwriting the
// oldest entry once full).
func (r *Ring) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := (r.head + r.size) % r.cap
	if r.size == r.cap {
		idx = r.head
		r.head = (r.head + 1) % r.cap
	} else {
		r.size++
	}
	r.entries[idx] = Entry{Level: ent.Level, Message: ent.Message, Fields: fields}
	return nil
}

// Sync implements zapcore.Core; the ring is in-memory only.
func (r *Ring) Sync() error { return nil }

// Snapshot returns the currently retained entries, oldest first.
func (r *Ring) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.entries[(r.head+i)%r.cap]
	}
	return out
}

// Len reports how many entries are currently retained.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}
