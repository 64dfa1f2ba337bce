// Package hash implements the bucketed value-keyed index described in
// spec.md §4.5: M buckets, each a value-sorted chain of nodes, each node
// owning the (possibly several) items that share that integer value.
// Ordering within a bucket's chain uses the signed wrap-around
// comparison spec.md requires so timestamp-like keys can roll over
// (property P7).
//
// The source avoids a per-iteration bound check by giving each table a
// "dummy" node whose value is one past whatever is being searched for, so
// an insertion/lookup loop can run unconditionally until it hits the
// dummy. That trick buys a C implementation a branch; in Go the ordinary
// nil-terminated walk below is just as fast and a good deal more readable,
// so this port keeps the value-sorted chain and wrap-around comparison but
// drops the dummy-sentinel bound-check-avoidance device.
package hash

import "sync"

// Cmp implements the signed, wrap-around-safe comparison spec.md §4.5 and
// property P7 require: cmp(a,b) < 0 iff (a - b) < 0 in two's complement.
func Cmp(a, b int32) int {
	d := a - b
	switch {
	case d < 0:
		return -1
	case d > 0:
		return 1
	default:
		return 0
	}
}

// Item is an intrusive entry keyed by an integer value. Embed Item in the
// type being indexed (mirrored by pkg/signal's internal handle) and use it
// only through the Table that holds it.
type Item struct {
	// Payload is the owning record, set by the caller before Insert and
	// read back from the slice Remove hands out. Go has no
	// container_of; this is the idiomatic stand-in (the same shape as
	// container/list.Element.Value).
	Payload any

	owner      *bucketNode
	next, prev *Item // doubly-linked within owner's items chain
}

// Value reports the key the item is currently indexed under, or 0 if the
// item is not in any table.
func (it *Item) Value() int32 {
	if it.owner == nil {
		return 0
	}
	return it.owner.value
}

// Linked reports whether the item is currently indexed.
func (it *Item) Linked() bool {
	return it.owner != nil
}

// bucketNode is one value's worth of items within a bucket's sorted chain.
type bucketNode struct {
	value      int32
	next       *bucketNode // singly-linked, sorted within the bucket
	first, last *Item       // doubly-linked FIFO of items sharing value
}

func (n *bucketNode) empty() bool { return n.first == nil }

func (n *bucketNode) pushBack(it *Item) {
	it.next = nil
	it.prev = n.last
	if n.last == nil {
		n.first = it
	} else {
		n.last.next = it
	}
	n.last = it
	it.owner = n
}

func (n *bucketNode) remove(it *Item) {
	if it.prev != nil {
		it.prev.next = it.next
	} else {
		n.first = it.next
	}
	if it.next != nil {
		it.next.prev = it.prev
	} else {
		n.last = it.prev
	}
	it.next, it.prev, it.owner = nil, nil, nil
}

func (n *bucketNode) detachAll() []*Item {
	var out []*Item
	for it := n.first; it != nil; {
		next := it.next
		it.next, it.prev, it.owner = nil, nil, nil
		out = append(out, it)
		it = next
	}
	n.first, n.last = nil, nil
	return out
}

// Table is a closed hash table with M buckets. Power-of-two M is
// preferred (fast masking); a non-power-of-two M restricts values to
// [0, M) and is checked on every Insert/Remove.
type Table struct {
	buckets []*bucketNode
	m       int32
	pow2    bool
}

// New builds a Table with m buckets. Pass a power of two for m for the
// fast `value & (m-1)` bucket selection spec.md §3 describes; any other
// positive m is accepted but requires values to stay within [0, m).
func New(m int) *Table {
	if m <= 0 {
		m = 1
	}
	return &Table{
		buckets: make([]*bucketNode, m),
		m:       int32(m),
		pow2:    m&(m-1) == 0,
	}
}

// BucketOccupancy returns, for each of the table's M buckets, the number
// of items currently indexed there — used by pkg/signal's diagnostic dump
// (original_source/src/po_display.c, SPEC_FULL.md §3).
func (t *Table) BucketOccupancy() []int {
	out := make([]int, len(t.buckets))
	for i, n := range t.buckets {
		count := 0
		for ; n != nil; n = n.next {
			for it := n.first; it != nil; it = it.next {
				count++
			}
		}
		out[i] = count
	}
	return out
}

// index computes the bucket for value, or ok=false if value is out of
// range for a non-power-of-two table (spec.md §4.2's *OOR errors).
func (t *Table) index(value int32) (int32, bool) {
	if t.pow2 {
		return value & (t.m - 1), true
	}
	if value < 0 || value >= t.m {
		return 0, false
	}
	return value, true
}

// InRange reports whether value is a legal key for this table.
func (t *Table) InRange(value int32) bool {
	_, ok := t.index(value)
	return ok
}

func (t *Table) findNode(idx, value int32) (prev, cur *bucketNode) {
	cur = t.buckets[idx]
	for cur != nil && Cmp(cur.value, value) < 0 {
		prev = cur
		cur = cur.next
	}
	return prev, cur
}

// Insert links it under value, preserving bucket-chain order by value and
// FIFO order among items sharing a value (spec.md §4.2's post-order
// guarantee, property P5).
func (t *Table) Insert(value int32, it *Item) bool {
	idx, ok := t.index(value)
	if !ok {
		return false
	}
	prev, cur := t.findNode(idx, value)
	if cur == nil || Cmp(cur.value, value) != 0 {
		n := &bucketNode{value: value, next: cur}
		if prev == nil {
			t.buckets[idx] = n
		} else {
			prev.next = n
		}
		cur = n
	}
	cur.pushBack(it)
	return true
}

// Remove detaches every item currently indexed under value and returns
// them as a plain slice in attachment order. The bucket node itself is
// unlinked from the chain.
func (t *Table) Remove(value int32) []*Item {
	idx, ok := t.index(value)
	if !ok {
		return nil
	}
	prev, cur := t.findNode(idx, value)
	if cur == nil || Cmp(cur.value, value) != 0 {
		return nil
	}
	if prev == nil {
		t.buckets[idx] = cur.next
	} else {
		prev.next = cur.next
	}
	return cur.detachAll()
}

// RemoveItem detaches a single item from whatever bucket node owns it,
// without disturbing sibling items that share the same value. Used by
// detach() to cancel one waiter without touching others attached to the
// same key (spec.md §4.2).
func (t *Table) RemoveItem(it *Item) bool {
	n := it.owner
	if n == nil {
		return false
	}
	n.remove(it)
	if n.empty() {
		t.unlinkNode(n)
	}
	return true
}

func (t *Table) unlinkNode(n *bucketNode) {
	idx, ok := t.index(n.value)
	if !ok {
		return
	}
	prev, cur := t.findNode(idx, n.value)
	if cur != n {
		return
	}
	if prev == nil {
		t.buckets[idx] = cur.next
	} else {
		prev.next = cur.next
	}
}

// PtrTable is the supplemental pointer-keyed variant described in
// original_source/src/po_hashp.c: an index keyed by pointer identity
// rather than the ordered integer Table above uses, for callers that only
// need "have I seen this address before" in O(1). Go's map already hashes
// pointer-shaped comparable keys natively, so unlike Table there is no
// bucket-chain structure to hand-roll here — PtrTable is a thin,
// safe-for-concurrent-use wrapper rather than a reimplementation of
// po_hashp.c's bucket array.
type PtrTable struct {
	mu   sync.Mutex
	live map[any]struct{}
}

// NewPtrTable builds an empty PtrTable.
func NewPtrTable() *PtrTable {
	return &PtrTable{live: make(map[any]struct{})}
}

// Add records ptr as known-live. Returns false if ptr was already present
// (a double-add, which pkg/queue treats as a corrupt admission set).
func (t *PtrTable) Add(ptr any) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.live[ptr]; ok {
		return false
	}
	t.live[ptr] = struct{}{}
	return true
}

// Remove drops ptr. Returns false if ptr was not present (a double-free
// / double-release).
func (t *PtrTable) Remove(ptr any) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.live[ptr]; !ok {
		return false
	}
	delete(t.live, ptr)
	return true
}

// Contains reports whether ptr is currently recorded as live.
func (t *PtrTable) Contains(ptr any) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.live[ptr]
	return ok
}
