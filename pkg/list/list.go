// Package list is the intrusive doubly-linked circular list with a
// sentinel node described in spec.md §2. It backs the queue's waiter FIFO
// (pkg/queue); pkg/hash and pkg/signal keep their own chains and do not
// use it.
//
// Unlike a container/list-style list, Node is meant to be embedded inside
// the struct being linked (the "owner"); the list never allocates.
package list

// Node is the intrusive link. Embed it in the type being linked. Go has no
// container_of, so Payload carries the owning pointer back — set it once
// at construction and type-assert it after Front/Next/Do, the same shape
// as container/list.Element.Value.
type Node struct {
	Payload any

	next, prev *Node
}

// List is a circular, sentinel-headed doubly-linked list. The zero value
// is not ready to use; call Init first (or use New).
type List struct {
	sentinel Node
}

// New returns an initialized empty List.
func New() *List {
	l := &List{}
	l.Init()
	return l
}

// Init resets l to the empty state. Safe to call on a zero value.
func (l *List) Init() {
	l.sentinel.next = &l.sentinel
	l.sentinel.prev = &l.sentinel
}

// Empty reports whether the list has no linked nodes.
func (l *List) Empty() bool {
	return l.sentinel.next == &l.sentinel
}

// PushBack links n at the tail of the list. n must not already be linked
// into any list.
func (l *List) PushBack(n *Node) {
	last := l.sentinel.prev
	n.prev = last
	n.next = &l.sentinel
	last.next = n
	l.sentinel.prev = n
}

// PushFront links n at the head of the list.
func (l *List) PushFront(n *Node) {
	first := l.sentinel.next
	n.next = first
	n.prev = &l.sentinel
	first.prev = n
	l.sentinel.next = n
}

// Remove unlinks n from whichever list currently holds it. It is a no-op
// on an already-unlinked node (Node's zero value has nil links).
func (l *List) Remove(n *Node) {
	if n.prev == nil && n.next == nil {
		return
	}
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev = nil
	n.next = nil
}

// Linked reports whether n is currently linked into some list.
func Linked(n *Node) bool {
	return n.prev != nil || n.next != nil
}

// Front returns the first linked node, or nil if the list is empty.
func (l *List) Front() *Node {
	if l.Empty() {
		return nil
	}
	return l.sentinel.next
}

// Next returns the node following n, or nil if n is the last node before
// the sentinel.
func (l *List) Next(n *Node) *Node {
	if n.next == &l.sentinel {
		return nil
	}
	return n.next
}

// Do calls fn for every linked node in order, front to back. fn may remove
// the node it is called with (the next pointer is captured first), but
// must not remove any other node in the same pass.
func (l *List) Do(fn func(*Node)) {
	for n := l.Front(); n != nil; {
		next := l.Next(n)
		fn(n)
		n = next
	}
}
