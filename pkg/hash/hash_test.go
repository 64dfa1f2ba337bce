package hash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// bits80000000 and bits80000001 are the int32 values with bit patterns
// 0x80000000 and 0x80000001; Go rejects int32(0x80000000) as a constant
// overflow, so they are written as their negative equivalents.
const (
	bits80000000 int32 = -0x80000000
	bits80000001 int32 = -0x7FFFFFFF
)

func TestCmpWrapAround(t *testing.T) {
	require.Equal(t, -1, Cmp(0x7FFFFFFF, bits80000000))
	require.Equal(t, 1, Cmp(bits80000001, bits80000000))
	require.Equal(t, 0, Cmp(5, 5))
}

func TestInsertOrdersWithinBucketByValue(t *testing.T) {
	tab := New(1) // single bucket forces every insert into one value-sorted chain
	var a, b, c Item
	require.True(t, tab.Insert(bits80000001, &a))
	require.True(t, tab.Insert(0x7FFFFFFF, &b))
	require.True(t, tab.Insert(bits80000000, &c))

	// property P7: wrap-around ascending order within the bucket chain,
	// independent of insertion order.
	got := tab.Remove(0x7FFFFFFF)
	require.Equal(t, []*Item{&b}, got)
	got = tab.Remove(bits80000000)
	require.Equal(t, []*Item{&c}, got)
	got = tab.Remove(bits80000001)
	require.Equal(t, []*Item{&a}, got)
}

func TestInsertSameValueIsFIFO(t *testing.T) {
	tab := New(4)
	var a, b, c Item
	require.True(t, tab.Insert(2, &a))
	require.True(t, tab.Insert(2, &b))
	require.True(t, tab.Insert(2, &c))

	got := tab.Remove(2)
	require.Equal(t, []*Item{&a, &b, &c}, got)
}

func TestRemoveItemDetachesOnlyOne(t *testing.T) {
	tab := New(4)
	var a, b Item
	tab.Insert(1, &a)
	tab.Insert(1, &b)

	require.True(t, tab.RemoveItem(&a))
	require.False(t, a.Linked())
	require.True(t, b.Linked())

	got := tab.Remove(1)
	require.Equal(t, []*Item{&b}, got)
}

func TestRemoveItemFalseWhenNotLinked(t *testing.T) {
	tab := New(4)
	var a Item
	require.False(t, tab.RemoveItem(&a))
}

func TestNonPowerOfTwoRejectsOutOfRange(t *testing.T) {
	tab := New(5)
	require.True(t, tab.InRange(0))
	require.True(t, tab.InRange(4))
	require.False(t, tab.InRange(5))
	require.False(t, tab.InRange(-1))

	var a Item
	require.False(t, tab.Insert(5, &a))
}

func TestRemoveMissingValueReturnsNil(t *testing.T) {
	tab := New(4)
	require.Nil(t, tab.Remove(2))
}

func TestPtrTableAddRemoveContains(t *testing.T) {
	pt := NewPtrTable()
	p1, p2 := new(int), new(int)

	require.True(t, pt.Add(p1))
	require.False(t, pt.Add(p1)) // double-add
	require.True(t, pt.Add(p2))

	require.True(t, pt.Contains(p1))
	require.True(t, pt.Remove(p1))
	require.False(t, pt.Contains(p1))
	require.False(t, pt.Remove(p1)) // double-remove
}
