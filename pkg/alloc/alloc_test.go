package alloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/portos-dev/portos/pkg/errs"
)

func TestAllocFreeRoundTrip(t *testing.T) {
	a := New(Config{})
	blk, err := a.Alloc(10)
	require.NoError(t, err)
	require.Len(t, blk.Bytes, 10)

	require.NoError(t, a.Free(blk))
	stats := a.Stats()
	require.EqualValues(t, 1, stats.Allocs)
	require.EqualValues(t, 1, stats.Frees)
	require.EqualValues(t, 0, stats.Live)
}

func TestDoubleFreeDetected(t *testing.T) {
	a := New(Config{})
	blk, err := a.Alloc(16)
	require.NoError(t, err)
	require.NoError(t, a.Free(blk))

	err = a.Free(blk)
	require.Error(t, err)
	var target *errs.Error
	require.ErrorAs(t, err, &target)
	require.Equal(t, errs.DoubleFree, target.Code)
}

func TestFreeNullBlock(t *testing.T) {
	a := New(Config{})
	err := a.Free(nil)
	require.Error(t, err)
	var target *errs.Error
	require.ErrorAs(t, err, &target)
	require.Equal(t, errs.NullBlock, target.Code)
}

func TestBumpFallbackForOversizedRequest(t *testing.T) {
	a := New(Config{Classes: []int{16, 32}})
	blk, err := a.Alloc(1000)
	require.NoError(t, err)
	require.Len(t, blk.Bytes, 1000)
	require.NoError(t, a.Free(blk))
}

func TestPeakLiveTracksHighWaterMark(t *testing.T) {
	a := New(Config{})
	b1, _ := a.Alloc(16)
	b2, _ := a.Alloc(16)
	require.NoError(t, a.Free(b1))
	b3, _ := a.Alloc(16)
	_ = b3

	stats := a.Stats()
	require.EqualValues(t, 2, stats.PeakLive)
	require.EqualValues(t, 1, stats.Live)

	require.NoError(t, a.Free(b2))
	require.NoError(t, a.Free(b3))
}

func TestReusedBlockHasRequestedLength(t *testing.T) {
	a := New(Config{Classes: []int{16}})
	b1, err := a.Alloc(16)
	require.NoError(t, err)
	require.NoError(t, a.Free(b1))

	b2, err := a.Alloc(4)
	require.NoError(t, err)
	require.Len(t, b2.Bytes, 4)
}
