package priority

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBitmapSetClearTest(t *testing.T) {
	var b Bitmap
	require.False(t, b.Test(3))
	b.Set(3)
	require.True(t, b.Test(3))
	b.Clear(3)
	require.False(t, b.Test(3))
}

func TestBitmapHighest(t *testing.T) {
	var b Bitmap
	require.Equal(t, BASE, b.Highest())

	b.Set(2)
	b.Set(5)
	b.Set(1)
	require.Equal(t, Level(5), b.Highest())

	b.Clear(5)
	require.Equal(t, Level(2), b.Highest())
}

func TestValid(t *testing.T) {
	require.True(t, Valid(0, 8))
	require.True(t, Valid(7, 8))
	require.False(t, Valid(8, 8))
	require.False(t, Valid(-2, 8))
	require.False(t, Valid(BASE, 8))
}
