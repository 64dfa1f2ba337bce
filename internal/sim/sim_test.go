package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/portos-dev/portos/pkg/priority"
)

// TestRunDrainsToQuiescence is spec.md §8's randomized stress scenario
// (scaled down for test runtime): every submitted pfunc eventually runs
// exactly once (P2), no allocator block leaks, and the scheduler settles
// back to BASE with an empty bitmap (P8).
func TestRunDrainsToQuiescence(t *testing.T) {
	res, err := Run(context.Background(), Config{
		Levels:      8,
		Ops:         2000,
		Concurrency: 4,
		MaxNest:     3,
		Seed:        1,
	})
	require.NoError(t, err)

	require.Equal(t, res.Submitted, res.Invoked)
	require.Zero(t, res.LiveBlocks)
	require.Equal(t, priority.BASE, res.CurPriority)
	require.Equal(t, priority.Bitmap(0), res.Bitmap)
}

// TestRunIsReproducibleForASeed checks that two runs with the same Seed
// and Config submit and invoke the same number of pfuncs; the invocation
// count depends on the seeded nesting decisions.
func TestRunIsReproducibleForASeed(t *testing.T) {
	cfg := Config{Levels: 6, Ops: 600, Concurrency: 3, MaxNest: 2, Seed: 42}

	a, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	b, err := Run(context.Background(), cfg)
	require.NoError(t, err)

	require.Equal(t, a.Submitted, b.Submitted)
	require.Equal(t, a.Invoked, b.Invoked)
}

func TestRunRejectsNothingWithZeroedConfig(t *testing.T) {
	res, err := Run(context.Background(), Config{Ops: 100, Concurrency: 2, Seed: 7})
	require.NoError(t, err)
	require.Equal(t, res.Submitted, res.Invoked)
}

func TestRunHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, Config{Levels: 4, Ops: 10000, Concurrency: 4, Seed: 3})
	require.Error(t, err)
}
