package portlog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/portos-dev/portos/pkg/errs"
)

func TestNewRingRejectsNonPositiveCapacity(t *testing.T) {
	_, err := NewRing(0)
	require.Error(t, err)
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, errs.LogSize, e.Code)

	_, err = NewRing(-1)
	require.Error(t, err)
}

func TestLoggerRecordsEntriesInOrder(t *testing.T) {
	r, err := NewRing(4)
	require.NoError(t, err)

	log := r.Logger()
	log.Info("one")
	log.Info("two")
	log.Info("three")

	require.Equal(t, 3, r.Len())
	msgs := messages(r.Snapshot())
	require.Equal(t, []string{"one", "two", "three"}, msgs)
}

// TestRingOverwritesOldestWhenFull matches the source's po_log ring-buffer
// semantics: once full, the oldest entry is dropped rather than an error
// being raised.
func TestRingOverwritesOldestWhenFull(t *testing.T) {
	r, err := NewRing(3)
	require.NoError(t, err)

	log := r.Logger()
	log.Info("a")
	log.Info("b")
	log.Info("c")
	log.Info("d")

	require.Equal(t, 3, r.Len())
	require.Equal(t, []string{"b", "c", "d"}, messages(r.Snapshot()))
}

func messages(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}
