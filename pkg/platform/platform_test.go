package platform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/portos-dev/portos/pkg/errs"
)

func TestMSB(t *testing.T) {
	require.Equal(t, -1, MSB(0))
	require.Equal(t, 0, MSB(1))
	require.Equal(t, 3, MSB(0b1011))
	require.Equal(t, 63, MSB(1<<63))
}

func TestDisableRestoreIsMutualExclusion(t *testing.T) {
	p := New(nil, nil)
	tok := p.Disable()
	unlocked := make(chan struct{})
	go func() {
		p.Disable()
		close(unlocked)
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-unlocked:
		t.Fatal("second Disable should not succeed while the first is held")
	default:
	}
	p.Restore(tok)
	<-unlocked
}

func TestRequestContextInvokesCallback(t *testing.T) {
	called := false
	p := New(func() { called = true }, nil)
	p.RequestContext()
	require.True(t, called)
}

func TestAbortUsesInstalledPolicy(t *testing.T) {
	var got *errs.Error
	p := New(nil, func(e *errs.Error) { got = e })
	e := errs.New(errs.BadPriority)
	p.Abort(e)
	require.Same(t, e, got)
}

func TestDefaultAbortPanics(t *testing.T) {
	p := New(nil, nil)
	require.Panics(t, func() {
		p.Abort(errs.New(errs.BadPriority))
	})
}
