package common

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelLifecycle(t *testing.T) {
	c := NewChannel("test")
	assert.Equal(t, StateUninit, c.State())
	assert.False(t, c.IsAvailable())

	setups := 0
	setup := func() error { setups++; return nil }

	require.NoError(t, c.Open(setup))
	require.NoError(t, c.Open(setup))
	assert.Equal(t, 1, setups)
	assert.True(t, c.IsAvailable())

	teardowns := 0
	teardown := func() error { teardowns++; return nil }

	assert.True(t, c.Close(teardown))
	assert.False(t, c.Close(teardown))
	assert.Equal(t, 1, teardowns)
	assert.True(t, c.IsClosed())

	assert.ErrorIs(t, c.Open(setup), ErrChannelClosed)
	assert.Equal(t, 1, setups)
}

func TestChannelCloseBeforeOpen(t *testing.T) {
	c := NewChannel("test")
	assert.False(t, c.Close(func() error {
		t.Fatal("teardown must not run")
		return nil
	}))
	assert.Equal(t, StateUninit, c.State())
}

func TestChannelFailedSetupStaysUninit(t *testing.T) {
	c := NewChannel("test")
	boom := errors.New("bind failed")

	assert.ErrorIs(t, c.Open(func() error { return boom }), boom)
	assert.Equal(t, StateUninit, c.State())

	require.NoError(t, c.Open(nil))
	assert.True(t, c.IsAvailable())
}

func TestChannelTeardownErrorStillCloses(t *testing.T) {
	c := NewChannel("test")
	require.NoError(t, c.Open(nil))

	assert.True(t, c.Close(func() error { return errors.New("release failed") }))
	assert.True(t, c.IsClosed())
}

func TestChannelConcurrentTransitions(t *testing.T) {
	c := NewChannel("test")
	var setups, teardowns atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Open(func() error { setups.Add(1); return nil })
		}()
	}
	wg.Wait()

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Close(func() error { teardowns.Add(1); return nil })
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), setups.Load())
	assert.Equal(t, int32(1), teardowns.Load())
	assert.True(t, c.IsClosed())
}

func TestChannelStateString(t *testing.T) {
	assert.Equal(t, "UNINIT", StateUninit.String())
	assert.Equal(t, "ALIVE", StateAlive.String())
	assert.Equal(t, "CLOSE", StateClose.String())
	assert.Equal(t, "UNKNOWN", ChannelState(42).String())
}
