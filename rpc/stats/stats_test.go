package stats

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedCallback struct {
	snapshot string
}

func (f *fixedCallback) StatisticCallback() string {
	return f.snapshot
}

func TestRegistryRegisterUnregister(t *testing.T) {
	r := NewRegistry()
	a := &fixedCallback{snapshot: "a"}
	b := &fixedCallback{snapshot: "b"}

	r.Register(a)
	r.Register(a)
	r.Register(b)
	r.Register(nil)
	assert.Equal(t, 2, r.Len())
	assert.True(t, r.IsRegistered(a))

	r.Unregister(a)
	r.Unregister(a)
	r.Unregister(&fixedCallback{snapshot: "a"})
	assert.Equal(t, 1, r.Len())
	assert.False(t, r.IsRegistered(a))
	assert.Equal(t, []string{"b"}, r.Collect())
}

func TestRegistryCollectSkipsEmptySnapshots(t *testing.T) {
	r := NewRegistry()
	r.Register(&fixedCallback{snapshot: "first"})
	r.Register(&fixedCallback{})
	r.Register(&fixedCallback{snapshot: "last"})

	assert.Equal(t, []string{"first", "last"}, r.Collect())
}

func TestRegistryRunStopsWithContext(t *testing.T) {
	defer leaktest.Check(t)()

	r := NewRegistry()
	r.Register(&fixedCallback{snapshot: "x"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, time.Millisecond)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestEndpointStats(t *testing.T) {
	s := NewEndpointStats("rest://127.0.0.1:8002")
	assert.Empty(t, s.Snapshot())

	s.Observe(2*time.Millisecond, nil)
	s.Observe(4*time.Millisecond, errors.New("boom"))

	assert.Equal(t, int64(2), s.Calls())
	assert.Equal(t, int64(1), s.Errors())

	snapshot := s.Snapshot()
	assert.True(t, strings.HasPrefix(snapshot, "rest://127.0.0.1:8002 calls=2 errors=1"), snapshot)
	assert.Contains(t, snapshot, "max=4ms")
}

func TestCounters(t *testing.T) {
	before := OpenEndpoints()
	EndpointOpened()
	assert.Equal(t, before+1, OpenEndpoints())
	EndpointClosed()
	assert.Equal(t, before, OpenEndpoints())

	RequestDone(SideClient, nil)
	RequestDone(SideServer, errors.New("failed"))

	var buf bytes.Buffer
	WritePrometheus(&buf)
	out := buf.String()
	require.NotEmpty(t, out)
	assert.Contains(t, out, `restrpc_requests_total{side="client",result="ok"}`)
	assert.Contains(t, out, `restrpc_requests_total{side="server",result="error"}`)
	assert.Contains(t, out, "restrpc_endpoints_open")
}
