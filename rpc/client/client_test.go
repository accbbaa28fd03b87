package client

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/restrpc/rpc/common"
	"github.com/ValentinKolb/restrpc/rpc/iface"
	"github.com/ValentinKolb/restrpc/rpc/stats"
	"github.com/ValentinKolb/restrpc/rpc/transport"
	rpchttp "github.com/ValentinKolb/restrpc/rpc/transport/http"
	"github.com/ValentinKolb/restrpc/rpc/transport/pool"
	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Test engine
// --------------------------------------------------------------------------

type echoService interface {
	Echo(msg string) (string, error)
	EchoNumber(n int) (string, error)
}

var echoDesc = iface.MustRegister[echoService](
	iface.WithName("client.test.Echo"),
	iface.Alias("EchoNumber", "Echo"),
)

type fakeEngine struct {
	proxies atomic.Int32
	invokes atomic.Int32
	closes  atomic.Int32
	invoke  func(inv *transport.Invocation) (any, error)
}

func (f *fakeEngine) Proxy(i *iface.Interface) transport.IRemoteProxy {
	f.proxies.Add(1)
	return &fakeProxy{engine: f, iface: i}
}

func (f *fakeEngine) Heartbeat(context.Context) error { return nil }

func (f *fakeEngine) Close() error {
	f.closes.Add(1)
	return errors.New("teardown failure is only logged")
}

type fakeProxy struct {
	engine *fakeEngine
	iface  *iface.Interface
}

func (p *fakeProxy) Interface() *iface.Interface { return p.iface }

func (p *fakeProxy) Invoke(_ context.Context, inv *transport.Invocation) (any, error) {
	p.engine.invokes.Add(1)
	if p.engine.invoke != nil {
		return p.engine.invoke(inv)
	}
	return "echo", nil
}

func newTestClient(t *testing.T, engine *fakeEngine, opts ...Option) *RestClient {
	u, err := common.ParseURL("rest://127.0.0.1:1?requestTimeout=200")
	require.NoError(t, err)

	opts = append([]Option{
		WithCollector(stats.NewRegistry()),
		WithEngineFactory(func(rpchttp.ClientConfig) transport.IClientEngine { return engine }),
	}, opts...)

	c, err := NewRestClient(u, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.Close()
		c.reaper.Shutdown()
	})
	return c
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

func TestCloseIsIdempotent(t *testing.T) {
	engine := &fakeEngine{}
	registry := stats.NewRegistry()
	c := newTestClient(t, engine, WithCollector(registry))

	assert.Equal(t, common.StateUninit, c.State())
	require.NoError(t, c.Open())
	require.NoError(t, c.Open())
	assert.True(t, c.IsAvailable())
	assert.True(t, registry.IsRegistered(c))

	require.NoError(t, c.Close())
	assert.True(t, c.IsClosed())
	require.NoError(t, c.Close())
	assert.True(t, c.IsClosed())

	assert.Equal(t, int32(1), engine.closes.Load())
	assert.False(t, registry.IsRegistered(c))
	assert.True(t, c.reaper.IsShutdown())

	assert.ErrorIs(t, c.Open(), common.ErrChannelClosed)
}

func TestCloseBeforeOpenIsNoop(t *testing.T) {
	engine := &fakeEngine{}
	c := newTestClient(t, engine)

	require.NoError(t, c.Close())
	assert.Equal(t, common.StateUninit, c.State())
	assert.Equal(t, int32(0), engine.closes.Load())

	// the client can still be opened
	require.NoError(t, c.Open())
	assert.True(t, c.IsAvailable())
}

func TestCloseTimeoutDrainsLeasedConnections(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	for _, tt := range []struct {
		name    string
		release bool
	}{
		{name: "released", release: true},
		{name: "timeout", release: false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			mock := clock.NewMock()
			c := newTestClient(t, &fakeEngine{}, WithClock(mock))
			require.NoError(t, c.Open())

			conn, err := c.Pool().Acquire(context.Background(), ln.Addr().String())
			require.NoError(t, err)

			closed := make(chan struct{})
			go func() {
				defer close(closed)
				_ = c.CloseTimeout(time.Minute)
			}()

			if tt.release {
				c.Pool().Release(conn, true)
			}

			require.Eventually(t, func() bool {
				mock.Add(10 * time.Second)
				select {
				case <-closed:
					return true
				default:
					return false
				}
			}, 5*time.Second, time.Millisecond)
			assert.True(t, c.IsClosed())
		})
	}
}

func TestRequestWhenNotAlive(t *testing.T) {
	engine := &fakeEngine{}
	c := newTestClient(t, engine)
	req := common.NewRequest(echoDesc.Name, "Echo", "hi")

	check := func() {
		resp, err := c.Request(context.Background(), req)
		assert.Nil(t, resp)
		assert.ErrorIs(t, err, common.ErrUnavailable)
		assert.Equal(t, common.KindUnavailable, common.ErrorKindOf(err))

		var se *common.ServiceError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "rest://127.0.0.1:1", se.Target)
		assert.Equal(t, req.RequestID, se.RequestID)

		assert.Error(t, c.Heartbeat(context.Background(), req))
		_, err = c.Proxy(echoDesc)
		assert.Error(t, err)
	}

	check()
	require.NoError(t, c.Open())
	require.NoError(t, c.Close())
	check()

	assert.Equal(t, int32(0), engine.invokes.Load())
	assert.Equal(t, pool.Stats{}, c.Pool().Stats())
}

// --------------------------------------------------------------------------
// Proxy cache
// --------------------------------------------------------------------------

func TestProxyCacheUnderRace(t *testing.T) {
	engine := &fakeEngine{}
	c := newTestClient(t, engine)
	require.NoError(t, c.Open())

	const callers = 32
	proxies := make([]transport.IRemoteProxy, callers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for n := 0; n < callers; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			<-start
			p, err := c.Proxy(echoDesc)
			if err == nil {
				proxies[n] = p
			}
		}(n)
	}
	close(start)
	wg.Wait()

	first := proxies[0]
	require.NotNil(t, first)
	for _, p := range proxies {
		assert.Same(t, first, p)
	}

	// later calls never create a proxy
	created := engine.proxies.Load()
	for n := 0; n < 10; n++ {
		_, err := c.Request(context.Background(), common.NewRequest(echoDesc.Name, "Echo", "hi"))
		require.NoError(t, err)
	}
	assert.Equal(t, created, engine.proxies.Load())
}

// --------------------------------------------------------------------------
// Requests
// --------------------------------------------------------------------------

func TestRequestResolvesByRuntimeType(t *testing.T) {
	engine := &fakeEngine{
		invoke: func(inv *transport.Invocation) (any, error) {
			return inv.Method.GoName, nil
		},
	}
	c := newTestClient(t, engine)
	require.NoError(t, c.Open())

	resp, err := c.Request(context.Background(), common.NewRequest(echoDesc.Name, "Echo", "hi"))
	require.NoError(t, err)
	assert.Equal(t, "Echo", resp.Value)

	resp, err = c.Request(context.Background(), common.NewRequest(echoDesc.Name, "Echo", 7))
	require.NoError(t, err)
	assert.Equal(t, "EchoNumber", resp.Value)

	req := common.NewRequest(echoDesc.Name, "Echo", 7)
	req.ParamDesc = "string"
	_, err = c.Request(context.Background(), req)
	assert.Equal(t, common.KindResolution, common.ErrorKindOf(err))
}

func TestRequestResolutionFailures(t *testing.T) {
	engine := &fakeEngine{}
	c := newTestClient(t, engine)
	require.NoError(t, c.Open())

	tests := []struct {
		name  string
		req   *common.Request
		cause error
	}{
		{"unknown interface", common.NewRequest("client.test.Missing", "Echo", "hi"), common.ErrUnknownType},
		{"unknown method", common.NewRequest(echoDesc.Name, "Shout", "hi"), common.ErrUnknownMethod},
		{"no matching overload", common.NewRequest(echoDesc.Name, "Echo", 1.5), common.ErrUnknownMethod},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := c.Request(context.Background(), tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.cause)
			assert.Equal(t, common.KindResolution, common.ErrorKindOf(err))
			require.NotNil(t, resp)
			assert.Equal(t, err, resp.Exception)
			assert.Nil(t, resp.Value)
		})
	}
	assert.Equal(t, int32(0), engine.invokes.Load())
}

func TestRequestIdAndAttachmentsRoundTrip(t *testing.T) {
	fail := atomic.Bool{}
	engine := &fakeEngine{
		invoke: func(inv *transport.Invocation) (any, error) {
			if fail.Load() {
				return nil, transport.NewCallError(common.KindInvocation, &common.RemoteError{Message: "remote failure"})
			}
			return "ok", nil
		},
	}
	c := newTestClient(t, engine)
	require.NoError(t, c.Open())

	for _, failing := range []bool{false, true} {
		fail.Store(failing)

		req := common.NewRequest(echoDesc.Name, "Echo", "hi")
		req.RequestID = "X"
		req.SetAttachment("k", "v")

		resp, err := c.Request(context.Background(), req)
		require.NotNil(t, resp)
		assert.Equal(t, "X", resp.RequestID)
		assert.Equal(t, map[string]string{"k": "v"}, resp.Attachments)

		if failing {
			assert.Equal(t, common.KindInvocation, common.ErrorKindOf(err))
			assert.Contains(t, err.Error(), "remote failure")
			assert.Contains(t, err.Error(), "requestId=X")
			assert.Equal(t, err, resp.Exception)
			assert.Nil(t, resp.Value)
		} else {
			require.NoError(t, err)
			assert.Equal(t, "ok", resp.Value)
			assert.Nil(t, resp.Exception)
		}
	}
}

func TestRequestCapacityError(t *testing.T) {
	engine := &fakeEngine{
		invoke: func(*transport.Invocation) (any, error) {
			return nil, pool.ErrPoolTimeout
		},
	}
	c := newTestClient(t, engine)
	require.NoError(t, c.Open())

	_, err := c.Request(context.Background(), common.NewRequest(echoDesc.Name, "Echo", "hi"))
	assert.Equal(t, common.KindCapacity, common.ErrorKindOf(err))
	assert.ErrorIs(t, err, pool.ErrPoolTimeout)
}

func TestRequestCapacityErrorOverHttp(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entered <- struct{}{}
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	u, err := common.ParseURL(strings.TrimPrefix(srv.URL, "http://") + "?maxClientConnection=1&requestTimeout=200")
	require.NoError(t, err)
	c, err := NewRestClient(u, WithCollector(stats.NewRegistry()))
	require.NoError(t, err)
	require.NoError(t, c.Open())
	defer c.Close()

	// the only connection stays leased by a call the server does not answer
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Request(context.Background(), common.NewRequest(echoDesc.Name, "Echo", "slow"))
	}()
	<-entered

	_, err = c.Request(context.Background(), common.NewRequest(echoDesc.Name, "Echo", "fast"))
	assert.Equal(t, common.KindCapacity, common.ErrorKindOf(err))
	assert.ErrorIs(t, err, pool.ErrPoolTimeout)

	<-done
}

func TestStatisticCallback(t *testing.T) {
	c := newTestClient(t, &fakeEngine{})
	require.NoError(t, c.Open())
	assert.Empty(t, c.StatisticCallback())

	_, err := c.Request(context.Background(), common.NewRequest(echoDesc.Name, "Echo", "hi"))
	require.NoError(t, err)
	assert.Contains(t, c.StatisticCallback(), "calls=1 errors=0")
}

// --------------------------------------------------------------------------
// Heartbeat (real http)
// --------------------------------------------------------------------------

func TestHeartbeat(t *testing.T) {
	var heads atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			heads.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	u, err := common.ParseURL(strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)
	c, err := NewRestClient(u, WithCollector(stats.NewRegistry()))
	require.NoError(t, err)
	require.NoError(t, c.Open())
	defer c.Close()

	req := common.NewRequest(echoDesc.Name, "Echo", "hi")
	require.NoError(t, c.Heartbeat(context.Background(), req))
	require.NoError(t, c.Heartbeat(context.Background(), req))
	assert.Equal(t, int32(2), heads.Load())
	assert.Equal(t, pool.Stats{Total: 1, Idle: 1}, c.Pool().Stats())
}

func TestInvalidSerialization(t *testing.T) {
	u, err := common.ParseURL("rest://127.0.0.1:1?serialization=xml")
	require.NoError(t, err)
	_, err = NewRestClient(u)
	assert.Error(t, err)
}
