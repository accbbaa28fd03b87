package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/restrpc/rpc/client"
	"github.com/ValentinKolb/restrpc/rpc/common"
	"github.com/ValentinKolb/restrpc/rpc/iface"
	"github.com/ValentinKolb/restrpc/rpc/stats"
	"github.com/ValentinKolb/restrpc/rpc/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Test services
// --------------------------------------------------------------------------

type greeter interface {
	Greet(name string) (string, error)
	Repeat(ctx context.Context, name string, times int) (string, error)
	Fail(reason string) error
}

type greeterImpl struct{}

func (greeterImpl) Greet(name string) (string, error) {
	return "hello " + name, nil
}

func (greeterImpl) Repeat(_ context.Context, name string, times int) (string, error) {
	return strings.Repeat(name, times), nil
}

func (greeterImpl) Fail(reason string) error {
	return errors.New(reason)
}

type adder interface {
	Add(a, b int) (int, error)
}

type adderImpl struct{}

func (adderImpl) Add(a, b int) (int, error) {
	return a + b, nil
}

var (
	greeterDesc = iface.MustRegister[greeter](iface.WithName("server.test.Greeter"))
	adderDesc   = iface.MustRegister[adder](iface.WithName("server.test.Adder"))
)

func newProvider(t *testing.T, desc *iface.Interface, impl any) IProvider {
	p, err := NewProvider(desc, impl)
	require.NoError(t, err)
	return p
}

func newTestServer(t *testing.T, engine string, opts ...Option) *RestServer {
	u, err := common.ParseURL("rest://127.0.0.1:0?serverEngine=" + engine)
	require.NoError(t, err)

	opts = append([]Option{WithCollector(stats.NewRegistry())}, opts...)
	s, err := NewRestServer(u, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestClient(t *testing.T, s *RestServer, contextPath string) *client.RestClient {
	u, err := common.ParseURL(fmt.Sprintf("rest://%s?contextPath=%s", s.Addr(), contextPath))
	require.NoError(t, err)

	c, err := client.NewRestClient(u, client.WithCollector(stats.NewRegistry()))
	require.NoError(t, err)
	require.NoError(t, c.Open())
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// countingEngine counts Close calls of the engine it wraps
type countingEngine struct {
	transport.IServerEngine
	closes   atomic.Int32
	closeErr error
}

func (e *countingEngine) Close() error {
	e.closes.Add(1)
	return errors.Join(e.IServerEngine.Close(), e.closeErr)
}

func countingFactory(engine *countingEngine) EngineFactory {
	return func(u *common.URL) (transport.IServerEngine, error) {
		inner, err := DefaultEngineFactory(u)
		if err != nil {
			return nil, err
		}
		engine.IServerEngine = inner
		return engine, nil
	}
}

// --------------------------------------------------------------------------
// Provider
// --------------------------------------------------------------------------

func TestNewProviderRejectsForeignImplementation(t *testing.T) {
	_, err := NewProvider(greeterDesc, adderImpl{})
	assert.Error(t, err)

	_, err = NewProvider(greeterDesc, nil)
	assert.Error(t, err)
}

func TestProviderCall(t *testing.T) {
	p := newProvider(t, greeterDesc, greeterImpl{})

	tests := []struct {
		name      string
		req       *common.Request
		want      any
		wantError error
	}{
		{
			name: "resolve by arguments",
			req:  common.NewRequest(greeterDesc.Name, "Greet", "bob"),
			want: "hello bob",
		},
		{
			name: "resolve by descriptor",
			req: &common.Request{
				RequestID:     "1",
				InterfaceName: greeterDesc.Name,
				MethodName:    "Repeat",
				ParamDesc:     "string,int",
				Arguments:     []any{"ab", 3},
			},
			want: "ababab",
		},
		{
			name:      "unknown method",
			req:       common.NewRequest(greeterDesc.Name, "Wave", "bob"),
			wantError: common.ErrUnknownMethod,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := p.Call(context.Background(), tt.req)
			require.NotNil(t, resp)
			assert.Equal(t, tt.req.RequestID, resp.RequestID)
			if tt.wantError != nil {
				assert.ErrorIs(t, resp.Exception, tt.wantError)
				assert.Nil(t, resp.Value)
				return
			}
			require.NoError(t, resp.Exception)
			assert.Equal(t, tt.want, resp.Value)
		})
	}

	t.Run("method error", func(t *testing.T) {
		resp := p.Call(context.Background(), common.NewRequest(greeterDesc.Name, "Fail", "boom"))
		assert.EqualError(t, resp.Exception, "boom")
	})
}

// --------------------------------------------------------------------------
// RestServer
// --------------------------------------------------------------------------

func TestServerRoundTrip(t *testing.T) {
	for _, engine := range []string{"http", "fasthttp"} {
		t.Run(engine, func(t *testing.T) {
			var (
				mu       sync.Mutex
				received []*common.Request
			)
			record := func(next Handler) Handler {
				return func(ctx context.Context, req *common.Request) *common.Response {
					mu.Lock()
					received = append(received, req)
					mu.Unlock()
					return next(ctx, req)
				}
			}

			s := newTestServer(t, engine, WithFilters(record))
			require.NoError(t, s.Open())
			assert.True(t, s.IsBound())
			require.NoError(t, s.Deploy(newProvider(t, greeterDesc, greeterImpl{}), "/api"))
			assert.Equal(t, []string{greeterDesc.Name}, s.Deployed())

			c := newTestClient(t, s, "/api")

			req := common.NewRequest(greeterDesc.Name, "Greet", "bob")
			req.SetAttachment("trace", "t-1")
			resp, err := c.Request(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, "hello bob", resp.Value)

			resp, err = c.Request(context.Background(), common.NewRequest(greeterDesc.Name, "Repeat", "xy", 2))
			require.NoError(t, err)
			assert.Equal(t, "xyxy", resp.Value)

			_, err = c.Request(context.Background(), common.NewRequest(greeterDesc.Name, "Fail", "out of coffee"))
			require.Error(t, err)
			assert.Equal(t, common.KindInvocation, common.ErrorKindOf(err))
			assert.ErrorContains(t, err, "out of coffee")

			mu.Lock()
			defer mu.Unlock()
			require.Len(t, received, 3)
			assert.Equal(t, req.RequestID, received[0].RequestID)
			assert.Equal(t, "t-1", received[0].Attachments["trace"])
			assert.Equal(t, "string", received[0].ParamDesc)
		})
	}
}

func TestDeployRequiresOpenServer(t *testing.T) {
	s := newTestServer(t, "http")
	err := s.Deploy(newProvider(t, greeterDesc, greeterImpl{}), "")
	assert.ErrorIs(t, err, common.ErrUnavailable)
	assert.False(t, s.IsBound())
	assert.Nil(t, s.Addr())
}

func TestDeployTwiceFails(t *testing.T) {
	s := newTestServer(t, "http")
	require.NoError(t, s.Open())

	p := newProvider(t, greeterDesc, greeterImpl{})
	require.NoError(t, s.Deploy(p, ""))
	assert.Error(t, s.Deploy(p, "/other"))
}

func TestUndeployKeepsServerBound(t *testing.T) {
	s := newTestServer(t, "http")
	require.NoError(t, s.Open())

	greeterProvider := newProvider(t, greeterDesc, greeterImpl{})
	require.NoError(t, s.Deploy(greeterProvider, ""))
	require.NoError(t, s.Deploy(newProvider(t, adderDesc, adderImpl{}), ""))

	require.NoError(t, s.Undeploy(greeterProvider))
	assert.True(t, s.IsBound())
	assert.Equal(t, []string{adderDesc.Name}, s.Deployed())

	c := newTestClient(t, s, "")

	_, err := c.Request(context.Background(), common.NewRequest(greeterDesc.Name, "Greet", "bob"))
	assert.Equal(t, common.KindResolution, common.ErrorKindOf(err))

	resp, err := c.Request(context.Background(), common.NewRequest(adderDesc.Name, "Add", 2, 3))
	require.NoError(t, err)
	assert.EqualValues(t, 5, resp.Value)

	assert.Error(t, s.Undeploy(greeterProvider))
}

func TestServerCloseIsIdempotent(t *testing.T) {
	registry := stats.NewRegistry()
	engine := &countingEngine{}
	s := newTestServer(t, "fasthttp", WithCollector(registry), WithEngineFactory(countingFactory(engine)))

	require.NoError(t, s.Open())
	require.NoError(t, s.Open())
	assert.True(t, registry.IsRegistered(s))
	require.NoError(t, s.Deploy(newProvider(t, greeterDesc, greeterImpl{}), ""))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.True(t, s.IsClosed())
	assert.False(t, s.IsBound())
	assert.Empty(t, s.Deployed())
	assert.False(t, registry.IsRegistered(s))
	assert.EqualValues(t, 1, engine.closes.Load())

	assert.ErrorIs(t, s.Open(), common.ErrChannelClosed)
}

func TestServerCloseReturnsEngineError(t *testing.T) {
	closeErr := errors.New("listener already gone")
	engine := &countingEngine{closeErr: closeErr}
	s := newTestServer(t, "http", WithEngineFactory(countingFactory(engine)))
	require.NoError(t, s.Open())

	assert.ErrorIs(t, s.Close(), closeErr)
	assert.True(t, s.IsClosed())
	assert.Equal(t, common.StateClose, s.State())

	// the second close is a no-op
	assert.NoError(t, s.Close())
	assert.EqualValues(t, 1, engine.closes.Load())
}

func TestServerRequestIsUnsupported(t *testing.T) {
	s := newTestServer(t, "http")
	resp, err := s.Request(context.Background(), common.NewRequest(greeterDesc.Name, "Greet", "bob"))
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, common.ErrUnsupported)
}

func TestUnknownEngine(t *testing.T) {
	u, err := common.ParseURL("rest://127.0.0.1:0?serverEngine=grpc")
	require.NoError(t, err)
	_, err = NewRestServer(u)
	assert.ErrorContains(t, err, "unknown server engine")
}

func TestInvocationHandlerGeneratesRequestId(t *testing.T) {
	var seen *common.Request
	capture := func(next Handler) Handler {
		return func(ctx context.Context, req *common.Request) *common.Response {
			seen = req
			return next(ctx, req)
		}
	}
	s := newTestServer(t, "http", WithFilters(capture))

	m, err := greeterDesc.ResolveDesc("Greet", "string")
	require.NoError(t, err)

	invoke := s.invocationHandler(newProvider(t, greeterDesc, greeterImpl{}))
	value, err := invoke(context.Background(), &transport.InboundCall{
		Interface: greeterDesc,
		Method:    m,
		Args:      []any{"eve"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello eve", value)

	require.NotNil(t, seen)
	assert.NotEmpty(t, seen.RequestID)
	assert.Contains(t, s.StatisticCallback(), "calls=1")
}

func TestFilterChainOrder(t *testing.T) {
	var order []string
	named := func(name string) Filter {
		return func(next Handler) Handler {
			return func(ctx context.Context, req *common.Request) *common.Response {
				order = append(order, name)
				return next(ctx, req)
			}
		}
	}
	h := chain(func(_ context.Context, req *common.Request) *common.Response {
		order = append(order, "provider")
		return common.NewResponse(req)
	}, []Filter{named("outer"), named("inner"), AttachmentFilter(map[string]string{"env": "test"})})

	req := common.NewRequest(greeterDesc.Name, "Greet", "bob")
	req.SetAttachment("env", "prod")
	resp := AccessLogFilter(h)(context.Background(), req)

	assert.Equal(t, []string{"outer", "inner", "provider"}, order)
	assert.Equal(t, "prod", resp.Attachments["env"])
}
