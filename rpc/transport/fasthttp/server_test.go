package fasthttp

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/ValentinKolb/restrpc/rpc/common"
	"github.com/ValentinKolb/restrpc/rpc/iface"
	"github.com/ValentinKolb/restrpc/rpc/serializer"
	"github.com/ValentinKolb/restrpc/rpc/transport"
	rpchttp "github.com/ValentinKolb/restrpc/rpc/transport/http"
	"github.com/ValentinKolb/restrpc/rpc/transport/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter interface {
	Add(name string, delta int) (map[string]int, error)
	Fail() error
}

type counterImpl struct {
	values map[string]int
}

func (c *counterImpl) Add(name string, delta int) (map[string]int, error) {
	c.values[name] += delta
	return c.values, nil
}

func (c *counterImpl) Fail() error {
	return errors.New("counter failed")
}

func TestFasthttpEngineRoundTrip(t *testing.T) {
	desc, err := iface.Of[counter](iface.WithName("test.Counter"))
	require.NoError(t, err)

	server := NewFasthttpServerEngine(true)
	require.NoError(t, server.Open("127.0.0.1:0"))
	defer server.Close()

	impl := reflect.ValueOf(&counterImpl{values: map[string]int{}})
	var attachments map[string]string
	require.NoError(t, server.Deploy(transport.Resource{
		Interface: desc,
		Invoke: func(ctx context.Context, call *transport.InboundCall) (any, error) {
			attachments = call.Attachments
			return call.Method.Call(ctx, impl, call.Args)
		},
	}, "/ctx/"))

	p := pool.NewPool(pool.Config{})
	defer p.Close()
	client := rpchttp.NewHttpClientEngine(rpchttp.ClientConfig{
		BaseURL:        "http://" + server.Addr().String(),
		ContextPath:    "ctx",
		Serializer:     serializer.NewJSONSerializer(),
		RequestTimeout: time.Second,
		Transport:      pool.NewTransport(p),
	})
	defer client.Close()
	proxy := client.Proxy(desc)

	call := func(method string, args ...any) (any, error) {
		m, err := desc.Resolve(method, args)
		require.NoError(t, err)
		return proxy.Invoke(context.Background(), &transport.Invocation{
			RequestID:   "id-1",
			Method:      m,
			Args:        args,
			Attachments: map[string]string{"tenant": "a"},
		})
	}

	res, err := call("Add", "x", 2)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"x": 2}, res)
	assert.Equal(t, map[string]string{"tenant": "a"}, attachments)

	res, err = call("Add", "x", 3)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"x": 5}, res)

	_, err = call("Fail")
	var callErr *transport.CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, common.KindInvocation, callErr.Kind)

	assert.NoError(t, client.Heartbeat(context.Background()))
	assert.Equal(t, 1, p.Stats().Total)

	require.NoError(t, server.Undeploy(desc.Name))
	_, err = call("Fail")
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, common.KindResolution, callErr.Kind)
}

func TestFasthttpEngineCloseIsIdempotent(t *testing.T) {
	server := NewFasthttpServerEngine(false)
	assert.Nil(t, server.Addr())
	require.NoError(t, server.Open("127.0.0.1:0"))
	assert.Error(t, server.Open("127.0.0.1:0"))
	require.NoError(t, server.Close())
	require.NoError(t, server.Close())
}
