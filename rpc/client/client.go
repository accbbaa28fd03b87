package client

import (
	"context"
	"time"

	"github.com/ValentinKolb/restrpc/rpc/common"
	"github.com/ValentinKolb/restrpc/rpc/iface"
	"github.com/ValentinKolb/restrpc/rpc/serializer"
	"github.com/ValentinKolb/restrpc/rpc/stats"
	"github.com/ValentinKolb/restrpc/rpc/transport"
	rpchttp "github.com/ValentinKolb/restrpc/rpc/transport/http"
	"github.com/ValentinKolb/restrpc/rpc/transport/pool"
	"github.com/benbjohnson/clock"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/multierr"
)

var Logger = logger.GetLogger("rpc/client")

// drainPollInterval is the period in which CloseTimeout checks for leased connections
const drainPollInterval = 10 * time.Millisecond

// -----------------------------------------------------------
// Options
// -----------------------------------------------------------

// EngineFactory creates the outbound engine when the client is opened
type EngineFactory func(config rpchttp.ClientConfig) transport.IClientEngine

// Option configures a RestClient
type Option func(*options)

type options struct {
	engineFactory EngineFactory
	collector     stats.ICollector
	clock         clock.Clock
	reaper        pool.ReaperOptions
}

// WithEngineFactory replaces the net/http outbound engine
func WithEngineFactory(f EngineFactory) Option {
	return func(o *options) {
		o.engineFactory = f
	}
}

// WithCollector sets the statistics collector the client registers with while it is open
func WithCollector(c stats.ICollector) Option {
	return func(o *options) {
		o.collector = c
	}
}

// WithClock sets the time source of the connection pool and the reaper
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithReaperOptions configures the idle connection reaper
func WithReaperOptions(r pool.ReaperOptions) Option {
	return func(o *options) {
		o.reaper = r
	}
}

// -----------------------------------------------------------
// RestClient
// -----------------------------------------------------------

// RestClient is the client endpoint of one remote address. It owns a connection
// pool with its idle connection reaper and caches one remote proxy per interface.
type RestClient struct {
	channel *common.Channel
	url     *common.URL
	opts    options

	serializer     serializer.IRESTSerializer
	requestTimeout time.Duration
	pool           *pool.Pool
	transport      *pool.Transport
	reaper         *pool.Reaper

	// engine is set by Open before the channel becomes ALIVE and never changes afterwards
	engine  transport.IClientEngine
	proxies *xsync.MapOf[string, transport.IRemoteProxy]
	stats   *stats.EndpointStats
}

// NewRestClient creates a client for the remote endpoint u. The connection pool
// and its reaper are created (and the reaper started) right away, the outbound
// engine is created by Open.
func NewRestClient(u *common.URL, opts ...Option) (*RestClient, error) {
	o := options{
		engineFactory: rpchttp.NewHttpClientEngine,
		collector:     stats.Default,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = clock.New()
	}
	if o.reaper.Clock == nil {
		o.reaper.Clock = o.clock
	}

	ser, err := serializer.New(u.GetParameter(common.ParamSerialization, common.DefaultSerialization))
	if err != nil {
		return nil, err
	}

	maxConnections := u.GetIntParameter(common.ParamMaxClientConnection, common.DefaultMaxClientConnection)
	requestTimeout := u.GetMillisParameter(common.ParamRequestTimeout, common.DefaultRequestTimeoutMs)

	p := pool.NewPool(pool.Config{
		MaxTotal:       maxConnections,
		MaxPerRoute:    u.GetIntParameter(common.ParamMaxConnectionPerRoute, maxConnections),
		ConnectTimeout: u.GetMillisParameter(common.ParamConnectTimeout, common.DefaultConnectTimeoutMs),
		AcquireTimeout: requestTimeout,
		Clock:          o.clock,
	})

	c := &RestClient{
		channel:        common.NewChannel("RestClient " + u.URI()),
		url:            u,
		opts:           o,
		serializer:     ser,
		requestTimeout: requestTimeout,
		pool:           p,
		transport:      pool.NewTransport(p),
		reaper:         pool.NewReaper(p, o.reaper),
		proxies:        xsync.NewMapOf[string, transport.IRemoteProxy](),
		stats:          stats.NewEndpointStats(u.URI()),
	}
	c.reaper.Start()

	return c, nil
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Open creates the outbound engine and makes the client ALIVE. Opening an ALIVE
// client has no effect, a closed client cannot be reopened.
func (c *RestClient) Open() error {
	return c.channel.Open(func() error {
		c.engine = c.opts.engineFactory(rpchttp.ClientConfig{
			BaseURL:        "http://" + c.url.Address(),
			ContextPath:    c.url.GetParameter(common.ParamContextPath, ""),
			Serializer:     c.serializer,
			RequestTimeout: c.requestTimeout,
			Transport:      c.transport,
		})
		c.opts.collector.Register(c)
		stats.EndpointOpened()
		Logger.Infof("RestClient %s opened (serialization=%s)", c.url.URI(), c.serializer.Name())
		return nil
	})
}

// Close closes the client without waiting for in flight calls
func (c *RestClient) Close() error {
	return c.CloseTimeout(0)
}

// CloseTimeout closes the client. It waits up to timeout for leased connections to
// be released before the pool is torn down. Closing twice or closing a client that
// was never opened only logs, teardown errors are logged and the client is closed anyway.
func (c *RestClient) CloseTimeout(timeout time.Duration) error {
	c.channel.Close(func() error {
		if timeout > 0 {
			c.drain(timeout)
		}
		err := multierr.Combine(
			c.engine.Close(),
			c.pool.Close(),
		)
		c.reaper.Shutdown()
		c.opts.collector.Unregister(c)
		stats.EndpointClosed()
		Logger.Infof("RestClient %s closed", c.url.URI())
		return err
	})
	return nil
}

// IsAvailable reports whether the client is ALIVE
func (c *RestClient) IsAvailable() bool {
	return c.channel.IsAvailable()
}

// IsClosed reports whether the client was closed
func (c *RestClient) IsClosed() bool {
	return c.channel.IsClosed()
}

// State returns the lifecycle state
func (c *RestClient) State() common.ChannelState {
	return c.channel.State()
}

// URL returns the remote endpoint
func (c *RestClient) URL() *common.URL {
	return c.url
}

// Pool returns the connection pool of the client
func (c *RestClient) Pool() *pool.Pool {
	return c.pool
}

// --------------------------------------------------------------------------
// Calls
// --------------------------------------------------------------------------

// Request sends req to the remote endpoint. A client that is not ALIVE fails with a
// KindUnavailable ServiceError and a nil response without any network I/O. Otherwise
// the response carries the request id and attachments of req and either the result or,
// if the call failed, the returned ServiceError as its exception.
func (c *RestClient) Request(ctx context.Context, req *common.Request) (*common.Response, error) {
	if !c.IsAvailable() {
		return nil, common.NewServiceError(common.KindUnavailable, c.url.URI(), req, common.ErrUnavailable)
	}

	start := time.Now()
	resp := common.NewResponse(req)

	value, err := c.invoke(ctx, req)

	resp.ProcessTime = time.Since(start)
	c.stats.Observe(resp.ProcessTime, err)
	stats.RequestDone(stats.SideClient, err)

	if err != nil {
		resp.SetException(err)
		return resp, err
	}
	resp.SetValue(value)
	return resp, nil
}

// Heartbeat checks that the remote endpoint answers. It sends a HEAD request through
// the connection pool and fails like Request if the client is not ALIVE.
func (c *RestClient) Heartbeat(ctx context.Context, req *common.Request) error {
	if !c.IsAvailable() {
		return common.NewServiceError(common.KindUnavailable, c.url.URI(), req, common.ErrUnavailable)
	}
	if err := c.engine.Heartbeat(ctx); err != nil {
		kind, cause := classify(err)
		return common.NewServiceError(kind, c.url.URI(), req, cause)
	}
	return nil
}

// Proxy returns the cached remote proxy of the interface, creating it on first use.
// Concurrent first calls converge on one proxy.
func (c *RestClient) Proxy(i *iface.Interface) (transport.IRemoteProxy, error) {
	if !c.IsAvailable() {
		return nil, common.NewServiceError(common.KindUnavailable, c.url.URI(), nil, common.ErrUnavailable)
	}
	return c.proxy(i), nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see stats.IStatisticCallback)
// --------------------------------------------------------------------------

func (c *RestClient) StatisticCallback() string {
	return c.stats.Snapshot()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// invoke resolves the method of req and forwards it through the interface proxy
func (c *RestClient) invoke(ctx context.Context, req *common.Request) (any, error) {
	target := c.url.URI()

	i, err := iface.Lookup(req.InterfaceName)
	if err != nil {
		return nil, common.NewServiceError(common.KindResolution, target, req, err)
	}

	var m *iface.Method
	if req.ParamDesc != "" {
		m, err = i.ResolveDesc(req.MethodName, req.ParamDesc)
	} else {
		m, err = i.Resolve(req.MethodName, req.Arguments)
	}
	if err != nil {
		return nil, common.NewServiceError(common.KindResolution, target, req, err)
	}

	value, err := c.proxy(i).Invoke(ctx, &transport.Invocation{
		RequestID:   req.RequestID,
		Method:      m,
		Args:        req.Arguments,
		Attachments: req.Attachments,
	})
	if err != nil {
		kind, cause := classify(err)
		return nil, common.NewServiceError(kind, target, req, cause)
	}
	return value, nil
}

// proxy implements the get-or-create of the proxy cache
func (c *RestClient) proxy(i *iface.Interface) transport.IRemoteProxy {
	if p, ok := c.proxies.Load(i.Name); ok {
		return p
	}
	created := c.engine.Proxy(i)
	// another caller may have won the race, its proxy is used
	actual, _ := c.proxies.LoadOrStore(i.Name, created)
	return actual
}

// drain waits until no connection is leased or the timeout elapsed
func (c *RestClient) drain(timeout time.Duration) {
	clk := c.opts.clock
	deadline := clk.Now().Add(timeout)
	for c.pool.Stats().Leased > 0 && clk.Now().Before(deadline) {
		clk.Sleep(drainPollInterval)
	}
}

// classify unwraps the error kind of a failed call
func classify(err error) (common.ErrorKind, error) {
	var callErr *transport.CallError
	if errors.As(err, &callErr) {
		return callErr.Kind, callErr.Err
	}
	if errors.Is(err, pool.ErrPoolTimeout) {
		return common.KindCapacity, err
	}
	return common.KindTransport, err
}
