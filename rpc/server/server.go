package server

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/restrpc/rpc/common"
	"github.com/ValentinKolb/restrpc/rpc/stats"
	"github.com/ValentinKolb/restrpc/rpc/transport"
	"github.com/ValentinKolb/restrpc/rpc/transport/fasthttp"
	rpchttp "github.com/ValentinKolb/restrpc/rpc/transport/http"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc/server")

// drainPollInterval is the period in which CloseTimeout checks for in flight calls
const drainPollInterval = 10 * time.Millisecond

// -----------------------------------------------------------
// Options
// -----------------------------------------------------------

// EngineFactory creates the inbound engine of a server
type EngineFactory func(u *common.URL) (transport.IServerEngine, error)

// DefaultEngineFactory selects the engine by the serverEngine parameter of u (http or fasthttp)
func DefaultEngineFactory(u *common.URL) (transport.IServerEngine, error) {
	requestLogging := u.GetBoolParameter(common.ParamRequestLogging, false)
	switch engine := u.GetParameter(common.ParamServerEngine, common.DefaultServerEngine); engine {
	case "http":
		return rpchttp.NewHttpServerEngine(requestLogging), nil
	case "fasthttp":
		return fasthttp.NewFasthttpServerEngine(requestLogging), nil
	default:
		return nil, fmt.Errorf("unknown server engine: %s", engine)
	}
}

// Option configures a RestServer
type Option func(*options)

type options struct {
	engineFactory EngineFactory
	collector     stats.ICollector
	filters       []Filter
}

// WithEngineFactory replaces the engine selection by URL parameter
func WithEngineFactory(f EngineFactory) Option {
	return func(o *options) {
		o.engineFactory = f
	}
}

// WithCollector sets the statistics collector the server registers with while it is open
func WithCollector(c stats.ICollector) Option {
	return func(o *options) {
		o.collector = c
	}
}

// WithFilters adds filters around every deployed provider, the first one is the outermost
func WithFilters(filters ...Filter) Option {
	return func(o *options) {
		o.filters = append(o.filters, filters...)
	}
}

// -----------------------------------------------------------
// RestServer
// -----------------------------------------------------------

// RestServer is the server endpoint of one bind address. Any number of providers
// can be deployed on it, each under its own resource path.
type RestServer struct {
	channel *common.Channel
	url     *common.URL
	opts    options
	engine  transport.IServerEngine

	deployed *xsync.MapOf[string, IProvider]
	inflight atomic.Int64
	stats    *stats.EndpointStats
}

// NewRestServer creates a server for the bind address of u. The engine is created
// right away, it is bound by Open.
func NewRestServer(u *common.URL, opts ...Option) (*RestServer, error) {
	o := options{
		engineFactory: DefaultEngineFactory,
		collector:     stats.Default,
	}
	for _, opt := range opts {
		opt(&o)
	}

	engine, err := o.engineFactory(u)
	if err != nil {
		return nil, err
	}

	Logger.Debugf("Created RestServer for %s", u.Address())

	return &RestServer{
		channel:  common.NewChannel("RestServer " + u.Address()),
		url:      u,
		opts:     o,
		engine:   engine,
		deployed: xsync.NewMapOf[string, IProvider](),
		stats:    stats.NewEndpointStats("server " + u.Address()),
	}, nil
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Open binds the engine to the address of the server and makes the server ALIVE.
// Opening an ALIVE server has no effect, a closed server cannot be reopened.
func (s *RestServer) Open() error {
	return s.channel.Open(func() error {
		if err := s.engine.Open(s.url.Address()); err != nil {
			return errors.Wrapf(err, "bind %s", s.url.Address())
		}
		s.opts.collector.Register(s)
		stats.ServerBound()
		stats.EndpointOpened()
		Logger.Infof("RestServer listening on %s", s.engine.Addr())
		return nil
	})
}

// Close unbinds the server without waiting for in flight calls
func (s *RestServer) Close() error {
	return s.CloseTimeout(0)
}

// CloseTimeout closes the server. It waits up to timeout for in flight calls to finish
// before the engine is closed. Closing twice or closing a server that was never opened
// only logs. An engine teardown error is returned, the server is CLOSE regardless.
func (s *RestServer) CloseTimeout(timeout time.Duration) error {
	var closeErr error
	s.channel.Close(func() error {
		if timeout > 0 {
			s.drain(timeout)
		}
		err := s.engine.Close()
		s.deployed.Range(func(name string, _ IProvider) bool {
			s.deployed.Delete(name)
			stats.Undeployed()
			return true
		})
		s.opts.collector.Unregister(s)
		stats.ServerUnbound()
		stats.EndpointClosed()
		Logger.Infof("RestServer %s closed", s.url.Address())
		closeErr = err
		return err
	})
	return closeErr
}

// IsAvailable reports whether the server is ALIVE
func (s *RestServer) IsAvailable() bool {
	return s.channel.IsAvailable()
}

// IsClosed reports whether the server was closed
func (s *RestServer) IsClosed() bool {
	return s.channel.IsClosed()
}

// IsBound reports whether the server is ALIVE and listening
func (s *RestServer) IsBound() bool {
	return s.IsAvailable() && s.engine.Addr() != nil
}

// State returns the lifecycle state
func (s *RestServer) State() common.ChannelState {
	return s.channel.State()
}

// Addr returns the bound address, nil while the server is not open
func (s *RestServer) Addr() net.Addr {
	return s.engine.Addr()
}

// URL returns the bind address of the server
func (s *RestServer) URL() *common.URL {
	return s.url
}

// --------------------------------------------------------------------------
// Deployment
// --------------------------------------------------------------------------

// Deploy makes the provider callable under contextPath. The server must be ALIVE
// and an interface can only be deployed once.
func (s *RestServer) Deploy(provider IProvider, contextPath string) error {
	if !s.IsAvailable() {
		return errors.Wrapf(common.ErrUnavailable, "deploy %s on %s", provider.Interface().Name, s.url.Address())
	}

	err := s.engine.Deploy(transport.Resource{
		Interface: provider.Interface(),
		Invoke:    s.invocationHandler(provider),
	}, contextPath)
	if err != nil {
		return err
	}

	s.deployed.Store(provider.Interface().Name, provider)
	stats.Deployed()
	Logger.Infof("deployed %s on %s (context path %q)", provider.Interface().Name, s.url.Address(), contextPath)
	return nil
}

// Undeploy removes the provider, the server stays bound
func (s *RestServer) Undeploy(provider IProvider) error {
	name := provider.Interface().Name
	if err := s.engine.Undeploy(name); err != nil {
		return err
	}
	if _, ok := s.deployed.LoadAndDelete(name); ok {
		stats.Undeployed()
	}
	Logger.Infof("undeployed %s from %s", name, s.url.Address())
	return nil
}

// Deployed returns the names of the deployed interfaces in sorted order
func (s *RestServer) Deployed() []string {
	names := make([]string, 0, s.deployed.Size())
	s.deployed.Range(func(name string, _ IProvider) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}

// Request is not supported by a server endpoint
func (s *RestServer) Request(_ context.Context, req *common.Request) (*common.Response, error) {
	return nil, errors.Wrapf(common.ErrUnsupported, "rest server %s cannot send %s", s.url.Address(), req)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see stats.IStatisticCallback)
// --------------------------------------------------------------------------

func (s *RestServer) StatisticCallback() string {
	return s.stats.Snapshot()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// invocationHandler adapts the provider (wrapped by the filters) to the engine
func (s *RestServer) invocationHandler(provider IProvider) transport.InvokeFunc {
	handler := chain(provider.Call, s.opts.filters)

	return func(ctx context.Context, call *transport.InboundCall) (any, error) {
		s.inflight.Add(1)
		defer s.inflight.Add(-1)

		requestID := call.RequestID
		if requestID == "" {
			requestID = common.NewRequestID()
		}
		req := &common.Request{
			RequestID:     requestID,
			InterfaceName: call.Interface.Name,
			MethodName:    call.Method.Name,
			ParamDesc:     call.Method.ParamDesc(),
			Arguments:     call.Args,
			Attachments:   call.Attachments,
		}

		start := time.Now()
		resp := handler(ctx, req)
		if resp == nil {
			resp = common.NewResponse(req)
			resp.SetException(fmt.Errorf("no response for %s", req))
		}

		s.stats.Observe(time.Since(start), resp.Exception)
		stats.RequestDone(stats.SideServer, resp.Exception)

		if resp.Exception != nil {
			return nil, resp.Exception
		}
		return resp.Value, nil
	}
}

// drain waits until no call is in flight or the timeout elapsed
func (s *RestServer) drain(timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for s.inflight.Load() > 0 && time.Now().Before(deadline) {
		time.Sleep(drainPollInterval)
	}
}
