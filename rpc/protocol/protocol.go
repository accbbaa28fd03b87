package protocol

import (
	"context"
	"fmt"
	"sync"

	"github.com/ValentinKolb/restrpc/rpc/client"
	"github.com/ValentinKolb/restrpc/rpc/common"
	"github.com/ValentinKolb/restrpc/rpc/iface"
	"github.com/ValentinKolb/restrpc/rpc/server"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/multierr"
)

var Logger = logger.GetLogger("rpc/protocol")

// ErrAlreadyExported is returned when an interface is exported twice on the same address
var ErrAlreadyExported = errors.New("already exported")

// -----------------------------------------------------------
// Options
// -----------------------------------------------------------

// Option configures a RestProtocol
type Option func(*RestProtocol)

// WithServerOptions sets the options of every server the protocol creates
func WithServerOptions(opts ...server.Option) Option {
	return func(p *RestProtocol) {
		p.serverOpts = append(p.serverOpts, opts...)
	}
}

// WithClientOptions sets the options of every client created by Refer
func WithClientOptions(opts ...client.Option) Option {
	return func(p *RestProtocol) {
		p.clientOpts = append(p.clientOpts, opts...)
	}
}

// -----------------------------------------------------------
// RestProtocol
// -----------------------------------------------------------

// RestProtocol exports providers and refers remote services over REST. Providers
// exported on the same address share one RestServer.
type RestProtocol struct {
	serverOpts []server.Option
	clientOpts []client.Option

	// mu guards servers, a server is created and opened at most once per address
	mu      sync.Mutex
	servers map[string]*server.RestServer

	exporters *xsync.MapOf[string, *Exporter]
	referers  *xsync.MapOf[*Referer, struct{}]
}

// NewRestProtocol creates a protocol without any exported service
func NewRestProtocol(opts ...Option) *RestProtocol {
	p := &RestProtocol{
		servers:   make(map[string]*server.RestServer),
		exporters: xsync.NewMapOf[string, *Exporter](),
		referers:  xsync.NewMapOf[*Referer, struct{}](),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Export deploys the provider on the server of the address of u, the server is
// created and opened by the first export on that address. The context path is
// taken from the contextPath parameter of u.
func (p *RestProtocol) Export(provider server.IProvider, u *common.URL) (*Exporter, error) {
	key := u.ProtocolKey(provider.Interface().Name)
	exporter := &Exporter{protocol: p, key: key, url: u, provider: provider}

	if _, loaded := p.exporters.LoadOrStore(key, exporter); loaded {
		return nil, errors.Wrap(ErrAlreadyExported, key)
	}

	srv, err := p.serverFor(u)
	if err != nil {
		p.exporters.Delete(key)
		return nil, err
	}

	// deploying does not need the registry lock
	if err := srv.Deploy(provider, u.GetParameter(common.ParamContextPath, "")); err != nil {
		p.exporters.Delete(key)
		return nil, err
	}
	exporter.server = srv

	Logger.Infof("exported %s", key)
	return exporter, nil
}

// Refer creates a client for the interface desc served at u and opens it.
// desc is registered so that requests can be resolved by its name.
func (p *RestProtocol) Refer(desc *iface.Interface, u *common.URL) (*Referer, error) {
	if err := iface.Register(desc); err != nil {
		return nil, err
	}

	c, err := client.NewRestClient(u, p.clientOpts...)
	if err != nil {
		return nil, err
	}
	if err := c.Open(); err != nil {
		_ = c.Close()
		return nil, err
	}

	r := &Referer{protocol: p, desc: desc, client: c}
	p.referers.Store(r, struct{}{})
	Logger.Infof("referred %s at %s", desc.Name, u.URI())
	return r, nil
}

// Server returns the server bound to the address, if any
func (p *RestProtocol) Server(address string) (*server.RestServer, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.servers[address]
	return s, ok
}

// Servers returns the number of servers
func (p *RestProtocol) Servers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.servers)
}

// Exporters returns the number of exported services
func (p *RestProtocol) Exporters() int {
	return p.exporters.Size()
}

// Destroy closes every server and every referer and clears the registry. A failing
// close is logged and does not stop the others, all errors are returned combined.
func (p *RestProtocol) Destroy() error {
	p.mu.Lock()
	servers := p.servers
	p.servers = make(map[string]*server.RestServer)
	p.exporters.Clear()
	p.mu.Unlock()

	var err error
	for address, s := range servers {
		if closeErr := s.Close(); closeErr != nil {
			Logger.Errorf("failed to close server %s: %v", address, closeErr)
			err = multierr.Append(err, closeErr)
		}
	}

	p.referers.Range(func(r *Referer, _ struct{}) bool {
		if destroyErr := r.Destroy(); destroyErr != nil {
			Logger.Errorf("failed to destroy referer %s: %v", r.desc.Name, destroyErr)
			err = multierr.Append(err, destroyErr)
		}
		return true
	})

	Logger.Infof("protocol destroyed (%d servers)", len(servers))
	return err
}

// serverFor returns the open server of the address of u, creating it if needed
func (p *RestProtocol) serverFor(u *common.URL) (*server.RestServer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	address := u.Address()
	if s, ok := p.servers[address]; ok {
		return s, nil
	}

	s, err := server.NewRestServer(u, p.serverOpts...)
	if err != nil {
		return nil, err
	}
	if err := s.Open(); err != nil {
		return nil, err
	}
	p.servers[address] = s
	return s, nil
}

// -----------------------------------------------------------
// Exporter
// -----------------------------------------------------------

// Exporter is the handle of one exported provider
type Exporter struct {
	protocol *RestProtocol
	key      string
	url      *common.URL
	provider server.IProvider
	server   *server.RestServer
}

// Key returns the protocol key of the export
func (e *Exporter) Key() string {
	return e.key
}

// URL returns the export URL
func (e *Exporter) URL() *common.URL {
	return e.url
}

// Provider returns the exported provider
func (e *Exporter) Provider() server.IProvider {
	return e.provider
}

// Server returns the shared server the provider is deployed on
func (e *Exporter) Server() *server.RestServer {
	return e.server
}

// Unexport undeploys the provider. The server stays bound for the other providers.
// Unexporting twice has no effect.
func (e *Exporter) Unexport() error {
	if _, ok := e.protocol.exporters.LoadAndDelete(e.key); !ok {
		return nil
	}
	if err := e.server.Undeploy(e.provider); err != nil {
		return errors.Wrapf(err, "unexport %s", e.key)
	}
	Logger.Infof("unexported %s", e.key)
	return nil
}

// -----------------------------------------------------------
// Referer
// -----------------------------------------------------------

// Referer calls one remote interface through a RestClient
type Referer struct {
	protocol *RestProtocol
	desc     *iface.Interface
	client   *client.RestClient
	once     sync.Once
}

// Interface returns the referred interface
func (r *Referer) Interface() *iface.Interface {
	return r.desc
}

// Client returns the underlying client endpoint
func (r *Referer) Client() *client.RestClient {
	return r.client
}

// IsAvailable reports whether the referer can send calls
func (r *Referer) IsAvailable() bool {
	return r.client.IsAvailable()
}

// Call sends req, an empty interface name is set to the referred interface
func (r *Referer) Call(ctx context.Context, req *common.Request) (*common.Response, error) {
	if req.InterfaceName == "" {
		req.InterfaceName = r.desc.Name
	}
	if req.InterfaceName != r.desc.Name {
		return nil, fmt.Errorf("referer of %s cannot call %s", r.desc.Name, req.InterfaceName)
	}
	return r.client.Request(ctx, req)
}

// Invoke calls the remote method and returns its result
func (r *Referer) Invoke(ctx context.Context, method string, args ...any) (any, error) {
	resp, err := r.Call(ctx, common.NewRequest(r.desc.Name, method, args...))
	if err != nil {
		return nil, err
	}
	return resp.Value, nil
}

// Heartbeat checks that the remote endpoint answers
func (r *Referer) Heartbeat(ctx context.Context) error {
	return r.client.Heartbeat(ctx, nil)
}

// Destroy closes the client, it is idempotent
func (r *Referer) Destroy() error {
	var err error
	r.once.Do(func() {
		r.protocol.referers.Delete(r)
		err = r.client.Close()
	})
	return err
}
