package http

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ValentinKolb/restrpc/rpc/common"
	"github.com/ValentinKolb/restrpc/rpc/iface"
	"github.com/ValentinKolb/restrpc/rpc/serializer"
	"github.com/ValentinKolb/restrpc/rpc/transport"
	"github.com/ValentinKolb/restrpc/rpc/transport/base"
	"github.com/ValentinKolb/restrpc/rpc/transport/pool"
	"github.com/pkg/errors"
)

// ClientConfig configures the outbound engine
type ClientConfig struct {
	// BaseURL is the http address of the remote server, e.g. http://127.0.0.1:8002
	BaseURL string
	// ContextPath must match the context path the interfaces are deployed under
	ContextPath string
	// Serializer encodes arguments and decodes results
	Serializer serializer.IRESTSerializer
	// RequestTimeout bounds one call including waiting for a connection, 0 means no timeout
	RequestTimeout time.Duration
	// Transport sends the http requests, usually a pool.Transport
	Transport http.RoundTripper
}

// NewHttpClientEngine creates an outbound engine based on net/http
func NewHttpClientEngine(config ClientConfig) transport.IClientEngine {
	ser := config.Serializer
	if ser == nil {
		ser = serializer.NewJSONSerializer()
	}
	return &httpClientEngine{
		baseURL:        strings.TrimRight(config.BaseURL, "/"),
		contextPath:    config.ContextPath,
		serializer:     ser,
		requestTimeout: config.RequestTimeout,
		client:         &http.Client{Transport: config.Transport},
	}
}

type httpClientEngine struct {
	baseURL        string
	contextPath    string
	serializer     serializer.IRESTSerializer
	requestTimeout time.Duration
	client         *http.Client
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IClientEngine)
// --------------------------------------------------------------------------

func (e *httpClientEngine) Proxy(i *iface.Interface) transport.IRemoteProxy {
	return &remoteProxy{engine: e, iface: i}
}

func (e *httpClientEngine) Heartbeat(ctx context.Context) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, e.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	return resp.Body.Close()
}

func (e *httpClientEngine) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

// --------------------------------------------------------------------------
// Remote proxy
// --------------------------------------------------------------------------

// remoteProxy forwards the calls of one interface
type remoteProxy struct {
	engine *httpClientEngine
	iface  *iface.Interface
}

func (p *remoteProxy) Interface() *iface.Interface {
	return p.iface
}

func (p *remoteProxy) Invoke(ctx context.Context, inv *transport.Invocation) (any, error) {
	e := p.engine

	body, err := e.serializer.EncodeArgs(inv.Args)
	if err != nil {
		return nil, transport.NewCallError(common.KindTransport, errors.Wrapf(err, "encode arguments of %s", inv.Method))
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	target := e.baseURL + base.MethodPath(e.contextPath, p.iface.Name, inv.Method.Name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, transport.NewCallError(common.KindTransport, err)
	}
	base.SetCallHeaders(req.Header, inv, e.serializer.ContentType())

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	// the whole body is read so that the connection goes back to the pool
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	if resp.StatusCode != http.StatusOK {
		kind, err := base.DecodeError(resp.Header.Get(base.HeaderError), resp.StatusCode, respBody)
		return nil, transport.NewCallError(kind, err)
	}

	if inv.Method.Result == nil {
		return nil, nil
	}

	ser := e.serializer
	if ct := resp.Header.Get("Content-Type"); ct != "" && ct != ser.ContentType() {
		if ser, err = serializer.ForContentType(ct); err != nil {
			return nil, transport.NewCallError(common.KindTransport, err)
		}
	}
	value, err := ser.DecodeValue(respBody, inv.Method.Result)
	if err != nil {
		return nil, transport.NewCallError(common.KindTransport, errors.Wrapf(err, "decode result of %s", inv.Method))
	}
	return value, nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (e *httpClientEngine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.requestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.requestTimeout)
}

// classifyTransportError tells pool exhaustion apart from other network failures
func classifyTransportError(err error) error {
	if errors.Is(err, pool.ErrPoolTimeout) {
		return transport.NewCallError(common.KindCapacity, err)
	}
	return transport.NewCallError(common.KindTransport, err)
}
