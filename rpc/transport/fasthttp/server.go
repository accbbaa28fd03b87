package fasthttp

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/ValentinKolb/restrpc/rpc/transport"
	"github.com/ValentinKolb/restrpc/rpc/transport/base"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/valyala/fasthttp"
)

var Logger = logger.GetLogger("transport/rpc")

const (
	// serverName is sent in the Server header
	serverName = "restrpc"
	// readTimeout bounds reading one request including its body
	readTimeout = 30 * time.Second
	// shutdownTimeout bounds waiting for in flight calls on Close
	shutdownTimeout = 5 * time.Second
)

// NewFasthttpServerEngine creates a server engine based on fasthttp.
// If requestLogging is set every call is logged at debug level.
func NewFasthttpServerEngine(requestLogging bool) transport.IServerEngine {
	return &fasthttpServerEngine{
		dispatcher:     base.NewDispatcher(),
		requestLogging: requestLogging,
	}
}

type fasthttpServerEngine struct {
	dispatcher     *base.Dispatcher
	requestLogging bool

	mu       sync.Mutex
	server   *fasthttp.Server
	listener net.Listener
	done     chan struct{}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IServerEngine)
// --------------------------------------------------------------------------

func (t *fasthttpServerEngine) Open(address string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.server != nil {
		return errors.New("fasthttp server engine already open")
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}

	handler := t.handleRequest
	if t.requestLogging {
		handler = loggerMiddleware(handler)
	}

	t.server = &fasthttp.Server{
		Handler:         handler,
		Name:            serverName,
		ReadTimeout:     readTimeout,
		CloseOnShutdown: true,
	}
	t.listener = listener
	t.done = make(chan struct{})

	Logger.Infof("Starting fasthttp server on %s", listener.Addr())

	go func(server *fasthttp.Server, done chan struct{}) {
		defer close(done)
		if err := server.Serve(listener); err != nil {
			Logger.Errorf("fasthttp server on %s stopped: %v", listener.Addr(), err)
		}
	}(t.server, t.done)

	return nil
}

func (t *fasthttpServerEngine) Deploy(resource transport.Resource, contextPath string) error {
	return t.dispatcher.Deploy(resource, contextPath)
}

func (t *fasthttpServerEngine) Undeploy(interfaceName string) error {
	return t.dispatcher.Undeploy(interfaceName)
}

func (t *fasthttpServerEngine) Close() error {
	t.mu.Lock()
	server, done := t.server, t.done
	t.server = nil
	t.mu.Unlock()

	if server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := server.ShutdownWithContext(ctx)
	<-done
	Logger.Infof("Stopped fasthttp server on %s", t.listener.Addr())
	return err
}

func (t *fasthttpServerEngine) Addr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleRequest answers heartbeats and dispatches calls
func (t *fasthttpServerEngine) handleRequest(ctx *fasthttp.RequestCtx) {
	switch {
	case ctx.IsHead():
		ctx.SetStatusCode(fasthttp.StatusOK)
		return
	case !ctx.IsPost():
		ctx.Error("Method not allowed", fasthttp.StatusMethodNotAllowed)
		return
	}

	header := &ctx.Request.Header

	// the request context is recycled after the handler returns, the call gets its own
	res := t.dispatcher.Dispatch(context.Background(), &base.Call{
		Path:        string(ctx.Path()),
		ContentType: string(header.ContentType()),
		RequestID:   string(header.Peek(base.HeaderRequestID)),
		ParamDesc:   string(header.Peek(base.HeaderParamDesc)),
		Attachments: string(header.Peek(base.HeaderAttachments)),
		Body:        ctx.PostBody(),
	})

	ctx.SetStatusCode(res.Status)
	ctx.SetContentType(res.ContentType)
	if res.RequestID != "" {
		ctx.Response.Header.Set(base.HeaderRequestID, res.RequestID)
	}
	if res.Error != "" {
		ctx.Response.Header.Set(base.HeaderError, res.Error)
	}
	ctx.SetBody(res.Body)
}

// loggerMiddleware logs every request with its status and duration
func loggerMiddleware(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		next(ctx)
		Logger.Debugf("%s %s => %d took %s", ctx.Method(), ctx.Path(), ctx.Response.StatusCode(), time.Since(start))
	}
}
