package http

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ValentinKolb/restrpc/rpc/transport"
	"github.com/ValentinKolb/restrpc/rpc/transport/base"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport/rpc")

const (
	// readHeaderTimeout bounds reading the request headers of one call
	readHeaderTimeout = 10 * time.Second
	// shutdownTimeout bounds waiting for in flight calls on Close
	shutdownTimeout = 5 * time.Second
)

// NewHttpServerEngine creates a server engine based on net/http.
// If requestLogging is set every call is logged at debug level.
func NewHttpServerEngine(requestLogging bool) transport.IServerEngine {
	return &httpServerEngine{
		dispatcher:     base.NewDispatcher(),
		requestLogging: requestLogging,
	}
}

type httpServerEngine struct {
	dispatcher     *base.Dispatcher
	requestLogging bool

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	done     chan struct{}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IServerEngine)
// --------------------------------------------------------------------------

func (t *httpServerEngine) Open(address string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.server != nil {
		return errors.New("http server engine already open")
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}

	// Create a new HTTP server
	mux := http.NewServeMux()

	// Register handler
	if t.requestLogging {
		mux.HandleFunc("POST /", loggerMiddleware(t.handleRequest))
	} else {
		mux.HandleFunc("POST /", t.handleRequest)
	}
	mux.HandleFunc("HEAD /", t.handleHeartbeat)

	t.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	t.listener = listener
	t.done = make(chan struct{})

	Logger.Infof("Starting HTTP server on %s", listener.Addr())

	go func(server *http.Server, done chan struct{}) {
		defer close(done)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("HTTP server on %s stopped: %v", listener.Addr(), err)
		}
	}(t.server, t.done)

	return nil
}

func (t *httpServerEngine) Deploy(resource transport.Resource, contextPath string) error {
	return t.dispatcher.Deploy(resource, contextPath)
}

func (t *httpServerEngine) Undeploy(interfaceName string) error {
	return t.dispatcher.Undeploy(interfaceName)
}

func (t *httpServerEngine) Close() error {
	t.mu.Lock()
	server, done := t.server, t.done
	t.server = nil
	t.mu.Unlock()

	if server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := server.Shutdown(ctx)
	if err != nil {
		// in flight calls did not finish in time
		err = server.Close()
	}
	<-done
	Logger.Infof("Stopped HTTP server on %s", t.listener.Addr())
	return err
}

func (t *httpServerEngine) Addr() net.Addr {
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

// handleRequest handles incoming HTTP requests and writes the response to the writer
func (t *httpServerEngine) handleRequest(w http.ResponseWriter, r *http.Request) {
	// Read request body
	buf := base.GetBuffer()
	defer base.PutBuffer(buf)
	_, err := io.Copy(buf, r.Body)
	defer r.Body.Close()

	// Check if body could be read
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	res := t.dispatcher.Dispatch(r.Context(), &base.Call{
		Path:        r.URL.Path,
		ContentType: r.Header.Get("Content-Type"),
		RequestID:   r.Header.Get(base.HeaderRequestID),
		ParamDesc:   r.Header.Get(base.HeaderParamDesc),
		Attachments: r.Header.Get(base.HeaderAttachments),
		Body:        buf.Bytes(),
	})

	// Write response
	h := w.Header()
	h.Set("Content-Type", res.ContentType)
	if res.RequestID != "" {
		h.Set(base.HeaderRequestID, res.RequestID)
	}
	if res.Error != "" {
		h.Set(base.HeaderError, res.Error)
	}
	w.WriteHeader(res.Status)
	if _, err = w.Write(res.Body); err != nil {
		Logger.Debugf("Failed to write response: %v", err)
	}
}

// handleHeartbeat answers the liveness check of the clients
func (t *httpServerEngine) handleHeartbeat(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// --------------------------------------------------------------------------
// Middleware (logging)
// --------------------------------------------------------------------------

// responseWriter is a custom ResponseWriter that captures status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing it
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// loggerMiddleware is a middleware that logs HTTP requests
func loggerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create custom response writer to capture status code
		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		// Process request
		next.ServeHTTP(rw, r)

		// Log the request
		duration := time.Since(start)
		Logger.Debugf("%s %s => %d took %s", r.Method, r.URL.Path, rw.statusCode, duration)
	}
}
