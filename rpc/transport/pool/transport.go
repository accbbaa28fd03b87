package pool

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Transport is a http.RoundTripper that sends HTTP/1.1 requests over the
// connections of a Pool. A connection goes back to the pool once the response
// body was read to the end, closing the body early discards the connection.
type Transport struct {
	pool *Pool
}

// NewTransport creates a round tripper backed by p
func NewTransport(p *Pool) *Transport {
	return &Transport{pool: p}
}

// Pool returns the underlying connection pool
func (t *Transport) Pool() *Pool {
	return t.pool
}

// CloseIdleConnections closes all idle connections, it is called by http.Client.CloseIdleConnections
func (t *Transport) CloseIdleConnections() {
	t.pool.CloseIdle(-1)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see http.RoundTripper)
// --------------------------------------------------------------------------

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	addr, err := canonicalAddr(req)
	if err != nil {
		closeBody(req)
		return nil, err
	}

	// a stale idle connection may be closed by the server, such requests are retried
	// on another connection as long as the body can be replayed
	retries := t.pool.Config().MaxPerRoute
	for attempt := 0; ; attempt++ {
		c, err := t.pool.Acquire(req.Context(), addr)
		if err != nil {
			closeBody(req)
			return nil, err
		}

		resp, err := t.roundTrip(c, req)
		if err == nil {
			return resp, nil
		}
		if !c.Reused() || attempt >= retries || req.Context().Err() != nil {
			return nil, err
		}
		next, rewindErr := rewindBody(req)
		if rewindErr != nil {
			return nil, err
		}
		Logger.Debugf("retrying %s %s on a new connection: %v", req.Method, req.URL.Path, err)
		req = next
	}
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (t *Transport) roundTrip(c *Conn, req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	// unblock reads and writes on cancellation
	stop := context.AfterFunc(ctx, func() {
		_ = c.SetDeadline(time.Unix(1, 0))
	})

	fail := func(err error) (*http.Response, error) {
		stop()
		t.pool.Release(c, false)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	if err := req.Write(c.bw); err != nil {
		return fail(errors.Wrapf(err, "write request to %s", c.route))
	}
	if err := c.bw.Flush(); err != nil {
		return fail(errors.Wrapf(err, "write request to %s", c.route))
	}

	resp, err := http.ReadResponse(c.br, req)
	if err != nil {
		return fail(errors.Wrapf(err, "read response from %s", c.route))
	}

	reusable := !resp.Close && !req.Close
	body := &connBody{
		rc:       resp.Body,
		conn:     c,
		pool:     t.pool,
		stop:     stop,
		reusable: reusable,
	}

	// bodies without content release the connection right away
	if resp.Body == http.NoBody || req.Method == http.MethodHead {
		body.finish(reusable)
		return resp, nil
	}

	resp.Body = body
	return resp, nil
}

// connBody releases the pooled connection once the response is consumed
type connBody struct {
	rc       io.ReadCloser
	conn     *Conn
	pool     *Pool
	stop     func() bool
	reusable bool

	once sync.Once
}

func (b *connBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	switch {
	case err == io.EOF:
		b.finish(b.reusable)
	case err != nil:
		b.finish(false)
	}
	return n, err
}

func (b *connBody) Close() error {
	// the rest of the body is unknown, dropping the connection first keeps Close from draining it
	b.finish(false)
	_ = b.rc.Close()
	return nil
}

func (b *connBody) finish(reusable bool) {
	b.once.Do(func() {
		// a fired cancellation left a deadline on the connection
		if !b.stop() {
			reusable = false
		}
		b.pool.Release(b.conn, reusable)
	})
}

// canonicalAddr returns host:port of the request url
func canonicalAddr(req *http.Request) (string, error) {
	if req.URL == nil {
		return "", errors.New("http: nil request url")
	}
	if req.URL.Scheme != "http" {
		return "", errors.Errorf("unsupported protocol scheme %q", req.URL.Scheme)
	}
	port := req.URL.Port()
	if port == "" {
		port = "80"
	}
	return net.JoinHostPort(req.URL.Hostname(), port), nil
}

// rewindBody returns a request with a fresh body for a retry
func rewindBody(req *http.Request) (*http.Request, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return req, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("cannot retry request with a non replayable body")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	clone := req.Clone(req.Context())
	clone.Body = body
	return clone, nil
}

func closeBody(req *http.Request) {
	if req.Body != nil {
		_ = req.Body.Close()
	}
}
