package pool

import (
	"bufio"
	"context"
	"net"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

var Logger = logger.GetLogger("transport/pool")

var (
	// ErrPoolTimeout is returned when no connection became available in time
	ErrPoolTimeout = errors.New("timeout waiting for connection from pool")
	// ErrPoolClosed is returned by Acquire after Close
	ErrPoolClosed = errors.New("connection pool closed")
)

// waitTimeoutError is returned by Acquire when the deadline of the caller expired while
// waiting for a connection. It matches both ErrPoolTimeout and the context error.
type waitTimeoutError struct {
	route string
	cause error
}

func (e *waitTimeoutError) Error() string {
	return ErrPoolTimeout.Error() + ": route " + e.route + ": " + e.cause.Error()
}

func (e *waitTimeoutError) Is(target error) bool {
	return target == ErrPoolTimeout
}

func (e *waitTimeoutError) Unwrap() error {
	return e.cause
}

const (
	DefaultMaxTotal       = 20
	DefaultMaxPerRoute    = 2
	DefaultConnectTimeout = time.Second
	DefaultAcquireTimeout = time.Second

	// tcpKeepAlivePeriod is the keep-alive period set on every dialed connection
	tcpKeepAlivePeriod = 30 * time.Second
)

// -----------------------------------------------------------
// Config
// -----------------------------------------------------------

// DialFunc dials a new connection to addr
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Config configures a Pool. Zero values fall back to the defaults.
type Config struct {
	// MaxTotal caps the connections over all routes
	MaxTotal int
	// MaxPerRoute caps the connections to one route (host:port)
	MaxPerRoute int
	// ConnectTimeout bounds dialing a new connection
	ConnectTimeout time.Duration
	// AcquireTimeout bounds waiting for a free connection slot
	AcquireTimeout time.Duration
	// Clock is the time source of the idle timestamps
	Clock clock.Clock
	// Dial overrides the tcp dialer
	Dial DialFunc
}

func (c Config) withDefaults() Config {
	if c.MaxTotal <= 0 {
		c.MaxTotal = DefaultMaxTotal
	}
	if c.MaxPerRoute <= 0 {
		c.MaxPerRoute = DefaultMaxPerRoute
	}
	if c.MaxPerRoute > c.MaxTotal {
		c.MaxPerRoute = c.MaxTotal
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = DefaultAcquireTimeout
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	return c
}

// -----------------------------------------------------------
// Conn
// -----------------------------------------------------------

// Conn is a pooled connection. It is either idle (owned by the pool) or leased
// to exactly one caller until Release.
type Conn struct {
	net.Conn
	route    string
	br       *bufio.Reader
	bw       *bufio.Writer
	lastUsed time.Time
	leased   bool
	reused   bool
	pool     *Pool
}

// Route returns the host:port this connection is connected to
func (c *Conn) Route() string {
	return c.route
}

// LastUsed returns the time the connection was last returned to the pool
func (c *Conn) LastUsed() time.Time {
	return c.lastUsed
}

// Reused reports whether the connection was taken from the idle list
func (c *Conn) Reused() bool {
	return c.reused
}

// route holds the connections of one host:port
type route struct {
	idle  []*Conn // most recently used last
	count int     // idle + leased + dialing
}

// Stats is a snapshot of the pool occupancy
type Stats struct {
	Total  int
	Leased int
	Idle   int
}

// -----------------------------------------------------------
// Pool
// -----------------------------------------------------------

// Pool is a bounded pool of outbound connections with a global and a per route cap.
// All mutation happens under the pool mutex, callers only see leased connections.
type Pool struct {
	config Config
	dialer *net.Dialer

	mu     sync.Mutex
	routes map[string]*route
	total  int
	leased int
	closed bool
	// notify is closed (and replaced) whenever a slot or an idle connection frees up
	notify chan struct{}
}

// NewPool creates an empty connection pool
func NewPool(config Config) *Pool {
	config = config.withDefaults()
	return &Pool{
		config: config,
		dialer: &net.Dialer{
			Timeout:   config.ConnectTimeout,
			KeepAlive: tcpKeepAlivePeriod,
		},
		routes: make(map[string]*route),
		notify: make(chan struct{}),
	}
}

// Config returns the effective configuration
func (p *Pool) Config() Config {
	return p.config
}

// Acquire leases a connection to addr (host:port). It reuses the most recently used
// idle connection, dials a new one when both caps allow it and otherwise blocks until
// a connection is released, ctx is done or the acquire timeout elapses.
func (p *Pool) Acquire(ctx context.Context, addr string) (*Conn, error) {
	timer := p.config.Clock.Timer(p.config.AcquireTimeout)
	defer timer.Stop()

	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}

		r := p.routeLocked(addr)

		// reuse an idle connection
		if n := len(r.idle); n > 0 {
			c := r.idle[n-1]
			r.idle = r.idle[:n-1]
			c.leased = true
			c.reused = true
			p.leased++
			p.mu.Unlock()
			return c, nil
		}

		// free a slot of another route if only the total cap is in the way
		var evicted *Conn
		if p.total >= p.config.MaxTotal && r.count < p.config.MaxPerRoute {
			evicted = p.evictOldestIdleLocked(addr)
		}

		// dial a new connection
		if p.total < p.config.MaxTotal && r.count < p.config.MaxPerRoute {
			r.count++
			p.total++
			p.mu.Unlock()
			closeQuietly(evicted)
			return p.dial(ctx, addr)
		}

		wait := p.notify
		p.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			// a deadline that expires while no slot is free is pool exhaustion
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, &waitTimeoutError{route: addr, cause: ctx.Err()}
			}
			return nil, ctx.Err()
		case <-timer.C:
			return nil, errors.Wrapf(ErrPoolTimeout, "route %s after %s", addr, p.config.AcquireTimeout)
		}
	}
}

// Release returns a leased connection. Non reusable connections are closed.
func (p *Pool) Release(c *Conn, reusable bool) {
	p.mu.Lock()
	if !c.leased {
		p.mu.Unlock()
		return
	}
	c.leased = false
	p.leased--

	if reusable && !p.closed {
		c.lastUsed = p.config.Clock.Now()
		r := p.routeLocked(c.route)
		r.idle = append(r.idle, c)
		p.signalLocked()
		p.mu.Unlock()
		return
	}

	p.removeLocked(c.route)
	p.mu.Unlock()
	closeQuietly(c)
}

// CloseIdle closes every idle connection that was not used for longer than maxIdle.
// Leased connections are never touched. It returns the number of closed connections.
func (p *Pool) CloseIdle(maxIdle time.Duration) int {
	p.mu.Lock()
	now := p.config.Clock.Now()
	var expired []*Conn
	for _, r := range p.routes {
		kept := r.idle[:0]
		for _, c := range r.idle {
			if now.Sub(c.lastUsed) > maxIdle {
				expired = append(expired, c)
				continue
			}
			kept = append(kept, c)
		}
		// clear the tail so closed connections can be collected
		for i := len(kept); i < len(r.idle); i++ {
			r.idle[i] = nil
		}
		r.idle = kept
	}
	for _, c := range expired {
		p.removeLocked(c.route)
	}
	p.mu.Unlock()

	for _, c := range expired {
		closeQuietly(c)
	}
	if len(expired) > 0 {
		Logger.Debugf("closed %d idle connections (idle > %s)", len(expired), maxIdle)
	}
	return len(expired)
}

// Close closes all idle connections and rejects further acquires. Leased
// connections are closed when they are released.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	var idle []*Conn
	for _, r := range p.routes {
		idle = append(idle, r.idle...)
		r.count -= len(r.idle)
		p.total -= len(r.idle)
		r.idle = nil
	}
	p.signalLocked()
	p.mu.Unlock()

	var err error
	for _, c := range idle {
		err = multierr.Append(err, c.Conn.Close())
	}
	return err
}

// Stats returns the current occupancy
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	idle := 0
	for _, r := range p.routes {
		idle += len(r.idle)
	}
	return Stats{Total: p.total, Leased: p.leased, Idle: idle}
}

// -----------------------------------------------------------
// Helper Methods
// -----------------------------------------------------------

// dial opens a new connection for a reserved slot, the slot is freed on failure
func (p *Pool) dial(ctx context.Context, addr string) (*Conn, error) {
	dial := p.config.Dial
	if dial == nil {
		dial = p.dialer.DialContext
	}

	dialCtx, cancel := context.WithTimeout(ctx, p.config.ConnectTimeout)
	defer cancel()

	nc, err := dial(dialCtx, "tcp", addr)
	if err != nil {
		p.mu.Lock()
		p.removeLocked(addr)
		p.mu.Unlock()
		return nil, errors.Wrapf(err, "dial %s", addr)
	}

	// fixed socket policy
	if tcp, ok := nc.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
		_ = tcp.SetKeepAlive(true)
	}

	c := &Conn{
		Conn:   nc,
		route:  addr,
		br:     bufio.NewReader(nc),
		bw:     bufio.NewWriter(nc),
		leased: true,
		pool:   p,
	}

	p.mu.Lock()
	p.leased++
	p.mu.Unlock()

	Logger.Debugf("opened connection to %s", addr)
	return c, nil
}

func (p *Pool) routeLocked(addr string) *route {
	r, ok := p.routes[addr]
	if !ok {
		r = &route{}
		p.routes[addr] = r
	}
	return r
}

// removeLocked frees the slot of one connection of the route
func (p *Pool) removeLocked(addr string) {
	r := p.routeLocked(addr)
	r.count--
	p.total--
	if r.count == 0 && len(r.idle) == 0 {
		delete(p.routes, addr)
	}
	p.signalLocked()
}

// evictOldestIdleLocked removes the least recently used idle connection of any
// route other than except. The caller closes it outside the lock.
func (p *Pool) evictOldestIdleLocked(except string) *Conn {
	var (
		oldest     *Conn
		oldestAddr string
	)
	for addr, r := range p.routes {
		if addr == except || len(r.idle) == 0 {
			continue
		}
		if c := r.idle[0]; oldest == nil || c.lastUsed.Before(oldest.lastUsed) {
			oldest, oldestAddr = c, addr
		}
	}
	if oldest == nil {
		return nil
	}
	r := p.routes[oldestAddr]
	r.idle = r.idle[1:]
	p.removeLocked(oldestAddr)
	return oldest
}

// signalLocked wakes up all waiting acquires
func (p *Pool) signalLocked() {
	close(p.notify)
	p.notify = make(chan struct{})
}

func closeQuietly(c *Conn) {
	if c == nil {
		return
	}
	if err := c.Conn.Close(); err != nil {
		Logger.Debugf("closing connection to %s: %v", c.route, err)
	}
}
