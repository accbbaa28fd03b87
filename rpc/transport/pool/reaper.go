package pool

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	DefaultReapInterval = 5 * time.Second
	DefaultMaxIdle      = 30 * time.Second
)

// IIdleCloser is implemented by connection managers that can drop idle connections
type IIdleCloser interface {
	// CloseIdle closes every idle connection unused for longer than maxIdle
	CloseIdle(maxIdle time.Duration) int
}

// ReaperOptions configures a Reaper. Zero values fall back to the defaults.
type ReaperOptions struct {
	Interval time.Duration
	MaxIdle  time.Duration
	Clock    clock.Clock
}

// Reaper periodically closes idle connections of one connection manager.
// It runs on its own goroutine between Start and Shutdown.
type Reaper struct {
	target   IIdleCloser
	interval time.Duration
	maxIdle  time.Duration
	clock    clock.Clock

	startOnce    sync.Once
	shutdownOnce sync.Once
	stopCh       chan struct{}
	doneCh       chan struct{}
	started      atomic.Bool
	shutdown     atomic.Bool
}

// NewReaper creates a reaper for target, it does nothing until Start
func NewReaper(target IIdleCloser, opts ReaperOptions) *Reaper {
	if opts.Interval <= 0 {
		opts.Interval = DefaultReapInterval
	}
	if opts.MaxIdle <= 0 {
		opts.MaxIdle = DefaultMaxIdle
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Reaper{
		target:   target,
		interval: opts.Interval,
		maxIdle:  opts.MaxIdle,
		clock:    opts.Clock,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the reaper goroutine. Calling it more than once has no effect,
// calling it after Shutdown neither.
func (r *Reaper) Start() {
	r.startOnce.Do(func() {
		if r.shutdown.Load() {
			return
		}
		r.started.Store(true)
		go r.run()
	})
}

// Shutdown stops the reaper and waits until its goroutine exited. It is idempotent.
func (r *Reaper) Shutdown() {
	r.shutdownOnce.Do(func() {
		r.shutdown.Store(true)
		close(r.stopCh)
	})
	if r.started.Load() {
		<-r.doneCh
	}
}

// IsShutdown reports whether Shutdown was requested
func (r *Reaper) IsShutdown() bool {
	return r.shutdown.Load()
}

func (r *Reaper) run() {
	defer close(r.doneCh)

	timer := r.clock.Timer(r.interval)
	defer timer.Stop()

	for {
		select {
		case <-r.stopCh:
			Logger.Infof("idle connection reaper stopped")
			return
		case <-timer.C:
			if r.shutdown.Load() {
				Logger.Infof("idle connection reaper stopped")
				return
			}
			if n := r.target.CloseIdle(r.maxIdle); n > 0 {
				Logger.Debugf("reaper closed %d idle connections", n)
			}
			timer.Reset(r.interval)
		}
	}
}
