package stats

import (
	"context"
	"sync"
	"time"

	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("rpc/stats")

// IStatisticCallback is implemented by every endpoint that reports statistics
type IStatisticCallback interface {
	// StatisticCallback returns a human readable snapshot, empty if there is nothing to report
	StatisticCallback() string
}

// ICollector collects the snapshots of registered callbacks
type ICollector interface {
	// Register adds the callback, registering it twice has no effect
	Register(cb IStatisticCallback)
	// Unregister removes the callback, unknown callbacks are ignored
	Unregister(cb IStatisticCallback)
}

// Registry is the default ICollector. It holds its callbacks by identity.
type Registry struct {
	mu        sync.RWMutex
	callbacks map[IStatisticCallback]struct{}
	order     []IStatisticCallback
}

// Default is the process wide registry used when an endpoint is not given one
var Default = NewRegistry()

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{callbacks: make(map[IStatisticCallback]struct{})}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see stats.ICollector)
// --------------------------------------------------------------------------

func (r *Registry) Register(cb IStatisticCallback) {
	if cb == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.callbacks[cb]; ok {
		return
	}
	r.callbacks[cb] = struct{}{}
	r.order = append(r.order, cb)
}

func (r *Registry) Unregister(cb IStatisticCallback) {
	if cb == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.callbacks[cb]; !ok {
		return
	}
	delete(r.callbacks, cb)
	for i, c := range r.order {
		if c == cb {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// --------------------------------------------------------------------------
// Collecting
// --------------------------------------------------------------------------

// Len returns the number of registered callbacks
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// IsRegistered reports whether cb is registered
func (r *Registry) IsRegistered(cb IStatisticCallback) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.callbacks[cb]
	return ok
}

// Collect polls every callback in registration order and returns the non empty snapshots
func (r *Registry) Collect() []string {
	r.mu.RLock()
	callbacks := make([]IStatisticCallback, len(r.order))
	copy(callbacks, r.order)
	r.mu.RUnlock()

	// callbacks run outside the lock, they may (un)register themselves
	snapshots := make([]string, 0, len(callbacks))
	for _, cb := range callbacks {
		if s := cb.StatisticCallback(); s != "" {
			snapshots = append(snapshots, s)
		}
	}
	return snapshots
}

// Run logs all snapshots every interval until ctx is done
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, s := range r.Collect() {
				Logger.Infof("statistics: %s", s)
			}
		}
	}
}
