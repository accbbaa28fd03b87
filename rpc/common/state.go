package common

import (
	"sync"
	"sync/atomic"

	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("rpc")

// --------------------------------------------------------------------------
// Channel State
// --------------------------------------------------------------------------

// ChannelState is the lifecycle state shared by every endpoint (client or server)
type ChannelState int32

const (
	// StateUninit is the state of a freshly constructed endpoint
	StateUninit ChannelState = iota
	// StateAlive is the state of an opened endpoint that accepts calls
	StateAlive
	// StateClose is terminal, no transition leaves it
	StateClose
)

func (s ChannelState) IsUninit() bool { return s == StateUninit }
func (s ChannelState) IsAlive() bool  { return s == StateAlive }
func (s ChannelState) IsClose() bool  { return s == StateClose }

func (s ChannelState) String() string {
	switch s {
	case StateUninit:
		return "UNINIT"
	case StateAlive:
		return "ALIVE"
	case StateClose:
		return "CLOSE"
	default:
		return "UNKNOWN"
	}
}

// --------------------------------------------------------------------------
// Channel (state machine)
// --------------------------------------------------------------------------

// Channel implements the UNINIT -> ALIVE -> CLOSE state machine of one endpoint.
// Transitions are serialized by a mutex, state queries are lock free.
type Channel struct {
	name  string
	mu    sync.Mutex
	state atomic.Int32
}

// NewChannel creates a channel in the UNINIT state. The name is used for logging only.
func NewChannel(name string) *Channel {
	return &Channel{name: name}
}

// Open runs setup and transitions UNINIT -> ALIVE.
// If the channel is already ALIVE, setup is not run and nil is returned.
// A closed channel cannot be reopened (ErrChannelClosed).
func (c *Channel) Open(setup func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.State() {
	case StateAlive:
		Logger.Debugf("%s open: already open", c.name)
		return nil
	case StateClose:
		Logger.Warningf("%s open fail: already close", c.name)
		return ErrChannelClosed
	}

	if setup != nil {
		if err := setup(); err != nil {
			Logger.Errorf("%s open fail: %v", c.name, err)
			return err
		}
	}

	c.state.Store(int32(StateAlive))
	return nil
}

// Close runs teardown and transitions ALIVE -> CLOSE. It returns whether teardown ran.
// Closing a closed or never opened channel only logs. A teardown error is logged and
// does not prevent the transition, resource release is best effort.
func (c *Channel) Close(teardown func() error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.State() {
	case StateClose:
		Logger.Infof("%s close fail: already close", c.name)
		return false
	case StateUninit:
		Logger.Infof("%s close fail: don't need to close because node is uninit state", c.name)
		return false
	}

	if teardown != nil {
		if err := teardown(); err != nil {
			Logger.Errorf("%s close error: %v", c.name, err)
		}
	}

	c.state.Store(int32(StateClose))
	return true
}

// State returns the current state
func (c *Channel) State() ChannelState {
	return ChannelState(c.state.Load())
}

// IsAvailable reports whether the channel is ALIVE
func (c *Channel) IsAvailable() bool {
	return c.State().IsAlive()
}

// IsClosed reports whether the channel is CLOSE
func (c *Channel) IsClosed() bool {
	return c.State().IsClose()
}
