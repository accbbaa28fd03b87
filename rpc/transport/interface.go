package transport

import (
	"context"
	"net"

	"github.com/ValentinKolb/restrpc/rpc/common"
	"github.com/ValentinKolb/restrpc/rpc/iface"
)

// --------------------------------------------------------------------------
// Server Engine
// --------------------------------------------------------------------------

// InboundCall is one decoded call received by a server engine
type InboundCall struct {
	RequestID   string
	Interface   *iface.Interface
	Method      *iface.Method
	Args        []any
	Attachments map[string]string
}

// InvokeFunc handles one inbound call and returns the method result
type InvokeFunc func(ctx context.Context, call *InboundCall) (any, error)

// Resource is a callable interface deployed on a server engine
type Resource struct {
	// Interface is the served interface, its name is part of the resource path
	Interface *iface.Interface
	// Invoke is called for every call of one of the interface methods
	Invoke InvokeFunc
}

// IServerEngine is the embedded inbound server of a RestServer.
// Calls are routed by POST {contextPath}/{interfaceName}/{methodName}.
type IServerEngine interface {
	// Open binds the engine to address (host:port) and starts serving in the background
	Open(address string) error
	// Deploy registers a resource under contextPath, an interface can only be deployed once
	Deploy(resource Resource, contextPath string) error
	// Undeploy removes the resource of the named interface
	Undeploy(interfaceName string) error
	// Close unbinds the engine and releases all resources
	Close() error
	// Addr returns the bound address, nil before Open
	Addr() net.Addr
}

// --------------------------------------------------------------------------
// Client Engine
// --------------------------------------------------------------------------

// Invocation is one outbound call of a resolved method
type Invocation struct {
	RequestID   string
	Method      *iface.Method
	Args        []any
	Attachments map[string]string
}

// IRemoteProxy forwards the calls of one interface to the remote endpoint
type IRemoteProxy interface {
	// Interface returns the proxied interface
	Interface() *iface.Interface
	// Invoke performs one network round trip and returns the decoded result
	Invoke(ctx context.Context, inv *Invocation) (any, error)
}

// IClientEngine is the outbound transport engine of a RestClient
type IClientEngine interface {
	// Proxy creates a new remote proxy for the interface
	Proxy(i *iface.Interface) IRemoteProxy
	// Heartbeat checks that the remote endpoint answers http requests
	Heartbeat(ctx context.Context) error
	// Close releases the engine, in flight calls fail with a transport error
	Close() error
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

// CallError is a failed outbound call classified by the engine
type CallError struct {
	Kind common.ErrorKind
	Err  error
}

func (e *CallError) Error() string {
	return e.Err.Error()
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// NewCallError classifies err
func NewCallError(kind common.ErrorKind, err error) *CallError {
	return &CallError{Kind: kind, Err: err}
}
