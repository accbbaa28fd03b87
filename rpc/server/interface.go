package server

import (
	"context"

	"github.com/ValentinKolb/restrpc/rpc/common"
	"github.com/ValentinKolb/restrpc/rpc/iface"
)

// IProvider is a local service implementation that can be exported
type IProvider interface {
	// Interface returns the exported interface
	Interface() *iface.Interface
	// Call invokes the method named by req on the implementation.
	// Failures are set as the exception of the returned response.
	Call(ctx context.Context, req *common.Request) *common.Response
}

// Handler handles one inbound request
type Handler func(ctx context.Context, req *common.Request) *common.Response

// Filter wraps the handler of every inbound call of a server
type Filter func(next Handler) Handler
