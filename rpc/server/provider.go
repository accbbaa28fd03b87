package server

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/ValentinKolb/restrpc/rpc/common"
	"github.com/ValentinKolb/restrpc/rpc/iface"
)

// NewProvider creates a provider that calls the methods of impl through reflection.
// impl must implement the interface type of desc.
func NewProvider(desc *iface.Interface, impl any) (IProvider, error) {
	if desc == nil || impl == nil {
		return nil, fmt.Errorf("provider needs an interface and an implementation")
	}
	rv := reflect.ValueOf(impl)
	if !rv.Type().Implements(desc.Type) {
		return nil, fmt.Errorf("%s does not implement %s", rv.Type(), desc.Name)
	}
	return &reflectProvider{desc: desc, impl: rv}, nil
}

type reflectProvider struct {
	desc *iface.Interface
	impl reflect.Value
}

// --------------------------------------------------------------------------
// Interface Methods (docu see server.IProvider)
// --------------------------------------------------------------------------

func (p *reflectProvider) Interface() *iface.Interface {
	return p.desc
}

func (p *reflectProvider) Call(ctx context.Context, req *common.Request) *common.Response {
	start := time.Now()
	resp := common.NewResponse(req)
	defer func() { resp.ProcessTime = time.Since(start) }()

	var (
		m   *iface.Method
		err error
	)
	if req.ParamDesc != "" {
		m, err = p.desc.ResolveDesc(req.MethodName, req.ParamDesc)
	} else {
		m, err = p.desc.Resolve(req.MethodName, req.Arguments)
	}
	if err != nil {
		resp.SetException(err)
		return resp
	}

	value, err := m.Call(ctx, p.impl, req.Arguments)
	if err != nil {
		resp.SetException(err)
		return resp
	}
	resp.SetValue(value)
	return resp
}
