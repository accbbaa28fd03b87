package base

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ValentinKolb/restrpc/rpc/serializer"
	"github.com/ValentinKolb/restrpc/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport/rpc")

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// Call is an inbound request in the engine independent wire format
type Call struct {
	Path        string
	ContentType string
	RequestID   string
	ParamDesc   string
	Attachments string
	Body        []byte
}

// Result is the response to a Call in the engine independent wire format
type Result struct {
	Status      int
	ContentType string
	RequestID   string
	// Error is the value of the HeaderError header, empty on success
	Error string
	Body  []byte
}

type deployment struct {
	path     string
	resource transport.Resource
}

// -----------------------------------------------------------
// Dispatcher
// -----------------------------------------------------------

// Dispatcher routes inbound calls to deployed resources. It is shared by all
// server engines so that they only differ in how they speak http.
type Dispatcher struct {
	resources *xsync.MapOf[string, *deployment] // resource path -> deployment
	names     *xsync.MapOf[string, string]      // interface name -> resource path
}

// NewDispatcher creates a dispatcher without resources
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		resources: xsync.NewMapOf[string, *deployment](),
		names:     xsync.NewMapOf[string, string](),
	}
}

// Deploy registers the resource under contextPath
func (d *Dispatcher) Deploy(resource transport.Resource, contextPath string) error {
	if resource.Interface == nil || resource.Invoke == nil {
		return errors.New("resource needs an interface and an invoke function")
	}
	name := resource.Interface.Name
	p := ResourcePath(contextPath, name)

	if existing, loaded := d.names.LoadOrStore(name, p); loaded {
		return fmt.Errorf("interface %s already deployed at %s", name, existing)
	}
	if _, loaded := d.resources.LoadOrStore(p, &deployment{path: p, resource: resource}); loaded {
		d.names.Delete(name)
		return fmt.Errorf("resource path %s already in use", p)
	}

	Logger.Infof("Deployed %s at %s", name, p)
	return nil
}

// Undeploy removes the resource of the named interface
func (d *Dispatcher) Undeploy(interfaceName string) error {
	p, ok := d.names.LoadAndDelete(interfaceName)
	if !ok {
		return fmt.Errorf("interface %s is not deployed", interfaceName)
	}
	d.resources.Delete(p)
	Logger.Infof("Undeployed %s from %s", interfaceName, p)
	return nil
}

// Len returns the number of deployed resources
func (d *Dispatcher) Len() int {
	return d.resources.Size()
}

// Dispatch decodes the call, invokes the resource and encodes the result
func (d *Dispatcher) Dispatch(ctx context.Context, call *Call) *Result {
	res := &Result{RequestID: call.RequestID}

	resourcePath, methodName, ok := SplitMethodPath(call.Path)
	if !ok {
		return res.fail(ErrorResolution, http.StatusNotFound, fmt.Errorf("invalid call path %s", call.Path))
	}

	dep, ok := d.resources.Load(resourcePath)
	if !ok {
		return res.fail(ErrorResolution, http.StatusNotFound, fmt.Errorf("no resource deployed at %s", resourcePath))
	}
	i := dep.resource.Interface

	method, err := i.ResolveDesc(methodName, call.ParamDesc)
	if err != nil {
		return res.fail(ErrorResolution, http.StatusNotFound, err)
	}

	ser, err := serializer.ForContentType(call.ContentType)
	if err != nil {
		return res.fail(ErrorProtocol, http.StatusUnsupportedMediaType, err)
	}
	res.ContentType = ser.ContentType()

	args, err := ser.DecodeArgs(call.Body, method.Params)
	if err != nil {
		return res.fail(ErrorProtocol, http.StatusBadRequest, errors.Wrapf(err, "decode arguments of %s", method))
	}

	attachments, err := DecodeAttachments(call.Attachments)
	if err != nil {
		return res.fail(ErrorProtocol, http.StatusBadRequest, err)
	}

	value, err := dep.resource.Invoke(ctx, &transport.InboundCall{
		RequestID:   call.RequestID,
		Interface:   i,
		Method:      method,
		Args:        args,
		Attachments: attachments,
	})
	if err != nil {
		kind, status := errorClass(err)
		return res.fail(kind, status, err)
	}

	body, err := ser.EncodeValue(value)
	if err != nil {
		return res.fail(ErrorProtocol, http.StatusInternalServerError, errors.Wrapf(err, "encode result of %s", method))
	}

	res.Status = http.StatusOK
	res.Body = body
	return res
}

func (r *Result) fail(kind string, status int, err error) *Result {
	Logger.Debugf("call %s failed (%s): %v", r.RequestID, kind, err)
	r.Status = status
	r.ContentType = ContentTypeText
	r.Error = kind
	r.Body = []byte(err.Error())
	return r
}
