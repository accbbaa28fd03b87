package common

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// --------------------------------------------------------------------------
// Request
// --------------------------------------------------------------------------

// Request is one call of a remote method
type Request struct {
	// RequestID is an opaque correlation id
	RequestID string
	// InterfaceName is the registered name of the target interface
	InterfaceName string
	// MethodName is the remote method name
	MethodName string
	// ParamDesc describes the parameter types (comma separated), optional
	ParamDesc string
	// Arguments are the ordered argument values
	Arguments []any
	// Attachments is propagated metadata, opaque to the transport
	Attachments map[string]string
}

// NewRequest creates a request with a fresh request id
func NewRequest(interfaceName, methodName string, args ...any) *Request {
	return &Request{
		RequestID:     NewRequestID(),
		InterfaceName: interfaceName,
		MethodName:    methodName,
		Arguments:     args,
		Attachments:   make(map[string]string),
	}
}

// NewRequestID returns a new unique correlation id
func NewRequestID() string {
	return uuid.New().String()
}

// SetAttachment sets one attachment, allocating the map if needed
func (r *Request) SetAttachment(key, value string) {
	if r.Attachments == nil {
		r.Attachments = make(map[string]string)
	}
	r.Attachments[key] = value
}

func (r *Request) String() string {
	return fmt.Sprintf("requestId=%s interface=%s method=%s(%s)", r.RequestID, r.InterfaceName, r.MethodName, r.ParamDesc)
}

// --------------------------------------------------------------------------
// Response
// --------------------------------------------------------------------------

// Response is the result of a Request. It carries either a value or an exception, never both.
type Response struct {
	RequestID   string
	Value       any
	Exception   error
	Attachments map[string]string
	ProcessTime time.Duration
}

// NewResponse creates a response echoing the request id and attachments
func NewResponse(req *Request) *Response {
	return &Response{
		RequestID:   req.RequestID,
		Attachments: req.Attachments,
	}
}

// SetValue stores the success value and clears any exception
func (r *Response) SetValue(v any) {
	r.Value = v
	r.Exception = nil
}

// SetException stores the failure and clears any value
func (r *Response) SetException(err error) {
	r.Value = nil
	r.Exception = err
}
