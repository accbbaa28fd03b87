package common

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// --------------------------------------------------------------------------
// Sentinel errors
// --------------------------------------------------------------------------

var (
	// ErrChannelClosed is returned when opening an endpoint that was already closed
	ErrChannelClosed = errors.New("channel already closed")
	// ErrUnavailable is the cause of every call attempted on an endpoint that is not alive
	ErrUnavailable = errors.New("endpoint unavailable")
	// ErrUnknownType means the target interface is not registered
	ErrUnknownType = errors.New("unknown interface type")
	// ErrUnknownMethod means no method matches the name and the runtime argument types
	ErrUnknownMethod = errors.New("unknown method")
	// ErrAmbiguousMethod means more than one method matches equally well
	ErrAmbiguousMethod = errors.New("ambiguous method")
	// ErrIllegalAccess means the method exists but may not be invoked
	ErrIllegalAccess = errors.New("illegal access")
	// ErrUnsupported is returned by operations an endpoint does not implement
	ErrUnsupported = errors.New("operation not supported")
)

// --------------------------------------------------------------------------
// Service error
// --------------------------------------------------------------------------

// ErrorKind classifies a ServiceError
type ErrorKind int

const (
	// KindUnavailable - the endpoint was not ALIVE when the call was attempted
	KindUnavailable ErrorKind = iota + 1
	// KindResolution - the target interface or method could not be located or matched
	KindResolution
	// KindInvocation - the resolved remote call itself failed
	KindInvocation
	// KindCapacity - the connection pool was exhausted beyond the configured wait
	KindCapacity
	// KindTransport - any other network level failure
	KindTransport
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindResolution:
		return "resolution"
	case KindInvocation:
		return "invocation"
	case KindCapacity:
		return "capacity"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// ServiceError is the structured error surfaced to callers of an endpoint.
// It carries the endpoint target and, where known, the interface and method.
type ServiceError struct {
	Kind      ErrorKind
	Target    string
	Interface string
	Method    string
	RequestID string
	Err       error
}

// NewServiceError creates a ServiceError of the given kind for the request (may be nil)
func NewServiceError(kind ErrorKind, target string, req *Request, err error) *ServiceError {
	e := &ServiceError{
		Kind:   kind,
		Target: target,
		Err:    err,
	}
	if req != nil {
		e.Interface = req.InterfaceName
		e.Method = req.MethodName
		e.RequestID = req.RequestID
	}
	return e
}

func (e *ServiceError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("rest %s error: url=%s", e.Kind, e.Target))
	if e.Interface != "" {
		sb.WriteString(fmt.Sprintf(" interface=%s", e.Interface))
	}
	if e.Method != "" {
		sb.WriteString(fmt.Sprintf(" method=%s", e.Method))
	}
	if e.RequestID != "" {
		sb.WriteString(fmt.Sprintf(" requestId=%s", e.RequestID))
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// ErrorKindOf returns the kind of the first ServiceError in the chain of err, or 0
func ErrorKindOf(err error) ErrorKind {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

// --------------------------------------------------------------------------
// Remote error
// --------------------------------------------------------------------------

// RemoteError is an error raised by the remote method itself, transported as a message
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}
