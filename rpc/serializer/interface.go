package serializer

import (
	"fmt"
	"reflect"
	"strings"
)

// IRESTSerializer is the interface for all body serializers of the REST transport.
// Arguments are encoded as one ordered list, results as a single value.
type IRESTSerializer interface {
	// Name returns the name used in the serialization url parameter (e.g. "json")
	Name() string
	// ContentType returns the http content type of the encoded bodies
	ContentType() string
	// EncodeArgs encodes the ordered argument values of a call
	EncodeArgs(args []any) ([]byte, error)
	// DecodeArgs decodes the arguments of a call into values of the given types
	DecodeArgs(b []byte, types []reflect.Type) ([]any, error)
	// EncodeValue encodes the result of a call, v may be nil
	EncodeValue(v any) ([]byte, error)
	// DecodeValue decodes the result of a call into a value of type t.
	// An empty body decodes to the zero value of t.
	DecodeValue(b []byte, t reflect.Type) (any, error)
}

// New returns the serializer registered under name
func New(name string) (IRESTSerializer, error) {
	switch strings.ToLower(name) {
	case "", "json":
		return NewJSONSerializer(), nil
	case "gob":
		return NewGOBSerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", name)
	}
}

// ForContentType returns the serializer for an http content type
func ForContentType(contentType string) (IRESTSerializer, error) {
	// strip parameters like "; charset=utf-8"
	mediaType := strings.TrimSpace(strings.Split(contentType, ";")[0])
	switch mediaType {
	case "", jsonContentType:
		return NewJSONSerializer(), nil
	case gobContentType:
		return NewGOBSerializer(), nil
	default:
		return nil, fmt.Errorf("unsupported content type %s", contentType)
	}
}
