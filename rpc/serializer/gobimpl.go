package serializer

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"reflect"
)

const gobContentType = "application/x-gob"

// NewGOBSerializer creates a new serializer using Go's binary gob format
func NewGOBSerializer() IRESTSerializer {
	return &gobSerializerImpl{}
}

// gobSerializerImpl implements the IRESTSerializer interface using gob encoding.
// Every value is written with a mode byte: nil, concrete or interface. Values whose
// type is registered with gob.Register are sent as interface values so that they
// can be decoded into interface typed parameters and results, all others are sent
// as concrete values. The arguments are one gob stream of mode and payload pairs.
type gobSerializerImpl struct {
}

// gob value modes
const (
	gobNil byte = iota
	gobConcrete
	gobInterface
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRESTSerializer)
// --------------------------------------------------------------------------

func (g gobSerializerImpl) Name() string {
	return "gob"
}

func (g gobSerializerImpl) ContentType() string {
	return gobContentType
}

func (g gobSerializerImpl) EncodeArgs(args []any) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(len(args)); err != nil {
		return nil, err
	}
	for i, arg := range args {
		mode, payload, err := encodeGobValue(arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		if err := enc.Encode(mode); err != nil {
			return nil, err
		}
		if mode == gobNil {
			continue
		}
		if err := enc.Encode(payload); err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

func (g gobSerializerImpl) DecodeArgs(b []byte, types []reflect.Type) ([]any, error) {
	dec := gob.NewDecoder(bytes.NewReader(b))
	var n int
	if err := dec.Decode(&n); err != nil {
		return nil, err
	}
	if n != len(types) {
		return nil, fmt.Errorf("expected %d arguments, got %d", len(types), n)
	}

	args := make([]any, len(types))
	for i, t := range types {
		var mode byte
		if err := dec.Decode(&mode); err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		var payload []byte
		if mode != gobNil {
			if err := dec.Decode(&payload); err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
		}
		v, err := decodeGobValue(mode, payload, t)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		args[i] = v
	}
	return args, nil
}

func (g gobSerializerImpl) EncodeValue(v any) ([]byte, error) {
	mode, payload, err := encodeGobValue(v)
	if err != nil {
		return nil, err
	}
	// an empty body is decoded to the zero value
	if mode == gobNil {
		return []byte{}, nil
	}
	return append([]byte{mode}, payload...), nil
}

func (g gobSerializerImpl) DecodeValue(b []byte, t reflect.Type) (any, error) {
	if len(b) == 0 {
		return decodeGobValue(gobNil, nil, t)
	}
	return decodeGobValue(b[0], b[1:], t)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// encodeGobValue encodes v as interface value if its type is registered, as concrete value otherwise
func encodeGobValue(v any) (byte, []byte, error) {
	if isNil(v) {
		return gobNil, nil, nil
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&v); err == nil {
		return gobInterface, buf.Bytes(), nil
	}

	buf.Reset()
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return 0, nil, err
	}
	return gobConcrete, buf.Bytes(), nil
}

// decodeGobValue decodes payload into a value of type t
func decodeGobValue(mode byte, payload []byte, t reflect.Type) (any, error) {
	ptr := reflect.New(t)

	switch mode {
	case gobNil:
	case gobConcrete:
		if err := gob.NewDecoder(bytes.NewReader(payload)).DecodeValue(ptr); err != nil {
			return nil, err
		}
	case gobInterface:
		var v any
		if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&v); err != nil {
			return nil, err
		}
		rv := reflect.ValueOf(v)
		switch {
		case rv.Type().AssignableTo(t):
			ptr.Elem().Set(rv)
		case rv.Kind() != reflect.String && t.Kind() != reflect.String && rv.Type().ConvertibleTo(t):
			ptr.Elem().Set(rv.Convert(t))
		default:
			return nil, fmt.Errorf("%s is not assignable to %s", rv.Type(), t)
		}
	default:
		return nil, fmt.Errorf("invalid gob value mode %d", mode)
	}

	return ptr.Elem().Interface(), nil
}

// isNil reports whether v is nil or a nil pointer, map or slice
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}
