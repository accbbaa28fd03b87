package serializer

import (
	"encoding/json"
	"fmt"
	"reflect"
)

const jsonContentType = "application/json"

// NewJSONSerializer creates a new serializer using json encoding
func NewJSONSerializer() IRESTSerializer {
	return &jsonSerializerImpl{}
}

// jsonSerializerImpl implements the IRESTSerializer interface using json encoding.
// Arguments are encoded as a json array.
type jsonSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRESTSerializer)
// --------------------------------------------------------------------------

func (j jsonSerializerImpl) Name() string {
	return "json"
}

func (j jsonSerializerImpl) ContentType() string {
	return jsonContentType
}

func (j jsonSerializerImpl) EncodeArgs(args []any) ([]byte, error) {
	if args == nil {
		args = []any{}
	}
	return json.Marshal(args)
}

func (j jsonSerializerImpl) DecodeArgs(b []byte, types []reflect.Type) ([]any, error) {
	var raw []json.RawMessage
	if len(b) > 0 {
		if err := json.Unmarshal(b, &raw); err != nil {
			return nil, err
		}
	}
	if len(raw) != len(types) {
		return nil, fmt.Errorf("expected %d arguments, got %d", len(types), len(raw))
	}

	args := make([]any, len(types))
	for i, t := range types {
		ptr := reflect.New(t)
		if err := json.Unmarshal(raw[i], ptr.Interface()); err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		args[i] = ptr.Elem().Interface()
	}
	return args, nil
}

func (j jsonSerializerImpl) EncodeValue(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (j jsonSerializerImpl) DecodeValue(b []byte, t reflect.Type) (any, error) {
	ptr := reflect.New(t)
	if len(b) > 0 {
		if err := json.Unmarshal(b, ptr.Interface()); err != nil {
			return nil, err
		}
	}
	return ptr.Elem().Interface(), nil
}
