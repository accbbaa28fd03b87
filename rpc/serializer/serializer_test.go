package serializer

import (
	"encoding/gob"
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRESTSerializer{
	"JSON": NewJSONSerializer,
	"GOB":  NewGOBSerializer,
}

type user struct {
	ID   string
	Name string
	Tags []string
}

// TestArgsRoundTrip tests that typed arguments survive encoding and decoding
func TestArgsRoundTrip(t *testing.T) {
	args := []any{"id-1", 42, &user{ID: "u", Name: "alice", Tags: []string{"a"}}, map[string]int{"x": 1}}
	types := []reflect.Type{
		reflect.TypeOf(""),
		reflect.TypeOf(0),
		reflect.TypeOf(&user{}),
		reflect.TypeOf(map[string]int{}),
	}

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			s := factory()

			data, err := s.EncodeArgs(args)
			require.NoError(t, err)

			decoded, err := s.DecodeArgs(data, types)
			require.NoError(t, err)
			assert.Equal(t, args, decoded)
		})
	}
}

// TestNilArguments tests that nil arguments decode to the zero value of the parameter
func TestNilArguments(t *testing.T) {
	types := []reflect.Type{reflect.TypeOf(""), reflect.TypeOf(&user{})}

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			s := factory()

			data, err := s.EncodeArgs([]any{"k", nil})
			require.NoError(t, err)

			decoded, err := s.DecodeArgs(data, types)
			require.NoError(t, err)
			require.Len(t, decoded, 2)
			assert.Equal(t, "k", decoded[0])
			assert.Nil(t, decoded[1].(*user))
		})
	}
}

// TestArgumentCountMismatch tests that the decoder rejects a wrong number of arguments
func TestArgumentCountMismatch(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			s := factory()

			data, err := s.EncodeArgs([]any{"a", "b"})
			require.NoError(t, err)

			_, err = s.DecodeArgs(data, []reflect.Type{reflect.TypeOf("")})
			assert.Error(t, err)
		})
	}
}

// TestValues tests result values including nil and empty bodies
func TestValues(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			s := factory()

			data, err := s.EncodeValue(&user{ID: "1", Name: "n"})
			require.NoError(t, err)
			v, err := s.DecodeValue(data, reflect.TypeOf(&user{}))
			require.NoError(t, err)
			assert.Equal(t, &user{ID: "1", Name: "n"}, v)

			data, err = s.EncodeValue(nil)
			require.NoError(t, err)
			v, err = s.DecodeValue(data, reflect.TypeOf(&user{}))
			require.NoError(t, err)
			assert.Nil(t, v.(*user))

			v, err = s.DecodeValue(nil, reflect.TypeOf(0))
			require.NoError(t, err)
			assert.Equal(t, 0, v)
		})
	}
}

func TestSelection(t *testing.T) {
	s, err := New("gob")
	require.NoError(t, err)
	assert.Equal(t, "gob", s.Name())

	s, err = New("")
	require.NoError(t, err)
	assert.Equal(t, "json", s.Name())

	_, err = New("binary")
	assert.Error(t, err)

	s, err = ForContentType("application/json; charset=utf-8")
	require.NoError(t, err)
	assert.Equal(t, "json", s.Name())

	s, err = ForContentType(NewGOBSerializer().ContentType())
	require.NoError(t, err)
	assert.Equal(t, "gob", s.Name())

	_, err = ForContentType("text/plain")
	assert.Error(t, err)
}

type point struct {
	X, Y int
}

func (p point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

func init() {
	gob.Register(point{})
}

// TestGOBInterfaceTypes tests that registered types decode into interface typed parameters and results
func TestGOBInterfaceTypes(t *testing.T) {
	s := NewGOBSerializer()
	anyType := reflect.TypeOf((*any)(nil)).Elem()
	stringerType := reflect.TypeOf((*fmt.Stringer)(nil)).Elem()

	data, err := s.EncodeArgs([]any{point{1, 2}, point{3, 4}, "plain", 7})
	require.NoError(t, err)

	decoded, err := s.DecodeArgs(data, []reflect.Type{anyType, stringerType, reflect.TypeOf(""), reflect.TypeOf(int64(0))})
	require.NoError(t, err)
	assert.Equal(t, []any{point{1, 2}, point{3, 4}, "plain", int64(7)}, decoded)
	assert.Equal(t, "(3,4)", decoded[1].(fmt.Stringer).String())

	data, err = s.EncodeValue(point{5, 6})
	require.NoError(t, err)
	v, err := s.DecodeValue(data, stringerType)
	require.NoError(t, err)
	assert.Equal(t, point{5, 6}, v)

	// a concrete value stays decodable into its own type
	v, err = s.DecodeValue(data, reflect.TypeOf(point{}))
	require.NoError(t, err)
	assert.Equal(t, point{5, 6}, v)

	_, err = s.DecodeValue(data, reflect.TypeOf(""))
	assert.Error(t, err)
}
