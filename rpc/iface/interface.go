package iface

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/ValentinKolb/restrpc/rpc/common"
	"github.com/pkg/errors"
)

// Precompute the reflect types for context and error
var (
	typeOfContext = reflect.TypeOf((*context.Context)(nil)).Elem()
	typeOfError   = reflect.TypeOf((*error)(nil)).Elem()
)

// --------------------------------------------------------------------------
// Method
// --------------------------------------------------------------------------

// Method describes one remotely callable method of an interface
type Method struct {
	// Name is the remote method name (several methods may share it)
	Name string
	// GoName is the name of the Go method that implements it
	GoName string
	// Params are the parameter types without a leading context.Context
	Params []reflect.Type
	// Result is the type of the returned value, nil if the method only returns an error
	Result reflect.Type
	// WithContext is set if the Go method takes a leading context.Context
	WithContext bool

	desc string
}

// Arity returns the number of parameters (without context)
func (m *Method) Arity() int {
	return len(m.Params)
}

// ParamDesc returns the comma separated parameter type names
func (m *Method) ParamDesc() string {
	return m.desc
}

func (m *Method) String() string {
	return fmt.Sprintf("%s(%s)", m.Name, m.desc)
}

// Call invokes the method on impl with the given arguments.
// An error returned by the method is passed through unchanged, a panic is converted to an error.
func (m *Method) Call(ctx context.Context, impl reflect.Value, args []any) (result any, err error) {
	if len(args) != len(m.Params) {
		return nil, errors.Wrapf(common.ErrUnknownMethod, "%s expects %d arguments, got %d", m, len(m.Params), len(args))
	}

	fn := impl.MethodByName(m.GoName)
	if !fn.IsValid() {
		return nil, errors.Wrapf(common.ErrIllegalAccess, "%s is not implemented by %s", m.GoName, impl.Type())
	}

	in := make([]reflect.Value, 0, len(args)+1)
	if m.WithContext {
		if ctx == nil {
			ctx = context.Background()
		}
		in = append(in, reflect.ValueOf(ctx))
	}
	for i, arg := range args {
		v, err := argValue(arg, m.Params[i])
		if err != nil {
			return nil, errors.Wrapf(err, "argument %d of %s", i, m)
		}
		in = append(in, v)
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%s panicked: %v", m.GoName, r)
		}
	}()

	out := fn.Call(in)

	// the last return value is always the error
	if errV := out[len(out)-1]; !errV.IsNil() {
		return nil, errV.Interface().(error)
	}
	if m.Result != nil {
		return out[0].Interface(), nil
	}
	return nil, nil
}

// --------------------------------------------------------------------------
// Interface
// --------------------------------------------------------------------------

// methodKey indexes methods by remote name and arity
type methodKey struct {
	name  string
	arity int
}

// Interface is the method registry of one Go interface type. It is built once
// by Describe and read only afterwards, so it is safe for concurrent use.
type Interface struct {
	Name    string
	Type    reflect.Type
	methods []*Method
	byKey   map[methodKey][]*Method
}

// Option configures Describe
type Option func(*describeOptions)

type describeOptions struct {
	name    string
	aliases map[string]string
}

// WithName sets the registered interface name (default: <pkgpath>.<TypeName>)
func WithName(name string) Option {
	return func(o *describeOptions) {
		o.name = name
	}
}

// Alias exposes the Go method goName under remoteName. Go interfaces cannot
// overload method names, aliases let several Go methods form one overload set.
func Alias(goName, remoteName string) Option {
	return func(o *describeOptions) {
		o.aliases[goName] = remoteName
	}
}

// Of describes the interface type T
func Of[T any](opts ...Option) (*Interface, error) {
	return Describe(reflect.TypeOf((*T)(nil)).Elem(), opts...)
}

// Describe builds the method registry of the interface type t.
// Every exported method must return error or (T, error) and may take a leading context.Context.
func Describe(t reflect.Type, opts ...Option) (*Interface, error) {
	if t == nil {
		return nil, fmt.Errorf("cannot describe nil type")
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Interface {
		return nil, fmt.Errorf("%s is not an interface type", t)
	}

	o := &describeOptions{aliases: make(map[string]string)}
	for _, opt := range opts {
		opt(o)
	}
	if o.name == "" {
		o.name = t.PkgPath() + "." + t.Name()
	}

	i := &Interface{
		Name:  o.name,
		Type:  t,
		byKey: make(map[methodKey][]*Method),
	}

	for n := 0; n < t.NumMethod(); n++ {
		rm := t.Method(n)
		if !rm.IsExported() {
			continue
		}
		m, err := newMethod(rm, o.aliases[rm.Name])
		if err != nil {
			return nil, fmt.Errorf("interface %s: %w", i.Name, err)
		}
		i.methods = append(i.methods, m)
		key := methodKey{m.Name, m.Arity()}
		i.byKey[key] = append(i.byKey[key], m)
	}

	for goName := range o.aliases {
		if _, ok := t.MethodByName(goName); !ok {
			return nil, fmt.Errorf("interface %s: alias for unknown method %s", i.Name, goName)
		}
	}

	return i, nil
}

// newMethod checks the signature of an interface method and converts it
func newMethod(rm reflect.Method, alias string) (*Method, error) {
	ft := rm.Type
	if ft.IsVariadic() {
		return nil, fmt.Errorf("method %s: variadic methods are not supported", rm.Name)
	}

	m := &Method{
		Name:   rm.Name,
		GoName: rm.Name,
	}
	if alias != "" {
		m.Name = alias
	}

	start := 0
	if ft.NumIn() > 0 && ft.In(0) == typeOfContext {
		m.WithContext = true
		start = 1
	}
	for n := start; n < ft.NumIn(); n++ {
		m.Params = append(m.Params, ft.In(n))
	}

	switch {
	case ft.NumOut() == 1 && ft.Out(0) == typeOfError:
	case ft.NumOut() == 2 && ft.Out(1) == typeOfError:
		m.Result = ft.Out(0)
	default:
		return nil, fmt.Errorf("method %s: must return error or (T, error)", rm.Name)
	}

	m.desc = describeParams(m.Params)
	return m, nil
}

// Methods returns all methods in declaration order
func (i *Interface) Methods() []*Method {
	return i.methods
}

// Resolve finds the method called name whose parameters are assignable from the
// dynamic types of args. Exact type matches win over assignable ones.
func (i *Interface) Resolve(name string, args []any) (*Method, error) {
	candidates := i.byKey[methodKey{name, len(args)}]
	if len(candidates) == 0 {
		return nil, errors.Wrapf(common.ErrUnknownMethod, "%s.%s with %d arguments", i.Name, name, len(args))
	}

	var best *Method
	bestScore, ties := -1, 0
	for _, m := range candidates {
		score, ok := matchScore(m.Params, args)
		if !ok {
			continue
		}
		switch {
		case score > bestScore:
			best, bestScore, ties = m, score, 0
		case score == bestScore:
			ties++
		}
	}

	if best == nil {
		return nil, errors.Wrapf(common.ErrUnknownMethod, "%s.%s(%s)", i.Name, name, describeArgs(args))
	}
	if ties > 0 {
		return nil, errors.Wrapf(common.ErrAmbiguousMethod, "%s.%s(%s)", i.Name, name, describeArgs(args))
	}
	return best, nil
}

// ResolveDesc finds the method by name and parameter descriptor
func (i *Interface) ResolveDesc(name, paramDesc string) (*Method, error) {
	for _, m := range i.methods {
		if m.Name == name && m.desc == paramDesc {
			return m, nil
		}
	}
	return nil, errors.Wrapf(common.ErrUnknownMethod, "%s.%s(%s)", i.Name, name, paramDesc)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// matchScore reports whether all args fit the params and how many fit exactly
func matchScore(params []reflect.Type, args []any) (int, bool) {
	exact := 0
	for n, p := range params {
		if args[n] == nil {
			if !nillable(p) {
				return 0, false
			}
			continue
		}
		at := reflect.TypeOf(args[n])
		if at == p {
			exact++
		} else if !at.AssignableTo(p) {
			return 0, false
		}
	}
	return exact, true
}

// nillable reports whether nil is a valid value of t
func nillable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return true
	default:
		return false
	}
}

// argValue converts an argument to a reflect.Value usable as parameter p
func argValue(arg any, p reflect.Type) (reflect.Value, error) {
	if arg == nil {
		if !nillable(p) {
			return reflect.Value{}, fmt.Errorf("nil is not a valid %s", p)
		}
		return reflect.Zero(p), nil
	}
	v := reflect.ValueOf(arg)
	if v.Type().AssignableTo(p) {
		return v, nil
	}
	if v.Type().ConvertibleTo(p) && v.Kind() != reflect.String && p.Kind() != reflect.String {
		return v.Convert(p), nil
	}
	return reflect.Value{}, fmt.Errorf("%s is not assignable to %s", v.Type(), p)
}

func describeParams(params []reflect.Type) string {
	names := make([]string, len(params))
	for n, p := range params {
		names[n] = p.String()
	}
	return strings.Join(names, ",")
}

func describeArgs(args []any) string {
	names := make([]string, len(args))
	for n, a := range args {
		if a == nil {
			names[n] = "nil"
		} else {
			names[n] = reflect.TypeOf(a).String()
		}
	}
	return strings.Join(names, ",")
}
