// Package iface builds method registries for Go interface types so that remote
// calls can be resolved by method name and runtime argument types.
//
// An Interface is built once (Describe / Of) and indexes the exported methods of
// a Go interface by (remote name, arity). Resolve scans the matching bucket for
// the method whose parameter types are assignable from the dynamic type of every
// argument and returns ErrUnknownMethod or ErrAmbiguousMethod otherwise.
//
// Go has no method overloading, Alias maps several Go methods onto one remote
// name so that they form an overload set:
//
//	type Greeter interface {
//		Hello(name string) (string, error)
//		HelloByID(id int) (string, error)
//	}
//
//	desc := iface.MustRegister[Greeter](iface.Alias("HelloByID", "Hello"))
//	m, _ := desc.Resolve("Hello", []any{42}) // -> HelloByID
//
// Registered interfaces are looked up by name (Lookup), which is how a request
// naming its target interface is mapped to a type.
package iface
