package iface

import (
	"fmt"

	"github.com/ValentinKolb/restrpc/rpc/common"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

// registry maps interface names to their descriptions for the whole process
var registry = xsync.NewMapOf[string, *Interface]()

// Register makes the interface resolvable by name. Registering the same
// type twice is a no-op, registering a different type under a used name fails.
func Register(i *Interface) error {
	actual, loaded := registry.LoadOrStore(i.Name, i)
	if loaded && actual.Type != i.Type {
		return fmt.Errorf("interface name %s already registered for %s", i.Name, actual.Type)
	}
	return nil
}

// MustRegister describes T, registers it and panics on error. Meant for package init.
func MustRegister[T any](opts ...Option) *Interface {
	i, err := Of[T](opts...)
	if err != nil {
		panic(err)
	}
	if err := Register(i); err != nil {
		panic(err)
	}
	actual, _ := registry.Load(i.Name)
	return actual
}

// Lookup returns the registered interface called name
func Lookup(name string) (*Interface, error) {
	i, ok := registry.Load(name)
	if !ok {
		return nil, errors.Wrapf(common.ErrUnknownType, "interface %s", name)
	}
	return i, nil
}

// Unregister removes the interface called name
func Unregister(name string) {
	registry.Delete(name)
}
