package hello

import (
	"context"

	"github.com/ValentinKolb/restrpc/rpc/iface"
)

// User is the result of a hello call
type User struct {
	ID     string
	Name   string
	Number int
}

// HelloService is the demo service served by the serve command.
type HelloService interface {
	// Hello returns the user with the given id
	Hello(id string) (*User, error)
	// HelloByNumber returns the user with the given numeric id. It is called remotely as Hello.
	HelloByNumber(id int) (*User, error)
	// Greet returns the greeting for name repeated times times
	Greet(ctx context.Context, name string, times int) (string, error)
	// Fail always fails with reason
	Fail(reason string) error
}

// Interface is the registered description of HelloService
var Interface = iface.MustRegister[HelloService](
	iface.WithName("hello.HelloService"),
	iface.Alias("HelloByNumber", "Hello"),
)
