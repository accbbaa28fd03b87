package hello

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/restrpc/rpc/protocol"
)

// Client is the typed stub of a remote HelloService
type Client struct {
	ref *protocol.Referer
}

// NewClient creates a stub on top of ref, which must refer Interface
func NewClient(ref *protocol.Referer) *Client {
	return &Client{ref: ref}
}

func (c *Client) Hello(ctx context.Context, id string) (*User, error) {
	return c.user(ctx, id)
}

func (c *Client) HelloByNumber(ctx context.Context, id int) (*User, error) {
	return c.user(ctx, id)
}

func (c *Client) Greet(ctx context.Context, name string, times int) (string, error) {
	v, err := c.ref.Invoke(ctx, "Greet", name, times)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("unexpected result type %T", v)
	}
	return s, nil
}

func (c *Client) Fail(ctx context.Context, reason string) error {
	_, err := c.ref.Invoke(ctx, "Fail", reason)
	return err
}

// Close destroys the underlying referer
func (c *Client) Close() error {
	return c.ref.Destroy()
}

// user calls the overloaded Hello method, the argument type selects the overload
func (c *Client) user(ctx context.Context, id any) (*User, error) {
	v, err := c.ref.Invoke(ctx, "Hello", id)
	if err != nil {
		return nil, err
	}
	u, ok := v.(*User)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T", v)
	}
	return u, nil
}
