// Package client implements the client endpoint of the REST transport.
//
// A RestClient talks to one remote address. It owns a bounded connection pool
// (transport/pool) whose idle connections are closed by a reaper goroutine, and
// an outbound engine (transport/http by default) created when the client is opened.
//
// Key Components:
//
//   - Lifecycle: NewRestClient -> Open -> Close, following the UNINIT/ALIVE/CLOSE
//     state machine of common.Channel. Open and Close are idempotent, a closed
//     client stays closed.
//
//   - Request: Looks up the target interface by name (iface.Lookup), resolves the
//     method by the runtime types of the arguments (or the parameter descriptor)
//     and invokes it through the cached remote proxy of the interface. Failures are
//     returned as common.ServiceError classified by kind (unavailable, resolution,
//     invocation, capacity, transport).
//
//   - Proxy cache: One remote proxy per interface in an xsync map. On a miss the
//     proxy is created and inserted with LoadOrStore, every caller uses the entry
//     that won the insert.
//
// Usage Example:
//
//	u, _ := common.ParseURL("rest://127.0.0.1:8002?serialization=json")
//	c, _ := client.NewRestClient(u)
//	_ = c.Open()
//	defer c.Close()
//
//	req := common.NewRequest("hello.HelloService", "Hello", "42")
//	resp, err := c.Request(ctx, req)
//
// Thread Safety:
//
//	All methods are safe for concurrent use.
package client
