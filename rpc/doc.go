// Package rpc provides a REST transport for remote procedure calls. Every method of
// an exported interface is an http resource (POST {contextPath}/{interface}/{method}),
// any number of services can share one bind address.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures used across the RPC system, including the
//     endpoint lifecycle (Channel), URLs, requests and responses, errors and logging.
//
//   - iface: Reflection based descriptions of service interfaces and the process
//     wide interface registry. Methods are resolved by name and argument types.
//
//   - serializer: Body formats (JSON, GOB) for arguments and results.
//
//   - transport: The engine abstraction with the net/http and fasthttp server
//     engines, the net/http client engine and the pooled connection transport.
//
//   - client: The client endpoint (RestClient) with its connection pool, idle
//     connection reaper and proxy cache.
//
//   - server: The server endpoint (RestServer) and local service providers.
//
//   - protocol: The exporter registry that shares one server per address.
//
//   - stats: Statistics callbacks and process wide metrics.
package rpc
