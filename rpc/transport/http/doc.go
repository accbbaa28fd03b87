// Package http implements the REST transport engines on top of net/http.
//
// Key Components:
//
//   - httpServerEngine: Implements transport.IServerEngine. It binds a tcp listener,
//     serves POST {contextPath}/{interfaceName}/{methodName} through the shared
//     base.Dispatcher and answers HEAD / for client heartbeats. With request logging
//     enabled every call is logged by a middleware at debug level.
//
//   - httpClientEngine: Implements transport.IClientEngine. Every remote proxy posts
//     the encoded arguments of an invocation and decodes the result. Requests are sent
//     through the configured round tripper (the pooled pool.Transport of the client),
//     failures are returned as transport.CallError with the error kind of the failure.
//
// Thread Safety:
//
//	Both engines are safe for concurrent use. The server handles every call on
//	its own goroutine, the client shares one http.Client between all proxies.
package http
