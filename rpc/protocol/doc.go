// Package protocol implements the REST protocol: exporting local providers and
// referring remote services.
//
// Key Components:
//
//   - RestProtocol: The exporter registry. Every bind address (host:port) is served
//     by exactly one server.RestServer which is created and opened by the first
//     export on that address. Further exports on the same address are deployed on
//     the existing server. Exporting the same interface twice on one address fails
//     with ErrAlreadyExported. Destroy closes every server and referer.
//
//   - Exporter: The handle of one export. Unexport removes only its provider, the
//     server keeps serving the others.
//
//   - Referer: A client.RestClient bound to one remote interface. Invoke resolves the
//     method by name and the runtime types of the arguments.
//
// Thread Safety:
//
//	All methods are safe for concurrent use. Server creation is serialized by a
//	mutex, deploying happens outside of it.
package protocol
