// Package serializer provides body serialization for the REST RPC transport.
// It defines a common interface and the implementations used for the request
// arguments and the result values exchanged between client and server.
//
// The package focuses on:
//   - Providing a consistent interface for different serialization formats
//   - Typed decoding: the receiver knows the parameter and result types of the
//     resolved method and decodes straight into them
//   - Selection by url parameter (New) or http content type (ForContentType)
//
// Key Components:
//
//   - IRESTSerializer: Core interface that all serializer implementations must satisfy.
//
//   - jsonSerializerImpl: Arguments as a json array, results as a json value.
//     Human readable and interoperable with any http client. This is the default.
//
//   - gobSerializerImpl: Go's gob encoding, compact but only usable between Go
//     peers. Values of types registered with gob.Register are sent as interface
//     values, so interface typed parameters and results work for them.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
package serializer
