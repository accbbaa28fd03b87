// Package common provides core data structures and utilities shared across
// the REST RPC transport. It defines the endpoint identity, the request and
// response values, the error taxonomy and the endpoint lifecycle.
//
// The package focuses on:
//   - The channel state machine shared by client and server endpoints
//   - Request / Response values passed through the call pipeline
//   - Structured service errors (unavailable, resolution, invocation, capacity)
//   - Configuration structures for the command line
//   - Custom logging implementation integrated with Dragonboat's logger facade
//
// Key Components:
//
//   - Channel: UNINIT -> ALIVE -> CLOSE state machine. Open and Close are
//     idempotent and serialized per endpoint, state queries never block.
//
//   - URL: identifies an endpoint (protocol, host, port, path, parameters).
//     Services exported on the same Address() share one server.
//
//   - Request / Response: a response always echoes the request id and the
//     attachments of its request and carries either a value or an exception.
//
//   - ServiceError: error surfaced to callers, classified by ErrorKind and
//     carrying the endpoint target, interface and method.
//
//   - Logger: zap backed implementation of Dragonboat's ILogger, installed by
//     InitLoggers.
package common
