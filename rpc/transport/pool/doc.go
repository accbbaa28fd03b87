// Package pool implements the outbound connection management of the REST client:
// a bounded connection pool, an idle connection reaper and an http.RoundTripper
// that sends requests over pooled connections.
//
// Key Components:
//
//   - Pool: Leases connections per route (host:port). The pool enforces a global
//     and a per route cap. Acquire reuses the most recently used idle connection,
//     dials a new one if both caps allow it (evicting the oldest idle connection of
//     another route if only the global cap is exhausted) and otherwise waits for a
//     release until the acquire timeout. Every dialed tcp connection has TCP_NODELAY
//     and keep-alive enabled.
//
//   - Reaper: A background goroutine that calls CloseIdle on a fixed interval so that
//     connections idle for longer than the configured maximum are closed. Leased
//     connections are never touched. Shutdown is idempotent and waits for the
//     goroutine to exit.
//
//   - Transport: A http.RoundTripper speaking HTTP/1.1 over pooled connections.
//     A connection is returned once the response body was read to EOF, closing
//     the body early or cancelling the request context discards it.
//
// Thread Safety:
//
//	All exported methods are safe for concurrent use. A leased Conn belongs to
//	exactly one caller until it is released.
package pool
