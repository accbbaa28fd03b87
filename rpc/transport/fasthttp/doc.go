// Package fasthttp implements the REST server engine on top of valyala/fasthttp.
// It is selected with the serverEngine=fasthttp url parameter and serves exactly
// the same wire format as the net/http engine through the shared base.Dispatcher.
package fasthttp
