// Package transport defines the contracts between the REST endpoints and the
// http engines that move calls over the network.
//
// Key Components:
//
//   - IServerEngine: The embedded inbound server. It binds one address and serves
//     every deployed Resource under POST {contextPath}/{interfaceName}/{methodName}.
//     Implementations: transport/http (net/http) and transport/fasthttp.
//
//   - IClientEngine / IRemoteProxy: The outbound engine creates one remote proxy per
//     interface. A proxy performs one http round trip per Invocation and returns the
//     decoded result or a CallError classifying the failure.
//
//   - InboundCall / Invocation: The decoded inbound call and the resolved outbound call.
//
// The wire format and the dispatcher shared by all server engines live in
// transport/base, the outbound connection pool in transport/pool.
package transport
