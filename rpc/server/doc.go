// Package server implements the server endpoint of the REST transport. A RestServer
// binds one address and serves any number of deployed providers on it.
//
// Key Components:
//
//   - IProvider: A local service implementation. NewProvider wraps any value that
//     implements a described interface and calls its methods through reflection.
//
//   - RestServer: Owns the inbound engine (net/http or fasthttp, chosen by the
//     serverEngine URL parameter). Deploy registers a provider under
//     {contextPath}/{interfaceName}, every inbound call is converted to a
//     common.Request (request id taken from the X-Rpc-Request-Id header or newly
//     generated) and passed to IProvider.Call.
//
//   - Filter: Wraps the handler of every deployed provider. AccessLogFilter and
//     AttachmentFilter are provided.
//
// Usage Example:
//
//	u, _ := common.ParseURL("rest://0.0.0.0:8080?serverEngine=fasthttp")
//	s, err := server.NewRestServer(u, server.WithFilters(server.AccessLogFilter))
//	if err != nil {
//	  log.Fatal(err)
//	}
//	if err := s.Open(); err != nil {
//	  log.Fatal(err)
//	}
//	defer s.Close()
//
//	p, _ := server.NewProvider(hello.Interface, hello.NewService())
//	_ = s.Deploy(p, "/api")
//
// Thread Safety:
//
//	All methods of RestServer are safe for concurrent use.
package server
