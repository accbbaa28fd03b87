// Package base contains the parts of the REST transport that do not depend on a
// particular http implementation: the wire format and the call dispatcher.
//
// Wire Format:
//
//	POST {contextPath}/{interfaceName}/{methodName}
//	Content-Type:      serializer content type (application/json or application/x-gob)
//	X-Rpc-Request-Id:  correlation id, echoed in the response
//	X-Rpc-Param-Desc:  comma separated parameter types of the resolved method
//	X-Rpc-Attachments: url query encoded attachments
//	body:              the encoded argument list
//
// A successful call answers 200 with the encoded result. A failed call answers with
// a text body and the X-Rpc-Error header set to "resolution" (404/403), "invocation"
// (500) or "protocol" (400/415), so that the client can tell a method that could not
// be resolved from a method that failed.
//
// Key Components:
//
//   - Dispatcher: Holds the deployed resources (xsync map keyed by resource path)
//     and turns a Call into a Result. The net/http and fasthttp engines only
//     translate between their request types and Call/Result.
//
//   - Buffer Pooling: GetBuffer/PutBuffer reuse request body buffers to reduce
//     allocations on the server side.
package base
