package base

import (
	"bytes"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/ValentinKolb/restrpc/rpc/common"
	"github.com/ValentinKolb/restrpc/rpc/transport"
	"github.com/pkg/errors"
)

// http headers of the rest wire format
const (
	HeaderRequestID   = "X-Rpc-Request-Id"
	HeaderAttachments = "X-Rpc-Attachments"
	HeaderParamDesc   = "X-Rpc-Param-Desc"
	HeaderError       = "X-Rpc-Error"

	ContentTypeText = "text/plain; charset=utf-8"
)

// values of the HeaderError header
const (
	ErrorResolution = "resolution"
	ErrorInvocation = "invocation"
	ErrorProtocol   = "protocol"
)

// -----------------------------------------------------------
// Paths
// -----------------------------------------------------------

// ResourcePath returns the path prefix of an interface deployed under contextPath
func ResourcePath(contextPath, interfaceName string) string {
	return path.Join("/", contextPath, interfaceName)
}

// MethodPath returns the path a method call is posted to
func MethodPath(contextPath, interfaceName, methodName string) string {
	return ResourcePath(contextPath, interfaceName) + "/" + methodName
}

// SplitMethodPath splits a call path into the resource path and the method name
func SplitMethodPath(p string) (resource, method string, ok bool) {
	idx := strings.LastIndexByte(p, '/')
	if idx <= 0 || idx == len(p)-1 {
		return "", "", false
	}
	return p[:idx], p[idx+1:], true
}

// -----------------------------------------------------------
// Attachments
// -----------------------------------------------------------

// EncodeAttachments encodes attachments as a sorted url query string
func EncodeAttachments(attachments map[string]string) string {
	if len(attachments) == 0 {
		return ""
	}
	keys := make([]string, 0, len(attachments))
	for k := range attachments {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(k))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(attachments[k]))
	}
	return sb.String()
}

// DecodeAttachments decodes a header written by EncodeAttachments, the result is never nil
func DecodeAttachments(s string) (map[string]string, error) {
	attachments := make(map[string]string)
	if s == "" {
		return attachments, nil
	}
	values, err := url.ParseQuery(s)
	if err != nil {
		return nil, errors.Wrap(err, "invalid attachments header")
	}
	for k, v := range values {
		if len(v) > 0 {
			attachments[k] = v[0]
		}
	}
	return attachments, nil
}

// SetCallHeaders writes the headers of an outbound invocation
func SetCallHeaders(h http.Header, inv *transport.Invocation, contentType string) {
	h.Set("Content-Type", contentType)
	h.Set(HeaderRequestID, inv.RequestID)
	h.Set(HeaderParamDesc, inv.Method.ParamDesc())
	if a := EncodeAttachments(inv.Attachments); a != "" {
		h.Set(HeaderAttachments, a)
	}
}

// -----------------------------------------------------------
// Errors
// -----------------------------------------------------------

// errorClass returns the HeaderError value and status code of a failed call
func errorClass(err error) (string, int) {
	switch {
	case errors.Is(err, common.ErrUnknownType),
		errors.Is(err, common.ErrUnknownMethod),
		errors.Is(err, common.ErrAmbiguousMethod):
		return ErrorResolution, http.StatusNotFound
	case errors.Is(err, common.ErrIllegalAccess):
		return ErrorResolution, http.StatusForbidden
	default:
		return ErrorInvocation, http.StatusInternalServerError
	}
}

// DecodeError converts a non successful response into the error kind and the remote error
func DecodeError(errorHeader string, status int, body []byte) (common.ErrorKind, error) {
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(status)
	}
	remote := &common.RemoteError{Message: msg}

	switch errorHeader {
	case ErrorResolution:
		return common.KindResolution, remote
	case ErrorInvocation:
		return common.KindInvocation, remote
	case ErrorProtocol:
		return common.KindTransport, remote
	}

	// a response that was not produced by a rest dispatcher
	switch status {
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return common.KindResolution, errors.Errorf("http error: %d %s", status, msg)
	default:
		return common.KindTransport, errors.Errorf("http error: %d %s", status, msg)
	}
}

// -----------------------------------------------------------
// Buffers
// -----------------------------------------------------------

var bufferPool = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

// GetBuffer returns an empty buffer from the pool
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool, oversized buffers are dropped
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 1<<20 {
		return
	}
	bufferPool.Put(buf)
}
