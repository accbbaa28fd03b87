package server

import (
	"context"
	"time"

	"github.com/ValentinKolb/restrpc/rpc/common"
)

// chain applies the filters to h, the first filter is the outermost
func chain(h Handler, filters []Filter) Handler {
	for i := len(filters) - 1; i >= 0; i-- {
		h = filters[i](h)
	}
	return h
}

// AccessLogFilter logs every inbound call with its result and duration at debug level
func AccessLogFilter(next Handler) Handler {
	return func(ctx context.Context, req *common.Request) *common.Response {
		start := time.Now()
		resp := next(ctx, req)
		if resp != nil && resp.Exception != nil {
			Logger.Debugf("%s failed after %s: %v", req, time.Since(start), resp.Exception)
		} else {
			Logger.Debugf("%s took %s", req, time.Since(start))
		}
		return resp
	}
}

// AttachmentFilter adds fixed attachments to every inbound request that does not carry them
func AttachmentFilter(attachments map[string]string) Filter {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *common.Request) *common.Response {
			for k, v := range attachments {
				if _, ok := req.Attachments[k]; !ok {
					req.SetAttachment(k, v)
				}
			}
			return next(ctx, req)
		}
	}
}
