package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponseEchoesRequest(t *testing.T) {
	req := NewRequest("demo.Hello", "Hello", "42")
	req.SetAttachment("trace", "t-1")
	assert.NotEmpty(t, req.RequestID)

	resp := NewResponse(req)
	assert.Equal(t, req.RequestID, resp.RequestID)
	assert.Equal(t, map[string]string{"trace": "t-1"}, resp.Attachments)
}

func TestResponseValueAndExceptionAreExclusive(t *testing.T) {
	resp := NewResponse(&Request{RequestID: "1"})

	resp.SetValue("ok")
	resp.SetException(errors.New("failed"))
	assert.Nil(t, resp.Value)
	assert.EqualError(t, resp.Exception, "failed")

	resp.SetValue("ok")
	assert.NoError(t, resp.Exception)
	assert.Equal(t, "ok", resp.Value)
}

func TestRequestIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewRequestID()
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestSetAttachmentAllocatesMap(t *testing.T) {
	req := &Request{}
	req.SetAttachment("k", "v")
	assert.Equal(t, "v", req.Attachments["k"])
}
