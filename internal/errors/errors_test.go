package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelsMatchThroughWrapping(t *testing.T) {
	base := Unreachable("metadata", stderrors.New("dial tcp: i/o timeout"))
	wrapped := Wrap(base, "list factories")
	stdWrapped := fmt.Errorf("handler: %w", wrapped)

	assert.True(t, IsUnreachable(stdWrapped))
	assert.False(t, IsAuthFailure(stdWrapped))
	assert.Equal(t, CodeUnreachable, GetCode(stdWrapped))
	assert.Contains(t, stdWrapped.Error(), "i/o timeout")
}

func TestWrapPlainErrorIsInternal(t *testing.T) {
	err := Wrap(stderrors.New("boom"), "context")
	assert.Equal(t, CodeInternalError, GetCode(err))
	assert.Nil(t, Wrap(nil, "nothing"))
	assert.Equal(t, "UNKNOWN", GetCode(stderrors.New("plain")))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ValidationError("bad"), http.StatusBadRequest},
		{MalformedPath("x", "no prefix"), http.StatusBadRequest},
		{NotFound("image"), http.StatusNotFound},
		{AuthFailure("records", nil), http.StatusBadGateway},
		{Unreachable("records", nil), http.StatusServiceUnavailable},
		{Unavailable("object store", nil), http.StatusServiceUnavailable},
		{stderrors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), tt.err.Error())
	}
}

func TestWithCode(t *testing.T) {
	err := WithCode(CodeUnavailable, stderrors.New("redis down"))
	assert.True(t, IsUnavailable(err))
	assert.True(t, IsConnectionError(AuthFailure("x", nil)))
	assert.False(t, IsConnectionError(err))
}
