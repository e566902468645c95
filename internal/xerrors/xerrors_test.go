package xerrors

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadErrorMessage(t *testing.T) {
	e := New(InvalidUrl, "bad url")
	assert.Equal(t, "InvalidUrl: bad url", e.Error())

	cause := errors.New("dial tcp: timeout")
	wrapped := Wrap(HttpError, "probe failed", cause)
	assert.Contains(t, wrapped.Error(), "HttpError")
	assert.Contains(t, wrapped.Error(), "dial tcp")
	assert.Equal(t, cause, wrapped.Unwrap())
}

func TestIs(t *testing.T) {
	err := New(ArgumentOutOfRange, "bad value")
	assert.True(t, Is(err, ArgumentOutOfRange))
	assert.False(t, Is(err, HttpError))
	assert.False(t, Is(errors.New("plain"), HttpError))
}

func TestClassifyTransportPreservesCancellation(t *testing.T) {
	err := ClassifyTransport("read", context.Canceled)
	require.ErrorIs(t, err, context.Canceled)
}

func TestClassifyTransportDefaultsToDiskOperationFailed(t *testing.T) {
	err := ClassifyTransport("write", errors.New("disk full"))
	assert.True(t, Is(err, DiskOperationFailed))
}

func TestClassifyHTTPStatus(t *testing.T) {
	assert.NoError(t, ClassifyHTTPStatus(http.StatusOK))
	assert.NoError(t, ClassifyHTTPStatus(http.StatusPartialContent))
	assert.True(t, Is(ClassifyHTTPStatus(http.StatusRequestedRangeNotSatisfiable), RangeNotSatisfiable))
	assert.True(t, Is(ClassifyHTTPStatus(http.StatusInternalServerError), HttpError))
}
