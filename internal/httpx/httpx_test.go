package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rangedl/rangedl/internal/config"
	"github.com/rangedl/rangedl/internal/xerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeReportsSizeAndRangeSupport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Content-Disposition", `attachment; filename="movie.mp4"`)
		w.Header().Set("Content-Length", "1024")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res, err := Probe(context.Background(), srv.Client(), srv.URL, &config.RuntimeConfig{})
	require.NoError(t, err)
	assert.Equal(t, int64(1024), res.ContentLength)
	assert.True(t, res.SupportsRange)
	assert.Equal(t, "movie.mp4", res.Filename)
}

func TestProbeNoAcceptRanges(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "10")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res, err := Probe(context.Background(), srv.Client(), srv.URL, &config.RuntimeConfig{})
	require.NoError(t, err)
	assert.False(t, res.SupportsRange)
}

func TestProbeBadStatusIsInvalidURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := Probe(context.Background(), srv.Client(), srv.URL, &config.RuntimeConfig{})
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, xerrors.InvalidUrl))
}

func TestProbeUnreachableIsInvalidURL(t *testing.T) {
	_, err := Probe(context.Background(), http.DefaultClient, "http://127.0.0.1:1", &config.RuntimeConfig{})
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, xerrors.InvalidUrl))
}

func TestPoolAcquireRelease(t *testing.T) {
	p := NewPool(&config.RuntimeConfig{ConnectionPoolCapacity: 2})
	c1 := p.Acquire()
	c2 := p.Acquire()
	require.NotNil(t, c1)
	require.NotNil(t, c2)
	p.Release(c1)
	p.Release(c2)
	p.Close()
}
