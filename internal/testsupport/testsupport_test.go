package testsupport

import (
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadAdvertisesRangeSupportByDefault(t *testing.T) {
	o := New([]byte("hello world"))
	defer o.Close()

	resp, err := http.Head(o.URL())
	require.NoError(t, err)
	assert.Equal(t, "bytes", resp.Header.Get("Accept-Ranges"))
	assert.Equal(t, "11", resp.Header.Get("Content-Length"))
}

func TestSetSupportsRangeFalseOmitsHeader(t *testing.T) {
	o := New([]byte("hello world"))
	defer o.Close()
	o.SetSupportsRange(false)

	resp, err := http.Head(o.URL())
	require.NoError(t, err)
	assert.Empty(t, resp.Header.Get("Accept-Ranges"))
}

func TestGetServesRequestedRange(t *testing.T) {
	o := New([]byte("0123456789"))
	defer o.Close()

	req, _ := http.NewRequest(http.MethodGet, o.URL(), nil)
	req.Header.Set("Range", "bytes=2-5")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusPartialContent, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "2345", string(body))
}

func TestFailNextGETsReturns500ThenRecovers(t *testing.T) {
	o := New([]byte("0123456789"))
	defer o.Close()
	o.FailNextGETs(2)

	for i := 0; i < 2; i++ {
		req, _ := http.NewRequest(http.MethodGet, o.URL(), nil)
		req.Header.Set("Range", "bytes=0-3")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, o.URL(), nil)
	req.Header.Set("Range", "bytes=0-3")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusPartialContent, resp.StatusCode)
}

func TestTruncateBodyShortensResponse(t *testing.T) {
	o := New([]byte("0123456789"))
	defer o.Close()
	o.TruncateBody(true)

	req, _ := http.NewRequest(http.MethodGet, o.URL(), nil)
	req.Header.Set("Range", "bytes=0-9")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Less(t, len(body), 10)
}

func TestOutOfBoundsRangeIsUnsatisfiable(t *testing.T) {
	o := New([]byte("0123456789"))
	defer o.Close()

	req, _ := http.NewRequest(http.MethodGet, o.URL(), nil)
	req.Header.Set("Range", "bytes=0-100")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, resp.StatusCode)
}
