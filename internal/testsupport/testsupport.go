// Package testsupport provides an httptest-backed fake origin server for
// driving the end-to-end scenarios in spec.md §8: ranged GETs and HEAD
// probes with injectable failure modes (truncated bodies, 5xx bursts,
// no-Accept-Ranges responses). Grounded on the teacher's httptest usage
// in internal/engine/probe_test.go and internal/engine/concurrent's test
// suite, generalized into a single reusable fixture.
package testsupport

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
)

// Origin is a fake HTTP origin serving one fixed body over ranged GETs,
// with knobs for the failure modes spec.md's scenarios need.
type Origin struct {
	Server *httptest.Server

	body          []byte
	supportsRange bool

	failFirstN   atomic.Int32 // serve 500 for the first N GET attempts
	truncateBody bool         // serve a short body on every GET
}

// New builds an Origin serving body. By default it advertises
// Accept-Ranges and serves well-formed partial content.
func New(body []byte) *Origin {
	o := &Origin{body: body, supportsRange: true}
	o.Server = httptest.NewServer(http.HandlerFunc(o.handle))
	return o
}

// URL returns the origin's base URL.
func (o *Origin) URL() string { return o.Server.URL }

// Close shuts down the underlying server.
func (o *Origin) Close() { o.Server.Close() }

// SetSupportsRange toggles whether HEAD responses advertise
// Accept-Ranges: bytes (scenario: ambiguous-range HEAD behavior).
func (o *Origin) SetSupportsRange(v bool) { o.supportsRange = v }

// FailNextGETs makes the next n GET requests return 500, after which
// the origin serves normally again.
func (o *Origin) FailNextGETs(n int) { o.failFirstN.Store(int32(n)) }

// TruncateBody makes every subsequent GET response carry only the first
// half of the requested range, with a Content-Length matching that
// shorter body, so a client reads a complete response that is short.
func (o *Origin) TruncateBody(v bool) { o.truncateBody = v }

func (o *Origin) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		o.handleHead(w)
		return
	}
	o.handleGet(w, r)
}

func (o *Origin) handleHead(w http.ResponseWriter) {
	if o.supportsRange {
		w.Header().Set("Accept-Ranges", "bytes")
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(o.body)))
	w.WriteHeader(http.StatusOK)
}

func (o *Origin) handleGet(w http.ResponseWriter, r *http.Request) {
	if remaining := o.failFirstN.Load(); remaining > 0 {
		o.failFirstN.Add(-1)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if len(o.body) == 0 {
		w.Header().Set("Content-Length", "0")
		w.WriteHeader(http.StatusPartialContent)
		return
	}

	start, end, ok := parseRange(r.Header.Get("Range"), int64(len(o.body)))
	if !ok {
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	chunk := o.body[start : end+1]
	if o.truncateBody && len(chunk) > 1 {
		chunk = chunk[:len(chunk)/2]
	}

	w.Header().Set("Content-Range", "bytes "+strconv.FormatInt(start, 10)+"-"+strconv.FormatInt(end, 10)+"/"+strconv.Itoa(len(o.body)))
	w.Header().Set("Content-Length", strconv.Itoa(len(chunk)))
	w.WriteHeader(http.StatusPartialContent)
	w.Write(chunk)
}

// parseRange parses a single "bytes=start-end" Range header value.
func parseRange(header string, length int64) (start, end int64, ok bool) {
	if header == "" {
		return 0, length - 1, true
	}
	const prefix = "bytes="
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return 0, 0, false
	}
	spec := header[len(prefix):]
	dash := -1
	for i, c := range spec {
		if c == '-' {
			dash = i
			break
		}
	}
	if dash < 0 {
		return 0, 0, false
	}
	start = atoi64(spec[:dash])
	end = atoi64(spec[dash+1:])
	if start < 0 || end < start || end >= length {
		return 0, 0, false
	}
	return start, end, true
}

func atoi64(s string) int64 {
	var n int64
	for _, c := range s {
		if c < '0' || c > '9' {
			return -1
		}
		n = n*10 + int64(c-'0')
	}
	return n
}
