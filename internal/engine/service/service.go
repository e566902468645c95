// Package service implements the HttpDownloadService of spec.md §4.6:
// acquiring ranged-GET input streams with retry, and merging completed
// segment files into the final output. Grounded on the teacher's
// downloadTask GET/retry shape (internal/engine/concurrent/worker.go)
// and the .surge-suffix rename/finalize pattern in
// internal/engine/concurrent/downloader.go's Download method,
// generalized to N-segment sequential concatenation.
package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/rangedl/rangedl/internal/config"
	"github.com/rangedl/rangedl/internal/dlcontext"
	"github.com/rangedl/rangedl/internal/httpx"
	"github.com/rangedl/rangedl/internal/logging"
	"github.com/rangedl/rangedl/internal/retry"
	"github.com/rangedl/rangedl/internal/xerrors"
)

// combineChunkSize is the stream-copy buffer size for segment merging,
// per spec.md §4.6: "stream-copy in 1 KiB chunks".
const combineChunkSize = 1 * config.KB

// Service implements the ranged-GET acquisition and segment-merge
// finalize steps of the download pipeline.
type Service struct {
	pool *httpx.Pool
	cfg  *config.RuntimeConfig
	log  logging.Logger
}

// New builds a Service drawing HTTP clients from pool.
func New(pool *httpx.Pool, cfg *config.RuntimeConfig, log logging.Logger) *Service {
	return &Service{pool: pool, cfg: cfg, log: log}
}

// GetStreams opens one ranged GET per range in dctx, per spec.md §4.6.
// Any single range's failure fails the whole call with HttpError; any
// streams already opened are closed before returning.
func (s *Service) GetStreams(ctx context.Context, dctx *dlcontext.HTTPDownloadContext) ([]io.ReadCloser, error) {
	streams := make([]io.ReadCloser, 0, len(dctx.Ranges))

	for i, r := range dctx.Ranges {
		body, err := s.getRangeStream(ctx, dctx.URL, r.Start, r.End)
		if err != nil {
			for _, opened := range streams {
				opened.Close()
			}
			return nil, xerrors.Wrap(xerrors.HttpError, fmt.Sprintf("range %d stream failed", i), err)
		}
		streams = append(streams, body)
	}
	return streams, nil
}

func (s *Service) getRangeStream(ctx context.Context, url string, start, end int64) (io.ReadCloser, error) {
	attempts := s.cfg.GetMaxHTTPRetries()
	wait := s.cfg.GetHTTPRetryWait()

	return retry.Do(ctx, attempts, wait, func(attempt int) (io.ReadCloser, error) {
		client := s.pool.Acquire()
		defer s.pool.Release(client)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", s.cfg.GetUserAgent())
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))

		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
			resp.Body.Close()
			return nil, xerrors.ClassifyHTTPStatus(resp.StatusCode)
		}
		return resp.Body, nil
	})
}

// PostDownloadProcessing implements spec.md §4.6's finalize step: if
// every thread didn't complete, clean up and fail; otherwise merge
// segments sequentially into finalOutput in thread-id order, deleting
// each after a successful copy.
func (s *Service) PostDownloadProcessing(finalOutput io.WriteCloser, segmentPaths []string, completedThreads, threadCount int) error {
	if completedThreads != threadCount {
		Cleanup(finalOutput, segmentPaths)
		return xerrors.New(xerrors.UnexpectedOrUnknownException, "task did not complete all threads")
	}

	if err := combineSegmentsSafe(segmentPaths, finalOutput); err != nil {
		Cleanup(finalOutput, segmentPaths)
		return xerrors.Wrap(xerrors.DiskOperationFailed, "segment merge failed", err)
	}

	if err := finalOutput.Close(); err != nil {
		return xerrors.Wrap(xerrors.DiskOperationFailed, "final output close failed", err)
	}
	return nil
}

// combineSegmentsSafe opens each segment path in order, stream-copies
// it into out, and deletes it once copied, per spec.md §4.6.
func combineSegmentsSafe(segmentPaths []string, out io.Writer) error {
	buf := make([]byte, combineChunkSize)
	for _, path := range segmentPaths {
		if err := copySegment(path, out, buf); err != nil {
			return err
		}
	}
	return nil
}

func copySegment(path string, out io.Writer, buf []byte) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.CopyBuffer(out, f, buf); err != nil {
		return err
	}
	f.Close()
	return os.Remove(path)
}

// Cleanup closes out (if non-nil) and deletes every path in
// segmentPaths, idempotent on nil/empty inputs, per spec.md §4.6's
// cleanup helper contract.
func Cleanup(out io.Closer, segmentPaths []string) {
	if out != nil {
		out.Close()
	}
	for _, path := range segmentPaths {
		os.Remove(path)
	}
}

// Cleanup satisfies task.Service for callers that only have segment
// paths to remove (no open output handle), e.g. a task failing or
// being cancelled before finalize ever opens one.
func (s *Service) Cleanup(segmentPaths []string) {
	Cleanup(nil, segmentPaths)
}
