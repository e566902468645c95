// Package dlcontext implements the download-context factory of
// spec.md §4.8: resolving content length via HEAD probe, picking a
// unique target path, and computing per-thread byte ranges.
package dlcontext

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/rangedl/rangedl/internal/config"
	"github.com/rangedl/rangedl/internal/httpx"
	"github.com/rangedl/rangedl/internal/pathutil"
	"github.com/rangedl/rangedl/internal/xerrors"
)

// HTTPDownloadContext is the immutable, per-task parameter set named in
// spec.md §3. Once built it never changes: target path, URL, thread
// count, and per-thread ranges are fixed for the task's lifetime.
type HTTPDownloadContext struct {
	TargetPath  string
	URL         string
	ThreadCount int
	Ranges      []pathutil.ByteRange
	ContentLen  int64
}

// RangeSize returns the byte-count of range i, honoring the zero-length
// special case from spec.md §3.
func (c *HTTPDownloadContext) RangeSize(i int) int64 {
	return c.Ranges[i].Size()
}

// Build runs the factory algorithm of spec.md §4.8:
//  1. HEAD the URL to resolve content length and range support.
//  2. Derive a filename (saved path > URL path > fallback).
//  3. Make the path unique in its directory.
//  4/5. Split the length into N ranges (or N zero-ranges if length==0).
//  6. Validate the ranges.
func Build(ctx context.Context, client *http.Client, rawurl, savedPath string, threadCount int, cfg *config.RuntimeConfig) (*HTTPDownloadContext, error) {
	probe, err := httpx.Probe(ctx, client, rawurl, cfg)
	if err != nil {
		return nil, err
	}

	if !probe.SupportsRange {
		if cfg.GetStrictRangeMode() {
			return nil, xerrors.New(xerrors.RangeNotSatisfiable, "server does not advertise Accept-Ranges: bytes")
		}
		threadCount = 1
	}

	dir, filename := resolveDirAndFilename(savedPath, probe.Filename)
	targetPath, err := pathutil.UniquePath(dir, filename)
	if err != nil {
		return nil, err
	}

	ranges, err := pathutil.SplitRange(probe.ContentLength, threadCount)
	if err != nil {
		return nil, err
	}
	if err := pathutil.ValidateRanges(ranges, probe.ContentLength); err != nil {
		return nil, err
	}

	return &HTTPDownloadContext{
		TargetPath:  targetPath,
		URL:         rawurl,
		ThreadCount: threadCount,
		Ranges:      ranges,
		ContentLen:  probe.ContentLength,
	}, nil
}

// resolveDirAndFilename picks the directory from savedPath, and the
// filename from savedPath's base if it has one, else the probe's
// filename hint (spec.md §4.8 step 2). A trailing separator marks
// savedPath as directory-only, deferring the filename entirely to the
// probe hint.
func resolveDirAndFilename(savedPath, probeFilename string) (dir, filename string) {
	directoryOnly := strings.HasSuffix(savedPath, string(filepath.Separator))
	dir = filepath.Dir(savedPath)
	base := filepath.Base(savedPath)
	if !directoryOnly && base != "." && base != "/" && base != "" {
		return dir, base
	}
	if probeFilename == "" || probeFilename == "." || probeFilename == "/" {
		return dir, "download.bin"
	}
	return dir, probeFilename
}
