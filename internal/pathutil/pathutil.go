// Package pathutil provides the path and segment helpers spec.md §2/§6
// names: unique target-file naming, N-way byte-range splitting, and
// per-thread segment-path derivation. Grounded on the teacher's
// uniqueFilePath (internal/download/manager.go) and createTasks/segment
// conventions (internal/engine/concurrent/downloader.go, worker.go).
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/rangedl/rangedl/internal/xerrors"
)

// ByteRange is an inclusive [Start, End] byte interval.
type ByteRange struct {
	Start int64
	End   int64
}

// Size returns the number of bytes the range covers. A zeroed range
// (Start == 0 && End == 0) reports size 0, per spec.md §3's special case
// for zero-length files — this also means a legitimate single-byte
// first range ([0,0] on a 1-byte file) reports 0 rather than 1.
func (r ByteRange) Size() int64 {
	if r.Start == 0 && r.End == 0 {
		return 0
	}
	return r.End - r.Start + 1
}

// SplitRange computes N contiguous, inclusive sub-ranges covering
// [0, length-1], per spec.md §4.8 step 5. length == 0 yields N zeroed
// ranges (§3's special case). threadCount must be in [1, 255].
func SplitRange(length int64, threadCount int) ([]ByteRange, error) {
	if threadCount < 1 || threadCount > 255 {
		return nil, xerrors.New(xerrors.ArgumentOutOfRange, fmt.Sprintf("thread count %d out of [1,255]", threadCount))
	}
	if length < 0 {
		return nil, xerrors.New(xerrors.ArgumentOutOfRange, "negative length")
	}

	ranges := make([]ByteRange, threadCount)
	if length == 0 {
		return ranges, nil
	}

	each := length / int64(threadCount)
	remainder := length % int64(threadCount)

	start := int64(0)
	for i := 0; i < threadCount; i++ {
		end := start + each - 1
		if i == threadCount-1 {
			end += remainder
		}
		ranges[i] = ByteRange{Start: start, End: end}
		start = end + 1
	}
	return ranges, nil
}

// ValidateRanges checks the monotonic, non-overlapping, full-coverage
// invariant spec.md §8 requires.
func ValidateRanges(ranges []ByteRange, length int64) error {
	if length == 0 {
		return nil
	}
	if len(ranges) == 0 {
		return xerrors.New(xerrors.ArgumentOutOfRange, "no ranges")
	}
	if ranges[0].Start != 0 {
		return xerrors.New(xerrors.RangeNotSatisfiable, "ranges do not start at 0")
	}
	for i, r := range ranges {
		if r.Start > r.End {
			return xerrors.New(xerrors.RangeNotSatisfiable, fmt.Sprintf("range %d has start > end", i))
		}
		if i > 0 && r.Start != ranges[i-1].End+1 {
			return xerrors.New(xerrors.RangeNotSatisfiable, fmt.Sprintf("range %d is not contiguous with range %d", i, i-1))
		}
	}
	if ranges[len(ranges)-1].End != length-1 {
		return xerrors.New(xerrors.RangeNotSatisfiable, "ranges do not cover full length")
	}
	return nil
}

// SegmentSuffix is the extension segment files carry, per spec.md §6.
const SegmentSuffix = ".Download"

// SegmentPaths derives N per-thread segment paths from a target path and
// a task id, per spec.md §6:
// "<root>/<name without ext> [<task-id>]-<i>.Download".
func SegmentPaths(targetPath, taskID string, threadCount int) []string {
	dir := filepath.Dir(targetPath)
	ext := filepath.Ext(targetPath)
	base := strings.TrimSuffix(filepath.Base(targetPath), ext)

	paths := make([]string, threadCount)
	for i := 0; i < threadCount; i++ {
		name := fmt.Sprintf("%s [%s]-%d%s", base, taskID, i, SegmentSuffix)
		paths[i] = filepath.Join(dir, name)
	}
	return paths
}

// UniquePath resolves a filesystem-unique path in dir, trying "name.ext",
// then "name (1).ext", "name (2).ext", ... until one doesn't exist.
// Probe-and-create is raced against other callers targeting the same
// directory (spec.md §9: "the uniqueness loop must be race-safe if
// multiple tasks can target the same directory"); an advisory
// directory-scoped flock serializes the probe+reserve step across
// goroutines/processes, and each candidate is probed via
// O_CREATE|O_EXCL, so a name that exists is skipped for the next
// suffix. The probe file is removed again, so the returned path is not
// held once the lock is released.
func UniquePath(dir, filename string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", xerrors.Wrap(xerrors.DiskOperationFailed, "create directory", err)
	}

	lockPath := filepath.Join(dir, ".rangedl.lock")
	fl := flock.New(lockPath)
	if err := fl.Lock(); err != nil {
		return "", xerrors.Wrap(xerrors.DiskOperationFailed, "acquire directory lock", err)
	}
	defer fl.Unlock()

	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	candidate := filepath.Join(dir, filename)
	if tryReserve(candidate) {
		return candidate, nil
	}

	for i := 1; i < 10000; i++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", base, i, ext))
		if tryReserve(candidate) {
			return candidate, nil
		}
	}
	return "", xerrors.New(xerrors.FileAlreadyExists, "exhausted uniqueness suffixes")
}

// tryReserve atomically creates path if it doesn't exist, then removes
// the zero-byte placeholder — reserving the name under the directory
// lock without leaving a stray empty file behind for the caller that
// will itself open the path for create shortly after.
func tryReserve(path string) bool {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return false
	}
	f.Close()
	os.Remove(path)
	return true
}
