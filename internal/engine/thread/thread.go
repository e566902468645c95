// Package thread implements the per-worker range downloader of
// spec.md §4.4/§4.5: one goroutine reading from a ranged input stream
// and writing to a private segment file until its range is exhausted,
// retries are spent, or cancellation lands. Grounded on the teacher's
// worker/downloadTask pair (internal/engine/concurrent/worker.go),
// stripped of work-stealing and resume since this spec's ranges are
// fixed for a thread's lifetime.
package thread

import (
	"context"
	"errors"
	"io"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rangedl/rangedl/internal/config"
	"github.com/rangedl/rangedl/internal/engine/state"
	"github.com/rangedl/rangedl/internal/logging"
	"github.com/rangedl/rangedl/internal/xerrors"
)

// ProgressReporter receives terminal and in-progress percent updates
// from a thread, per the manager's reporter rules in spec.md §4.3.
// percent ∈ [0,100] is a normal update; percent == -1 signals
// failure/cancellation.
type ProgressReporter func(threadID int, percent int)

// Thread executes one fixed byte range: read from Input, write to
// Output, until RangeSize bytes have moved or a terminal condition is
// reached. completed_bytes is owned exclusively by the running
// goroutine; CompletedBytes reads it without locking, per spec.md §4.4's
// eventual-consistency invariant.
type Thread struct {
	ID          int
	RangeSize   int64
	SegmentPath string

	completedBytes atomic.Int64
	machine        *state.Machine

	cfg      *config.RuntimeConfig
	log      logging.Logger
	report   ProgressReporter
	cancel   context.CancelFunc
	cancelMu sync.Mutex
}

// New builds a Thread for range i, private to SegmentPath, reporting
// progress through report.
func New(id int, rangeSize int64, segmentPath string, cfg *config.RuntimeConfig, log logging.Logger, report ProgressReporter) *Thread {
	return &Thread{
		ID:          id,
		RangeSize:   rangeSize,
		SegmentPath: segmentPath,
		machine:     state.NewMachine(),
		cfg:         cfg,
		log:         log,
		report:      report,
	}
}

// State returns the thread's current lifecycle state.
func (t *Thread) State() state.State { return t.machine.Get() }

// CompletedBytes returns the cumulative byte count written so far.
func (t *Thread) CompletedBytes() int64 { return t.completedBytes.Load() }

// Cancel requests the running loop stop at its next read/write
// boundary; if the input is an io.Closer it is closed, so a blocked
// read returns. Idempotent and safe to call before Start.
func (t *Thread) Cancel() {
	t.cancelMu.Lock()
	defer t.cancelMu.Unlock()
	if t.cancel != nil {
		t.cancel()
	}
}

// Start runs the range downloader loop (spec.md §4.5) synchronously
// over input/output. The caller is expected to run Start in its own
// goroutine; Start returns once the range is exhausted, cancelled, or
// failed past retry.
func (t *Thread) Start(ctx context.Context, input io.Reader, output io.Writer) error {
	runCtx, cancel := context.WithCancel(ctx)
	t.cancelMu.Lock()
	t.cancel = cancel
	t.cancelMu.Unlock()
	defer cancel()

	// A read blocked on a closable input is interrupted by closing it
	// once the run is cancelled.
	if c, ok := input.(io.Closer); ok {
		stop := context.AfterFunc(runCtx, func() { c.Close() })
		defer stop()
	}

	if err := t.machine.Transition(state.Downloading); err != nil {
		return err
	}

	err := t.run(runCtx, input, output)
	t.finish(err)
	return err
}

func (t *Thread) run(ctx context.Context, input io.Reader, output io.Writer) error {
	bufSize := t.cfg.GetBufferSize()
	buf := make([]byte, bufSize)
	retries := 0
	maxRetries := t.cfg.GetMaxTotalRetries()
	retryWait := t.cfg.GetRetryWait()

	if t.RangeSize == 0 {
		return nil
	}

	for t.machine.Get() == state.Downloading {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		remaining := t.RangeSize - t.completedBytes.Load()
		if remaining <= 0 {
			return nil
		}

		readSize := int64(len(buf))
		if readSize > remaining {
			readSize = remaining
		}

		n, readErr := input.Read(buf[:readSize])
		if readErr != nil && readErr != io.EOF {
			if retries < maxRetries {
				retries++
				if !sleepOrDone(ctx, retryWait) {
					return ctx.Err()
				}
				continue
			}
			return xerrors.Wrap(xerrors.HttpError, "range read failed", readErr)
		}

		if n == 0 {
			return nil
		}

		if _, writeErr := output.Write(buf[:n]); writeErr != nil {
			if retries < maxRetries {
				retries++
				if !sleepOrDone(ctx, retryWait) {
					return ctx.Err()
				}
				continue
			}
			return xerrors.Wrap(xerrors.DiskOperationFailed, "segment write failed", writeErr)
		}

		retries = 0
		if err := t.addCompletedBytes(int64(n)); err != nil {
			return err
		}

		if readErr == io.EOF {
			return nil
		}
	}
	return ctx.Err()
}

// addCompletedBytes advances completed_bytes and reports the new
// percent, enforcing the invariant that completed_bytes never exceeds
// RangeSize (spec.md §4.5 step 7).
func (t *Thread) addCompletedBytes(n int64) error {
	total := t.completedBytes.Add(n)
	if total > t.RangeSize {
		return xerrors.New(xerrors.ArgumentOutOfRange, "completed bytes exceed range size")
	}
	percent := int(math.Floor(float64(total) * 100 / float64(t.RangeSize)))
	if t.report != nil && percent < 100 {
		t.report(t.ID, percent)
	}
	return nil
}

// finish transitions the thread to its terminal state and fires the
// terminal progress report: 100 on success, -1 on failure/cancel. The
// empty-range edge case (spec.md §4.5) reports 100 explicitly even
// though no bytes were ever read.
func (t *Thread) finish(err error) {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			t.machine.Transition(state.Cancelled)
		} else {
			t.machine.Transition(state.Failed)
			if t.log != nil {
				t.log.Error("thread failed", err, logging.Int("thread_id", t.ID))
			}
		}
		os.Remove(t.SegmentPath)
		if t.report != nil {
			t.report(t.ID, -1)
		}
		return
	}
	t.machine.Transition(state.Completed)
	if t.report != nil {
		t.report(t.ID, 100)
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
