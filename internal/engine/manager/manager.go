// Package manager implements the DownloadThreadManager of spec.md §4.3:
// owns the N per-task threads, starts them concurrently, and derives
// completion from their individual states. Grounded on the teacher's
// worker pool shape in internal/download/manager.go and
// internal/engine/concurrent/downloader.go's worker fan-out, rebuilt
// over golang.org/x/sync/errgroup instead of a raw sync.WaitGroup +
// error channel, per SPEC_FULL.md §5's errgroup wiring.
package manager

import (
	"context"
	"io"
	"sync"

	"github.com/rangedl/rangedl/internal/config"
	"github.com/rangedl/rangedl/internal/engine/thread"
	"github.com/rangedl/rangedl/internal/logging"
	"github.com/rangedl/rangedl/internal/pathutil"
	"github.com/rangedl/rangedl/internal/xerrors"
	"golang.org/x/sync/errgroup"
)

// ThreadCompletedFunc is invoked exactly once per thread as it reaches
// a terminal state, per spec.md §4.3's reporter rules.
type ThreadCompletedFunc func(threadID int, success bool)

// Manager owns the fixed set of threads for one task and runs them
// concurrently over an errgroup, deriving completion from thread state
// rather than tracking it separately.
type Manager struct {
	mu      sync.Mutex
	threads []*thread.Thread
	cfg     *config.RuntimeConfig
	log     logging.Logger

	onThreadCompleted ThreadCompletedFunc

	cancelFns []context.CancelFunc
	cancelMu  sync.Mutex
}

// New builds an empty Manager. CreateThreads must be called before
// Start.
func New(cfg *config.RuntimeConfig, log logging.Logger, onThreadCompleted ThreadCompletedFunc) *Manager {
	return &Manager{cfg: cfg, log: log, onThreadCompleted: onThreadCompleted}
}

// CreateThreads builds one thread per range, rejecting mismatched
// segment counts or a non-empty thread list (spec.md §4.3: "reject
// creation if ... thread list is non-empty, or if N does not match
// provided segment count").
func (m *Manager) CreateThreads(targetPath, taskID string, ranges []pathutil.ByteRange) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.threads) != 0 {
		return xerrors.New(xerrors.ArgumentOutOfRange, "thread manager already has threads")
	}

	segments := pathutil.SegmentPaths(targetPath, taskID, len(ranges))
	if len(segments) != len(ranges) {
		return xerrors.New(xerrors.ArgumentOutOfRange, "segment count does not match range count")
	}

	threads := make([]*thread.Thread, len(ranges))
	for i, r := range ranges {
		idx := i
		reporter := func(threadID int, percent int) {
			if percent == 100 || percent == -1 {
				if m.onThreadCompleted != nil {
					m.onThreadCompleted(threadID, percent == 100)
				}
			} else if percent < -1 || percent > 100 {
				if m.log != nil {
					m.log.Error("invalid thread progress", xerrors.New(xerrors.ArgumentOutOfRange, "percent out of [-1,100]"), logging.Int("thread_id", threadID))
				}
			}
		}
		threads[idx] = thread.New(idx, r.Size(), segments[idx], m.cfg, m.log, reporter)
	}
	m.threads = threads
	return nil
}

// Threads returns the manager's thread set.
func (m *Manager) Threads() []*thread.Thread {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threads
}

// CompletedCount derives the number of threads in a terminal state,
// per spec.md §4.3's "completed_threads_count".
func (m *Manager) CompletedCount() int {
	m.mu.Lock()
	threads := m.threads
	m.mu.Unlock()

	count := 0
	for _, th := range threads {
		if th.State().IsTerminal() {
			count++
		}
	}
	return count
}

// Start requires len(inputs) == len(outputs) == N and runs every
// thread concurrently, returning once all have finished or the group
// context is cancelled by the first failure.
func (m *Manager) Start(ctx context.Context, inputs []io.ReadCloser, outputs []io.WriteCloser) error {
	m.mu.Lock()
	threads := m.threads
	m.mu.Unlock()

	if len(inputs) != len(threads) || len(outputs) != len(threads) {
		return xerrors.New(xerrors.ArgumentOutOfRange, "inputs/outputs length must match thread count")
	}

	g, gctx := errgroup.WithContext(ctx)
	m.cancelMu.Lock()
	m.cancelFns = make([]context.CancelFunc, len(threads))
	m.cancelMu.Unlock()

	for i, th := range threads {
		i, th := i, th
		threadCtx, cancel := context.WithCancel(gctx)
		m.cancelMu.Lock()
		m.cancelFns[i] = cancel
		m.cancelMu.Unlock()

		g.Go(func() error {
			defer cancel()
			defer inputs[i].Close()
			defer outputs[i].Close()
			return th.Start(threadCtx, inputs[i], outputs[i])
		})
	}

	return g.Wait()
}

// Pause requests every thread cancel at its next boundary. Nothing here
// reconstructs a resumable context afterward (resume-across-restart is
// out of scope; pause here only stops the in-flight transfer).
func (m *Manager) Pause() { m.Cancel() }

// Resume is a placeholder hook: resuming a paused manager means
// building a fresh Manager over the remaining ranges, since a thread's
// range is immutable once created.
func (m *Manager) Resume() {}

// Cancel requests every thread stop; idempotent.
func (m *Manager) Cancel() {
	m.mu.Lock()
	threads := m.threads
	m.mu.Unlock()
	for _, th := range threads {
		th.Cancel()
	}
}

// Dispose cancels every thread and releases the manager's reference to
// them.
func (m *Manager) Dispose() {
	m.Cancel()
	m.mu.Lock()
	m.threads = nil
	m.mu.Unlock()
}
