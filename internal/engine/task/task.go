// Package task implements the DownloadTask lifecycle of spec.md §4.2:
// drives a download from Waiting through thread orchestration to a
// terminal state, firing TaskCompleted exactly once. Grounded on the
// teacher's activeDownload/worker() pairing (internal/download/pool.go),
// re-expressed as an explicit state machine instead of a bool-flag
// config struct.
package task

import (
	"context"
	"io"
	"sync"

	"github.com/rangedl/rangedl/internal/config"
	"github.com/rangedl/rangedl/internal/dlcontext"
	"github.com/rangedl/rangedl/internal/engine/events"
	"github.com/rangedl/rangedl/internal/engine/manager"
	"github.com/rangedl/rangedl/internal/engine/state"
	"github.com/rangedl/rangedl/internal/logging"
	"github.com/rangedl/rangedl/internal/pathutil"
	"github.com/rangedl/rangedl/internal/xerrors"
)

// Service is the subset of HttpDownloadService a task needs, accepted
// as an interface so task stays independent of the concrete transport
// implementation (spec.md §4.6).
type Service interface {
	GetStreams(ctx context.Context, dctx *dlcontext.HTTPDownloadContext) ([]io.ReadCloser, error)
	PostDownloadProcessing(finalOutput io.WriteCloser, segmentPaths []string, completedThreads, threadCount int) error
	Cleanup(segmentPaths []string)
}

// WorkProvider is the subset of the work provider a task drives, per
// spec.md §4.7.
type WorkProvider interface {
	ExecuteMainWork(ctx context.Context, svc Service, t *Task) error
	GetTaskFinalStream(t *Task) (io.WriteCloser, error)
	ExecuteFinalizeWork(ctx context.Context, final io.WriteCloser, svc Service, t *Task) error
}

// Task drives one download context to a terminal state.
type Task struct {
	id   string
	dctx *dlcontext.HTTPDownloadContext
	cfg  *config.RuntimeConfig
	log  logging.Logger

	machine *state.Machine
	mgr     *manager.Manager

	dispatcher *events.Dispatcher
	completion events.Once

	wp  WorkProvider
	svc Service

	mu              sync.Mutex
	threadFailed    bool
	cancelRequested bool
}

// New builds a Task in the Waiting state, owning an empty thread
// manager that Execute populates.
func New(id string, dctx *dlcontext.HTTPDownloadContext, cfg *config.RuntimeConfig, log logging.Logger, dispatcher *events.Dispatcher) *Task {
	t := &Task{
		id:         id,
		dctx:       dctx,
		cfg:        cfg,
		log:        log,
		machine:    state.NewMachine(),
		dispatcher: dispatcher,
	}
	t.mgr = manager.New(cfg, log, t.handleThreadCompleted)
	return t
}

// ID returns the task's identifier.
func (t *Task) ID() string { return t.id }

// Context returns the task's immutable download context.
func (t *Task) Context() *dlcontext.HTTPDownloadContext { return t.dctx }

// Manager returns the task's thread manager.
func (t *Task) Manager() *manager.Manager { return t.mgr }

// State returns the task's current lifecycle state.
func (t *Task) State() state.State { return t.machine.Get() }

// Execute runs the task to completion asynchronously: it validates the
// context, creates threads, and hands off to the work provider, which
// starts the thread manager and returns immediately (spec.md §4.2 step
// 4). Execute itself therefore returns once the work is underway, not
// once it's done; the terminal transition and TaskCompleted happen
// from handleThreadCompleted as threads finish.
func (t *Task) Execute(ctx context.Context, wp WorkProvider, svc Service) error {
	// Execute is not idempotent (CreateThreads/ExecuteMainWork have side
	// effects), so a task past Waiting short-circuits here rather than
	// relying on a caller not to retry it.
	if t.machine.Get() != state.Waiting {
		return xerrors.New(xerrors.ArgumentOutOfRange, "task already executed")
	}

	if !t.isContextValid() {
		// The transition table has no Waiting -> Failed edge, so the
		// task passes through Downloading to reach Failed.
		t.machine.Transition(state.Downloading)
		t.machine.Transition(state.Failed)
		t.completeOnce(false)
		return xerrors.New(xerrors.NullReference, "task has no valid download context")
	}

	if err := t.machine.Transition(state.Downloading); err != nil {
		return err
	}

	if err := t.mgr.CreateThreads(t.dctx.TargetPath, t.id, t.dctx.Ranges); err != nil {
		t.machine.Transition(state.Failed)
		t.completeOnce(false)
		return err
	}

	t.wp = wp
	t.svc = svc

	if err := wp.ExecuteMainWork(ctx, svc, t); err != nil {
		t.machine.Transition(state.Failed)
		t.completeOnce(false)
		return err
	}
	return nil
}

func (t *Task) isContextValid() bool {
	if t.dctx == nil {
		return false
	}
	if t.dctx.ThreadCount < 1 || t.dctx.ThreadCount > config.MaxThreadCount {
		return false
	}
	return len(t.dctx.Ranges) == t.dctx.ThreadCount
}

// Cancel requests every running thread stop, per spec.md §4.1's
// cancel_task contract. Idempotent.
func (t *Task) Cancel() {
	t.mu.Lock()
	t.cancelRequested = true
	t.mu.Unlock()
	t.mgr.Cancel()
}

// Pause stops the in-flight transfer without discarding the task's
// record; per SPEC_FULL.md §1 resuming across a process restart is out
// of scope, so Pause here is a one-way stop an operator can observe via
// state() == Paused, not a resumable checkpoint.
func (t *Task) Pause() error {
	if t.machine.Get() != state.Downloading {
		return xerrors.New(xerrors.ArgumentOutOfRange, "task is not downloading")
	}
	if err := t.machine.Transition(state.Paused); err != nil {
		return err
	}
	t.mgr.Pause()
	return nil
}

// Resume is accepted for API symmetry with spec.md §4.1 but a thread's
// byte range is immutable once created (spec.md §3), so there is
// nothing left to resume once Pause has cancelled every thread; hosts
// that need resumption should submit a fresh task instead.
func (t *Task) Resume() error {
	if t.machine.Get() != state.Paused {
		return xerrors.New(xerrors.ArgumentOutOfRange, "task is not paused")
	}
	return xerrors.New(xerrors.UnexpectedOrUnknownException, "resume requires a fresh task; byte ranges are immutable once assigned")
}

// Dispose cancels the task and releases its thread manager.
func (t *Task) Dispose() {
	t.Cancel()
	t.mgr.Dispose()
}

// handleThreadCompleted is the manager's ThreadCompletedFunc: it fires
// the ThreadCompleted event, and once every thread has reached a
// terminal state, finalizes the task exactly once (spec.md §4.2 step
// 5/6).
func (t *Task) handleThreadCompleted(threadID int, success bool) {
	if !success {
		t.mu.Lock()
		t.threadFailed = true
		t.mu.Unlock()
		t.mgr.Cancel()
	}

	if t.dispatcher != nil {
		t.dispatcher.FireThreadCompleted(events.ThreadCompleted{TaskID: t.id, ThreadID: threadID, Success: success})
	}

	if t.mgr.CompletedCount() == t.dctx.ThreadCount {
		t.finishThreads(context.Background())
	}
}

func (t *Task) finishThreads(ctx context.Context) {
	t.completion.Fire(func() {
		t.mu.Lock()
		failed := t.threadFailed
		cancelled := t.cancelRequested
		t.mu.Unlock()

		if failed {
			if cancelled {
				t.machine.Transition(state.Cancelled)
			} else {
				t.machine.Transition(state.Failed)
			}
			// Threads that finished successfully before a peer failed or
			// the task was cancelled leave their segment file behind
			// (thread.go only removes its own on its own failure), so the
			// full set needs sweeping here too.
			t.svc.Cleanup(pathutil.SegmentPaths(t.dctx.TargetPath, t.id, t.dctx.ThreadCount))
			t.fireTaskCompleted(false)
			return
		}

		final, err := t.wp.GetTaskFinalStream(t)
		if err != nil {
			t.machine.Transition(state.Failed)
			t.fireTaskCompleted(false)
			return
		}

		if err := t.wp.ExecuteFinalizeWork(ctx, final, t.svc, t); err != nil {
			if t.log != nil {
				t.log.Error("finalize failed", err, logging.Str("task_id", t.id))
			}
			t.machine.Transition(state.Failed)
			t.fireTaskCompleted(false)
			return
		}

		t.machine.Transition(state.Completed)
		t.fireTaskCompleted(true)
	})
}

func (t *Task) fireTaskCompleted(success bool) {
	if t.dispatcher != nil {
		t.dispatcher.FireTaskCompleted(events.TaskCompleted{TaskID: t.id, Success: success})
	}
}

// completeOnce routes a TaskCompleted fire through the same Once guard
// finishThreads uses, for call sites outside finishThreads's own
// closure (Execute's early-return paths, which run before any thread
// is ever started).
func (t *Task) completeOnce(success bool) {
	t.completion.Fire(func() { t.fireTaskCompleted(success) })
}
