// Package workprovider implements the WorkProvider of spec.md §4.7: it
// bridges a DownloadTask and an HttpDownloadService by opening the
// input/output streams a task's threads need and starting the thread
// manager in the background. Grounded on the stream-acquisition half of
// the teacher's TUIDownload (internal/download/manager.go): opening the
// destination file and classifying os.IsNotExist/permission errors.
package workprovider

import (
	"context"
	"io"
	"os"

	"github.com/rangedl/rangedl/internal/config"
	"github.com/rangedl/rangedl/internal/engine/state"
	"github.com/rangedl/rangedl/internal/engine/task"
	"github.com/rangedl/rangedl/internal/logging"
	"github.com/rangedl/rangedl/internal/pathutil"
	"github.com/rangedl/rangedl/internal/xerrors"
)

// Provider is the default WorkProvider implementation, satisfying
// task.WorkProvider.
type Provider struct {
	cfg *config.RuntimeConfig
	log logging.Logger
}

// New builds a Provider.
func New(cfg *config.RuntimeConfig, log logging.Logger) *Provider {
	return &Provider{cfg: cfg, log: log}
}

// ExecuteMainWork implements spec.md §4.7's execute_main_work: it
// validates the task, opens N ranged-GET input streams and N segment
// output streams, then starts the thread manager on a background
// goroutine so the call itself returns immediately.
func (p *Provider) ExecuteMainWork(ctx context.Context, svc task.Service, t *task.Task) error {
	if t == nil || svc == nil {
		return xerrors.New(xerrors.NullReference, "task and service must be non-nil")
	}
	if t.State() != state.Downloading {
		return xerrors.New(xerrors.ArgumentOutOfRange, "task is not in the Downloading state")
	}

	dctx := t.Context()

	inputs, err := svc.GetStreams(ctx, dctx)
	if err != nil {
		return err
	}

	outputs, err := p.openSegmentStreams(dctx.TargetPath, t.ID(), len(dctx.Ranges))
	if err != nil {
		closeAll(inputs)
		return err
	}

	go func() {
		if err := t.Manager().Start(ctx, inputs, outputs); err != nil && p.log != nil {
			p.log.Error("thread manager stopped with error", err, logging.Str("task_id", t.ID()))
		}
	}()

	return nil
}

// GetTaskFinalStream opens the task's unique target path for create,
// returning the single writable stream finalize merges segments into.
func (p *Provider) GetTaskFinalStream(t *task.Task) (io.WriteCloser, error) {
	f, err := os.OpenFile(t.Context().TargetPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, classifyOpenErr(err)
	}
	return f, nil
}

// ExecuteFinalizeWork delegates to the service's post-download
// processing step, per spec.md §4.7.
func (p *Provider) ExecuteFinalizeWork(ctx context.Context, final io.WriteCloser, svc task.Service, t *task.Task) error {
	dctx := t.Context()
	segments := pathutil.SegmentPaths(dctx.TargetPath, t.ID(), dctx.ThreadCount)
	return svc.PostDownloadProcessing(final, segments, t.Manager().CompletedCount(), dctx.ThreadCount)
}

func (p *Provider) openSegmentStreams(targetPath, taskID string, n int) ([]io.WriteCloser, error) {
	segments := pathutil.SegmentPaths(targetPath, taskID, n)
	streams := make([]io.WriteCloser, 0, n)
	for _, path := range segments {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			closeAll(streams)
			return nil, classifyOpenErr(err)
		}
		streams = append(streams, f)
	}
	return streams, nil
}

func classifyOpenErr(err error) error {
	if os.IsPermission(err) {
		return xerrors.Wrap(xerrors.PermissionDenied, "open segment/target file", err)
	}
	return xerrors.Wrap(xerrors.DiskOperationFailed, "open segment/target file", err)
}

func closeAll[T io.Closer](items []T) {
	for _, it := range items {
		it.Close()
	}
}
