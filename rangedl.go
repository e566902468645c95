// Package rangedl is the public entry point: it wires the default
// logger, HTTP connection pool, download service, and work provider
// together behind a small surface (NewDownloadContext, NewScheduler,
// NewSpeedTracker), so a host application never has to touch
// internal/engine directly. Grounded on the teacher's TUIDownload
// (internal/download/manager.go), which plays the same "wire everything
// and hand back one entry point" role for its TUI callers.
package rangedl

import (
	"context"
	"io"
	"net/http"

	"github.com/rangedl/rangedl/internal/config"
	"github.com/rangedl/rangedl/internal/dlcontext"
	"github.com/rangedl/rangedl/internal/engine/events"
	"github.com/rangedl/rangedl/internal/engine/scheduler"
	"github.com/rangedl/rangedl/internal/engine/service"
	"github.com/rangedl/rangedl/internal/engine/state"
	"github.com/rangedl/rangedl/internal/engine/task"
	"github.com/rangedl/rangedl/internal/engine/workprovider"
	"github.com/rangedl/rangedl/internal/httpx"
	"github.com/rangedl/rangedl/internal/logging"
	"github.com/rangedl/rangedl/internal/result"
	"github.com/rangedl/rangedl/internal/speed"
	"github.com/rangedl/rangedl/internal/xerrors"
)

// Re-exported types, so callers only ever import this one package.
type (
	RuntimeConfig        = config.RuntimeConfig
	Logger               = logging.Logger
	Field                = logging.Field
	DownloadError        = xerrors.DownloadError
	DownloadErrorCode    = xerrors.Code
	Result[T any]        = result.Result[T]
	Option[T any]        = result.Option[T]
	State                = state.State
	Task                 = task.Task
	Scheduler            = scheduler.Scheduler
	SpeedTracker         = speed.Tracker
	Dispatcher           = events.Dispatcher
	TaskQueued           = events.TaskQueued
	ThreadCompleted      = events.ThreadCompleted
	TaskCompleted        = events.TaskCompleted
	HTTPDownloadContext  = dlcontext.HTTPDownloadContext
)

// Re-exported error codes and state constants, so callers never import
// internal/xerrors or internal/engine/state directly.
const (
	ErrInvalidURL            = xerrors.InvalidUrl
	ErrPathNotFound          = xerrors.PathNotFound
	ErrFileAlreadyExists     = xerrors.FileAlreadyExists
	ErrRangeNotSatisfiable   = xerrors.RangeNotSatisfiable
	ErrHTTP                  = xerrors.HttpError
	ErrDiskOperationFailed   = xerrors.DiskOperationFailed
	ErrPermissionDenied      = xerrors.PermissionDenied
	ErrNullReference         = xerrors.NullReference
	ErrArgumentOutOfRange    = xerrors.ArgumentOutOfRange
	ErrThreadNotFound        = xerrors.ThreadNotFound
	ErrThreadCancelled       = xerrors.ThreadCancelled
	ErrThreadMaxExceeded     = xerrors.ThreadMaxExceeded
	ErrThreadCreationFailed  = xerrors.ThreadCreationFailed
	ErrUnexpectedOrUnknown   = xerrors.UnexpectedOrUnknownException
)

const (
	StateWaiting     = state.Waiting
	StateDownloading = state.Downloading
	StatePaused      = state.Paused
	StateCompleted   = state.Completed
	StateFailed      = state.Failed
	StateCancelled   = state.Cancelled
)

// NewLogger builds the default zerolog-backed Logger writing to w (or
// os.Stdout if w is nil).
func NewLogger(w io.Writer) Logger {
	return logging.New(w)
}

// NewSpeedTracker builds a Tracker using cfg's anti-fluctuation sample
// floor.
func NewSpeedTracker(cfg *RuntimeConfig) *SpeedTracker {
	return speed.New(cfg)
}

// NewDownloadContext probes url and builds the immutable
// HTTPDownloadContext a Scheduler task executes against. savedPath may
// name an exact file, a directory (trailing separator), or be empty to
// defer entirely to the probed filename.
func NewDownloadContext(ctx context.Context, client *http.Client, url, savedPath string, threadCount int, cfg *RuntimeConfig) Result[*HTTPDownloadContext] {
	dctx, err := dlcontext.Build(ctx, client, url, savedPath, threadCount, cfg)
	if err != nil {
		return result.Err[*HTTPDownloadContext](err)
	}
	return result.Ok(dctx)
}

// Engine bundles the wired service/work-provider pair a Scheduler needs.
// Most callers only need NewScheduler; Engine exists for hosts that want
// the pool's lifecycle (Close) under their own control.
type Engine struct {
	pool *httpx.Pool
	svc  *service.Service
	wp   *workprovider.Provider
}

// NewEngine wires a connection pool, download service, and work
// provider using cfg and log (logging.New(nil) if log is nil).
func NewEngine(cfg *RuntimeConfig, log Logger) *Engine {
	if log == nil {
		log = logging.New(nil)
	}
	pool := httpx.NewPool(cfg)
	return &Engine{
		pool: pool,
		svc:  service.New(pool, cfg, log),
		wp:   workprovider.New(cfg, log),
	}
}

// Close releases the engine's pooled HTTP client handles.
func (e *Engine) Close() { e.pool.Close() }

// NewScheduler builds a Scheduler bound to this engine, admitting up to
// maxParallelTasks concurrently. disp may be nil if the caller doesn't
// need task lifecycle events.
func (e *Engine) NewScheduler(maxParallelTasks uint8, cfg *RuntimeConfig, log Logger, disp *Dispatcher) (*Scheduler, error) {
	if log == nil {
		log = logging.New(nil)
	}
	return scheduler.New(maxParallelTasks, e.svc, e.wp, cfg, log, disp)
}

// NewScheduler is a convenience wrapper building a default Engine (its
// own pool, closed when the process exits) and handing back the
// Scheduler built on top of it.
func NewScheduler(maxParallelTasks uint8, cfg *RuntimeConfig, log Logger, disp *Dispatcher) (*Scheduler, error) {
	return NewEngine(cfg, log).NewScheduler(maxParallelTasks, cfg, log, disp)
}
