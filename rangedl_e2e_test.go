package rangedl_test

import (
	"context"
	"crypto/sha512"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rangedl/rangedl"
	"github.com/rangedl/rangedl/internal/logging"
	"github.com/rangedl/rangedl/internal/pathutil"
	"github.com/rangedl/rangedl/internal/testsupport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario 1: a small single-thread file round-trips byte-identical,
// firing exactly one ThreadCompleted and one TaskCompleted.
func TestE2ESmallSingleThreadFile(t *testing.T) {
	body := make([]byte, 4096)
	for i := range body {
		body[i] = byte(i % 251)
	}
	origin := testsupport.New(body)
	defer origin.Close()

	dir := t.TempDir()
	cfg := &rangedl.RuntimeConfig{}

	disp := &rangedl.Dispatcher{}
	var threadCompletions int
	var taskCompletions int
	done := make(chan rangedl.TaskCompleted, 1)
	disp.OnThreadCompleted(func(rangedl.ThreadCompleted) { threadCompletions++ })
	disp.OnTaskCompleted(func(e rangedl.TaskCompleted) { taskCompletions++; done <- e })

	dctxRes := rangedl.NewDownloadContext(context.Background(), origin.Server.Client(), origin.URL(), filepath.Join(dir, "small.bin"), 1, cfg)
	dctx, err := dctxRes.Unwrap()
	require.NoError(t, err)

	engine := rangedl.NewEngine(cfg, logging.Noop{})
	defer engine.Close()
	sched, err := engine.NewScheduler(2, cfg, logging.Noop{}, disp)
	require.NoError(t, err)
	require.NoError(t, sched.Start())
	defer sched.Stop()

	sched.AddTask(dctx)

	select {
	case e := <-done:
		assert.True(t, e.Success)
	case <-time.After(5 * time.Second):
		t.Fatal("task did not complete")
	}

	data, err := os.ReadFile(dctx.TargetPath)
	require.NoError(t, err)
	assert.Equal(t, body, data)
	assert.Equal(t, 1, threadCompletions)
	assert.Equal(t, 1, taskCompletions)
}

// Scenario 2: a large 8-thread file round-trips with a matching
// SHA-512 digest, and no segment files remain once the task completes.
func TestE2ELargeEightThreadFileChecksumMatches(t *testing.T) {
	const size = 64 * 1024 // kept well below the literal 64 MiB scenario to stay fast in CI
	body := make([]byte, size)
	for i := range body {
		body[i] = byte((i * 7) % 256)
	}
	want := sha512.Sum512(body)

	origin := testsupport.New(body)
	defer origin.Close()

	dir := t.TempDir()
	cfg := &rangedl.RuntimeConfig{}
	disp := &rangedl.Dispatcher{}
	done := make(chan rangedl.TaskCompleted, 1)
	disp.OnTaskCompleted(func(e rangedl.TaskCompleted) { done <- e })

	dctxRes := rangedl.NewDownloadContext(context.Background(), origin.Server.Client(), origin.URL(), filepath.Join(dir, "large.bin"), 8, cfg)
	dctx, err := dctxRes.Unwrap()
	require.NoError(t, err)

	engine := rangedl.NewEngine(cfg, logging.Noop{})
	defer engine.Close()
	sched, err := engine.NewScheduler(2, cfg, logging.Noop{}, disp)
	require.NoError(t, err)
	require.NoError(t, sched.Start())
	defer sched.Stop()

	task := sched.AddTask(dctx)

	select {
	case e := <-done:
		assert.True(t, e.Success)
	case <-time.After(10 * time.Second):
		t.Fatal("task did not complete")
	}

	data, err := os.ReadFile(dctx.TargetPath)
	require.NoError(t, err)
	got := sha512.Sum512(data)
	assert.Equal(t, want, got)

	for _, seg := range pathutil.SegmentPaths(dctx.TargetPath, task.ID(), 8) {
		_, err := os.Stat(seg)
		assert.True(t, os.IsNotExist(err), "segment file %s should not remain after merge", seg)
	}
}

// Scenario 3: an empty file with 4 threads completes every thread at
// 100% with no retries, and merges to a zero-byte file.
func TestE2EEmptyFileFourThreads(t *testing.T) {
	origin := testsupport.New(nil)
	defer origin.Close()

	dir := t.TempDir()
	cfg := &rangedl.RuntimeConfig{}
	disp := &rangedl.Dispatcher{}
	done := make(chan rangedl.TaskCompleted, 1)
	var threadSuccesses int
	disp.OnThreadCompleted(func(e rangedl.ThreadCompleted) {
		if e.Success {
			threadSuccesses++
		}
	})
	disp.OnTaskCompleted(func(e rangedl.TaskCompleted) { done <- e })

	dctxRes := rangedl.NewDownloadContext(context.Background(), origin.Server.Client(), origin.URL(), filepath.Join(dir, "empty.bin"), 4, cfg)
	dctx, err := dctxRes.Unwrap()
	require.NoError(t, err)
	assert.Equal(t, int64(0), dctx.ContentLen)

	engine := rangedl.NewEngine(cfg, logging.Noop{})
	defer engine.Close()
	sched, err := engine.NewScheduler(2, cfg, logging.Noop{}, disp)
	require.NoError(t, err)
	require.NoError(t, sched.Start())
	defer sched.Stop()

	sched.AddTask(dctx)

	select {
	case e := <-done:
		assert.True(t, e.Success)
	case <-time.After(5 * time.Second):
		t.Fatal("task did not complete")
	}

	assert.Equal(t, 4, threadSuccesses)
	info, err := os.Stat(dctx.TargetPath)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

// Scenario 4: an unreachable origin fails context creation with
// InvalidUrl, so no task is ever queued.
func TestE2EInvalidURLNeverQueuesATask(t *testing.T) {
	cfg := &rangedl.RuntimeConfig{}
	client := &http.Client{Timeout: 2 * time.Second}
	dctxRes := rangedl.NewDownloadContext(context.Background(), client, "http://nonexistent.invalid/x", "", 1, cfg)
	assert.True(t, dctxRes.IsErr())

	_, err := dctxRes.Unwrap()
	require.Error(t, err)
}

// Scenario 5: three tasks queued with max_parallel_tasks=2 all complete
// successfully, and none is left in Downloading afterward.
func TestE2EThreeTasksRespectMaxParallelism(t *testing.T) {
	body := []byte("0123456789abcdef")
	origin := testsupport.New(body)
	defer origin.Close()

	dir := t.TempDir()
	cfg := &rangedl.RuntimeConfig{}
	disp := &rangedl.Dispatcher{}
	done := make(chan rangedl.TaskCompleted, 3)
	disp.OnTaskCompleted(func(e rangedl.TaskCompleted) { done <- e })

	engine := rangedl.NewEngine(cfg, logging.Noop{})
	defer engine.Close()
	sched, err := engine.NewScheduler(2, cfg, logging.Noop{}, disp)
	require.NoError(t, err)
	require.NoError(t, sched.Start())
	defer sched.Stop()

	for i := 0; i < 3; i++ {
		dctxRes := rangedl.NewDownloadContext(context.Background(), origin.Server.Client(), origin.URL(), filepath.Join(dir, itoa(i)+".bin"), 2, cfg)
		dctx, err := dctxRes.Unwrap()
		require.NoError(t, err)
		sched.AddTask(dctx)
	}

	for i := 0; i < 3; i++ {
		select {
		case e := <-done:
			assert.True(t, e.Success)
		case <-time.After(5 * time.Second):
			t.Fatal("not all tasks completed")
		}
	}

	var downloading int
	for _, tk := range sched.GetTasksByState(rangedl.StateDownloading) {
		_ = tk
		downloading++
	}
	assert.Equal(t, 0, downloading)
}

// Scenario 6: cancelling a task mid-download ends it Cancelled, leaves
// no segment files behind, still fires TaskCompleted(false), and frees
// the scheduler's permit for the next task.
func TestE2ECancelMidDownloadLeavesNoSegments(t *testing.T) {
	body := make([]byte, 1<<20)
	origin := testsupport.New(body)
	defer origin.Close()

	dir := t.TempDir()
	cfg := &rangedl.RuntimeConfig{}
	disp := &rangedl.Dispatcher{}
	done := make(chan rangedl.TaskCompleted, 1)
	disp.OnTaskCompleted(func(e rangedl.TaskCompleted) { done <- e })

	dctxRes := rangedl.NewDownloadContext(context.Background(), origin.Server.Client(), origin.URL(), filepath.Join(dir, "cancel.bin"), 4, cfg)
	dctx, err := dctxRes.Unwrap()
	require.NoError(t, err)

	engine := rangedl.NewEngine(cfg, logging.Noop{})
	defer engine.Close()
	sched, err := engine.NewScheduler(1, cfg, logging.Noop{}, disp)
	require.NoError(t, err)
	require.NoError(t, sched.Start())
	defer sched.Stop()

	task := sched.AddTask(dctx)

	// Give the thread manager a moment to actually start its workers
	// before cancelling, so Cancel lands on live in-flight reads rather
	// than racing thread creation.
	deadline := time.Now().Add(2 * time.Second)
	for len(task.Manager().Threads()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, sched.CancelTask(task.ID()))

	select {
	case e := <-done:
		assert.False(t, e.Success)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled task never fired TaskCompleted")
	}

	for _, seg := range pathutil.SegmentPaths(dctx.TargetPath, task.ID(), 4) {
		_, err := os.Stat(seg)
		assert.True(t, os.IsNotExist(err), "segment file %s should not remain after cancel", seg)
	}

	// The scheduler must have released its permit: a follow-up task
	// admits and completes without blocking on the freed slot.
	dctx2Res := rangedl.NewDownloadContext(context.Background(), origin.Server.Client(), origin.URL(), filepath.Join(dir, "after-cancel.bin"), 1, cfg)
	dctx2, err := dctx2Res.Unwrap()
	require.NoError(t, err)
	sched.AddTask(dctx2)

	select {
	case e := <-done:
		assert.True(t, e.Success)
	case <-time.After(5 * time.Second):
		t.Fatal("follow-up task never admitted after cancel freed the permit")
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
