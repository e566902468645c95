// Package events defines the typed events the scheduler and task
// lifecycle fire, a fan-out dispatcher that delivers every Fire call to
// each registered handler, and a Once guard callers use so a given
// event is fired at most once.
// Grounded on the teacher's message-struct taxonomy
// (internal/engine/events/events.go), trimmed to the task/thread/queue
// lifecycle this spec names and rebuilt without the TUI's ProgressMsg
// polling shape.
package events

import "sync"

// TaskQueued fires when a task has been registered and enqueued, per
// spec.md §4.1's "fires TaskQueueProgressChanged".
type TaskQueued struct {
	TaskID string
}

// ThreadCompleted fires once per thread as it reaches a terminal
// state, per spec.md §4.3.
type ThreadCompleted struct {
	TaskID   string
	ThreadID int
	Success  bool
}

// TaskCompleted fires exactly once per task, after its terminal state
// transition, per spec.md §4.2 step 6.
type TaskCompleted struct {
	TaskID  string
	Success bool
}

// Once guards a callback so it runs at most a single time regardless
// of how many goroutines race to fire it, per spec.md §4.2's "emits
// TaskCompleted exactly once" and §4.3's "invokes ThreadCompleted
// once".
type Once struct {
	once sync.Once
}

// Fire runs fn the first time it's called; subsequent calls are no-ops.
func (o *Once) Fire(fn func()) {
	o.once.Do(fn)
}

// Dispatcher is a minimal fan-out point for TaskCompleted/ThreadCompleted
// notifications. Handlers run synchronously on the firing goroutine and
// must be non-blocking, per spec.md §4.1's "event handlers ... must be
// non-blocking".
type Dispatcher struct {
	mu                sync.RWMutex
	onTaskCompleted   []func(TaskCompleted)
	onThreadCompleted []func(ThreadCompleted)
	onTaskQueued      []func(TaskQueued)
}

// OnTaskCompleted registers a handler for TaskCompleted events.
func (d *Dispatcher) OnTaskCompleted(fn func(TaskCompleted)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onTaskCompleted = append(d.onTaskCompleted, fn)
}

// OnThreadCompleted registers a handler for ThreadCompleted events.
func (d *Dispatcher) OnThreadCompleted(fn func(ThreadCompleted)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onThreadCompleted = append(d.onThreadCompleted, fn)
}

// OnTaskQueued registers a handler for TaskQueued events.
func (d *Dispatcher) OnTaskQueued(fn func(TaskQueued)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onTaskQueued = append(d.onTaskQueued, fn)
}

// FireTaskCompleted notifies every registered TaskCompleted handler.
func (d *Dispatcher) FireTaskCompleted(e TaskCompleted) {
	d.mu.RLock()
	handlers := d.onTaskCompleted
	d.mu.RUnlock()
	for _, h := range handlers {
		h(e)
	}
}

// FireThreadCompleted notifies every registered ThreadCompleted handler.
func (d *Dispatcher) FireThreadCompleted(e ThreadCompleted) {
	d.mu.RLock()
	handlers := d.onThreadCompleted
	d.mu.RUnlock()
	for _, h := range handlers {
		h(e)
	}
}

// FireTaskQueued notifies every registered TaskQueued handler.
func (d *Dispatcher) FireTaskQueued(e TaskQueued) {
	d.mu.RLock()
	handlers := d.onTaskQueued
	d.mu.RUnlock()
	for _, h := range handlers {
		h(e)
	}
}
