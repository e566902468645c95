package events

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOnceFiresExactlyOnce(t *testing.T) {
	var o Once
	var count atomic.Int32
	for i := 0; i < 5; i++ {
		o.Fire(func() { count.Add(1) })
	}
	assert.Equal(t, int32(1), count.Load())
}

func TestDispatcherFansOutToAllHandlers(t *testing.T) {
	var d Dispatcher
	var seen []string
	d.OnTaskCompleted(func(e TaskCompleted) { seen = append(seen, "a:"+e.TaskID) })
	d.OnTaskCompleted(func(e TaskCompleted) { seen = append(seen, "b:"+e.TaskID) })

	d.FireTaskCompleted(TaskCompleted{TaskID: "t1", Success: true})
	assert.Equal(t, []string{"a:t1", "b:t1"}, seen)
}

func TestDispatcherThreadAndQueueEvents(t *testing.T) {
	var d Dispatcher
	var threadEvents []ThreadCompleted
	var queuedEvents []TaskQueued
	d.OnThreadCompleted(func(e ThreadCompleted) { threadEvents = append(threadEvents, e) })
	d.OnTaskQueued(func(e TaskQueued) { queuedEvents = append(queuedEvents, e) })

	d.FireThreadCompleted(ThreadCompleted{TaskID: "t1", ThreadID: 2, Success: true})
	d.FireTaskQueued(TaskQueued{TaskID: "t1"})

	assert.Len(t, threadEvents, 1)
	assert.Len(t, queuedEvents, 1)
}
