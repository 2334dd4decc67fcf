package pipeline

import (
	"sync/atomic"
	"time"

	"intellilot/internal/entity"
	"intellilot/pkg/log"
)

const DefaultQueueCapacity = 20

// Queue is a bounded task buffer. Enqueue never blocks: when the buffer is
// full the task is dropped and counted so a stalled consumer cannot stall
// the producers.
type Queue struct {
	tasks    chan entity.FrameTask
	received atomic.Int64
	dropped  atomic.Int64
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{
		tasks: make(chan entity.FrameTask, capacity),
	}
}

func (q *Queue) Enqueue(task entity.FrameTask) bool {
	q.received.Add(1)

	select {
	case q.tasks <- task:
		return true
	default:
		q.dropped.Add(1)
		log.Warn(log.Fields{
			"task_id":   task.TaskID,
			"camera_id": task.CameraID,
		}, "Frame queue full, dropping task")
		return false
	}
}

// Dequeue waits up to timeout for a task. The second return is false when
// the wait expired or the queue was closed without a task.
func (q *Queue) Dequeue(timeout time.Duration) (entity.FrameTask, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case task, ok := <-q.tasks:
		return task, ok
	case <-timer.C:
		return entity.FrameTask{}, false
	}
}

func (q *Queue) Depth() int {
	return len(q.tasks)
}

func (q *Queue) Capacity() int {
	return cap(q.tasks)
}

func (q *Queue) Received() int64 {
	return q.received.Load()
}

func (q *Queue) Dropped() int64 {
	return q.dropped.Load()
}
