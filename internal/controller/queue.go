package controller

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

type task struct {
	id   string
	name string
	run  func(ctx context.Context)
}

// taskQueue is an unbounded FIFO drained by a single worker. A task never
// starts before the previous one has returned.
type taskQueue struct {
	log   *slog.Logger
	mu    sync.Mutex
	tasks []task
	ready chan struct{}
}

func newTaskQueue(log *slog.Logger) *taskQueue {
	return &taskQueue{log: log, ready: make(chan struct{}, 1)}
}

func (q *taskQueue) push(t task) {
	q.mu.Lock()
	q.tasks = append(q.tasks, t)
	q.mu.Unlock()
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *taskQueue) pop() (task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return task{}, false
	}
	t := q.tasks[0]
	q.tasks[0] = task{}
	q.tasks = q.tasks[1:]
	return t, true
}

func (q *taskQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// run processes tasks until ctx is done. Tasks still queued at that point
// are dropped.
func (q *taskQueue) run(ctx context.Context) {
	for {
		for {
			if ctx.Err() != nil {
				return
			}
			t, ok := q.pop()
			if !ok {
				break
			}
			q.exec(ctx, t)
		}
		select {
		case <-ctx.Done():
			return
		case <-q.ready:
		}
	}
}

// exec runs one task. A panic is logged and swallowed so the queue keeps going.
func (q *taskQueue) exec(ctx context.Context, t task) {
	log := q.log.With("task", t.id, "name", t.name)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error("task panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	log.Debug("task start", "waiting", q.len())
	t.run(ctx)
	log.Debug("task done", "elapsed", time.Since(start))
}
