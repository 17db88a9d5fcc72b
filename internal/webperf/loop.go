package webperf

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Loop is a single-threaded task queue. Tasks may be posted from any
// goroutine; they run one at a time, in posting order, on whichever
// goroutine drains the loop. All page state is owned by that goroutine.
type Loop struct {
	mu        sync.Mutex
	queue     []func()
	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	logger    *zap.Logger
}

// NewLoop creates an empty loop
func NewLoop(logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Post schedules a task for a later tick
func (l *Loop) Post(task func()) {
	l.mu.Lock()
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// RunPending runs queued tasks on the calling goroutine until the queue is
// empty, including tasks posted by the tasks themselves. It returns the
// number of tasks run.
func (l *Loop) RunPending() int {
	n := 0
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return n
		}
		task := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.runTask(task)
		n++
	}
}

// Pending returns the number of queued tasks
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Run drains the loop until ctx is cancelled or Close is called. After
// Close, tasks already queued still run before Run returns.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.RunPending()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			l.RunPending()
			return nil
		case <-l.wake:
		}
	}
}

// Close asks Run to return once the queue is drained
func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		close(l.done)
	})
}

// runTask isolates the loop from a panicking callback; telemetry must never
// take the page session down.
func (l *Loop) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("page task panicked", zap.Any("panic", r))
		}
	}()
	task()
}
