package runtime

import (
	"chat-sync/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Looper is the home executor of listeners: a single goroutine running
// posted tasks one after the other, in posting order.
// Every listener callback of the engine happens on it.
type Looper struct {
	log *slog.Logger

	mu      sync.Mutex
	queue   []func()
	closed  bool
	running bool
	wake    chan struct{}
}

func NewLooper(log *slog.Logger) *Looper {
	return &Looper{log: log, wake: make(chan struct{}, 1)}
}

// Post enqueues a task without blocking.
// It returns false once the looper is closed.
func (l *Looper) Post(task func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Run drains the queue until ctx is canceled.
// Tasks still queued at that point run on the next Run.
func (l *Looper) Run(ctx context.Context) error {
	l.setRunning(true)
	defer l.setRunning(false)
	l.log.Debug("Looper started")
	for {
		for {
			task, ok := l.next()
			if !ok {
				break
			}
			l.execute(task)
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Sync waits until every task posted before it has run.
func (l *Looper) Sync(ctx context.Context) error {
	done := make(chan struct{})
	if !l.Post(func() { close(done) }) {
		return errors.ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain waits until every task posted before it has run. Without a running
// loop the tasks run on the caller's goroutine.
func (l *Looper) Drain(ctx context.Context) error {
	l.mu.Lock()
	running := l.running
	l.mu.Unlock()
	if running {
		return l.Sync(ctx)
	}
	for {
		task, ok := l.next()
		if !ok {
			return nil
		}
		l.execute(task)
	}
}

// Close refuses new tasks and drops the pending ones.
func (l *Looper) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.queue = nil
}

func (l *Looper) setRunning(running bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.running = running
}

func (l *Looper) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	task := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return task, true
}

// execute keeps the looper alive when a listener panics.
func (l *Looper) execute(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("Looper task panicked", "error", fmt.Errorf("%w: %v", errors.ErrWorkerPanic, r))
		}
	}()
	task()
}
