package runtime

import (
	"chat-sync/contract"
	"chat-sync/errors"
	"chat-sync/observability"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

const defaultMaxConcurrentQueries = 4

// Query describes what a handle loads.
// Room scopes invalidation, AllRooms re-runs on any append.
type Query[T any] struct {
	Name string
	Room string
	Load func(ctx context.Context) ([]T, error)
}

// QueryHandle is one outstanding asynchronous query bound to at most one listener.
// At most one load runs at a time; invalidations arriving meanwhile
// coalesce into a single follow-up run.
type QueryHandle[T any] struct {
	ID         uuid.UUID
	query      Query[T]
	dispatcher *QueryDispatcher[T]

	mu          sync.Mutex
	listener    contract.QueryListener[T]
	snapshot    []T
	hasSnapshot bool
	running     bool
	dirty       bool // invalidated during a run
	stale       bool // invalidated while detached
	released    bool
}

// Invalidate re-runs the query, or defers the run to the next Attach
// when no listener is attached.
func (h *QueryHandle[T]) Invalidate() {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return
	}
	if h.listener == nil {
		h.stale = true
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()
	h.dispatcher.schedule(h)
}

// Snapshot returns the last delivered result.
func (h *QueryHandle[T]) Snapshot() ([]T, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshot, h.hasSnapshot
}

// QueryDispatcher runs queries off the caller's goroutine and delivers
// their results on the home executor.
type QueryDispatcher[T any] struct {
	log      *slog.Logger
	executor contract.Executor
	registry *Registry
	sem      *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	handles map[uuid.UUID]*QueryHandle[T]
}

func NewQueryDispatcher[T any](
	log *slog.Logger,
	executor contract.Executor,
	registry *Registry,
	maxConcurrent int,
) *QueryDispatcher[T] {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentQueries
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &QueryDispatcher[T]{
		log:      log,
		executor: executor,
		registry: registry,
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
		ctx:      ctx,
		cancel:   cancel,
		handles:  make(map[uuid.UUID]*QueryHandle[T]),
	}
}

// RunAsync starts the query and returns its handle immediately.
// The result is kept as the handle's snapshot and delivered to the
// listener attached when it completes, if any.
func (d *QueryDispatcher[T]) RunAsync(query Query[T]) *QueryHandle[T] {
	h := &QueryHandle[T]{ID: uuid.New(), query: query, dispatcher: d}
	d.mu.Lock()
	d.handles[h.ID] = h
	d.mu.Unlock()
	d.registry.Subscribe(h.ID, query.Room, h)
	d.schedule(h)
	return h
}

// Rerun forces a new run; its result replaces the current snapshot.
func (d *QueryDispatcher[T]) Rerun(h *QueryHandle[T]) {
	d.schedule(h)
}

// Attach binds a listener to the handle, closing the previous one first.
// A handle holding a snapshot redelivers it; a stale handle re-runs.
func (d *QueryDispatcher[T]) Attach(h *QueryHandle[T], listener contract.QueryListener[T]) bool {
	return d.executor.Post(func() {
		h.mu.Lock()
		if h.released {
			h.mu.Unlock()
			listener.OnClose()
			return
		}
		previous := h.listener
		h.listener = listener
		snapshot, hasSnapshot := h.snapshot, h.hasSnapshot
		stale := h.stale
		h.stale = false
		h.mu.Unlock()

		if previous != nil {
			previous.OnClose()
		}
		if hasSnapshot {
			listener.OnResults(h.ID, snapshot)
		}
		if stale {
			d.schedule(h)
		}
	})
}

// Detach stops delivery to the current listener without error.
func (d *QueryDispatcher[T]) Detach(h *QueryHandle[T]) bool {
	return d.executor.Post(func() {
		h.mu.Lock()
		previous := h.listener
		h.listener = nil
		h.mu.Unlock()

		if previous != nil {
			previous.OnClose()
		}
	})
}

// Release detaches the handle and stops re-running it for good.
func (d *QueryDispatcher[T]) Release(h *QueryHandle[T]) bool {
	d.registry.Unsubscribe(h.ID, h.query.Room)
	d.mu.Lock()
	delete(d.handles, h.ID)
	d.mu.Unlock()
	return d.executor.Post(func() { release(h) })
}

// Close stops pending loads and waits for the running ones.
// Results not yet delivered are dropped. Every handle still live is then
// released on the executor, after the tasks already posted, so that each
// attached listener gets its OnClose.
// It returns false when the executor no longer accepts tasks.
func (d *QueryDispatcher[T]) Close() bool {
	d.mu.Lock()
	d.closed = true
	handles := d.handles
	d.handles = make(map[uuid.UUID]*QueryHandle[T])
	d.mu.Unlock()
	d.cancel()
	d.wg.Wait()

	for id, h := range handles {
		d.registry.Unsubscribe(id, h.query.Room)
	}
	return d.executor.Post(func() {
		for _, h := range handles {
			release(h)
		}
	})
}

// release runs on the executor.
func release[T any](h *QueryHandle[T]) {
	h.mu.Lock()
	previous := h.listener
	h.listener = nil
	h.released = true
	h.snapshot, h.hasSnapshot = nil, false
	h.mu.Unlock()

	if previous != nil {
		previous.OnClose()
	}
}

func (d *QueryDispatcher[T]) schedule(h *QueryHandle[T]) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return
	}
	if h.running {
		h.dirty = true
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	d.wg.Add(1)
	go d.run(h)
}

func (d *QueryDispatcher[T]) run(h *QueryHandle[T]) {
	defer d.wg.Done()

	for {
		items, err := d.load(h)
		switch {
		case err == nil:
			d.executor.Post(func() { d.complete(h, items) })
		case d.ctx.Err() != nil:
		default:
			d.log.Error("Query failed, keeping previous snapshot", "query", h.query.Name, "handle", h.ID, "error", err)
		}

		h.mu.Lock()
		if !h.dirty || h.released || d.ctx.Err() != nil {
			h.running, h.dirty = false, false
			h.mu.Unlock()
			return
		}
		h.dirty = false
		h.mu.Unlock()
	}
}

func (d *QueryDispatcher[T]) load(h *QueryHandle[T]) ([]T, error) {
	if err := d.sem.Acquire(d.ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrClosed, err)
	}
	defer d.sem.Release(1)

	start := time.Now()
	items, err := h.query.Load(d.ctx)
	observability.QueryDuration.WithLabelValues(h.query.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.QueryRuns.WithLabelValues(h.query.Name, "error").Inc()
		return nil, err
	}
	observability.QueryRuns.WithLabelValues(h.query.Name, "ok").Inc()
	return items, nil
}

// complete runs on the home executor.
func (d *QueryDispatcher[T]) complete(h *QueryHandle[T], items []T) {
	if d.ctx.Err() != nil {
		return
	}

	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return
	}
	h.snapshot, h.hasSnapshot = items, true
	listener := h.listener
	h.mu.Unlock()

	if listener == nil {
		d.log.Debug("No listener attached, result kept as snapshot", "query", h.query.Name, "handle", h.ID, "items", len(items))
		observability.ResultsDiscarded.WithLabelValues("query").Inc()
		return
	}
	listener.OnResults(h.ID, items)
}
