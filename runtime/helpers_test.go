package runtime

import (
	"chat-sync/repositories"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

func startLooper(t *testing.T) *Looper {
	t.Helper()
	looper := NewLooper(logs.GetLoggerFromLevel(slog.LevelDebug))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = looper.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return looper
}

func syncLooper(t *testing.T, looper *Looper) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, looper.Sync(ctx))
}

func newTestStore(t *testing.T) *repositories.MessageRepository {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return repositories.NewMessageRepository(db, logs.GetLoggerFromLevel(slog.LevelDebug))
}

type listenerEvent[T any] struct {
	closed bool
	items  []T
}

// recordingListener keeps every callback in order.
type recordingListener[T any] struct {
	mu      sync.Mutex
	events  []listenerEvent[T]
	results chan []T
}

func newRecordingListener[T any]() *recordingListener[T] {
	return &recordingListener[T]{results: make(chan []T, 64)}
}

func (l *recordingListener[T]) OnResults(_ uuid.UUID, items []T) {
	l.mu.Lock()
	l.events = append(l.events, listenerEvent[T]{items: items})
	l.mu.Unlock()
	l.results <- items
}

func (l *recordingListener[T]) OnClose() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, listenerEvent[T]{closed: true})
}

// resultsAfterClose counts deliveries that happened after the first OnClose.
func (l *recordingListener[T]) resultsAfterClose() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	closed, count := false, 0
	for _, e := range l.events {
		if e.closed {
			closed = true
			continue
		}
		if closed {
			count++
		}
	}
	return count
}

func (l *recordingListener[T]) closeCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	count := 0
	for _, e := range l.events {
		if e.closed {
			count++
		}
	}
	return count
}

func receive[T any](t *testing.T, ch chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitTimeout):
		require.FailNow(t, "timed out waiting for a callback")
	}
	var zero T
	return zero
}

func requireNothing[T any](t *testing.T, ch chan T, within time.Duration) {
	t.Helper()
	select {
	case v := <-ch:
		require.FailNow(t, "unexpected callback", "%v", v)
	case <-time.After(within):
	}
}
