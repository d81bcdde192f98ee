package runtime

import (
	"chat-sync/domain"
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher[T any](t *testing.T, looper *Looper, registry *Registry) *QueryDispatcher[T] {
	t.Helper()
	dispatcher := NewQueryDispatcher[T](logs.GetLoggerFromLevel(slog.LevelDebug), looper, registry, 2)
	t.Cleanup(func() { dispatcher.Close() })
	return dispatcher
}

func message(room, sender string, at time.Time, text string) domain.ChatMessage {
	return domain.ChatMessage{ChatRoom: room, SenderID: sender, Timestamp: at, Text: text}
}

func TestQueryDispatcher_Rerun_After_Append_Is_Superset(t *testing.T) {
	req := require.New(t)
	looper := startLooper(t)
	registry := NewRegistry()
	store := newTestStore(t)
	store.Subscribe(registry.Notify)
	dispatcher := newTestDispatcher[domain.ChatMessage](t, looper, registry)
	at := time.Now().UTC()
	req.NoError(store.Append(message("room1", "alice", at, "hello")))

	// Given a handle on room1 with a listener
	handle := dispatcher.RunAsync(MessagesQuery(store, "room1"))
	listener := newRecordingListener[domain.ChatMessage]()
	dispatcher.Attach(handle, listener)
	first := receive(t, listener.results)
	req.Len(first, 1)

	// When a qualifying message is appended
	req.NoError(store.Append(message("room1", "bob", at.Add(time.Second), "hi")))

	// Then the re-run result contains the previous one
	second := receive(t, listener.results)
	req.Len(second, 2)
	req.Subset(second, first)
	snapshot, ok := handle.Snapshot()
	req.True(ok)
	req.Equal(second, snapshot)
}

func TestQueryDispatcher_Append_In_Other_Room_Does_Not_Rerun(t *testing.T) {
	looper := startLooper(t)
	registry := NewRegistry()
	store := newTestStore(t)
	store.Subscribe(registry.Notify)
	dispatcher := newTestDispatcher[domain.ChatMessage](t, looper, registry)

	handle := dispatcher.RunAsync(MessagesQuery(store, "room1"))
	listener := newRecordingListener[domain.ChatMessage]()
	dispatcher.Attach(handle, listener)
	receive(t, listener.results)

	require.NoError(t, store.Append(message("room2", "carol", time.Now().UTC(), "elsewhere")))
	requireNothing(t, listener.results, 100*time.Millisecond)
}

func TestQueryDispatcher_Detach_Reattach_Never_Delivers_To_Old_Listener(t *testing.T) {
	req := require.New(t)
	looper := startLooper(t)
	registry := NewRegistry()
	store := newTestStore(t)
	store.Subscribe(registry.Notify)
	dispatcher := newTestDispatcher[domain.ChatMessage](t, looper, registry)
	at := time.Now().UTC()
	req.NoError(store.Append(message("room1", "alice", at, "1")))

	handle := dispatcher.RunAsync(MessagesQuery(store, "room1"))
	old := newRecordingListener[domain.ChatMessage]()
	dispatcher.Attach(handle, old)
	receive(t, old.results)

	// When the listener detaches while messages keep arriving
	dispatcher.Detach(handle)
	syncLooper(t, looper)
	for i := 1; i <= 5; i++ {
		req.NoError(store.Append(message("room1", "alice", at.Add(time.Duration(i)*time.Millisecond), "more")))
	}
	syncLooper(t, looper)

	// And a new listener attaches
	current := newRecordingListener[domain.ChatMessage]()
	dispatcher.Attach(handle, current)

	// Then the new one gets the kept snapshot then the fresh result
	req.Len(receive(t, current.results), 1)
	req.Len(receive(t, current.results), 6)

	// And the old one never heard anything after OnClose
	syncLooper(t, looper)
	req.Equal(1, old.closeCount())
	req.Zero(old.resultsAfterClose())
}

func TestQueryDispatcher_Attach_Replaces_And_Closes_Previous(t *testing.T) {
	req := require.New(t)
	looper := startLooper(t)
	registry := NewRegistry()
	store := newTestStore(t)
	store.Subscribe(registry.Notify)
	dispatcher := newTestDispatcher[domain.ChatMessage](t, looper, registry)

	handle := dispatcher.RunAsync(MessagesQuery(store, "room1"))
	first := newRecordingListener[domain.ChatMessage]()
	second := newRecordingListener[domain.ChatMessage]()
	dispatcher.Attach(handle, first)
	receive(t, first.results)

	// When another listener attaches without detaching the first
	dispatcher.Attach(handle, second)
	receive(t, second.results)
	req.NoError(store.Append(message("room1", "bob", time.Now().UTC(), "news")))
	req.Len(receive(t, second.results), 1)

	// Then the first one was closed and never called again
	syncLooper(t, looper)
	req.Equal(1, first.closeCount())
	req.Zero(first.resultsAfterClose())
	req.Zero(second.closeCount())
}

func TestQueryDispatcher_Result_Without_Listener_Is_Kept_Silently(t *testing.T) {
	req := require.New(t)
	looper := startLooper(t)
	dispatcher := newTestDispatcher[int](t, looper, NewRegistry())
	loaded := make(chan struct{}, 1)

	// Given a query nobody listens to
	handle := dispatcher.RunAsync(Query[int]{Name: "numbers", Load: func(ctx context.Context) ([]int, error) {
		loaded <- struct{}{}
		return []int{1, 2, 3}, nil
	}})
	receive(t, loaded)

	// Then the result is kept for the next listener
	req.Eventually(func() bool {
		_, ok := handle.Snapshot()
		return ok
	}, waitTimeout, 5*time.Millisecond)
	listener := newRecordingListener[int]()
	dispatcher.Attach(handle, listener)
	req.Equal([]int{1, 2, 3}, receive(t, listener.results))
}

func TestQueryDispatcher_Invalidations_Coalesce_During_Run(t *testing.T) {
	req := require.New(t)
	looper := startLooper(t)
	dispatcher := newTestDispatcher[int](t, looper, NewRegistry())
	gate := make(chan struct{})
	var calls atomic.Int32

	handle := dispatcher.RunAsync(Query[int]{Name: "slow", Load: func(ctx context.Context) ([]int, error) {
		if calls.Add(1) == 1 {
			<-gate
		}
		return []int{int(calls.Load())}, nil
	}})
	listener := newRecordingListener[int]()
	dispatcher.Attach(handle, listener)
	syncLooper(t, looper)

	// When invalidations pile up during the first run
	for i := 0; i < 10; i++ {
		handle.Invalidate()
	}
	close(gate)

	// Then a single follow-up run happens and its result comes last
	req.Equal([]int{1}, receive(t, listener.results))
	req.Equal([]int{2}, receive(t, listener.results))
	req.Never(func() bool { return calls.Load() > 2 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestQueryDispatcher_Load_Error_Keeps_Previous_Snapshot(t *testing.T) {
	req := require.New(t)
	looper := startLooper(t)
	dispatcher := newTestDispatcher[string](t, looper, NewRegistry())
	var calls atomic.Int32

	handle := dispatcher.RunAsync(Query[string]{Name: "flaky", Load: func(ctx context.Context) ([]string, error) {
		if calls.Add(1) > 1 {
			return nil, errors.New("disk on fire")
		}
		return []string{"ok"}, nil
	}})
	listener := newRecordingListener[string]()
	dispatcher.Attach(handle, listener)
	receive(t, listener.results)

	// When the re-run fails
	dispatcher.Rerun(handle)
	req.Eventually(func() bool { return calls.Load() == 2 }, waitTimeout, 5*time.Millisecond)

	// Then nothing is delivered and the snapshot survives
	requireNothing(t, listener.results, 100*time.Millisecond)
	snapshot, ok := handle.Snapshot()
	req.True(ok)
	req.Equal([]string{"ok"}, snapshot)
}

func TestQueryDispatcher_Release_Stops_Reruns(t *testing.T) {
	req := require.New(t)
	looper := startLooper(t)
	registry := NewRegistry()
	store := newTestStore(t)
	store.Subscribe(registry.Notify)
	dispatcher := newTestDispatcher[domain.Peer](t, looper, registry)

	handle := dispatcher.RunAsync(PeersQuery(store))
	listener := newRecordingListener[domain.Peer]()
	dispatcher.Attach(handle, listener)
	req.Empty(receive(t, listener.results))

	// When the handle is released
	dispatcher.Release(handle)
	syncLooper(t, looper)
	req.NoError(store.Append(message("room1", "alice", time.Now().UTC(), "hello")))

	// Then the listener is closed and hears nothing more
	requireNothing(t, listener.results, 100*time.Millisecond)
	req.Equal(1, listener.closeCount())
	req.Nil(registry.GetInvalidatorsForRoom("room1"))
	_, ok := handle.Snapshot()
	req.False(ok)
}

func TestQueryDispatcher_Close_Closes_Attached_Listeners(t *testing.T) {
	req := require.New(t)
	looper := startLooper(t)
	registry := NewRegistry()
	dispatcher := NewQueryDispatcher[string](logs.GetLoggerFromLevel(slog.LevelDebug), looper, registry, 2)

	attached := dispatcher.RunAsync(Query[string]{Name: "attached", Room: "room1", Load: func(ctx context.Context) ([]string, error) {
		return []string{"a"}, nil
	}})
	released := dispatcher.RunAsync(Query[string]{Name: "released", Room: "room1", Load: func(ctx context.Context) ([]string, error) {
		return []string{"r"}, nil
	}})
	first := newRecordingListener[string]()
	second := newRecordingListener[string]()
	dispatcher.Attach(attached, first)
	dispatcher.Attach(released, second)
	receive(t, first.results)
	receive(t, second.results)
	dispatcher.Release(released)

	// When the dispatcher closes
	req.True(dispatcher.Close())
	syncLooper(t, looper)

	// Then each listener was closed exactly once and the room has no handle left
	req.Equal(1, first.closeCount())
	req.Equal(1, second.closeCount())
	req.Nil(registry.GetInvalidatorsForRoom("room1"))
	_, ok := attached.Snapshot()
	req.False(ok)
}
