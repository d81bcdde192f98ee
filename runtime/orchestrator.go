// Package runtime runs the sync engine: the home looper, the query
// dispatchers, outbound delivery and the scheduled background work.
// It wires components together without holding business rules.
package runtime

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/repositories"
	"chat-sync/search"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultSearchLimit = 50
	drainTimeout       = 5 * time.Second
)

type Orchestrator struct {
	log         *slog.Logger
	supervisor  contract.ISupervisor
	looper      *Looper
	registry    *Registry
	store       repositories.IMessageRepository
	index       search.IMessageIndex
	messages    *QueryDispatcher[domain.ChatMessage]
	peers       *QueryDispatcher[domain.Peer]
	coordinator *DeliveryCoordinator

	mu        sync.Mutex
	scheduler contract.Scheduler
	done      chan struct{}
}

func NewOrchestrator(
	log *slog.Logger,
	supervisor contract.ISupervisor,
	store repositories.IMessageRepository,
	index search.IMessageIndex,
	transport contract.Transport,
	locations contract.LocationProvider,
	senderID string,
	deliveryTimeout time.Duration,
	maxConcurrentQueries int,
) *Orchestrator {
	looper := NewLooper(log)
	registry := NewRegistry()
	o := &Orchestrator{
		log:         log,
		supervisor:  supervisor,
		looper:      looper,
		registry:    registry,
		store:       store,
		index:       index,
		messages:    NewQueryDispatcher[domain.ChatMessage](log, looper, registry, maxConcurrentQueries),
		peers:       NewQueryDispatcher[domain.Peer](log, looper, registry, maxConcurrentQueries),
		coordinator: NewDeliveryCoordinator(log, transport, locations, looper, senderID, deliveryTimeout),
	}

	// The index must know a message before the handles of its room re-run.
	store.Subscribe(o.indexMessage)
	store.Subscribe(registry.Notify)
	return o
}

// Executor is the home executor every listener callback runs on.
func (o *Orchestrator) Executor() contract.Executor {
	return o.looper
}

// Messages is the dispatcher of the room timelines and searches.
func (o *Orchestrator) Messages() *QueryDispatcher[domain.ChatMessage] {
	return o.messages
}

func (o *Orchestrator) Peers() *QueryDispatcher[domain.Peer] {
	return o.peers
}

// WatchRoom opens a live query on a room, AllRooms watches every room.
func (o *Orchestrator) WatchRoom(room string) *QueryHandle[domain.ChatMessage] {
	return o.messages.RunAsync(MessagesQuery(o.store, room))
}

// Search opens a live full text query on a room.
func (o *Orchestrator) Search(room, terms string, limit int) *QueryHandle[domain.ChatMessage] {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	return o.messages.RunAsync(SearchQuery(o.index, o.store, room, terms, limit))
}

func (o *Orchestrator) WatchPeers() *QueryHandle[domain.Peer] {
	return o.peers.RunAsync(PeersQuery(o.store))
}

func (o *Orchestrator) Send(chatRoom, text string) uuid.UUID {
	return o.coordinator.Send(chatRoom, text)
}

// SetDeliveryListener must be called from the home executor, see Executor.
func (o *Orchestrator) SetDeliveryListener(listener contract.DeliveryListener) {
	o.coordinator.SetListener(listener)
}

func (o *Orchestrator) InFlight() int {
	return o.coordinator.InFlight()
}

// Add registers long-running workers, they start with the orchestrator.
func (o *Orchestrator) Add(workers ...contract.Worker) {
	o.supervisor.Add(workers...)
}

// Start runs the looper and every registered worker under supervision.
// It returns immediately; Stop waits for them.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done != nil {
		o.log.Warn("Orchestrator already started")
		return
	}
	o.supervisor.Add(o.looper)
	o.done = make(chan struct{})

	o.log.Info("Starting orchestrator and all supervised workers")
	go func() {
		defer close(o.done)
		o.supervisor.Run(ctx)
	}()
}

// ScheduleBackgroundOperations replaces the background job, if any.
func (o *Orchestrator) ScheduleBackgroundOperations(ctx context.Context, scheduler contract.Scheduler, job contract.Job) error {
	o.CancelBackgroundOperations()
	if err := scheduler.Schedule(ctx, job); err != nil {
		return err
	}

	o.mu.Lock()
	o.scheduler = scheduler
	o.mu.Unlock()
	o.log.Info("Background operations scheduled")
	return nil
}

// CancelBackgroundOperations returns once the running job, if any, is done.
func (o *Orchestrator) CancelBackgroundOperations() {
	o.mu.Lock()
	scheduler := o.scheduler
	o.scheduler = nil
	o.mu.Unlock()

	if scheduler != nil {
		scheduler.Cancel()
		o.log.Info("Background operations canceled")
	}
}

// Stop abandons in-flight deliveries, stops the queries and the workers.
// Tasks already posted still run and every attached query listener gets
// its OnClose. No listener is called once Stop returns.
func (o *Orchestrator) Stop() {
	o.CancelBackgroundOperations()
	o.coordinator.Close()
	o.messages.Close()
	o.peers.Close()

	o.drain()
	o.looper.Close()

	o.mu.Lock()
	done := o.done
	o.mu.Unlock()
	o.supervisor.Stop()

	if done != nil {
		<-done
	}
	o.log.Info("Orchestrator stopped")
}

// drain runs what is queued on the looper.
func (o *Orchestrator) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := o.looper.Drain(ctx); err != nil {
		o.log.Warn("Looper not drained, pending listener callbacks dropped", "error", err)
	}
}

func (o *Orchestrator) indexMessage(message domain.ChatMessage) {
	if err := o.index.Index(message); err != nil {
		o.log.Error("Unable to index message", "room", message.ChatRoom, "sender", message.SenderID, "error", err)
	}
}
