package runtime

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/errors"
	"chat-sync/observability"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultDeliveryTimeout = 10 * time.Second

// DeliveryCoordinator sends outbound messages without blocking the caller
// and reports each outcome once, on the home executor, to the listener
// attached at that moment. Nothing is retried.
type DeliveryCoordinator struct {
	log       *slog.Logger
	transport contract.Transport
	locations contract.LocationProvider
	executor  contract.Executor
	senderID  string
	timeout   time.Duration
	clock     *Clock

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	listener contract.DeliveryListener
	inFlight map[uuid.UUID]*domain.DeliveryRequest
	closed   bool
}

func NewDeliveryCoordinator(
	log *slog.Logger,
	transport contract.Transport,
	locations contract.LocationProvider,
	executor contract.Executor,
	senderID string,
	timeout time.Duration,
) *DeliveryCoordinator {
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &DeliveryCoordinator{
		log:       log,
		transport: transport,
		locations: locations,
		executor:  executor,
		senderID:  senderID,
		timeout:   timeout,
		clock:     NewClock(nil),
		ctx:       ctx,
		cancel:    cancel,
		inFlight:  make(map[uuid.UUID]*domain.DeliveryRequest),
	}
}

// SetListener replaces the delivery listener, nil detaches it.
// Called from the home executor, no outcome reaches a detached listener.
func (c *DeliveryCoordinator) SetListener(listener contract.DeliveryListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = listener
}

// Send returns the correlation ID immediately.
// The timestamp is taken here, successive sends of a caller keep their order.
// Every failure, validation included, is reported through the listener.
func (c *DeliveryCoordinator) Send(chatRoom, text string) uuid.UUID {
	request := domain.NewDeliveryRequest(chatRoom, text, c.clock.Next())

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.log.Warn("Coordinator closed, message dropped", "correlation_id", request.CorrelationID, "room", chatRoom)
		return request.CorrelationID
	}
	c.inFlight[request.CorrelationID] = request
	c.wg.Add(1)
	c.mu.Unlock()

	observability.DeliveriesInFlight.Inc()
	go c.transmit(request)
	return request.CorrelationID
}

// InFlight returns the number of requests still awaiting an outcome.
func (c *DeliveryCoordinator) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inFlight)
}

// Close abandons every in-flight request and waits for their goroutines.
// No callback fires afterwards, even for outcomes already queued.
func (c *DeliveryCoordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for id, request := range c.inFlight {
		if err := request.Transition(domain.Abandoned); err != nil {
			c.log.Error("Unable to abandon delivery", "correlation_id", id, "error", err)
		}
		observability.DeliveriesInFlight.Dec()
		observability.DeliveryOutcomes.WithLabelValues(string(domain.Abandoned)).Inc()
		c.log.Debug("Delivery abandoned", "correlation_id", id, "room", request.ChatRoom)
	}
	c.inFlight = make(map[uuid.UUID]*domain.DeliveryRequest)
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

func (c *DeliveryCoordinator) transmit(request *domain.DeliveryRequest) {
	defer c.wg.Done()
	start := time.Now()

	msg := domain.ChatMessage{
		ChatRoom:  request.ChatRoom,
		SenderID:  c.senderID,
		Timestamp: request.Timestamp,
		Text:      request.Text,
	}
	if c.locations != nil {
		if location, ok := c.locations.LastKnown(); ok {
			lat, lon := location.Latitude, location.Longitude
			msg.Latitude, msg.Longitude = &lat, &lon
		}
	}

	if err := msg.Validate(); err != nil {
		c.finish(request, domain.Failed, fmt.Errorf("%w: %v", errors.ErrApplicationFailure, err))
		return
	}
	if !c.advance(request, domain.InFlight) {
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	err := c.transport.PostMessage(ctx, domain.OutboundMessage{CorrelationID: request.CorrelationID, ChatMessage: msg})
	cancel()
	observability.DeliveryLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		c.finish(request, domain.Failed, classify(err))
		return
	}
	c.finish(request, domain.Delivered, nil)
}

// advance returns false when the request was abandoned meanwhile.
func (c *DeliveryCoordinator) advance(request *domain.DeliveryRequest, to domain.DeliveryState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.advanceLocked(request, to)
}

func (c *DeliveryCoordinator) advanceLocked(request *domain.DeliveryRequest, to domain.DeliveryState) bool {
	if c.closed || request.State == domain.Abandoned {
		return false
	}
	if err := request.Transition(to); err != nil {
		c.log.Error("Illegal delivery state", "correlation_id", request.CorrelationID, "error", err)
		return false
	}
	return true
}

// finish moves the request to its final state and forgets it atomically,
// Close sees a request either in flight or gone.
func (c *DeliveryCoordinator) finish(request *domain.DeliveryRequest, state domain.DeliveryState, reason error) {
	c.mu.Lock()
	if !c.advanceLocked(request, state) {
		c.mu.Unlock()
		return
	}
	delete(c.inFlight, request.CorrelationID)
	c.mu.Unlock()

	observability.DeliveriesInFlight.Dec()
	observability.DeliveryOutcomes.WithLabelValues(string(state)).Inc()
	if reason != nil {
		c.log.Warn("Delivery failed", "correlation_id", request.CorrelationID, "room", request.ChatRoom, "reason", reason)
	}

	outcome := domain.DeliveryOutcome{
		CorrelationID: request.CorrelationID,
		ChatRoom:      request.ChatRoom,
		State:         state,
		Reason:        reason,
	}
	c.executor.Post(func() { c.report(outcome) })
}

// report runs on the home executor.
func (c *DeliveryCoordinator) report(outcome domain.DeliveryOutcome) {
	c.mu.Lock()
	closed, listener := c.closed, c.listener
	c.mu.Unlock()

	if closed {
		return
	}
	if listener == nil {
		c.log.Debug("No delivery listener attached, outcome dropped", "correlation_id", outcome.CorrelationID, "state", outcome.State)
		observability.ResultsDiscarded.WithLabelValues("delivery").Inc()
		return
	}
	listener.OnDeliveryResult(outcome)
}

// classify maps a transport error to the failure reported to the listener.
func classify(err error) error {
	switch {
	case stderrors.Is(err, errors.ErrApplicationFailure), stderrors.Is(err, errors.ErrTransportFailure):
		return err
	case stderrors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: timeout: %v", errors.ErrTransportFailure, err)
	default:
		return fmt.Errorf("%w: %v", errors.ErrTransportFailure, err)
	}
}
