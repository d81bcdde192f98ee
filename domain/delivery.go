package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type DeliveryState string

const (
	Created   DeliveryState = "CREATED"
	InFlight  DeliveryState = "IN_FLIGHT"
	Delivered DeliveryState = "DELIVERED"
	Failed    DeliveryState = "FAILED"
	Abandoned DeliveryState = "ABANDONED"
)

var deliveryTransitions = map[DeliveryState][]DeliveryState{
	Created:  {InFlight, Failed, Abandoned},
	InFlight: {Delivered, Failed, Abandoned},
}

// IsFinal reports whether no further transition is possible.
func (s DeliveryState) IsFinal() bool {
	_, ok := deliveryTransitions[s]
	return !ok
}

// DeliveryRequest lives while an outbound message is in flight.
// Timestamp is the identity of the message once stored, fixed when the
// request is created so that it follows the order of the sends.
type DeliveryRequest struct {
	CorrelationID uuid.UUID
	ChatRoom      string
	Text          string
	Timestamp     time.Time
	State         DeliveryState
}

func NewDeliveryRequest(chatRoom, text string, timestamp time.Time) *DeliveryRequest {
	return &DeliveryRequest{
		CorrelationID: uuid.New(),
		ChatRoom:      chatRoom,
		Text:          text,
		Timestamp:     timestamp,
		State:         Created,
	}
}

// Transition moves the request to the next state.
// A Created request may fail before being sent when it does not validate.
func (r *DeliveryRequest) Transition(to DeliveryState) error {
	for _, allowed := range deliveryTransitions[r.State] {
		if allowed == to {
			r.State = to
			return nil
		}
	}
	return fmt.Errorf("illegal delivery transition %s -> %s", r.State, to)
}

// DeliveryOutcome is reported once per delivery to the attached listener.
type DeliveryOutcome struct {
	CorrelationID uuid.UUID
	ChatRoom      string
	State         DeliveryState // Delivered or Failed
	Reason        error         // nil when Delivered
}

func (o DeliveryOutcome) OK() bool {
	return o.State == Delivered
}

// OutboundMessage is what is transmitted to the remote endpoint.
type OutboundMessage struct {
	CorrelationID uuid.UUID
	ChatMessage
}
