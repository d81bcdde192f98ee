// Package domain contains core concepts of the chat system.
// This file defines ChatMessage records and related rules.
// Messages are immutable once stored and validated by the domain.
package domain

import (
	"chat-sync/errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

const MaxTextChars = 2000

var validate = validator.New()

// ChatMessage is identified by (ChatRoom, SenderID, Timestamp).
type ChatMessage struct {
	ChatRoom  string    `validate:"required"`
	SenderID  string    `validate:"required"`
	Timestamp time.Time `validate:"required"`
	Text      string    `validate:"required,max=2000"`
	Latitude  *float64  `validate:"required_with=Longitude,omitempty,latitude"`
	Longitude *float64  `validate:"required_with=Latitude,omitempty,longitude"`
}

// MessageKey is the identity of a stored message.
type MessageKey struct {
	ChatRoom  string
	SenderID  string
	Timestamp time.Time
}

func (m ChatMessage) Key() MessageKey {
	return MessageKey{ChatRoom: m.ChatRoom, SenderID: m.SenderID, Timestamp: m.Timestamp}
}

// Location returns the sender position attached to the message, if any.
func (m ChatMessage) Location() (Location, bool) {
	if m.Latitude == nil || m.Longitude == nil {
		return Location{}, false
	}
	return Location{Latitude: *m.Latitude, Longitude: *m.Longitude}, true
}

// Validate checks the message against the content rules shared by
// ingestion and outbound delivery.
func (m ChatMessage) Validate() error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidMessage, err)
	}
	if err := ValidateText(m.Text); err != nil {
		return err
	}
	if m.Timestamp.UnixNano() <= 0 {
		return fmt.Errorf("%w: timestamp %s is not after the epoch", errors.ErrInvalidMessage, m.Timestamp)
	}
	return nil
}

// Location is a best-effort geographic position of a sender.
type Location struct {
	Latitude  float64
	Longitude float64
}

// Peer is a sender observed through ingested messages.
type Peer struct {
	SenderID  string
	LastSeen  time.Time
	LastRoom  string
	Latitude  *float64
	Longitude *float64
}
