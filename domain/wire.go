package domain

import "time"

// WireMessage is the JSON form of a chat message, shared by the REST
// endpoint and the NATS subject.
type WireMessage struct {
	ChatRoom  string    `json:"chatRoom"`
	Text      string    `json:"text"`
	SenderID  string    `json:"senderId"`
	Timestamp time.Time `json:"timestamp"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
}

func ToWire(m ChatMessage) WireMessage {
	return WireMessage{
		ChatRoom:  m.ChatRoom,
		Text:      m.Text,
		SenderID:  m.SenderID,
		Timestamp: m.Timestamp.UTC(),
		Latitude:  m.Latitude,
		Longitude: m.Longitude,
	}
}

func FromWire(w WireMessage) ChatMessage {
	return ChatMessage{
		ChatRoom:  w.ChatRoom,
		SenderID:  w.SenderID,
		Timestamp: w.Timestamp.UTC(),
		Text:      w.Text,
		Latitude:  w.Latitude,
		Longitude: w.Longitude,
	}
}
