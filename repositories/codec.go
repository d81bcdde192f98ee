package repositories

import (
	"chat-sync/domain"
	"chat-sync/errors"
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the stored records.
// message: 1 room, 2 sender, 3 timestamp (unix nano), 4 text, 5 latitude, 6 longitude
// peer:    1 sender, 2 last seen (unix nano), 3 last room, 4 latitude, 5 longitude
const (
	fieldMessageRoom      protowire.Number = 1
	fieldMessageSender    protowire.Number = 2
	fieldMessageTimestamp protowire.Number = 3
	fieldMessageText      protowire.Number = 4
	fieldMessageLatitude  protowire.Number = 5
	fieldMessageLongitude protowire.Number = 6

	fieldPeerSender    protowire.Number = 1
	fieldPeerLastSeen  protowire.Number = 2
	fieldPeerLastRoom  protowire.Number = 3
	fieldPeerLatitude  protowire.Number = 4
	fieldPeerLongitude protowire.Number = 5
)

func encodeMessage(m domain.ChatMessage) []byte {
	var b []byte
	b = appendString(b, fieldMessageRoom, m.ChatRoom)
	b = appendString(b, fieldMessageSender, m.SenderID)
	b = appendTime(b, fieldMessageTimestamp, m.Timestamp)
	b = appendString(b, fieldMessageText, m.Text)
	b = appendDouble(b, fieldMessageLatitude, m.Latitude)
	b = appendDouble(b, fieldMessageLongitude, m.Longitude)
	return b
}

func decodeMessage(b []byte) (domain.ChatMessage, error) {
	var m domain.ChatMessage
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, value []byte) int {
		switch {
		case num == fieldMessageRoom && typ == protowire.BytesType:
			return consumeString(value, &m.ChatRoom)
		case num == fieldMessageSender && typ == protowire.BytesType:
			return consumeString(value, &m.SenderID)
		case num == fieldMessageTimestamp && typ == protowire.VarintType:
			return consumeTime(value, &m.Timestamp)
		case num == fieldMessageText && typ == protowire.BytesType:
			return consumeString(value, &m.Text)
		case num == fieldMessageLatitude && typ == protowire.Fixed64Type:
			return consumeDouble(value, &m.Latitude)
		case num == fieldMessageLongitude && typ == protowire.Fixed64Type:
			return consumeDouble(value, &m.Longitude)
		}
		return protowire.ConsumeFieldValue(num, typ, value)
	})
	return m, err
}

func encodePeer(p domain.Peer) []byte {
	var b []byte
	b = appendString(b, fieldPeerSender, p.SenderID)
	b = appendTime(b, fieldPeerLastSeen, p.LastSeen)
	b = appendString(b, fieldPeerLastRoom, p.LastRoom)
	b = appendDouble(b, fieldPeerLatitude, p.Latitude)
	b = appendDouble(b, fieldPeerLongitude, p.Longitude)
	return b
}

func decodePeer(b []byte) (domain.Peer, error) {
	var p domain.Peer
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, value []byte) int {
		switch {
		case num == fieldPeerSender && typ == protowire.BytesType:
			return consumeString(value, &p.SenderID)
		case num == fieldPeerLastSeen && typ == protowire.VarintType:
			return consumeTime(value, &p.LastSeen)
		case num == fieldPeerLastRoom && typ == protowire.BytesType:
			return consumeString(value, &p.LastRoom)
		case num == fieldPeerLatitude && typ == protowire.Fixed64Type:
			return consumeDouble(value, &p.Latitude)
		case num == fieldPeerLongitude && typ == protowire.Fixed64Type:
			return consumeDouble(value, &p.Longitude)
		}
		return protowire.ConsumeFieldValue(num, typ, value)
	})
	return p, err
}

// consumeFields walks the tags of b and hands every field value to fn,
// which returns the number of bytes it consumed.
func consumeFields(b []byte, fn func(num protowire.Number, typ protowire.Type, value []byte) int) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", errors.ErrMalformedRecord, protowire.ParseError(n))
		}
		b = b[n:]
		m := fn(num, typ, b)
		if m < 0 {
			return fmt.Errorf("%w: field %d: %v", errors.ErrMalformedRecord, num, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return nil
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendTime(b []byte, num protowire.Number, t time.Time) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(t.UnixNano()))
}

func appendDouble(b []byte, num protowire.Number, f *float64) []byte {
	if f == nil {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(*f))
}

func consumeString(b []byte, dst *string) int {
	s, n := protowire.ConsumeString(b)
	if n >= 0 {
		*dst = s
	}
	return n
}

func consumeTime(b []byte, dst *time.Time) int {
	v, n := protowire.ConsumeVarint(b)
	if n >= 0 {
		*dst = time.Unix(0, int64(v)).UTC()
	}
	return n
}

func consumeDouble(b []byte, dst **float64) int {
	v, n := protowire.ConsumeFixed64(b)
	if n >= 0 {
		f := math.Float64frombits(v)
		*dst = &f
	}
	return n
}
