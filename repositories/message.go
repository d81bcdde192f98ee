//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"chat-sync/domain"
	"chat-sync/errors"
	stderrors "errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const (
	messagePrefix = "msg:"
	peerPrefix    = "peer:"
)

// Timestamps are stored as nanoseconds since the epoch, roughly years 1678 to 2262.
var (
	minTimestamp = time.Unix(0, math.MinInt64).UTC()
	maxTimestamp = time.Unix(0, math.MaxInt64).UTC()
)

// MessageObserver is notified after every successful append.
type MessageObserver func(message domain.ChatMessage)

type IMessageRepository interface {
	Append(message domain.ChatMessage) error
	QueryAll(room string) ([]domain.ChatMessage, error)
	Get(keys ...domain.MessageKey) ([]domain.ChatMessage, error)
	Peers() ([]domain.Peer, error)
	Subscribe(observer MessageObserver)
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger

	writeMu sync.Mutex

	observersMu sync.RWMutex
	observers   []MessageObserver
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log}
}

// Subscribe registers an observer. Observers run synchronously in the
// appending goroutine, in registration order, outside the write lock.
func (m *MessageRepository) Subscribe(observer MessageObserver) {
	m.observersMu.Lock()
	defer m.observersMu.Unlock()
	m.observers = append(m.observers, observer)
}

// Append persists a message in BadgerDB.
// The key is formatted as "msg:{len(room)}:{room}:{timestamp_padded}:{sender}" to:
//  1. Ensure chronological sorting inside a room, pre-1970 included, with a
//     20-digit zero padded, sign flipped nanosecond count.
//  2. Keep room prefixes unambiguous whatever characters the room name holds.
//
// The same transaction upserts the sender's peer record.
// A timestamp nanoseconds cannot represent fails with ErrInvalidMessage.
func (m *MessageRepository) Append(message domain.ChatMessage) error {
	message.Timestamp = message.Timestamp.UTC()
	if message.Timestamp.Before(minTimestamp) || message.Timestamp.After(maxTimestamp) {
		return fmt.Errorf("%w: timestamp %s out of range", errors.ErrInvalidMessage, message.Timestamp)
	}
	key := messageKey(message.Key())
	value := encodeMessage(message)

	m.writeMu.Lock()
	err := m.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		switch {
		case err == nil:
			return fmt.Errorf("%w: %s", errors.ErrDuplicateKey, key)
		case !stderrors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		if err = txn.Set(key, value); err != nil {
			return err
		}
		return upsertPeer(txn, message)
	})
	m.writeMu.Unlock()
	if err != nil {
		return err
	}

	m.observersMu.RLock()
	observers := m.observers
	m.observersMu.RUnlock()
	for _, observer := range observers {
		observer(message)
	}
	return nil
}

// QueryAll returns the messages of a room ordered by timestamp.
// An empty room returns every room merged by timestamp.
// A room without messages yields an empty slice.
func (m *MessageRepository) QueryAll(room string) ([]domain.ChatMessage, error) {
	prefix := []byte(messagePrefix)
	if room != "" {
		prefix = roomPrefix(room)
	}

	messages := make([]domain.ChatMessage, 0)
	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				message, err := decodeMessage(value)
				if err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if room == "" {
		sort.SliceStable(messages, func(i, j int) bool {
			return lessMessage(messages[i], messages[j])
		})
	}
	return messages, nil
}

// Get looks up messages by identity. Unknown keys are skipped.
func (m *MessageRepository) Get(keys ...domain.MessageKey) ([]domain.ChatMessage, error) {
	messages := make([]domain.ChatMessage, 0, len(keys))
	err := m.db.View(func(txn *badger.Txn) error {
		for _, k := range keys {
			item, err := txn.Get(messageKey(k))
			if stderrors.Is(err, badger.ErrKeyNotFound) {
				m.log.Debug("Message not found", "room", k.ChatRoom, "sender", k.SenderID)
				continue
			}
			if err != nil {
				return err
			}
			err = item.Value(func(value []byte) error {
				message, err := decodeMessage(value)
				if err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// Peers returns every known sender ordered by id.
func (m *MessageRepository) Peers() ([]domain.Peer, error) {
	peers := make([]domain.Peer, 0)
	prefix := []byte(peerPrefix)
	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				peer, err := decodePeer(value)
				if err != nil {
					return err
				}
				peers = append(peers, peer)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return peers, nil
}

// upsertPeer keeps the newest sighting of the sender.
// A message without location keeps the last known one.
func upsertPeer(txn *badger.Txn, message domain.ChatMessage) error {
	key := []byte(peerPrefix + message.SenderID)
	peer := domain.Peer{SenderID: message.SenderID}

	item, err := txn.Get(key)
	switch {
	case err == nil:
		err = item.Value(func(value []byte) error {
			peer, err = decodePeer(value)
			return err
		})
		if err != nil {
			return err
		}
		if peer.LastSeen.After(message.Timestamp) {
			return nil
		}
	case !stderrors.Is(err, badger.ErrKeyNotFound):
		return err
	}

	peer.LastSeen = message.Timestamp
	peer.LastRoom = message.ChatRoom
	if _, ok := message.Location(); ok {
		peer.Latitude, peer.Longitude = message.Latitude, message.Longitude
	}
	return txn.Set(key, encodePeer(peer))
}

func roomPrefix(room string) []byte {
	return []byte(fmt.Sprintf("%s%d:%s:", messagePrefix, len(room), room))
}

func messageKey(k domain.MessageKey) []byte {
	return []byte(fmt.Sprintf("%s%d:%s:%020d:%s",
		messagePrefix,
		len(k.ChatRoom),
		k.ChatRoom,
		sortableNanos(k.Timestamp),
		k.SenderID,
	))
}

// sortableNanos flips the sign bit so that byte order follows time order.
func sortableNanos(t time.Time) uint64 {
	return uint64(t.UnixNano()) ^ (1 << 63)
}

func lessMessage(a, b domain.ChatMessage) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	if a.ChatRoom != b.ChatRoom {
		return a.ChatRoom < b.ChatRoom
	}
	return a.SenderID < b.SenderID
}
