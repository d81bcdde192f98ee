// Package search keeps a Bluge full-text index of the stored messages.
// The index only holds message identities; texts are read back from the store.
package search

//go:generate go run go.uber.org/mock/mockgen -source=index.go -destination=../mocks/mock_message_index.go -package=mocks

import (
	"chat-sync/domain"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/blugelabs/bluge"
)

const (
	fieldRoom      = "room"
	fieldSender    = "sender"
	fieldTimestamp = "ts"
	fieldText      = "text"
)

type IMessageIndex interface {
	Index(message domain.ChatMessage) error
	Search(ctx context.Context, room, terms string, limit int) ([]domain.MessageKey, error)
}

type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

// NewMessageIndex opens the index stored under path.
// An empty path keeps the index in memory.
func NewMessageIndex(path string, log *slog.Logger) (*MessageIndex, error) {
	cfg := bluge.InMemoryOnlyConfig()
	if path != "" {
		cfg = bluge.DefaultConfig(path)
	}
	writer, err := bluge.OpenWriter(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	return &MessageIndex{writer: writer, log: log}, nil
}

// Index adds or replaces the message document.
func (i *MessageIndex) Index(message domain.ChatMessage) error {
	doc := bluge.NewDocument(documentID(message.Key())).
		AddField(bluge.NewKeywordField(fieldRoom, message.ChatRoom).StoreValue()).
		AddField(bluge.NewKeywordField(fieldSender, message.SenderID).StoreValue()).
		AddField(bluge.NewKeywordField(fieldTimestamp, strconv.FormatInt(message.Timestamp.UnixNano(), 10)).StoreValue()).
		AddField(bluge.NewTextField(fieldText, message.Text))
	return i.writer.Update(doc.ID(), doc)
}

// Search returns the identities of the best matching messages.
// An empty room searches every room, empty terms match everything.
func (i *MessageIndex) Search(ctx context.Context, room, terms string, limit int) ([]domain.MessageKey, error) {
	query := bluge.NewBooleanQuery()
	if strings.TrimSpace(terms) == "" {
		query.AddMust(bluge.NewMatchAllQuery())
	} else {
		query.AddMust(bluge.NewMatchQuery(terms).SetField(fieldText))
	}
	if room != "" {
		query.AddMust(bluge.NewTermQuery(room).SetField(fieldRoom))
	}

	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	matches, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, err
	}

	keys := make([]domain.MessageKey, 0)
	match, err := matches.Next()
	for err == nil && match != nil {
		var key domain.MessageKey
		var visitErr error
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case fieldRoom:
				key.ChatRoom = string(value)
			case fieldSender:
				key.SenderID = string(value)
			case fieldTimestamp:
				nanos, parseErr := strconv.ParseInt(string(value), 10, 64)
				if parseErr != nil {
					visitErr = parseErr
					return false
				}
				key.Timestamp = time.Unix(0, nanos).UTC()
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		if visitErr != nil {
			return nil, fmt.Errorf("corrupted index document: %w", visitErr)
		}
		keys = append(keys, key)
		match, err = matches.Next()
	}
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (i *MessageIndex) Close() error {
	return i.writer.Close()
}

func documentID(k domain.MessageKey) string {
	return fmt.Sprintf("%d:%s:%d:%s", len(k.ChatRoom), k.ChatRoom, k.Timestamp.UnixNano(), k.SenderID)
}
