package runtime

import (
	"chat-sync/domain"
	"chat-sync/repositories"
	"chat-sync/search"
	"context"
	"fmt"
	"sort"
)

// MessagesQuery reads the timeline of a room, AllRooms merges every room.
func MessagesQuery(store repositories.IMessageRepository, room string) Query[domain.ChatMessage] {
	return Query[domain.ChatMessage]{
		Name: "messages",
		Room: room,
		Load: func(ctx context.Context) ([]domain.ChatMessage, error) {
			return store.QueryAll(room)
		},
	}
}

// SearchQuery returns the messages matching terms, oldest first.
func SearchQuery(index search.IMessageIndex, store repositories.IMessageRepository, room, terms string, limit int) Query[domain.ChatMessage] {
	return Query[domain.ChatMessage]{
		Name: "search",
		Room: room,
		Load: func(ctx context.Context) ([]domain.ChatMessage, error) {
			keys, err := index.Search(ctx, room, terms, limit)
			if err != nil {
				return nil, fmt.Errorf("search %q: %w", terms, err)
			}
			messages, err := store.Get(keys...)
			if err != nil {
				return nil, err
			}
			sort.SliceStable(messages, func(i, j int) bool {
				return messages[i].Timestamp.Before(messages[j].Timestamp)
			})
			return messages, nil
		},
	}
}

// PeersQuery lists the known senders and re-runs on any append.
func PeersQuery(store repositories.IMessageRepository) Query[domain.Peer] {
	return Query[domain.Peer]{
		Name: "peers",
		Room: AllRooms,
		Load: func(ctx context.Context) ([]domain.Peer, error) {
			return store.Peers()
		},
	}
}
