package services

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/runtime"

	"github.com/google/uuid"
)

type IChatService interface {
	PostMessage(room, text string) uuid.UUID
	WatchRoom(room string, listener contract.QueryListener[domain.ChatMessage]) *runtime.QueryHandle[domain.ChatMessage]
	SearchRoom(room, terms string, limit int, listener contract.QueryListener[domain.ChatMessage]) *runtime.QueryHandle[domain.ChatMessage]
	WatchPeers(listener contract.QueryListener[domain.Peer]) *runtime.QueryHandle[domain.Peer]
	LeaveRoom(handle *runtime.QueryHandle[domain.ChatMessage])
}

// ChatService is what a chat screen talks to.
// Listeners are called on the orchestrator's home executor.
type ChatService struct {
	orchestrator *runtime.Orchestrator
}

func NewChatService(o *runtime.Orchestrator) *ChatService {
	return &ChatService{orchestrator: o}
}

func (s *ChatService) PostMessage(room, text string) uuid.UUID {
	return s.orchestrator.Send(room, text)
}

func (s *ChatService) WatchRoom(room string, listener contract.QueryListener[domain.ChatMessage]) *runtime.QueryHandle[domain.ChatMessage] {
	handle := s.orchestrator.WatchRoom(room)
	s.orchestrator.Messages().Attach(handle, listener)
	return handle
}

func (s *ChatService) SearchRoom(room, terms string, limit int, listener contract.QueryListener[domain.ChatMessage]) *runtime.QueryHandle[domain.ChatMessage] {
	handle := s.orchestrator.Search(room, terms, limit)
	s.orchestrator.Messages().Attach(handle, listener)
	return handle
}

func (s *ChatService) WatchPeers(listener contract.QueryListener[domain.Peer]) *runtime.QueryHandle[domain.Peer] {
	handle := s.orchestrator.WatchPeers()
	s.orchestrator.Peers().Attach(handle, listener)
	return handle
}

// LeaveRoom closes the listener of the handle and forgets it.
func (s *ChatService) LeaveRoom(handle *runtime.QueryHandle[domain.ChatMessage]) {
	s.orchestrator.Messages().Release(handle)
}
