package services

import (
	"chat-sync/domain"
	"chat-sync/errors"
	"chat-sync/mocks"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestIngestionService_Ingest(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	valid := domain.ChatMessage{ChatRoom: "room1", SenderID: "alice", Timestamp: at, Text: "hello there"}

	t.Run("should append a clean message as is", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		store := mocks.NewMockIMessageRepository(ctrl)
		moderator := mocks.NewMockTextModerator(ctrl)
		svc := NewIngestionService(slog.Default(), store, moderator)

		moderator.EXPECT().Censor(valid.Text).Return(valid.Text, nil)
		store.EXPECT().Append(valid).Return(nil)

		req.NoError(svc.Ingest(context.Background(), valid))
	})

	t.Run("should store the censored text", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		store := mocks.NewMockIMessageRepository(ctrl)
		moderator := mocks.NewMockTextModerator(ctrl)
		svc := NewIngestionService(slog.Default(), store, moderator)
		rude := valid
		rude.Text = "you are a wanker my friend"
		censored := rude
		censored.Text = "you are a ****** my friend"

		moderator.EXPECT().Censor(rude.Text).Return(censored.Text, []string{"wanker"})
		store.EXPECT().Append(censored).Return(nil)

		req.NoError(svc.ForSource("nats").Ingest(context.Background(), rude))
	})

	t.Run("should reject an invalid message before the store", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		store := mocks.NewMockIMessageRepository(ctrl)
		moderator := mocks.NewMockTextModerator(ctrl)
		svc := NewIngestionService(slog.Default(), store, moderator)
		blank := valid
		blank.Text = "   "

		// Neither the moderator nor the store are called
		moderator.EXPECT().Censor(gomock.Any()).Times(0)
		store.EXPECT().Append(gomock.Any()).Times(0)

		req.ErrorIs(svc.Ingest(context.Background(), blank), errors.ErrInvalidMessage)
	})

	t.Run("should reject a half location", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		store := mocks.NewMockIMessageRepository(ctrl)
		svc := NewIngestionService(slog.Default(), store, nil)
		lat := 48.85
		half := valid
		half.Latitude = &lat

		store.EXPECT().Append(gomock.Any()).Times(0)

		req.ErrorIs(svc.Ingest(context.Background(), half), errors.ErrInvalidMessage)
	})

	t.Run("should surface a duplicate from the store", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		store := mocks.NewMockIMessageRepository(ctrl)
		svc := NewIngestionService(slog.Default(), store, nil)

		store.EXPECT().Append(valid).Return(fmt.Errorf("%w: key", errors.ErrDuplicateKey))

		req.ErrorIs(svc.Ingest(context.Background(), valid), errors.ErrDuplicateKey)
	})

	t.Run("should stop when the context is done", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		store := mocks.NewMockIMessageRepository(ctrl)
		svc := NewIngestionService(slog.Default(), store, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		store.EXPECT().Append(gomock.Any()).Times(0)

		req.ErrorIs(svc.Ingest(ctx, valid), context.Canceled)
	})
}

func TestDetectLanguage(t *testing.T) {
	req := require.New(t)
	req.Equal("fr", detectLanguage("Bonjour à tous, je suis très content de vous retrouver ce soir pour discuter ensemble"))
}
