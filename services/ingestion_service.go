package services

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/errors"
	"chat-sync/observability"
	"chat-sync/repositories"
	"context"
	stderrors "errors"
	"log/slog"

	"github.com/abadojack/whatlanggo"
)

const unknownLanguage = "unknown"

type IIngestionService interface {
	Ingest(ctx context.Context, msg domain.ChatMessage) error
	ForSource(source string) contract.Ingester
}

// IngestionService is the single write path of the store: every remote
// message is validated, censored then appended.
type IngestionService struct {
	log       *slog.Logger
	store     repositories.IMessageRepository
	moderator contract.TextModerator
}

func NewIngestionService(log *slog.Logger, store repositories.IMessageRepository, moderator contract.TextModerator) *IngestionService {
	return &IngestionService{log: log, store: store, moderator: moderator}
}

// Ingest returns ErrInvalidMessage, ErrDuplicateKey or the store error as is.
func (s *IngestionService) Ingest(ctx context.Context, msg domain.ChatMessage) error {
	return s.ingest(ctx, msg, "local")
}

// ForSource labels the metrics of what comes through the returned ingester.
func (s *IngestionService) ForSource(source string) contract.Ingester {
	return sourceIngester{service: s, source: source}
}

func (s *IngestionService) ingest(ctx context.Context, msg domain.ChatMessage, source string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := msg.Validate(); err != nil {
		observability.MessagesRejected.WithLabelValues("invalid").Inc()
		return err
	}

	if s.moderator != nil {
		sanitized, words := s.moderator.Censor(msg.Text)
		if len(words) > 0 {
			lang := detectLanguage(msg.Text)
			observability.MessagesCensored.WithLabelValues(lang).Inc()
			s.log.Info("Message censored", "room", msg.ChatRoom, "sender", msg.SenderID, "language", lang, "words", len(words))
			msg.Text = sanitized
		}
	}

	if err := s.store.Append(msg); err != nil {
		reason := "store"
		if stderrors.Is(err, errors.ErrDuplicateKey) {
			reason = "duplicate"
		}
		observability.MessagesRejected.WithLabelValues(reason).Inc()
		return err
	}
	observability.MessagesIngested.WithLabelValues(source).Inc()
	return nil
}

type sourceIngester struct {
	service *IngestionService
	source  string
}

func (i sourceIngester) Ingest(ctx context.Context, msg domain.ChatMessage) error {
	return i.service.ingest(ctx, msg, i.source)
}

func detectLanguage(text string) string {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return unknownLanguage
	}
	return info.Lang.Iso6391()
}
