package workers

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/errors"
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
)

// IngestionWorker feeds the store with the messages published on a subject.
// Handlers run on the subscriber goroutine, one payload at a time.
type IngestionWorker struct {
	log        *slog.Logger
	subscriber contract.Subscriber
	ingester   contract.Ingester
	subject    string
}

func NewIngestionWorker(log *slog.Logger, subscriber contract.Subscriber, ingester contract.Ingester, subject string) *IngestionWorker {
	return &IngestionWorker{log: log, subscriber: subscriber, ingester: ingester, subject: subject}
}

func (w *IngestionWorker) Run(ctx context.Context) error {
	err := w.subscriber.Subscribe(w.subject, func(data []byte) {
		w.handle(ctx, data)
	})
	if err != nil {
		return err
	}
	w.log.Info("Ingesting messages", "subject", w.subject)

	<-ctx.Done()
	if err := w.subscriber.Unsubscribe(w.subject); err != nil {
		w.log.Warn("Unable to unsubscribe", "subject", w.subject, "error", err)
	}
	return ctx.Err()
}

func (w *IngestionWorker) handle(ctx context.Context, data []byte) {
	var wire domain.WireMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		w.log.Warn("Dropping undecodable payload", "subject", w.subject, "error", err)
		return
	}

	msg := domain.FromWire(wire)
	err := w.ingester.Ingest(ctx, msg)
	switch {
	case err == nil:
	case stderrors.Is(err, errors.ErrDuplicateKey):
		w.log.Debug("Message already stored", "room", msg.ChatRoom, "sender", msg.SenderID, "timestamp", msg.Timestamp)
	case stderrors.Is(err, errors.ErrInvalidMessage):
		w.log.Warn("Invalid message dropped", "room", msg.ChatRoom, "sender", msg.SenderID, "error", err)
	default:
		w.log.Error("Unable to ingest message", "room", msg.ChatRoom, "sender", msg.SenderID, "error", err)
	}
}
