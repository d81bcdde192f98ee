package workers

import (
	"chat-sync/contract"
	"chat-sync/errors"
	"chat-sync/observability"
	"chat-sync/repositories"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"
)

// SyncJob pulls what the remote endpoint received since the last run.
// It is meant to be handed to a contract.Scheduler.
type SyncJob struct {
	log      *slog.Logger
	fetcher  contract.MessageFetcher
	ingester contract.Ingester
	cursors  repositories.ICursorRepository
	name     string
}

func NewSyncJob(log *slog.Logger, fetcher contract.MessageFetcher, ingester contract.Ingester, cursors repositories.ICursorRepository, name string) *SyncJob {
	return &SyncJob{log: log, fetcher: fetcher, ingester: ingester, cursors: cursors, name: name}
}

// Run ingests every fetched message then moves the cursor to the newest one.
// Duplicates count as already synced; any other failure leaves the cursor
// where it was so the next run fetches the batch again.
func (j *SyncJob) Run(ctx context.Context) error {
	since, err := j.cursors.GetCursor(j.name)
	if err != nil {
		return fmt.Errorf("read cursor %s: %w", j.name, err)
	}

	messages, err := j.fetcher.FetchMessages(ctx, since)
	if err != nil {
		return fmt.Errorf("fetch since %s: %w", since.Format(time.RFC3339Nano), err)
	}
	observability.SyncPulled.Add(float64(len(messages)))

	newest := since
	var stored, duplicates, invalid int
	for _, msg := range messages {
		err := j.ingester.Ingest(ctx, msg)
		switch {
		case err == nil:
			stored++
		case stderrors.Is(err, errors.ErrDuplicateKey):
			duplicates++
		case stderrors.Is(err, errors.ErrInvalidMessage):
			invalid++
			j.log.Warn("Invalid remote message skipped", "room", msg.ChatRoom, "sender", msg.SenderID, "error", err)
		default:
			return fmt.Errorf("ingest: %w", err)
		}
		if msg.Timestamp.After(newest) {
			newest = msg.Timestamp
		}
	}

	if newest.After(since) {
		if err := j.cursors.SetCursor(j.name, newest); err != nil {
			return fmt.Errorf("write cursor %s: %w", j.name, err)
		}
	}
	j.log.Info("Sync done", "fetched", len(messages), "stored", stored, "duplicates", duplicates, "invalid", invalid, "cursor", newest)
	return nil
}
