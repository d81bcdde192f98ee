//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-sync/domain"
	"context"
	"reflect"
	"time"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Executor runs tasks on the home context of the listeners.
// Post never blocks and returns false once the executor is stopped.
type Executor interface {
	Post(task func()) bool
}

// QueryListener receives the current snapshot of a query handle.
// OnClose must release whatever the listener holds on the previous snapshot.
type QueryListener[T any] interface {
	OnResults(handle uuid.UUID, items []T)
	OnClose()
}

type DeliveryListener interface {
	OnDeliveryResult(outcome domain.DeliveryOutcome)
}

// Transport posts a message to the remote endpoint.
type Transport interface {
	PostMessage(ctx context.Context, msg domain.OutboundMessage) error
}

// MessageFetcher pulls messages newer than since from the remote endpoint.
type MessageFetcher interface {
	FetchMessages(ctx context.Context, since time.Time) ([]domain.ChatMessage, error)
}

type LocationProvider interface {
	LastKnown() (domain.Location, bool)
}

// Ingester is the entry point of the ingestion path.
type Ingester interface {
	Ingest(ctx context.Context, msg domain.ChatMessage) error
}

// TextModerator masks forbidden words and reports the ones it found.
type TextModerator interface {
	Censor(text string) (string, []string)
}

// Subscriber delivers raw payloads published on a subject.
type Subscriber interface {
	Subscribe(subject string, handler func(data []byte)) error
	Unsubscribe(subject string) error
}

type Job func(ctx context.Context) error

// Scheduler runs a job periodically until canceled.
type Scheduler interface {
	Schedule(ctx context.Context, job Job) error
	Cancel()
}
