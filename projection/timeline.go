// Package projection builds local timelines from query snapshots.
// Snapshots replace each other; the timeline only computes what changed.
// Does not render anything itself.
package projection

import (
	"chat-sync/domain"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is a timeline line as a client shows it.
type Entry struct {
	SenderID  string
	Content   string
	CreatedAt time.Time
	Mine      bool
}

// Timeline holds the last snapshot of a message query.
// It is a QueryListener and is only called on the home executor; the
// mutex protects readers living on other goroutines.
type Timeline struct {
	mu       sync.RWMutex
	Owner    string
	entries  []Entry
	seen     map[domain.MessageKey]struct{}
	closed   bool
	onChange func(added []domain.ChatMessage)
}

// NewTimeline calls onChange with the messages absent from the previous
// snapshot, in snapshot order. onChange may be nil.
func NewTimeline(owner string, onChange func(added []domain.ChatMessage)) *Timeline {
	return &Timeline{
		Owner:    owner,
		seen:     make(map[domain.MessageKey]struct{}),
		onChange: onChange,
	}
}

func (t *Timeline) OnResults(_ uuid.UUID, items []domain.ChatMessage) {
	t.mu.Lock()
	seen := make(map[domain.MessageKey]struct{}, len(items))
	entries := make([]Entry, 0, len(items))
	var added []domain.ChatMessage
	for _, item := range items {
		key := item.Key()
		seen[key] = struct{}{}
		if _, ok := t.seen[key]; !ok {
			added = append(added, item)
		}
		entries = append(entries, fromChatMessage(item, t.Owner))
	}
	t.seen, t.entries, t.closed = seen, entries, false
	t.mu.Unlock()

	if len(added) > 0 && t.onChange != nil {
		t.onChange(added)
	}
}

// OnClose drops the snapshot.
func (t *Timeline) OnClose() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
	t.seen = make(map[domain.MessageKey]struct{})
	t.closed = true
}

func (t *Timeline) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *Timeline) Closed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.closed
}

func fromChatMessage(m domain.ChatMessage, owner string) Entry {
	return Entry{
		SenderID:  m.SenderID,
		Content:   m.Text,
		CreatedAt: m.Timestamp,
		Mine:      owner != "" && m.SenderID == owner,
	}
}
