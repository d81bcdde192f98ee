package projection

import (
	"chat-sync/domain"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestTimeline_Snapshots_Replace_And_Report_Additions(t *testing.T) {
	req := require.New(t)
	var added [][]domain.ChatMessage
	timeline := NewTimeline("bob", func(messages []domain.ChatMessage) {
		added = append(added, messages)
	})
	handle := uuid.New()
	at := time.Now().UTC()

	alice := domain.ChatMessage{ChatRoom: "room1", SenderID: "alice", Timestamp: at, Text: "Hello Bob"}
	bob := domain.ChatMessage{ChatRoom: "room1", SenderID: "bob", Timestamp: at.Add(time.Second), Text: "Hi Alice"}

	// Given a first snapshot
	timeline.OnResults(handle, []domain.ChatMessage{alice})

	// When a re-run brings a superset
	timeline.OnResults(handle, []domain.ChatMessage{alice, bob})

	// Then the timeline holds the whole snapshot once
	messages := timeline.Entries()
	req.Len(messages, 2)
	req.Equal("alice", messages[0].SenderID)
	req.False(messages[0].Mine)
	req.Equal("bob", messages[1].SenderID)
	req.True(messages[1].Mine)

	// And only new messages were reported
	req.Equal([][]domain.ChatMessage{{alice}, {bob}}, added)
}

func TestTimeline_Identical_Snapshot_Reports_Nothing(t *testing.T) {
	req := require.New(t)
	calls := 0
	timeline := NewTimeline("", func([]domain.ChatMessage) { calls++ })
	message := domain.ChatMessage{ChatRoom: "room1", SenderID: "alice", Timestamp: time.Now().UTC(), Text: "Hello"}

	timeline.OnResults(uuid.New(), []domain.ChatMessage{message})
	timeline.OnResults(uuid.New(), []domain.ChatMessage{message})

	req.Equal(1, calls)
}

func TestTimeline_OnClose_Drops_Snapshot(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("", nil)
	timeline.OnResults(uuid.New(), []domain.ChatMessage{{ChatRoom: "room1", SenderID: "alice", Timestamp: time.Now().UTC(), Text: "Hello"}})

	timeline.OnClose()

	req.True(timeline.Closed())
	req.Empty(timeline.Entries())
}
