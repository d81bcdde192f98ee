package repositories

import (
	"chat-sync/domain"
	"chat-sync/errors"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestRepository(t *testing.T) *MessageRepository {
	return NewMessageRepository(newTestDB(t), logs.GetLoggerFromLevel(slog.LevelDebug))
}

func Test_Append_Then_QueryAll_Returns_Room_Ordered_By_Timestamp(t *testing.T) {
	req := require.New(t)
	repository := newTestRepository(t)

	// Given alice and bob writing in room1 and carol elsewhere
	t1 := time.Now().UTC()
	t2 := t1.Add(time.Second)
	alice := domain.ChatMessage{ChatRoom: "room1", SenderID: "alice", Timestamp: t1, Text: "hello"}
	bob := domain.ChatMessage{ChatRoom: "room1", SenderID: "bob", Timestamp: t2, Text: "hi alice"}
	carol := domain.ChatMessage{ChatRoom: "room2", SenderID: "carol", Timestamp: t1.Add(-time.Second), Text: "anyone?"}

	// When appended out of order
	req.NoError(repository.Append(bob))
	req.NoError(repository.Append(carol))
	req.NoError(repository.Append(alice))

	// Then only room1 is returned, ascending
	messages, err := repository.QueryAll("room1")
	req.NoError(err)
	req.Equal([]domain.ChatMessage{alice, bob}, messages)
}

func Test_Append_Duplicate_Key_Leaves_State_Unchanged(t *testing.T) {
	req := require.New(t)
	repository := newTestRepository(t)
	at := time.Now().UTC()
	original := domain.ChatMessage{ChatRoom: "room1", SenderID: "alice", Timestamp: at, Text: "first"}
	req.NoError(repository.Append(original))

	var notified int
	repository.Subscribe(func(domain.ChatMessage) { notified++ })

	// When the same identity is appended with another text
	duplicate := original
	duplicate.Text = "second"
	err := repository.Append(duplicate)

	// Then the append is rejected and nothing changed
	req.ErrorIs(err, errors.ErrDuplicateKey)
	messages, err := repository.QueryAll("room1")
	req.NoError(err)
	req.Equal([]domain.ChatMessage{original}, messages)
	req.Zero(notified)
}

func Test_QueryAll_Unknown_Room_Returns_Empty(t *testing.T) {
	req := require.New(t)
	repository := newTestRepository(t)

	messages, err := repository.QueryAll("nowhere")
	req.NoError(err)
	req.NotNil(messages)
	req.Empty(messages)
}

func Test_QueryAll_All_Rooms_Merges_By_Timestamp(t *testing.T) {
	req := require.New(t)
	repository := newTestRepository(t)
	at := time.Now().UTC()
	expected := []domain.ChatMessage{
		{ChatRoom: "b", SenderID: "bob", Timestamp: at, Text: "1"},
		{ChatRoom: "a", SenderID: "alice", Timestamp: at.Add(time.Millisecond), Text: "2"},
		{ChatRoom: "b", SenderID: "bob", Timestamp: at.Add(2 * time.Millisecond), Text: "3"},
		{ChatRoom: "a", SenderID: "alice", Timestamp: at.Add(3 * time.Millisecond), Text: "4"},
	}
	for i := len(expected) - 1; i >= 0; i-- {
		req.NoError(repository.Append(expected[i]))
	}

	messages, err := repository.QueryAll("")
	req.NoError(err)
	req.Equal(expected, messages)
}

func Test_QueryAll_Orders_Timestamps_Around_The_Epoch(t *testing.T) {
	req := require.New(t)
	repository := newTestRepository(t)
	epoch := time.Unix(0, 0).UTC()
	expected := []domain.ChatMessage{
		{ChatRoom: "r", SenderID: "alice", Timestamp: time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC), Text: "oldest"},
		{ChatRoom: "r", SenderID: "alice", Timestamp: epoch.Add(-time.Hour), Text: "first"},
		{ChatRoom: "r", SenderID: "alice", Timestamp: epoch.Add(-30 * time.Minute), Text: "second"},
		{ChatRoom: "r", SenderID: "alice", Timestamp: epoch.Add(-time.Nanosecond), Text: "just before"},
		{ChatRoom: "r", SenderID: "alice", Timestamp: epoch, Text: "epoch"},
		{ChatRoom: "r", SenderID: "alice", Timestamp: epoch.Add(time.Hour), Text: "after"},
	}

	// Given messages before and after 1970 appended in scrambled order
	for _, i := range []int{2, 5, 1, 4, 0, 3} {
		req.NoError(repository.Append(expected[i]))
	}

	// Then the room is still ascending
	messages, err := repository.QueryAll("r")
	req.NoError(err)
	req.Equal(expected, messages)

	all, err := repository.QueryAll("")
	req.NoError(err)
	req.Equal(expected, all)
}

func Test_Append_Rejects_Timestamp_Out_Of_Range(t *testing.T) {
	req := require.New(t)
	repository := newTestRepository(t)
	var notified int
	repository.Subscribe(func(domain.ChatMessage) { notified++ })

	// When timestamps cannot be stored as nanoseconds
	for _, at := range []time.Time{
		time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(1600, 1, 1, 0, 0, 0, 0, time.UTC),
	} {
		err := repository.Append(domain.ChatMessage{ChatRoom: "r", SenderID: "alice", Timestamp: at, Text: "time travel"})
		req.ErrorIs(err, errors.ErrInvalidMessage)
	}

	// Then nothing is stored nor notified
	messages, err := repository.QueryAll("r")
	req.NoError(err)
	req.Empty(messages)
	req.Zero(notified)
}

func Test_Room_Prefix_Does_Not_Leak_Into_Longer_Room(t *testing.T) {
	req := require.New(t)
	repository := newTestRepository(t)
	at := time.Now().UTC()
	req.NoError(repository.Append(domain.ChatMessage{ChatRoom: "room", SenderID: "alice", Timestamp: at, Text: "short"}))
	req.NoError(repository.Append(domain.ChatMessage{ChatRoom: "room:1", SenderID: "alice", Timestamp: at, Text: "long"}))

	messages, err := repository.QueryAll("room")
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("short", messages[0].Text)
}

func Test_Append_Keeps_Location_And_Notifies_Observers_In_Order(t *testing.T) {
	req := require.New(t)
	repository := newTestRepository(t)
	var calls []string
	repository.Subscribe(func(domain.ChatMessage) { calls = append(calls, "first") })
	repository.Subscribe(func(domain.ChatMessage) { calls = append(calls, "second") })

	lat, lon := 48.8566, 2.3522
	message := domain.ChatMessage{ChatRoom: "paris", SenderID: "alice", Timestamp: time.Now().UTC(), Text: "bonjour", Latitude: &lat, Longitude: &lon}
	req.NoError(repository.Append(message))

	req.Equal([]string{"first", "second"}, calls)
	messages, err := repository.Get(message.Key(), domain.MessageKey{ChatRoom: "paris", SenderID: "ghost", Timestamp: time.Now()})
	req.NoError(err)
	req.Len(messages, 1)
	location, ok := messages[0].Location()
	req.True(ok)
	req.Equal(domain.Location{Latitude: lat, Longitude: lon}, location)
}

func Test_Peers_Keep_Newest_Sighting(t *testing.T) {
	req := require.New(t)
	repository := newTestRepository(t)
	at := time.Now().UTC()
	lat, lon := 45.764, 4.8357

	// Given a located message followed by an older one and a newer one without location
	req.NoError(repository.Append(domain.ChatMessage{ChatRoom: "lyon", SenderID: "alice", Timestamp: at, Text: "1", Latitude: &lat, Longitude: &lon}))
	req.NoError(repository.Append(domain.ChatMessage{ChatRoom: "old", SenderID: "alice", Timestamp: at.Add(-time.Hour), Text: "0"}))
	req.NoError(repository.Append(domain.ChatMessage{ChatRoom: "room1", SenderID: "alice", Timestamp: at.Add(time.Minute), Text: "2"}))
	req.NoError(repository.Append(domain.ChatMessage{ChatRoom: "room1", SenderID: "bob", Timestamp: at, Text: "3"}))

	peers, err := repository.Peers()
	req.NoError(err)
	req.Len(peers, 2)
	req.Equal("alice", peers[0].SenderID)
	req.Equal("room1", peers[0].LastRoom)
	req.True(at.Add(time.Minute).Equal(peers[0].LastSeen))
	req.NotNil(peers[0].Latitude)
	req.Equal(lat, *peers[0].Latitude)
	req.Equal("bob", peers[1].SenderID)
	req.Nil(peers[1].Latitude)
}

func Test_Cursor_Never_Moves_Backwards(t *testing.T) {
	req := require.New(t)
	cursors := NewCursorRepository(newTestDB(t), slog.Default())

	at, err := cursors.GetCursor("remote")
	req.NoError(err)
	req.True(at.IsZero())

	now := time.Now().UTC()
	req.NoError(cursors.SetCursor("remote", now))
	req.NoError(cursors.SetCursor("remote", now.Add(-time.Minute)))

	at, err = cursors.GetCursor("remote")
	req.NoError(err)
	req.True(now.Equal(at))
}

func Test_Decode_Rejects_Truncated_Record(t *testing.T) {
	req := require.New(t)
	value := encodeMessage(domain.ChatMessage{ChatRoom: "room1", SenderID: "alice", Timestamp: time.Now(), Text: "hello"})

	_, err := decodeMessage(value[:len(value)-2])
	req.ErrorIs(err, errors.ErrMalformedRecord)
}
