package runtime

import (
	"chat-sync/domain"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type countingInvalidator struct {
	calls atomic.Int32
}

func (c *countingInvalidator) Invalidate() {
	c.calls.Add(1)
}

func TestRegistry_Subscribe_One_Room_One_Handle(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	handleID := uuid.New()
	inv := &countingInvalidator{}

	// Given no handle is registered
	req.Empty(registry.handles)
	req.Empty(registry.roomHandles)

	// When a handle subscribes a room
	registry.Subscribe(handleID, "room1", inv)

	// Then
	req.Len(registry.handles, 1)
	req.Len(registry.roomHandles, 1)
	req.Contains(registry.roomHandles["room1"], handleID)
	req.Equal([]Invalidator{inv}, registry.GetInvalidatorsForRoom("room1"))
	req.Nil(registry.GetInvalidatorsForRoom("room2"))
}

func TestRegistry_All_Rooms_Handle_Sees_Every_Room(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	room := &countingInvalidator{}
	all := &countingInvalidator{}
	registry.Subscribe(uuid.New(), "room1", room)
	registry.Subscribe(uuid.New(), AllRooms, all)

	// When messages land in two rooms
	registry.Notify(domain.ChatMessage{ChatRoom: "room1"})
	registry.Notify(domain.ChatMessage{ChatRoom: "room2"})

	// Then the room handle is invalidated once, the global one twice
	req.EqualValues(1, room.calls.Load())
	req.EqualValues(2, all.calls.Load())
}

func TestRegistry_UnSubscribe_Drops_Empty_Room(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	handleID1 := uuid.New()
	handleID2 := uuid.New()
	inv2 := &countingInvalidator{}

	registry.Subscribe(handleID1, "room1", &countingInvalidator{})
	registry.Subscribe(handleID2, "room1", inv2)

	// When a handle unsubscribes
	registry.Unsubscribe(handleID1, "room1")

	// Then only one handle is left
	req.Len(registry.handles, 1)
	req.Equal([]Invalidator{inv2}, registry.GetInvalidatorsForRoom("room1"))

	// When the last one leaves, the room disappears
	registry.Unsubscribe(handleID2, "room1")
	req.Empty(registry.handles)
	req.Empty(registry.roomHandles)
	req.Nil(registry.GetInvalidatorsForRoom("room1"))
}
