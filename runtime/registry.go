package runtime

import (
	"chat-sync/domain"
	"sync"

	"github.com/google/uuid"
)

// AllRooms is the room of queries covering every room.
const AllRooms = ""

// Invalidator is a query handle that re-runs when its data changed.
type Invalidator interface {
	Invalidate()
}

type Set map[uuid.UUID]struct{}

// Registry maps rooms to the live query handles reading them.
type Registry struct {
	mu          sync.RWMutex
	handles     map[uuid.UUID]Invalidator // map handle -> invalidator
	roomHandles map[string]Set            // map room to handles
}

func NewRegistry() *Registry {
	return &Registry{
		handles:     make(map[uuid.UUID]Invalidator),
		roomHandles: make(map[string]Set),
	}
}

// GetInvalidatorsForRoom returns the handles reading a room,
// including those covering every room.
// Returns nil if nobody reads the room.
func (r *Registry) GetInvalidatorsForRoom(room string) []Invalidator {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var invalidators []Invalidator
	collect := func(members Set) {
		for handleID := range members {
			if inv, exists := r.handles[handleID]; exists {
				invalidators = append(invalidators, inv)
			}
		}
	}
	collect(r.roomHandles[room])
	if room != AllRooms {
		collect(r.roomHandles[AllRooms])
	}
	return invalidators
}

// Subscribe registers a handle for the room it reads.
// If the room is not yet known, it is initialized on the fly.
func (r *Registry) Subscribe(handleID uuid.UUID, room string, inv Invalidator) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handles[handleID] = inv

	if _, ok := r.roomHandles[room]; !ok {
		r.roomHandles[room] = make(Set)
	}
	r.roomHandles[room][handleID] = struct{}{}
}

// Unsubscribe removes a handle and drops the room entry once empty.
func (r *Registry) Unsubscribe(handleID uuid.UUID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.handles, handleID)

	if members, ok := r.roomHandles[room]; ok {
		delete(members, handleID)
		if len(members) == 0 {
			delete(r.roomHandles, room)
		}
	}
}

// Notify is the store observer: it invalidates every handle reading the
// room of the appended message.
func (r *Registry) Notify(message domain.ChatMessage) {
	for _, inv := range r.GetInvalidatorsForRoom(message.ChatRoom) {
		inv.Invalidate()
	}
}
