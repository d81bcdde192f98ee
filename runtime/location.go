package runtime

import (
	"chat-sync/domain"
	"sync"
)

// LastKnownLocation is a LocationProvider fed by whoever tracks the device position.
type LastKnownLocation struct {
	mu       sync.RWMutex
	location domain.Location
	known    bool
}

// NewLastKnownLocation starts with a fixed position when initial is not nil.
func NewLastKnownLocation(initial *domain.Location) *LastKnownLocation {
	l := &LastKnownLocation{}
	if initial != nil {
		l.Update(*initial)
	}
	return l
}

func (l *LastKnownLocation) Update(location domain.Location) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.location, l.known = location, true
}

func (l *LastKnownLocation) Forget() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.location, l.known = domain.Location{}, false
}

func (l *LastKnownLocation) LastKnown() (domain.Location, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.location, l.known
}
