package realtime

import (
	"sync"

	"github.com/google/uuid"
)

const subscriberBuffer = 32

// Hub routes changes to local subscribers, one room per show. Delivery is
// non-blocking: a subscriber that falls behind loses intermediate
// notifications, which is safe because every notification triggers a full
// snapshot recompute; the next delivered change catches the client up.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[string]chan Change
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[string]chan Change)}
}

// Subscribe registers a listener for one show's changes. The returned cancel
// must be called on teardown; it closes the channel.
func (h *Hub) Subscribe(showID string) (<-chan Change, func()) {
	id := uuid.NewString()
	ch := make(chan Change, subscriberBuffer)

	h.mu.Lock()
	room, ok := h.rooms[showID]
	if !ok {
		room = make(map[string]chan Change)
		h.rooms[showID] = room
	}
	room[id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if room, ok := h.rooms[showID]; ok {
			if existing, ok := room[id]; ok {
				delete(room, id)
				close(existing)
			}
			if len(room) == 0 {
				delete(h.rooms, showID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Broadcast delivers a change to every subscriber of its show.
func (h *Hub) Broadcast(change Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.rooms[change.ShowID] {
		select {
		case ch <- change:
		default:
		}
	}
}

// DegradeAll tells every subscriber of every show that the bus is unhealthy.
func (h *Hub) DegradeAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for showID, room := range h.rooms {
		for _, ch := range room {
			select {
			case ch <- Change{ShowID: showID, Stream: StreamDegraded}:
			default:
			}
		}
	}
}

// Subscribers reports the current listener count for a show.
func (h *Hub) Subscribers(showID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[showID])
}
