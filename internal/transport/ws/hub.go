package ws

import (
	"sync"
)

type Conn interface {
	Send(evt Event) error
	Close() error
	Identity() string
}

// Hub is the in-process room registry: room id -> set of connections, plus
// the reverse index so a join can displace the connection's previous
// membership. A connection belongs to at most one room at a time.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[Conn]struct{}
	member map[Conn]string // conn -> current room
}

func NewHub() *Hub {
	return &Hub{
		rooms:  make(map[string]map[Conn]struct{}),
		member: make(map[Conn]string),
	}
}

// Join registers c in roomID. Joining the room it is already in is a no-op;
// joining a different room leaves the old one first.
func (h *Hub) Join(c Conn, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev, ok := h.member[c]; ok {
		if prev == roomID {
			return
		}
		h.removeLocked(c, prev)
	}

	rs, ok := h.rooms[roomID]
	if !ok {
		rs = make(map[Conn]struct{})
		h.rooms[roomID] = rs
	}
	rs[c] = struct{}{}
	h.member[c] = roomID
}

// Remove clears c's membership, if any. Called on disconnect.
func (h *Hub) Remove(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if roomID, ok := h.member[c]; ok {
		h.removeLocked(c, roomID)
	}
}

func (h *Hub) removeLocked(c Conn, roomID string) {
	if rs, ok := h.rooms[roomID]; ok {
		delete(rs, c)
		if len(rs) == 0 {
			delete(h.rooms, roomID)
		}
	}
	delete(h.member, c)
}

// Room reports the room c currently belongs to.
func (h *Hub) Room(c Conn) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	roomID, ok := h.member[c]
	return roomID, ok
}

// Broadcast delivers evt to every member of roomID except `except` (the
// originating connection never receives its own message back). Sends are
// best-effort. Returns the number of deliveries attempted.
func (h *Hub) Broadcast(roomID string, evt Event, except Conn) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	if rs, ok := h.rooms[roomID]; ok {
		for c := range rs {
			if c == except {
				continue
			}
			_ = c.Send(evt) // best-effort
			n++
		}
	}
	return n
}
