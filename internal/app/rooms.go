package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
)

// roomState is one rendezvous point. Membership keeps join order so a new
// joiner learns whom to signal first. Each room carries its own lock;
// unrelated rooms never serialize on each other.
type roomState struct {
	mu      sync.Mutex
	members []core.SessionID
}

func (rs *roomState) contains(sid core.SessionID) bool {
	for _, m := range rs.members {
		if m == sid {
			return true
		}
	}
	return false
}

func (rs *roomState) remove(sid core.SessionID) {
	for i, m := range rs.members {
		if m == sid {
			rs.members = append(rs.members[:i], rs.members[i+1:]...)
			return
		}
	}
}

type JoinResult struct {
	IsFirstMember bool
	// Existing lists prior members in join order; the joiner is excluded.
	Existing []core.SessionID
}

// Departure reports one room a session left and who remains there.
type Departure struct {
	RoomID    domain.RoomID
	Remaining []core.SessionID
}

// RoomManager tracks call rendezvous rooms. A room exists only as a
// non-empty member list: created on first join, deleted the instant it
// empties.
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*roomState
}

func NewRoomManager() *RoomManager {
	return &RoomManager{rooms: make(map[domain.RoomID]*roomState)}
}

// Join adds sid to the room, creating it on first join. Joining twice is
// idempotent and returns the current state without duplicating the entry.
func (m *RoomManager) Join(roomID domain.RoomID, sid core.SessionID) JoinResult {
	m.mu.Lock()
	room, ok := m.rooms[roomID]
	if !ok {
		room = &roomState{}
		m.rooms[roomID] = room
	}
	// Take the room lock before releasing the manager lock. dropIfEmpty
	// needs both locks to delete the entry, so the room we just looked up
	// cannot vanish before the member is appended; releasing the manager
	// lock first would let a racing last-member leave orphan this join.
	room.mu.Lock()
	m.mu.Unlock()
	defer room.mu.Unlock()
	existing := make([]core.SessionID, 0, len(room.members))
	for _, member := range room.members {
		if member != sid {
			existing = append(existing, member)
		}
	}
	if !room.contains(sid) {
		room.members = append(room.members, sid)
	}
	log.Info().Str("module", "app.rooms").Str("room", string(roomID)).Str("sid", string(sid)).Int("members", len(room.members)).Msg("joined room")
	return JoinResult{IsFirstMember: len(existing) == 0, Existing: existing}
}

// Leave removes sid from the room and returns the remaining members.
// Removing a non-member is a no-op; an emptied room is deleted immediately.
func (m *RoomManager) Leave(roomID domain.RoomID, sid core.SessionID) []core.SessionID {
	m.mu.RLock()
	room, ok := m.rooms[roomID]
	m.mu.RUnlock()
	if !ok {
		return nil
	}

	room.mu.Lock()
	room.remove(sid)
	remaining := append([]core.SessionID(nil), room.members...)
	room.mu.Unlock()

	if len(remaining) == 0 {
		m.dropIfEmpty(roomID, room)
	}
	log.Info().Str("module", "app.rooms").Str("room", string(roomID)).Str("sid", string(sid)).Int("remaining", len(remaining)).Msg("left room")
	return remaining
}

// LeaveAll sweeps sid out of every room in one pass. Used on disconnect so
// partially-cleaned membership is never observable.
func (m *RoomManager) LeaveAll(sid core.SessionID) []Departure {
	m.mu.RLock()
	snapshot := make(map[domain.RoomID]*roomState, len(m.rooms))
	for id, room := range m.rooms {
		snapshot[id] = room
	}
	m.mu.RUnlock()

	var out []Departure
	for id, room := range snapshot {
		room.mu.Lock()
		if !room.contains(sid) {
			room.mu.Unlock()
			continue
		}
		room.remove(sid)
		remaining := append([]core.SessionID(nil), room.members...)
		room.mu.Unlock()

		if len(remaining) == 0 {
			m.dropIfEmpty(id, room)
		}
		out = append(out, Departure{RoomID: id, Remaining: remaining})
	}
	return out
}

// Members returns the current member list in join order.
func (m *RoomManager) Members(roomID domain.RoomID) []core.SessionID {
	m.mu.RLock()
	room, ok := m.rooms[roomID]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return append([]core.SessionID(nil), room.members...)
}

func (m *RoomManager) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// dropIfEmpty deletes the room entry unless someone joined in between.
func (m *RoomManager) dropIfEmpty(roomID domain.RoomID, room *roomState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room.mu.Lock()
	empty := len(room.members) == 0
	room.mu.Unlock()
	if empty && m.rooms[roomID] == room {
		delete(m.rooms, roomID)
		log.Info().Str("module", "app.rooms").Str("room", string(roomID)).Msg("room emptied, dropped")
	}
}
