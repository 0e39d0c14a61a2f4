// Package index maintains the per-room occupancy picture used for overlap
// checks. It mirrors the reservation store and answers queries without a
// round trip, and it owns the per-room exclusion scope that serializes
// admission decisions targeting the same room.
package index

import (
	"sort"
	"sync"
	"time"

	"roombook/internal/reservations/conflict"
	"roombook/pkg/model"
)

// Entry is one indexed reservation window.
type Entry struct {
	ID    string
	Start time.Time
	End   time.Time
}

type roomSchedule struct {
	mu sync.RWMutex
	// sorted by Start; per-room counts stay small enough that slice
	// shifting beats tree bookkeeping
	entries []Entry
}

type Index struct {
	mu    sync.RWMutex
	rooms map[string]*roomSchedule
	locks sync.Map // roomID -> *sync.Mutex
}

func New() *Index {
	return &Index{
		rooms: make(map[string]*roomSchedule),
	}
}

// LockRoom acquires the admission lock for one room. Locks for distinct
// rooms are independent, so admissions on different rooms run in parallel.
func (ix *Index) LockRoom(roomID string) {
	ix.roomMutex(roomID).Lock()
}

func (ix *Index) UnlockRoom(roomID string) {
	ix.roomMutex(roomID).Unlock()
}

func (ix *Index) roomMutex(roomID string) *sync.Mutex {
	mu, _ := ix.locks.LoadOrStore(roomID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Seed replaces the index contents with the given reservations. Called once
// at startup before the service accepts traffic.
func (ix *Index) Seed(reservations []*model.Reservation) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.rooms = make(map[string]*roomSchedule)
	for _, res := range reservations {
		room, ok := ix.rooms[res.RoomID]
		if !ok {
			room = &roomSchedule{}
			ix.rooms[res.RoomID] = room
		}
		room.insert(Entry{ID: res.ID, Start: res.StartTime, End: res.EndTime})
	}
}

// Query returns the entries on roomID whose windows overlap [start, end)
// under half-open semantics, skipping excludeID when non-empty.
func (ix *Index) Query(roomID string, start, end time.Time, excludeID string) []Entry {
	room := ix.room(roomID, false)
	if room == nil {
		return nil
	}

	room.mu.RLock()
	defer room.mu.RUnlock()

	// entries are sorted by start, so everything at or past `end` is out
	limit := sort.Search(len(room.entries), func(i int) bool {
		return !room.entries[i].Start.Before(end)
	})

	var overlapping []Entry
	for _, e := range room.entries[:limit] {
		if e.ID == excludeID && excludeID != "" {
			continue
		}
		if conflict.Overlaps(e.Start, e.End, start, end) {
			overlapping = append(overlapping, e)
		}
	}
	return overlapping
}

// Insert adds a committed reservation window to its room's schedule.
func (ix *Index) Insert(res *model.Reservation) {
	room := ix.room(res.RoomID, true)

	room.mu.Lock()
	defer room.mu.Unlock()

	room.insert(Entry{ID: res.ID, Start: res.StartTime, End: res.EndTime})
}

// Remove drops the reservation from the room's schedule. Removing an entry
// that is not present is a no-op, which keeps removal idempotent.
func (ix *Index) Remove(roomID, reservationID string) {
	room := ix.room(roomID, false)
	if room == nil {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	for i, e := range room.entries {
		if e.ID == reservationID {
			room.entries = append(room.entries[:i], room.entries[i+1:]...)
			return
		}
	}
}

// Update replaces the reservation's window, implemented as remove-then-insert
// under one room lock so no intermediate state is observable.
func (ix *Index) Update(roomID, reservationID string, start, end time.Time) {
	room := ix.room(roomID, true)

	room.mu.Lock()
	defer room.mu.Unlock()

	for i, e := range room.entries {
		if e.ID == reservationID {
			room.entries = append(room.entries[:i], room.entries[i+1:]...)
			break
		}
	}
	room.insert(Entry{ID: reservationID, Start: start, End: end})
}

// DropRoom clears all entries for a room. Used by cascade deletion.
func (ix *Index) DropRoom(roomID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	delete(ix.rooms, roomID)
}

// Size reports the number of indexed windows for a room.
func (ix *Index) Size(roomID string) int {
	room := ix.room(roomID, false)
	if room == nil {
		return 0
	}

	room.mu.RLock()
	defer room.mu.RUnlock()

	return len(room.entries)
}

func (ix *Index) room(roomID string, create bool) *roomSchedule {
	ix.mu.RLock()
	room, ok := ix.rooms[roomID]
	ix.mu.RUnlock()
	if ok || !create {
		return room
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	room, ok = ix.rooms[roomID]
	if !ok {
		room = &roomSchedule{}
		ix.rooms[roomID] = room
	}
	return room
}

func (rs *roomSchedule) insert(entry Entry) {
	pos := sort.Search(len(rs.entries), func(i int) bool {
		return rs.entries[i].Start.After(entry.Start)
	})
	rs.entries = append(rs.entries, Entry{})
	copy(rs.entries[pos+1:], rs.entries[pos:])
	rs.entries[pos] = entry
}
