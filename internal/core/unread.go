package core

import "sync"

// Unread tracks per-user, per-room counters of messages not yet seen.
// Counters are process-local caches: they never decrement except via Clear
// and are re-derivable from storage.
type Unread struct {
	mu     sync.RWMutex
	counts map[int64]map[int64]int // userID -> roomID -> count
}

// NewUnread constructs an empty counter set.
func NewUnread() *Unread {
	return &Unread{counts: make(map[int64]map[int64]int)}
}

// Increment bumps the counter for (user, room) by one.
func (u *Unread) Increment(userID, roomID int64) {
	u.mu.Lock()
	defer u.mu.Unlock()

	rooms, ok := u.counts[userID]
	if !ok {
		rooms = make(map[int64]int)
		u.counts[userID] = rooms
	}
	rooms[roomID]++
}

// Clear zeroes the counter for (user, room), regardless of prior value.
func (u *Unread) Clear(userID, roomID int64) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if rooms, ok := u.counts[userID]; ok {
		rooms[roomID] = 0
	}
}

// Seed sets the counter to zero only when no entry exists yet, used by boot
// rehydration. Seeding never replays historical unread counts.
func (u *Unread) Seed(userID, roomID int64) {
	u.mu.Lock()
	defer u.mu.Unlock()

	rooms, ok := u.counts[userID]
	if !ok {
		rooms = make(map[int64]int)
		u.counts[userID] = rooms
	}
	if _, exists := rooms[roomID]; !exists {
		rooms[roomID] = 0
	}
}

// Get returns the current counter for (user, room).
func (u *Unread) Get(userID, roomID int64) int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.counts[userID][roomID]
}

// Snapshot returns a copy of the user's unread map, used to hydrate a newly
// identified connection.
func (u *Unread) Snapshot(userID int64) map[int64]int {
	u.mu.RLock()
	defer u.mu.RUnlock()

	rooms := u.counts[userID]
	out := make(map[int64]int, len(rooms))
	for roomID, count := range rooms {
		out[roomID] = count
	}
	return out
}
